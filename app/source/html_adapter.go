package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/event-comb/app/event"
)

// HTMLAdapter scrapes an event listing page with CSS selectors.
type HTMLAdapter struct {
	base
	fetcher   *Fetcher
	extractor *ContentExtractor
}

func (a *HTMLAdapter) Fetch(ctx context.Context) ([]event.RawCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	data, err := a.fetcher.Fetch(ctx, a.Name(), a.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	candidates, err := a.parse(data)
	if err != nil {
		return nil, err
	}

	candidates = a.finalize(candidates)

	if a.config.Settings.ExtractDetails && a.extractor != nil {
		a.fillDescriptions(ctx, candidates)
	}

	return candidates, nil
}

func (a *HTMLAdapter) parse(data []byte) ([]event.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	sel := a.config.Selectors
	var candidates []event.RawCandidate

	doc.Find(sel.Item).Each(func(_ int, s *goquery.Selection) {
		title := cleanText(find(s, sel.Title).First().Text())
		if title == "" {
			return
		}

		c := event.RawCandidate{"title": title}

		// Items without their own link point back at the listing page.
		link, _ := find(s, sel.Link).First().Attr("href")
		if strings.TrimSpace(link) == "" {
			link = a.config.URL
		}
		c["source_url"] = link

		if sel.Description != "" {
			if description := cleanText(s.Find(sel.Description).First().Text()); description != "" {
				c["description"] = description
			}
		}

		if sel.Date != "" {
			node := s.Find(sel.Date).First()
			date, ok := node.Attr("datetime")
			if !ok || strings.TrimSpace(date) == "" {
				date = node.Text()
			}
			if date = cleanText(date); date != "" {
				c["date"] = date
			}
		}

		if sel.Location != "" {
			if location := cleanText(s.Find(sel.Location).First().Text()); location != "" {
				c["location"] = location
			}
		}

		if sel.Image != "" {
			img := s.Find(sel.Image).First()
			src, _ := img.Attr("src")
			if strings.TrimSpace(src) == "" {
				src, _ = img.Attr("data-src")
			}
			if src = strings.TrimSpace(src); src != "" {
				c["image_url"] = src
			}
		}

		candidates = append(candidates, c)
	})

	slog.Debug("Listing parsed", "source", a.Name(), "candidates", len(candidates))

	return candidates, nil
}

func (a *HTMLAdapter) fillDescriptions(ctx context.Context, candidates []event.RawCandidate) {
	for _, c := range candidates {
		if ctx.Err() != nil {
			return
		}

		if description, _ := c["description"].(string); strings.TrimSpace(description) != "" {
			continue
		}
		link, _ := c["source_url"].(string)
		if link == "" || link == a.config.URL {
			continue
		}

		data, err := a.fetcher.Fetch(ctx, a.Name()+"/details", link, nil)
		if err != nil {
			slog.Debug("Detail page fetch failed", "source", a.Name(), "url", link, "error", err)
			continue
		}

		text, err := a.extractor.Run(data, link)
		if err != nil {
			slog.Debug("Detail page extraction failed", "source", a.Name(), "url", link, "error", err)
			continue
		}
		c["description"] = text
	}
}

// find matches selector within s, or s itself when selector is empty.
func find(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s
	}
	return s.Find(selector)
}
