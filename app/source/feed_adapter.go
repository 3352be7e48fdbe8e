package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/lysyi3m/event-comb/app/event"
	"github.com/mmcdole/gofeed"
)

// FeedAdapter reads events published as RSS or Atom items.
type FeedAdapter struct {
	base
	fetcher *Fetcher
	parser  *gofeed.Parser
}

func (a *FeedAdapter) Fetch(ctx context.Context) ([]event.RawCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	data, err := a.fetcher.Fetch(ctx, a.Name(), a.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := a.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	candidates := make([]event.RawCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		candidates = append(candidates, a.normalizeItem(item))
	}

	return a.finalize(candidates), nil
}

func (a *FeedAdapter) normalizeItem(item *gofeed.Item) event.RawCandidate {
	c := event.RawCandidate{
		"title":      cleanText(item.Title),
		"source_url": item.Link,
	}

	if description := stripHTML(item.Description); description != "" {
		c["description"] = description
	}

	switch {
	case item.PublishedParsed != nil:
		c["date"] = *item.PublishedParsed
	case item.Published != "":
		c["date"] = item.Published
	}

	if item.Image != nil && item.Image.URL != "" {
		c["image_url"] = item.Image.URL
	} else {
		for _, enclosure := range item.Enclosures {
			if enclosure != nil && enclosure.URL != "" && isImageType(enclosure.Type) {
				c["image_url"] = enclosure.URL
				break
			}
		}
	}

	if len(item.Categories) > 0 {
		c["tags"] = append([]string(nil), item.Categories...)
	}

	return c
}

func isImageType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
