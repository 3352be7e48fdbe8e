package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/mmcdole/gofeed"
)

// Adapter produces raw event candidates for one source. Fetch must be safe to
// call repeatedly.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]event.RawCandidate, error)
}

// DescriptionLimiter is implemented by adapters whose descriptions use a
// length limit other than the global default.
type DescriptionLimiter interface {
	DescriptionLimit() int
}

func NewFromConfig(config *Config, fetcher *Fetcher, extractor *ContentExtractor) (Adapter, error) {
	b := base{config: config, filterer: NewFilterer()}

	switch config.Type {
	case TypeHTML:
		return &HTMLAdapter{base: b, fetcher: fetcher, extractor: extractor}, nil
	case TypeFeed:
		return &FeedAdapter{base: b, fetcher: fetcher, parser: gofeed.NewParser()}, nil
	case TypeJSON:
		return &JSONAdapter{base: b, fetcher: fetcher}, nil
	case TypeStatic:
		return &StaticAdapter{base: b}, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", config.Type)
	}
}

// NewAdapters builds adapters for the enabled configs, keeping their order.
func NewAdapters(configs []*Config, fetcher *Fetcher, extractor *ContentExtractor) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(configs))
	for _, c := range configs {
		a, err := NewFromConfig(c, fetcher, extractor)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", c.Name, err)
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

type base struct {
	config   *Config
	filterer *Filterer
}

func (b *base) Name() string {
	return b.config.Name
}

func (b *base) DescriptionLimit() int {
	return b.config.Settings.DescriptionMaxLength
}

func (b *base) timeout() time.Duration {
	return time.Duration(b.config.Settings.Timeout) * time.Second
}

// finalize stamps source defaults, applies filters and caps the result.
func (b *base) finalize(candidates []event.RawCandidate) []event.RawCandidate {
	for _, c := range candidates {
		b.stamp(c)
	}

	kept, _ := b.filterer.Run(candidates, b.config.Filters)

	if limit := b.config.Settings.MaxItems; limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func (b *base) stamp(c event.RawCandidate) {
	setDefault(c, b.config.Organizer, "organizer", "source")
	setDefault(c, b.config.EventType, "event_type", "type")
	setDefault(c, b.config.Location, "location")

	if len(b.config.Tags) > 0 {
		c["tags"] = append(event.ParseTags(c["tags"]), b.config.Tags...)
	}

	for _, key := range []string{"source_url", "url", "image_url"} {
		if s, ok := c[key].(string); ok && s != "" {
			c[key] = resolveURL(b.config.BaseURL, s)
		}
	}
}

// setDefault writes value under keys[0] unless any of keys already holds a
// non-empty string.
func setDefault(c event.RawCandidate, value string, keys ...string) {
	if value == "" {
		return
	}
	for _, k := range keys {
		if s, ok := c[k].(string); ok && strings.TrimSpace(s) != "" {
			return
		}
	}
	c[keys[0]] = value
}

func resolveURL(baseURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || baseURL == "" {
		return ref
	}

	refURL, err := url.Parse(ref)
	if err != nil || refURL.IsAbs() {
		return ref
	}

	b, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	return b.ResolveReference(refURL).String()
}

// stripHTML returns the text content of an HTML fragment.
func stripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return cleanText(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanText(fragment)
	}
	return cleanText(doc.Text())
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
