package event

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"golang.org/x/text/cases"
)

// ErrMissingTitle marks a candidate without a usable title. It is a routine
// outcome, callers count it and move on.
var ErrMissingTitle = errors.New("missing title")

type Normalizer struct {
	maxDescription int
}

func NewNormalizer(maxDescription int) *Normalizer {
	return &Normalizer{
		maxDescription: maxDescription,
	}
}

// Run coerces raw into the canonical Event shape. A positive limit overrides
// the default description length.
func (n *Normalizer) Run(raw RawCandidate, limit int) (Event, error) {
	title := stringField(raw, "title")
	if title == "" {
		return Event{}, ErrMissingTitle
	}

	if limit <= 0 {
		limit = n.maxDescription
	}

	return Event{
		Title:       title,
		Description: truncate(stringField(raw, "description"), limit),
		Date:        NormalizeDate(stringField(raw, "date")),
		Location:    stringField(raw, "location"),
		Organizer:   cmp.Or(stringField(raw, "organizer"), stringField(raw, "source"), DefaultOrganizer),
		SourceURL:   cmp.Or(stringField(raw, "source_url"), stringField(raw, "url")),
		EventType:   cmp.Or(stringField(raw, "event_type"), stringField(raw, "type"), DefaultEventType),
		Tags:        normalizeTags(raw["tags"]),
		ImageURL:    stringField(raw, "image_url"),
	}, nil
}

func stringField(raw RawCandidate, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(time.RFC3339)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}

// normalizeTags keeps the first-seen casing of each tag and drops later
// case-insensitive repeats.
func normalizeTags(value any) []string {
	raw := ParseTags(value)

	fold := cases.Fold()
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := fold.String(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// ParseTags reads a tags value in any of the shapes adapters produce: a
// string slice, a decoded JSON array, or a string holding a JSON array or a
// comma list. Entries are returned as found.
func ParseTags(value any) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	case string:
		return splitTags(v)
	default:
		return nil
	}
}

// splitTags accepts a JSON array as stored by older runs or a comma list.
func splitTags(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(s), &tags); err == nil {
			return tags
		}
	}
	return strings.Split(s, ",")
}
