package source

import (
	"cmp"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/event-comb/app/event"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops candidates rejected by the source's keyword filters.
func (f *Filterer) Run(candidates []event.RawCandidate, filters []ConfigFilter) ([]event.RawCandidate, int) {
	if len(filters) == 0 {
		return candidates, 0
	}

	kept := make([]event.RawCandidate, 0, len(candidates))
	for _, c := range candidates {
		if isFiltered, reason := f.applyFilters(c, filters); isFiltered {
			slog.Debug("Candidate filtered", "title", c["title"], "reason", reason)
			continue
		}
		kept = append(kept, c)
	}

	return kept, len(candidates) - len(kept)
}

func (f *Filterer) applyFilters(c event.RawCandidate, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(c, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(c event.RawCandidate, field string) string {
	switch field {
	case "tags":
		return strings.Join(event.ParseTags(c["tags"]), " ")
	case "organizer":
		return cmp.Or(stringValue(c, "organizer"), stringValue(c, "source"))
	default:
		return stringValue(c, field)
	}
}

func stringValue(c event.RawCandidate, key string) string {
	s, _ := c[key].(string)
	return strings.TrimSpace(s)
}
