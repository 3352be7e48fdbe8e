package event

import (
	"slices"
	"time"
)

type Sorter struct{}

func NewSorter() *Sorter {
	return &Sorter{}
}

// Run orders dated events ascending and appends undated ones after them in
// their original relative order. The input slice is not modified.
func (s *Sorter) Run(events []Event) []Event {
	type dated struct {
		at    time.Time
		event Event
	}

	withDate := make([]dated, 0, len(events))
	var withoutDate []Event

	for _, e := range events {
		if at, ok := ParseDate(e.Date); ok {
			withDate = append(withDate, dated{at: at, event: e})
		} else {
			withoutDate = append(withoutDate, e)
		}
	}

	slices.SortStableFunc(withDate, func(a, b dated) int {
		return a.at.Compare(b.at)
	})

	sorted := make([]Event, 0, len(events))
	for _, d := range withDate {
		sorted = append(sorted, d.event)
	}
	return append(sorted, withoutDate...)
}
