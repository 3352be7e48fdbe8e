package source

import (
	"context"
	"maps"

	"github.com/lysyi3m/event-comb/app/event"
)

// StaticAdapter serves curated events declared directly in the source file.
type StaticAdapter struct {
	base
}

func (a *StaticAdapter) Fetch(ctx context.Context) ([]event.RawCandidate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	candidates := make([]event.RawCandidate, 0, len(a.config.Events))
	for _, e := range a.config.Events {
		candidates = append(candidates, event.RawCandidate(maps.Clone(e)))
	}

	return a.finalize(candidates), nil
}
