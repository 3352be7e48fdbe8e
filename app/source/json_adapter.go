package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lysyi3m/event-comb/app/event"
)

// JSONAdapter maps items of a JSON API response onto candidate keys using
// dotted paths, e.g. "start.local" or "venue.address.city".
type JSONAdapter struct {
	base
	fetcher *Fetcher
}

func (a *JSONAdapter) Fetch(ctx context.Context) ([]event.RawCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	var headers map[string]string
	if env := a.config.JSON.AuthTokenEnv; env != "" {
		if token := strings.TrimSpace(os.Getenv(env)); token != "" {
			headers = map[string]string{"Authorization": "Bearer " + token}
		}
	}

	data, err := a.fetcher.Fetch(ctx, a.Name(), a.config.URL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch API: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}

	items, ok := lookupPath(doc, a.config.JSON.ItemsPath).([]any)
	if !ok {
		return nil, fmt.Errorf("items path %q does not hold an array", a.config.JSON.ItemsPath)
	}

	candidates := make([]event.RawCandidate, 0, len(items))
	for _, item := range items {
		c := make(event.RawCandidate, len(a.config.JSON.Fields))
		for key, path := range a.config.JSON.Fields {
			switch v := lookupPath(item, path).(type) {
			case string:
				if key == "description" {
					v = stripHTML(v)
				}
				c[key] = v
			case []any:
				c[key] = v
			case float64, bool:
				c[key] = fmt.Sprint(v)
			}
		}
		candidates = append(candidates, c)
	}

	return a.finalize(candidates), nil
}

// lookupPath walks dotted keys through nested objects. An empty path returns
// the value itself.
func lookupPath(value any, path string) any {
	if path == "" {
		return value
	}
	for _, key := range strings.Split(path, ".") {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		value = obj[key]
	}
	return value
}
