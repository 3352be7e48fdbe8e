package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type Deduplicator struct{}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Run keeps the first event for each fingerprint, preserving input order.
// Later copies are dropped without merging their fields.
func (d *Deduplicator) Run(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	unique := make([]Event, 0, len(events))

	for _, e := range events {
		fp := Fingerprint(e)
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		unique = append(unique, e)
	}

	return unique
}

// Fingerprint identifies the same event advertised by different sources.
// Organizer and source URL are deliberately left out, so distinct events
// sharing title, date and location collapse into one.
func Fingerprint(e Event) string {
	key := strings.ToLower(strings.TrimSpace(e.Title)) + "|" +
		strings.TrimSpace(e.Date) + "|" +
		strings.ToLower(strings.TrimSpace(e.Location))

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
