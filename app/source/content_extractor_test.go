package source

import (
	"strings"
	"testing"
)

func TestContentExtractor_Run(t *testing.T) {
	extractor := NewContentExtractor()

	paragraph := strings.Repeat("Incubator cohort applications are open for early stage founders building in climate and health. ", 6)
	html := `<html><head><title>Cohort</title></head><body><nav>Home | About</nav><article><h1>Cohort</h1>` +
		`<p>` + paragraph + `</p><p>` + paragraph + `</p></article></body></html>`

	text, err := extractor.Run([]byte(html), "https://t-hub.co/programs/cohort")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Incubator cohort applications are open") {
		t.Errorf("Expected article text, got %q", text)
	}
	if strings.Contains(text, "  ") {
		t.Error("Expected whitespace to be collapsed")
	}
}

func TestContentExtractor_EmptyInput(t *testing.T) {
	if _, err := NewContentExtractor().Run(nil, "https://example.com"); err == nil {
		t.Error("Expected error for empty HTML")
	}
}
