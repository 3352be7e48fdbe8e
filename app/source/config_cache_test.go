package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSourceFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceFile(t, tempDir, "20-inc42.yml", `
type: html
url: "https://inc42.com/events/"
organizer: "Inc42"
event_type: "startup_program"
tags: ["news"]

settings:
  enabled: true
  max_items: 10
  timeout: 15
  description_max_length: 800

selectors:
  item: "article"
  title: "h2"
  link: "a"

filters:
  - field: "title"
    includes:
      - "startup"
      - "summit"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 source config, got %d", configCache.GetConfigCount())
	}

	sourceConfig, err := configCache.GetConfig("20-inc42")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Name != "20-inc42" {
		t.Errorf("Expected name '20-inc42', got '%s'", sourceConfig.Name)
	}
	if sourceConfig.BaseURL != "https://inc42.com" {
		t.Errorf("Expected base URL derived from url, got '%s'", sourceConfig.BaseURL)
	}
	if sourceConfig.Settings.MaxItems != 10 {
		t.Errorf("Expected max items 10, got %d", sourceConfig.Settings.MaxItems)
	}
	if sourceConfig.Settings.DescriptionMaxLength != 800 {
		t.Errorf("Expected description max length 800, got %d", sourceConfig.Settings.DescriptionMaxLength)
	}
	if len(sourceConfig.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(sourceConfig.Filters))
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSourceFile(t, tempDir, "feed.yml", `
type: feed
url: "https://example.com/events.xml"
base_url: "https://example.com/events/"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	sourceConfig, err := configCache.GetConfig("feed")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Settings.Enabled {
		t.Error("Expected source to be disabled unless enabled explicitly")
	}
	if sourceConfig.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", sourceConfig.Settings.Timeout)
	}
	if sourceConfig.Settings.MaxItems != 50 {
		t.Errorf("Expected default max items 50, got %d", sourceConfig.Settings.MaxItems)
	}
	if sourceConfig.BaseURL != "https://example.com/events/" {
		t.Errorf("Expected explicit base URL to be kept, got '%s'", sourceConfig.BaseURL)
	}
}

func TestConfigCacheOrderingAndEnabled(t *testing.T) {
	tempDir := t.TempDir()

	enabled := "type: static\nsettings:\n  enabled: true\nevents:\n  - title: Demo Day\n"
	disabled := "type: static\nsettings:\n  enabled: false\nevents:\n  - title: Demo Day\n"

	writeSourceFile(t, tempDir, "30-c.yml", enabled)
	writeSourceFile(t, tempDir, "10-a.yml", enabled)
	writeSourceFile(t, tempDir, "20-b.yml", disabled)
	writeSourceFile(t, tempDir, "notes.txt", "ignored")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	all := configCache.GetConfigs()
	if len(all) != 3 {
		t.Fatalf("Expected 3 configs, got %d", len(all))
	}
	if all[0].Name != "10-a" || all[1].Name != "20-b" || all[2].Name != "30-c" {
		t.Errorf("Expected configs ordered by name, got %s, %s, %s", all[0].Name, all[1].Name, all[2].Name)
	}

	active := configCache.GetEnabledConfigs()
	if len(active) != 2 || active[0].Name != "10-a" || active[1].Name != "30-c" {
		t.Errorf("Expected enabled configs [10-a 30-c], got %d configs", len(active))
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "missing"))
	if err := configCache.Run(); err != nil {
		t.Errorf("Expected missing directory to be ignored, got %v", err)
	}
	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected no configs, got %d", configCache.GetConfigCount())
	}
	if _, err := configCache.GetConfig("anything"); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestConfigCacheValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{name: "unknown type", content: "type: ftp\nurl: https://example.com\n", errText: "oneof"},
		{name: "missing type", content: "url: https://example.com\n", errText: "required"},
		{name: "bad url", content: "type: feed\nurl: not a url\n", errText: "url"},
		{name: "html without url", content: "type: html\nselectors:\n  item: li\n", errText: "URL is required"},
		{name: "html without item selector", content: "type: html\nurl: https://example.com\n", errText: "item selector"},
		{name: "json without title mapping", content: "type: json\nurl: https://example.com/api\n", errText: "title field"},
		{name: "static without events", content: "type: static\n", errText: "at least one event"},
		{name: "negative timeout", content: "type: feed\nurl: https://example.com\nsettings:\n  timeout: -1\n", errText: "gte"},
		{name: "invalid filter field", content: "type: feed\nurl: https://example.com\nfilters:\n  - field: body\n    includes: [x]\n", errText: "oneof"},
		{name: "empty filter", content: "type: feed\nurl: https://example.com\nfilters:\n  - field: title\n", errText: "include or exclude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSourceFile(t, tempDir, "bad.yml", tt.content)

			err := NewConfigCache(tempDir).Run()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got %v", tt.errText, err)
			}
		})
	}
}
