package jsonl

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadEventsSkipsMalformedLines(t *testing.T) {
	path := writeTemp(t, "events.jsonl", `
{"id":"e1","ts":"2026-03-09T08:00:00Z","event_type":"process_start","source_host":"host-a"}
not json
{"id":"","ts":"2026-03-09T08:01:00Z","event_type":"dns_query"}
{"id":"e2","ts":"2026-03-09T08:02:00Z","event_type":"dns_query","extra":{"bytes_transferred":1024}}
`)

	events, rejected, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if rejected != 2 {
		t.Fatalf("expected 2 rejected lines, got %d", rejected)
	}
	if events[0].ID != "e1" || events[0].SourceHost != "host-a" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if n, ok := events[1].ExtraInt64("bytes_transferred"); !ok || n != 1024 {
		t.Fatalf("expected extra bytes 1024, got %d %v", n, ok)
	}
}

func TestLoadEventsMissingFile(t *testing.T) {
	if _, _, err := LoadEvents(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadAssetsDropsEntriesWithoutIdentifier(t *testing.T) {
	path := writeTemp(t, "assets.jsonl", `
{"id":"host-db","hostname":"host-db","criticality":"critical","vulnerabilities":["CVE-2025-1234"]}
{"type":"server"}
{"ip":"10.0.0.9"}
`)

	got, err := LoadAssets(path)
	if err != nil {
		t.Fatalf("LoadAssets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(got))
	}
	if got[0].ID != "host-db" || got[0].Criticality != "critical" {
		t.Fatalf("unexpected asset: %+v", got[0])
	}
	if got[1].IP != "10.0.0.9" {
		t.Fatalf("ip-only entries must be kept, got %+v", got[1])
	}
}
