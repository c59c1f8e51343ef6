package timeline

import (
	"math"
	"testing"
	"time"

	"incidentgraph/internal/catalog"
	"incidentgraph/internal/killchain"
	"incidentgraph/pkg/models"
)

func newTestBuilder(t *testing.T, cfg Config) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg, catalog.Default())
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestNewBuilderRejectsNegativeBounds(t *testing.T) {
	if _, err := NewBuilder(Config{CorrelationWindow: -time.Second}, catalog.Default()); err == nil {
		t.Fatalf("expected error for negative window")
	}
	if _, err := NewBuilder(Config{MaxTimelineEvents: -1}, catalog.Default()); err == nil {
		t.Fatalf("expected error for negative max events")
	}
	if _, err := NewBuilder(Config{}, nil); err == nil {
		t.Fatalf("expected error for nil catalog")
	}
}

func TestReconstructSingleEventDefaultsToDiscoveryWithBaseConfidence(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "dns_query", SourceHost: "host-a"},
	}

	got := b.Reconstruct(events, nil, true, true)
	if len(got) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(got))
	}
	te := got[0]
	if te.Phase != killchain.PhaseDiscovery {
		t.Fatalf("expected discovery phase, got %s", te.Phase)
	}
	if math.Abs(te.Confidence-0.6) > 1e-9 {
		t.Fatalf("expected confidence 0.6, got %f", te.Confidence)
	}
	if len(te.EventIDs) != 1 || te.EventIDs[0] != "e1" {
		t.Fatalf("unexpected event ids: %v", te.EventIDs)
	}
	if len(te.Techniques) != 0 {
		t.Fatalf("expected no techniques, got %v", te.Techniques)
	}
}

func TestReconstructCorrelatesBySharedSourceHost(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "process_start", SourceHost: "host-a", Outcome: "success"},
		{ID: "e2", Timestamp: base.Add(1 * time.Minute), EventType: "network_connection", SourceHost: "host-a"},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), EventType: "dns_query", SourceHost: "host-z"},
	}

	got := b.Reconstruct(events, nil, true, true)
	if len(got) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(got))
	}
	if len(got[0].EventIDs) != 2 || got[0].EventIDs[0] != "e1" || got[0].EventIDs[1] != "e2" {
		t.Fatalf("unexpected first group: %v", got[0].EventIDs)
	}
	// 0.5 + 0.1*2 events, plus 0.1 * 1/2 successes.
	if math.Abs(got[0].Confidence-0.75) > 1e-9 {
		t.Fatalf("expected confidence 0.75, got %f", got[0].Confidence)
	}
	if got[0].Description != "2 correlated events: process_start, network_connection" {
		t.Fatalf("unexpected description: %q", got[0].Description)
	}
}

func TestReconstructCorrelatesParentChildProcesses(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "process_start", SourceHost: "host-a", ProcessID: 100},
		{ID: "e2", Timestamp: base.Add(10 * time.Second), EventType: "process_start", SourceHost: "host-b", ParentProcessID: 100},
	}

	got := b.Reconstruct(events, nil, true, true)
	if len(got) != 1 {
		t.Fatalf("expected parent-child events to correlate, got %d groups", len(got))
	}
}

func TestReconstructRespectsCorrelationWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{CorrelationWindow: time.Minute})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "process_start", SourceHost: "host-a"},
		{ID: "e2", Timestamp: base.Add(10 * time.Minute), EventType: "process_start", SourceHost: "host-a"},
	}

	got := b.Reconstruct(events, nil, true, true)
	if len(got) != 2 {
		t.Fatalf("events outside the window must not correlate, got %d groups", len(got))
	}
}

func TestReconstructPowerShellEventInfersExecutionPhase(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "process_start", SourceHost: "host-a",
			SourceUser: "alice", ProcessName: "powershell.exe"},
	}

	got := b.Reconstruct(events, nil, true, true)
	if len(got) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(got))
	}
	te := got[0]
	if te.Phase != killchain.PhaseExecution {
		t.Fatalf("expected execution phase, got %s", te.Phase)
	}
	if len(te.Techniques) != 1 || te.Techniques[0].ID != "T1059.001" || te.Techniques[0].Name != "PowerShell" {
		t.Fatalf("expected resolved T1059.001, got %+v", te.Techniques)
	}
	want := "process_start | process: powershell.exe | host: host-a | user: alice"
	if te.Description != want {
		t.Fatalf("unexpected description: %q", te.Description)
	}
}

func TestReconstructWithoutEnrichmentSkipsTechniqueMatching(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "process_start", ProcessName: "powershell.exe"},
	}

	got := b.Reconstruct(events, nil, true, false)
	if len(got) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(got))
	}
	if len(got[0].Techniques) != 0 {
		t.Fatalf("expected no techniques without enrichment, got %v", got[0].Techniques)
	}
	if got[0].Phase != killchain.PhaseDiscovery {
		t.Fatalf("expected discovery phase without enrichment, got %s", got[0].Phase)
	}
}

func TestReconstructWindowFiltersEvents(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "dns_query", SourceHost: "host-a"},
		{ID: "e2", Timestamp: base.Add(time.Hour), EventType: "dns_query", SourceHost: "host-b"},
	}

	got := b.Reconstruct(events, &Window{Start: base.Add(30 * time.Minute)}, true, true)
	if len(got) != 1 {
		t.Fatalf("expected 1 timeline event after filtering, got %d", len(got))
	}
	if got[0].EventIDs[0] != "e2" {
		t.Fatalf("expected only e2 to survive the window, got %v", got[0].EventIDs)
	}
}

func TestReconstructTruncatesAtMaxTimelineEvents(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{MaxTimelineEvents: 2})

	events := []*models.SecurityEvent{
		{ID: "e1", Timestamp: base, EventType: "dns_query", SourceHost: "host-a"},
		{ID: "e2", Timestamp: base.Add(time.Minute), EventType: "dns_query", SourceHost: "host-b"},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), EventType: "dns_query", SourceHost: "host-c"},
	}

	got := b.Reconstruct(events, nil, false, true)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2 events, got %d", len(got))
	}
}

func TestReconstructIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTestBuilder(t, Config{})

	events := []*models.SecurityEvent{
		{ID: "e2", Timestamp: base, EventType: "process_start", SourceHost: "host-a"},
		{ID: "e1", Timestamp: base, EventType: "process_start", SourceHost: "host-a"},
		{ID: "e3", Timestamp: base.Add(time.Minute), EventType: "dns_query", SourceUser: "bob"},
	}

	first := b.Reconstruct(events, nil, true, true)
	second := b.Reconstruct(events, nil, true, true)
	if len(first) != len(second) {
		t.Fatalf("run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("timeline ids differ at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
	// Equal timestamps order by event ID.
	if first[0].EventIDs[0] != "e1" {
		t.Fatalf("expected tie-break on event id, got %v", first[0].EventIDs)
	}
}

func TestEnforceMonotonicitySnapsLowConfidenceRegressions(t *testing.T) {
	tl := []models.TimelineEvent{
		{Phase: killchain.PhaseLateralMovement, Confidence: 0.9},
		{Phase: killchain.PhaseExecution, Confidence: 0.4},
		{Phase: killchain.PhaseExecution, Confidence: 0.5},
	}

	enforceMonotonicity(tl)
	if tl[1].Phase != killchain.PhaseLateralMovement {
		t.Fatalf("low-confidence regression must snap, got %s", tl[1].Phase)
	}
	if tl[2].Phase != killchain.PhaseExecution {
		t.Fatalf("confident regression must be kept, got %s", tl[2].Phase)
	}
}

func TestGroupConfidenceCaps(t *testing.T) {
	// 10 events saturate the base term, indicators saturate at 0.1.
	if got := groupConfidence(10, 5, 10); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected cap at 1.0, got %f", got)
	}
	if got := groupConfidence(2, 1, 0); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %f", got)
	}
}
