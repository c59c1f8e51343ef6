package evidence

import (
	"math"
	"strings"
	"testing"
	"time"

	"incidentgraph/internal/catalog"
	"incidentgraph/internal/killchain"
	"incidentgraph/pkg/models"
)

func newTestMapper(t *testing.T, cfg MapperConfig) *Mapper {
	t.Helper()
	m, err := NewMapper(cfg, catalog.Default())
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	return m
}

func TestNewMapperValidatesThreshold(t *testing.T) {
	if _, err := NewMapper(MapperConfig{ConfidenceThreshold: 1.5}, catalog.Default()); err == nil {
		t.Fatalf("expected error for threshold above 1")
	}
	if _, err := NewMapper(MapperConfig{ConfidenceThreshold: -0.1}, catalog.Default()); err == nil {
		t.Fatalf("expected error for negative threshold")
	}
	if _, err := NewMapper(MapperConfig{}, nil); err == nil {
		t.Fatalf("expected error for nil catalog")
	}
}

func phishingTimeline(base time.Time) []models.TimelineEvent {
	return []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseInitialAccess, Confidence: 0.7,
			Techniques: []models.MitreTechnique{{ID: "T1566", Name: "Phishing", Tactic: "initial-access"}}},
		{ID: "t2", Timestamp: base.Add(1 * time.Hour), Phase: killchain.PhaseExecution, Confidence: 0.8,
			Techniques: []models.MitreTechnique{{ID: "T1059.001", Name: "PowerShell", Tactic: "execution"}}},
		{ID: "t3", Timestamp: base.Add(2 * time.Hour), Phase: killchain.PhaseLateralMovement, Confidence: 0.7,
			Techniques: []models.MitreTechnique{{ID: "T1021.001", Name: "Remote Desktop Protocol", Tactic: "lateral-movement"}}},
		{ID: "t4", Timestamp: base.Add(3 * time.Hour), Phase: killchain.PhaseExfiltration, Confidence: 0.9,
			Techniques: []models.MitreTechnique{{ID: "T1041", Name: "Exfiltration Over C2 Channel", Tactic: "exfiltration"}}},
	}
}

func TestMapToKillChainPhishingIntrusion(t *testing.T) {
	base := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	m := newTestMapper(t, MapperConfig{})

	mapping := m.MapToKillChain(phishingTimeline(base), true, true)

	if len(mapping.Phases) != 14 {
		t.Fatalf("expected 14 phase slots, got %d", len(mapping.Phases))
	}
	if mapping.Version != "14.1" {
		t.Fatalf("expected default version 14.1, got %s", mapping.Version)
	}

	detected := 0
	for i := range mapping.Phases {
		if mapping.Phases[i].Detected {
			detected++
		}
	}
	if detected != 4 {
		t.Fatalf("expected 4 detected phases, got %d", detected)
	}
	if math.Abs(mapping.Completeness-100.0*4/14) > 0.01 {
		t.Fatalf("expected completeness ~28.57, got %f", mapping.Completeness)
	}
	if mapping.AttackVector != "Phishing" {
		t.Fatalf("expected Phishing vector, got %s", mapping.AttackVector)
	}
	if mapping.AttackObjective != "Data Exfiltration" {
		t.Fatalf("expected Data Exfiltration objective, got %s", mapping.AttackObjective)
	}
	if mapping.DwellTime != 3*time.Hour {
		t.Fatalf("expected 3h dwell time, got %v", mapping.DwellTime)
	}

	ia := mapping.PhaseSlot(killchain.PhaseInitialAccess)
	if ia == nil || !ia.Detected {
		t.Fatalf("initial access must be detected")
	}
	if ia.Confidence != 0.7 {
		t.Fatalf("slot confidence must be the max event confidence, got %f", ia.Confidence)
	}
	if ia.StartTime == nil || !ia.StartTime.Equal(base) || !ia.EndTime.Equal(base) {
		t.Fatalf("unexpected initial access bounds: %v .. %v", ia.StartTime, ia.EndTime)
	}
}

func TestMapToKillChainAnnotatesGapsBetweenDetectedPhases(t *testing.T) {
	base := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	m := newTestMapper(t, MapperConfig{})

	mapping := m.MapToKillChain(phishingTimeline(base), true, false)

	// Execution and lateral movement are separated by five undetected phases.
	persistence := mapping.PhaseSlot(killchain.PhasePersistence)
	if persistence == nil || len(persistence.Notes) != 1 {
		t.Fatalf("expected a gap note on persistence, got %+v", persistence)
	}
	if !strings.Contains(persistence.Notes[0], "gap in visibility") {
		t.Fatalf("unexpected note: %s", persistence.Notes[0])
	}
	if !strings.Contains(persistence.Notes[0], killchain.PhaseExecution) ||
		!strings.Contains(persistence.Notes[0], killchain.PhaseLateralMovement) {
		t.Fatalf("note must name the bounding phases: %s", persistence.Notes[0])
	}

	// Phases before the first detection are not gaps.
	recon := mapping.PhaseSlot(killchain.PhaseReconnaissance)
	if len(recon.Notes) != 0 {
		t.Fatalf("leading undetected phases must not be annotated: %v", recon.Notes)
	}
}

func TestMapToKillChainAttribution(t *testing.T) {
	base := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	m := newTestMapper(t, MapperConfig{})

	// T1566, T1059.001 and T1041 overlap three of APT29's five known
	// techniques, exactly clearing the 0.6 threshold.
	mapping := m.MapToKillChain(phishingTimeline(base), false, true)
	if mapping.Attribution == nil {
		t.Fatalf("expected an attribution")
	}
	if mapping.Attribution.ActorName != "APT29" {
		t.Fatalf("expected APT29, got %s", mapping.Attribution.ActorName)
	}
	if math.Abs(mapping.Attribution.Score-0.6) > 1e-9 {
		t.Fatalf("expected score 0.6, got %f", mapping.Attribution.Score)
	}
	if len(mapping.Attribution.MatchedTechniques) != 3 {
		t.Fatalf("expected 3 matched techniques, got %v", mapping.Attribution.MatchedTechniques)
	}

	// A higher threshold suppresses the attribution.
	strict := newTestMapper(t, MapperConfig{ConfidenceThreshold: 0.9})
	if got := strict.MapToKillChain(phishingTimeline(base), false, true); got.Attribution != nil {
		t.Fatalf("expected no attribution above threshold, got %+v", got.Attribution)
	}
}

func TestMapToKillChainEmptyTimeline(t *testing.T) {
	m := newTestMapper(t, MapperConfig{})

	mapping := m.MapToKillChain(nil, true, true)
	if mapping.Completeness != 0 {
		t.Fatalf("expected zero completeness, got %f", mapping.Completeness)
	}
	if mapping.AttackVector != "Unknown" {
		t.Fatalf("expected Unknown vector, got %s", mapping.AttackVector)
	}
	if mapping.AttackObjective != "" {
		t.Fatalf("expected empty objective, got %s", mapping.AttackObjective)
	}
	if mapping.Attribution != nil {
		t.Fatalf("expected no attribution for empty timeline")
	}
	if mapping.DwellTime != 0 {
		t.Fatalf("expected zero dwell time, got %v", mapping.DwellTime)
	}
}

func TestMapToKillChainRansomwareObjectiveWinsOverExfiltration(t *testing.T) {
	base := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	m := newTestMapper(t, MapperConfig{})

	tl := []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseExfiltration, Confidence: 0.8,
			Techniques: []models.MitreTechnique{{ID: "T1041", Tactic: "exfiltration"}}},
		{ID: "t2", Timestamp: base.Add(time.Hour), Phase: killchain.PhaseImpact, Confidence: 0.9,
			Techniques: []models.MitreTechnique{{ID: "T1486", Tactic: "impact"}}},
	}

	mapping := m.MapToKillChain(tl, false, false)
	if mapping.AttackObjective != "Ransomware" {
		t.Fatalf("expected Ransomware objective, got %s", mapping.AttackObjective)
	}
}
