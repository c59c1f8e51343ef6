package impact

import (
	"testing"
	"time"

	"incidentgraph/internal/assets"
	"incidentgraph/internal/killchain"
	"incidentgraph/pkg/models"
)

func storeWithCompromised(t *testing.T, at time.Time, seed ...*models.Asset) *assets.Store {
	t.Helper()
	store := assets.NewStore()
	store.Seed(seed)
	for _, a := range seed {
		store.MarkCompromised(a.ID, at)
	}
	return store
}

func newTestAnalyzer(t *testing.T, cfg Config, store *assets.Store) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(cfg, store)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestNewAnalyzerValidation(t *testing.T) {
	if _, err := NewAnalyzer(Config{MaxGraphNodes: -1}, assets.NewStore()); err == nil {
		t.Fatalf("expected error for negative node bound")
	}
	if _, err := NewAnalyzer(Config{}, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestAssessImpactCriticalAssetEscalatesOverallImpact(t *testing.T) {
	base := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := storeWithCompromised(t, base, &models.Asset{ID: "host-db", Hostname: "host-db", Criticality: "critical"})
	a := newTestAnalyzer(t, Config{}, store)

	tl := []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseDiscovery, Assets: []string{"host-db"}},
	}

	got := a.AssessImpact(tl, nil, true, true)
	if len(got.ImpactTypes) != 1 || got.ImpactTypes[0] != TypeServiceDisruption {
		t.Fatalf("expected only service_disruption, got %v", got.ImpactTypes)
	}
	if got.OverallImpact != "critical" {
		t.Fatalf("critical compromised asset must escalate to critical, got %s", got.OverallImpact)
	}
	if len(got.CompromisedAssets) != 1 || got.CompromisedAssets[0] != "host-db" {
		t.Fatalf("unexpected compromised assets: %v", got.CompromisedAssets)
	}
	if got.Business.OperationalDowntimeHours != 4 || got.Business.ProductivityLossUSD != 800 {
		t.Fatalf("unexpected business impact: %+v", got.Business)
	}
	if got.Technical.CompromisedAssetCount != 1 || got.Technical.DataRecordsAffected != 10000 {
		t.Fatalf("unexpected technical impact: %+v", got.Technical)
	}
	if got.Technical.EstimatedRecoveryTime != 24*time.Hour {
		t.Fatalf("expected 24h recovery without ransomware, got %v", got.Technical.EstimatedRecoveryTime)
	}
}

func TestAssessImpactRansomwareTypesAndRecovery(t *testing.T) {
	base := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := storeWithCompromised(t, base, &models.Asset{ID: "host-a", Hostname: "host-a"})
	a := newTestAnalyzer(t, Config{}, store)

	tl := []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseCredentialAccess, Assets: []string{"host-a"}},
		{ID: "t2", Timestamp: base.Add(time.Hour), Phase: killchain.PhaseImpact, Assets: []string{"host-a"},
			Techniques: []models.MitreTechnique{{ID: "T1486", Name: "Data Encrypted for Impact"}}},
	}

	got := a.AssessImpact(tl, nil, true, true)
	want := []string{TypeRansomware, TypeServiceDisruption, TypeCredentialTheft}
	if len(got.ImpactTypes) != len(want) {
		t.Fatalf("expected %v, got %v", want, got.ImpactTypes)
	}
	for i := range want {
		if got.ImpactTypes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got.ImpactTypes)
		}
	}
	if got.OverallImpact != "critical" {
		t.Fatalf("ransomware must be critical, got %s", got.OverallImpact)
	}
	if got.Technical.EstimatedRecoveryTime != 72*time.Hour {
		t.Fatalf("expected 72h recovery for ransomware, got %v", got.Technical.EstimatedRecoveryTime)
	}
	if got.Reputational.Level != "severe" {
		t.Fatalf("expected severe reputational impact, got %s", got.Reputational.Level)
	}
}

func TestAssessImpactFinancialAndRegulatoryForDataBreach(t *testing.T) {
	base := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := storeWithCompromised(t, base,
		&models.Asset{ID: "host-a", Hostname: "host-a"},
		&models.Asset{ID: "host-b", Hostname: "host-b"})
	a := newTestAnalyzer(t, Config{}, store)

	tl := []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseExfiltration, Assets: []string{"host-a", "host-b"}},
	}

	got := a.AssessImpact(tl, nil, true, true)
	if got.Financial == nil {
		t.Fatalf("expected financial impact")
	}
	if got.Financial.DirectCostsUSD != 100000 || got.Financial.RegulatoryFinesUSD != 1000000 {
		t.Fatalf("unexpected financial impact: %+v", got.Financial)
	}
	if got.Financial.TotalEstimatedLoss != 100000+500000+200000+1000000 {
		t.Fatalf("total must sum all cost lines, got %f", got.Financial.TotalEstimatedLoss)
	}
	if got.Regulatory == nil || len(got.Regulatory.ApplicableRegulations) != 3 {
		t.Fatalf("expected GDPR/CCPA/HIPAA, got %+v", got.Regulatory)
	}
	if got.Regulatory.NotificationDeadline != 72*time.Hour {
		t.Fatalf("expected 72h notification deadline, got %v", got.Regulatory.NotificationDeadline)
	}
}

func TestAssessImpactTogglesSuppressSubAssessments(t *testing.T) {
	base := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := storeWithCompromised(t, base, &models.Asset{ID: "host-a", Hostname: "host-a"})
	a := newTestAnalyzer(t, Config{}, store)

	tl := []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseDiscovery, Assets: []string{"host-a"}},
	}

	got := a.AssessImpact(tl, nil, false, false)
	if got.Financial != nil || got.Regulatory != nil {
		t.Fatalf("suppressed sub-assessments must be nil: %+v %+v", got.Financial, got.Regulatory)
	}
	if len(got.Recovery.Steps) != 4 {
		t.Fatalf("expected the 4-step recovery plan, got %d", len(got.Recovery.Steps))
	}
}

func TestAssessImpactRegulatoryEmptyWithoutBreach(t *testing.T) {
	base := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := storeWithCompromised(t, base, &models.Asset{ID: "host-a", Hostname: "host-a"})
	a := newTestAnalyzer(t, Config{}, store)

	tl := []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseDiscovery, Assets: []string{"host-a"}},
	}

	got := a.AssessImpact(tl, nil, false, true)
	if got.Regulatory == nil {
		t.Fatalf("expected a regulatory record")
	}
	if len(got.Regulatory.ApplicableRegulations) != 0 || got.Regulatory.EstimatedFinesUSD != 0 {
		t.Fatalf("expected empty regulatory impact without a breach, got %+v", got.Regulatory)
	}
}

func TestAssessImpactIgnoresUncompromisedAssets(t *testing.T) {
	base := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := assets.NewStore()
	store.Seed([]*models.Asset{{ID: "host-a", Hostname: "host-a"}})
	a := newTestAnalyzer(t, Config{}, store)

	tl := []models.TimelineEvent{
		{ID: "t1", Timestamp: base, Phase: killchain.PhaseDiscovery, Assets: []string{"host-a"}},
	}

	got := a.AssessImpact(tl, nil, false, false)
	if len(got.CompromisedAssets) != 0 {
		t.Fatalf("uncompromised assets must not count, got %v", got.CompromisedAssets)
	}
	if got.OverallImpact != "low" {
		t.Fatalf("expected low impact, got %s", got.OverallImpact)
	}
}
