package impact

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"incidentgraph/internal/assets"
	"incidentgraph/internal/killchain"
	"incidentgraph/pkg/models"
)

// Impact type labels.
const (
	TypeDataBreach        = "data_breach"
	TypeRansomware        = "ransomware"
	TypeServiceDisruption = "service_disruption"
	TypeCredentialTheft   = "credential_theft"
	TypeBackdoor          = "backdoor"
)

// Config bounds the attack-graph generator.
type Config struct {
	MaxGraphNodes int
}

// Analyzer quantifies incident impact and generates the attack graph. It
// reads compromise state from the shared asset store.
type Analyzer struct {
	cfg   Config
	store *assets.Store
}

// NewAnalyzer validates bounds and constructs an impact analyzer.
func NewAnalyzer(cfg Config, store *assets.Store) (*Analyzer, error) {
	if cfg.MaxGraphNodes < 0 {
		return nil, fmt.Errorf("max graph nodes must not be negative")
	}
	if cfg.MaxGraphNodes == 0 {
		cfg.MaxGraphNodes = 500
	}
	if store == nil {
		return nil, fmt.Errorf("asset store is required")
	}
	return &Analyzer{cfg: cfg, store: store}, nil
}

// AssessImpact computes the multi-dimensional impact assessment. All
// sub-assessments are deterministic functions of the compromised-asset count
// and the impact-type flags.
func (a *Analyzer) AssessImpact(timeline []models.TimelineEvent, movements []models.LateralMovement, includeFinancial, includeRegulatory bool) *models.ImpactAssessment {
	compromised := a.compromisedAssets(timeline, movements)
	n := len(compromised)

	types := impactTypes(timeline)
	hasDataBreach := containsString(types, TypeDataBreach)
	hasRansomware := containsString(types, TypeRansomware)
	hasCredTheft := containsString(types, TypeCredentialTheft)

	assessment := &models.ImpactAssessment{
		ID:                assessmentID(timeline, movements),
		ImpactTypes:       types,
		OverallImpact:     overallImpact(compromised, hasDataBreach, hasRansomware, hasCredTheft),
		CompromisedAssets: assetIDs(compromised),
		Business: models.BusinessImpact{
			OperationalDowntimeHours: minF(4*float64(n), 168),
			ProductivityLossUSD:      8 * float64(n) * 100,
		},
		Technical: models.TechnicalImpact{
			CompromisedAssetCount: n,
			DataRecordsAffected:   10000 * int64(n),
			DataVolumeMB:          100 * float64(n),
			EstimatedRecoveryTime: recoveryTime(hasRansomware),
		},
		Reputational: reputationalImpact(n, hasDataBreach, hasRansomware),
		Recovery:     recoveryPlan(),
	}

	if includeFinancial {
		assessment.Financial = financialImpact(n, hasDataBreach)
	}
	if includeRegulatory {
		assessment.Regulatory = regulatoryImpact(hasDataBreach)
	}
	return assessment
}

// compromisedAssets unions the assets referenced by timeline events and
// movement endpoints, keeping only those with a confirmed compromise time.
func (a *Analyzer) compromisedAssets(timeline []models.TimelineEvent, movements []models.LateralMovement) []*models.Asset {
	seen := make(map[string]struct{}, 16)
	var out []*models.Asset

	consider := func(key string) {
		asset := a.store.Get(key)
		if asset == nil || !asset.Compromised() {
			return
		}
		if _, ok := seen[asset.ID]; ok {
			return
		}
		seen[asset.ID] = struct{}{}
		out = append(out, asset)
	}

	for i := range timeline {
		for _, key := range timeline[i].Assets {
			consider(key)
		}
	}
	for i := range movements {
		consider(movements[i].SourceAsset)
		consider(movements[i].DestinationAsset)
	}
	return out
}

// impactTypes derives the impact labels from phase presence and techniques.
func impactTypes(timeline []models.TimelineEvent) []string {
	var types []string
	add := func(t string) {
		if !containsString(types, t) {
			types = append(types, t)
		}
	}

	hasPhase := func(phase string) bool {
		for i := range timeline {
			if timeline[i].Phase == phase {
				return true
			}
		}
		return false
	}
	hasT1486 := false
	for i := range timeline {
		if timeline[i].HasTechnique("T1486") {
			hasT1486 = true
			break
		}
	}

	if hasPhase(killchain.PhaseExfiltration) {
		add(TypeDataBreach)
	}
	if hasT1486 {
		add(TypeRansomware)
		add(TypeServiceDisruption)
	}
	if hasPhase(killchain.PhaseCredentialAccess) {
		add(TypeCredentialTheft)
	}
	if hasPhase(killchain.PhaseCommandAndControl) {
		add(TypeBackdoor)
	}
	if len(types) == 0 {
		add(TypeServiceDisruption)
	}
	return types
}

func overallImpact(compromised []*models.Asset, dataBreach, ransomware, credTheft bool) string {
	criticalAsset := false
	for _, asset := range compromised {
		if strings.EqualFold(asset.Criticality, "critical") {
			criticalAsset = true
			break
		}
	}
	switch {
	case ransomware || dataBreach || criticalAsset:
		return "critical"
	case len(compromised) > 10 || credTheft:
		return "high"
	case len(compromised) > 3:
		return "medium"
	default:
		return "low"
	}
}

func financialImpact(n int, dataBreach bool) *models.FinancialImpact {
	direct := 50000 * float64(n)
	indirect := 100000.0
	legal := 50000.0
	fines := 0.0
	if dataBreach {
		indirect = 500000
		legal = 200000
		fines = 1000000
	}
	return &models.FinancialImpact{
		DirectCostsUSD:      direct,
		IndirectCostsUSD:    indirect,
		LegalCostsUSD:       legal,
		RegulatoryFinesUSD:  fines,
		TotalEstimatedLoss:  direct + indirect + legal + fines,
		RecoveryEstimateUSD: 10000 * float64(n),
	}
}

func regulatoryImpact(dataBreach bool) *models.RegulatoryImpact {
	if !dataBreach {
		return &models.RegulatoryImpact{}
	}
	return &models.RegulatoryImpact{
		ApplicableRegulations: []string{"GDPR", "CCPA", "HIPAA"},
		NotificationDeadline:  72 * time.Hour,
		EstimatedFinesUSD:     1000000,
	}
}

func reputationalImpact(n int, dataBreach, ransomware bool) models.ReputationalImpact {
	switch {
	case dataBreach || ransomware:
		return models.ReputationalImpact{Level: "severe", Description: "public disclosure of data loss or extortion is likely"}
	case n > 3:
		return models.ReputationalImpact{Level: "moderate", Description: "multiple systems affected; customer-visible degradation possible"}
	default:
		return models.ReputationalImpact{Level: "minor", Description: "limited internal footprint"}
	}
}

func recoveryTime(ransomware bool) time.Duration {
	if ransomware {
		return 72 * time.Hour
	}
	return 24 * time.Hour
}

// recoveryPlan is the fixed four-step checklist with static owners and
// dependencies.
func recoveryPlan() models.RecoveryPlan {
	return models.RecoveryPlan{Steps: []models.RecoveryStep{
		{Order: 1, Action: "isolate compromised assets from the network", Owner: "incident response", Duration: 2 * time.Hour},
		{Order: 2, Action: "rotate all credentials observed in the incident", Owner: "identity team", Duration: 4 * time.Hour, DependsOn: []int{1}},
		{Order: 3, Action: "rebuild or restore affected systems from known-good state", Owner: "infrastructure", Duration: 24 * time.Hour, DependsOn: []int{1, 2}},
		{Order: 4, Action: "validate recovery and resume monitoring", Owner: "security operations", Duration: 8 * time.Hour, DependsOn: []int{3}},
	}}
}

func assetIDs(list []*models.Asset) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func assessmentID(timeline []models.TimelineEvent, movements []models.LateralMovement) string {
	parts := make([]string, 0, len(timeline)+len(movements))
	for i := range timeline {
		parts = append(parts, timeline[i].ID)
	}
	for i := range movements {
		parts = append(parts, movements[i].ID)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("impact:"+strings.Join(parts, ","))).String()
}
