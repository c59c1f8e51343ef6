package reconstructor

import (
	"fmt"
	"sync"
	"time"

	"incidentgraph/internal/assets"
	"incidentgraph/internal/catalog"
	"incidentgraph/internal/evidence"
	"incidentgraph/internal/impact"
	"incidentgraph/internal/logger"
	"incidentgraph/internal/rootcause"
	"incidentgraph/internal/timeline"
	"incidentgraph/pkg/models"
)

// Config is the engine configuration. Defaults preserve the documented
// values; use DefaultConfig as the starting point because the enable flags
// default to on.
type Config struct {
	CorrelationWindow           time.Duration
	KillChainVersion            string
	MaxTimelineEvents           int
	MaxGraphNodes               int
	ConfidenceThreshold         float64
	ThreatIntelSources          []string
	EnableAutomaticCorrelation  bool
	EnableThreatIntelEnrichment bool
}

// DefaultConfig returns the documented engine defaults.
func DefaultConfig() Config {
	return Config{
		CorrelationWindow:           5 * time.Minute,
		KillChainVersion:            "14.1",
		MaxTimelineEvents:           10000,
		MaxGraphNodes:               500,
		ConfidenceThreshold:         0.6,
		ThreatIntelSources:          []string{"mitre", "virustotal", "otx"},
		EnableAutomaticCorrelation:  true,
		EnableThreatIntelEnrichment: true,
	}
}

// Reconstructor sequences the analysis components and owns per-incident
// state. It is caller-constructed and caller-owned; a single mutex serializes
// analysis per instance, so distinct incidents that need parallelism should
// use distinct instances or accept serialization.
type Reconstructor struct {
	mu  sync.Mutex
	cfg Config

	store     *assets.Store
	builder   *timeline.Builder
	tracker   *evidence.Tracker
	mapper    *evidence.Mapper
	rootCause *rootcause.Analyzer
	impactA   *impact.Analyzer

	observers []Observer

	events     map[string][]*models.SecurityEvent
	timelines  map[string][]models.TimelineEvent
	movements  map[string][]models.LateralMovement
	killChains map[string]*models.KillChainMapping
	rootCauses map[string]*models.RootCauseAnalysis
	impacts    map[string]*models.ImpactAssessment
	graphs     map[string]*models.AttackGraph
}

// New validates the configuration and wires the analysis components.
func New(cfg Config, cat *catalog.Catalog, observers ...Observer) (*Reconstructor, error) {
	if cat == nil {
		return nil, fmt.Errorf("technique catalog is required")
	}

	store := assets.NewStore()

	builder, err := timeline.NewBuilder(timeline.Config{
		CorrelationWindow: cfg.CorrelationWindow,
		MaxTimelineEvents: cfg.MaxTimelineEvents,
	}, cat)
	if err != nil {
		return nil, fmt.Errorf("timeline builder: %w", err)
	}

	mapper, err := evidence.NewMapper(evidence.MapperConfig{
		Version:             cfg.KillChainVersion,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	}, cat)
	if err != nil {
		return nil, fmt.Errorf("kill-chain mapper: %w", err)
	}

	impactAnalyzer, err := impact.NewAnalyzer(impact.Config{MaxGraphNodes: cfg.MaxGraphNodes}, store)
	if err != nil {
		return nil, fmt.Errorf("impact analyzer: %w", err)
	}

	return &Reconstructor{
		cfg:        cfg,
		store:      store,
		builder:    builder,
		tracker:    evidence.NewTracker(store),
		mapper:     mapper,
		rootCause:  rootcause.NewAnalyzer(),
		impactA:    impactAnalyzer,
		observers:  observers,
		events:     make(map[string][]*models.SecurityEvent),
		timelines:  make(map[string][]models.TimelineEvent),
		movements:  make(map[string][]models.LateralMovement),
		killChains: make(map[string]*models.KillChainMapping),
		rootCauses: make(map[string]*models.RootCauseAnalysis),
		impacts:    make(map[string]*models.ImpactAssessment),
		graphs:     make(map[string]*models.AttackGraph),
	}, nil
}

// Assets exposes the shared asset store.
func (r *Reconstructor) Assets() *assets.Store {
	return r.store
}

// AddEvents validates and ingests events for an incident. Malformed events
// are rejected here, at the boundary, never mid-pipeline.
func (r *Reconstructor) AddEvents(incidentID string, events []*models.SecurityEvent) (int, error) {
	if incidentID == "" {
		return 0, fmt.Errorf("incident id is required")
	}
	accepted := make([]*models.SecurityEvent, 0, len(events))
	rejected := 0
	for _, ev := range events {
		if ev == nil {
			rejected++
			continue
		}
		if err := ev.Validate(); err != nil {
			logger.Warnf("incident %s: rejected event: %v", incidentID, err)
			rejected++
			continue
		}
		accepted = append(accepted, ev)
	}

	r.mu.Lock()
	r.events[incidentID] = append(r.events[incidentID], accepted...)
	r.mu.Unlock()

	if rejected > 0 {
		return rejected, fmt.Errorf("rejected %d malformed events", rejected)
	}
	return 0, nil
}

// SeedAssets registers externally known assets (criticality, vulnerabilities).
func (r *Reconstructor) SeedAssets(seed []*models.Asset) {
	r.store.Seed(seed)
}

// ReconstructTimeline correlates the incident's raw events into a timeline
// and stores it for the downstream steps.
func (r *Reconstructor) ReconstructTimeline(incidentID string, window *timeline.Window) ([]models.TimelineEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, ok := r.events[incidentID]
	if !ok {
		return nil, fmt.Errorf("no events for incident %s", incidentID)
	}

	done := r.emitStep(StepTimeline, incidentID, map[string]float64{"event_count": float64(len(events))})
	tl := r.builder.Reconstruct(events, window, r.cfg.EnableAutomaticCorrelation, r.cfg.EnableThreatIntelEnrichment)
	r.timelines[incidentID] = tl
	done(map[string]float64{"timeline_event_count": float64(len(tl))})

	return tl, nil
}

// TrackLateralMovement detects movements from the incident's raw events and
// marks destination assets compromised.
func (r *Reconstructor) TrackLateralMovement(incidentID string) ([]models.LateralMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, ok := r.events[incidentID]
	if !ok {
		return nil, fmt.Errorf("no events for incident %s", incidentID)
	}

	done := r.emitStep(StepLateral, incidentID, map[string]float64{"event_count": float64(len(events))})
	movements := r.tracker.TrackLateralMovement(events, true, true)
	r.movements[incidentID] = movements
	done(map[string]float64{"movement_count": float64(len(movements))})

	return movements, nil
}

// MapToKillChain projects the stored timeline onto the kill chain. Ordering
// is the caller's responsibility; without a prior timeline the mapping is
// built from nothing and reports zero completeness.
func (r *Reconstructor) MapToKillChain(incidentID string) (*models.KillChainMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tl := r.timelines[incidentID]
	done := r.emitStep(StepKillChain, incidentID, map[string]float64{"timeline_event_count": float64(len(tl))})
	mapping := r.mapper.MapToKillChain(tl, true, true)
	r.killChains[incidentID] = mapping
	done(map[string]float64{"completeness": mapping.Completeness})

	return mapping, nil
}

// PerformRootCauseAnalysis analyzes the stored timeline and the shared assets.
func (r *Reconstructor) PerformRootCauseAnalysis(incidentID string, depth int, includeRecommendations bool) (*models.RootCauseAnalysis, error) {
	if depth < 0 {
		return nil, fmt.Errorf("depth must not be negative")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tl := r.timelines[incidentID]
	done := r.emitStep(StepRootCause, incidentID, map[string]float64{"timeline_event_count": float64(len(tl))})
	rca := r.rootCause.Analyze(tl, r.store.All(), depth, includeRecommendations)
	r.rootCauses[incidentID] = rca
	done(map[string]float64{"confidence": rca.Confidence})

	return rca, nil
}

// AssessImpact computes the impact assessment from the stored timeline and
// movements.
func (r *Reconstructor) AssessImpact(incidentID string, includeFinancial, includeRegulatory bool) (*models.ImpactAssessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tl := r.timelines[incidentID]
	movements := r.movements[incidentID]
	done := r.emitStep(StepImpact, incidentID, nil)
	assessment := r.impactA.AssessImpact(tl, movements, includeFinancial, includeRegulatory)
	r.impacts[incidentID] = assessment
	done(map[string]float64{"compromised_assets": float64(len(assessment.CompromisedAssets))})

	return assessment, nil
}

// GenerateAttackGraph builds the incident's attack graph.
func (r *Reconstructor) GenerateAttackGraph(incidentID string, includeCriticalPaths bool) (*models.AttackGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tl := r.timelines[incidentID]
	movements := r.movements[incidentID]
	done := r.emitStep(StepAttackGraph, incidentID, nil)
	graph := r.impactA.GenerateAttackGraph(tl, movements, includeCriticalPaths)
	r.graphs[incidentID] = graph
	done(map[string]float64{
		"node_count": float64(len(graph.Nodes)),
		"edge_count": float64(len(graph.Edges)),
		"risk_score": float64(graph.RiskScore),
	})

	return graph, nil
}

// Reconstruct runs the full pipeline in order and returns the report.
func (r *Reconstructor) Reconstruct(incidentID string, window *timeline.Window) (*models.IncidentReport, error) {
	if _, err := r.ReconstructTimeline(incidentID, window); err != nil {
		return nil, err
	}
	if _, err := r.TrackLateralMovement(incidentID); err != nil {
		return nil, err
	}
	if _, err := r.MapToKillChain(incidentID); err != nil {
		return nil, err
	}
	if _, err := r.PerformRootCauseAnalysis(incidentID, 5, true); err != nil {
		return nil, err
	}
	if _, err := r.AssessImpact(incidentID, true, true); err != nil {
		return nil, err
	}
	if _, err := r.GenerateAttackGraph(incidentID, true); err != nil {
		return nil, err
	}
	return r.Report(incidentID), nil
}

// Report snapshots every stored artifact for the incident.
func (r *Reconstructor) Report(incidentID string) *models.IncidentReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &models.IncidentReport{
		IncidentID:  incidentID,
		GeneratedAt: time.Now().UTC(),
		Timeline:    r.timelines[incidentID],
		Movements:   r.movements[incidentID],
		KillChain:   r.killChains[incidentID],
		RootCause:   r.rootCauses[incidentID],
		Impact:      r.impacts[incidentID],
		Graph:       r.graphs[incidentID],
	}
}

// Reset drops all state for one incident. Other incidents are untouched.
func (r *Reconstructor) Reset(incidentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, incidentID)
	delete(r.timelines, incidentID)
	delete(r.movements, incidentID)
	delete(r.killChains, incidentID)
	delete(r.rootCauses, incidentID)
	delete(r.impacts, incidentID)
	delete(r.graphs, incidentID)
}

// emitStep sends the started notification and returns a closure that sends
// the completed one with a duration metric merged in.
func (r *Reconstructor) emitStep(step, incidentID string, startMetrics map[string]float64) func(map[string]float64) {
	start := time.Now()
	r.emit(Notification{
		Name:       step + ":started",
		IncidentID: incidentID,
		Timestamp:  start,
		Metrics:    startMetrics,
	})
	return func(doneMetrics map[string]float64) {
		metrics := make(map[string]float64, len(doneMetrics)+1)
		for k, v := range doneMetrics {
			metrics[k] = v
		}
		metrics["duration_ms"] = float64(time.Since(start).Milliseconds())
		r.emit(Notification{
			Name:       step + ":completed",
			IncidentID: incidentID,
			Timestamp:  time.Now(),
			Metrics:    metrics,
		})
	}
}

func (r *Reconstructor) emit(n Notification) {
	for _, obs := range r.observers {
		obs.Notify(n)
	}
}
