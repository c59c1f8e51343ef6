package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"incidentgraph/internal/catalog"
	"incidentgraph/internal/killchain"
	"incidentgraph/internal/logger"
	"incidentgraph/pkg/models"
)

// Config controls timeline reconstruction.
type Config struct {
	CorrelationWindow time.Duration
	MaxTimelineEvents int
}

// Window restricts reconstruction to a time range. A nil window keeps all
// events; zero Start or End leaves that side unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// Builder correlates raw security events into an ordered attack timeline.
type Builder struct {
	cfg Config
	cat *catalog.Catalog
}

// NewBuilder validates bounds and constructs a builder. Zero values take the
// defaults; negative bounds are configuration errors.
func NewBuilder(cfg Config, cat *catalog.Catalog) (*Builder, error) {
	if cfg.CorrelationWindow < 0 {
		return nil, fmt.Errorf("correlation window must not be negative")
	}
	if cfg.MaxTimelineEvents < 0 {
		return nil, fmt.Errorf("max timeline events must not be negative")
	}
	if cfg.CorrelationWindow == 0 {
		cfg.CorrelationWindow = 5 * time.Minute
	}
	if cfg.MaxTimelineEvents == 0 {
		cfg.MaxTimelineEvents = 10000
	}
	if cat == nil {
		return nil, fmt.Errorf("technique catalog is required")
	}
	return &Builder{cfg: cfg, cat: cat}, nil
}

// Reconstruct filters, sorts and correlates events into timeline events.
// With correlate=false every event becomes its own timeline entry; with
// enrich=false technique matching is skipped and every entry defaults to the
// discovery phase.
func (b *Builder) Reconstruct(events []*models.SecurityEvent, window *Window, correlate, enrich bool) []models.TimelineEvent {
	sorted := filterAndSort(events, window)
	if len(sorted) == 0 {
		return nil
	}

	groups := b.correlateGroups(sorted, correlate)

	out := make([]models.TimelineEvent, 0, len(groups))
	for _, group := range groups {
		out = append(out, b.buildTimelineEvent(group, enrich))
	}

	enforceMonotonicity(out)

	if len(out) > b.cfg.MaxTimelineEvents {
		logger.Warnf("timeline truncated from %d to %d events", len(out), b.cfg.MaxTimelineEvents)
		out = out[:b.cfg.MaxTimelineEvents]
	}
	return out
}

func filterAndSort(events []*models.SecurityEvent, window *Window) []*models.SecurityEvent {
	kept := make([]*models.SecurityEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if window != nil {
			if !window.Start.IsZero() && ev.Timestamp.Before(window.Start) {
				continue
			}
			if !window.End.IsZero() && ev.Timestamp.After(window.End) {
				continue
			}
		}
		kept = append(kept, ev)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].Timestamp.Equal(kept[j].Timestamp) {
			return kept[i].Timestamp.Before(kept[j].Timestamp)
		}
		return kept[i].ID < kept[j].ID
	})
	return kept
}

// correlateGroups runs the single-pass grouping over the sorted input. A new
// event joins the group of the first earlier event it correlates with;
// already-grouped events are never revisited, so the result depends on the
// sorted input order.
func (b *Builder) correlateGroups(sorted []*models.SecurityEvent, correlate bool) [][]*models.SecurityEvent {
	groups := make([][]*models.SecurityEvent, 0, len(sorted))
	if !correlate {
		for _, ev := range sorted {
			groups = append(groups, []*models.SecurityEvent{ev})
		}
		return groups
	}

	groupOf := make([]int, len(sorted))
	for i := range groupOf {
		groupOf[i] = -1
	}

	for i, ev := range sorted {
		for j := 0; j < i; j++ {
			if !b.withinWindow(sorted[j], ev) {
				continue
			}
			if !eventsCorrelate(sorted[j], ev) {
				continue
			}
			groupOf[i] = groupOf[j]
			groups[groupOf[j]] = append(groups[groupOf[j]], ev)
			break
		}
		if groupOf[i] == -1 {
			groupOf[i] = len(groups)
			groups = append(groups, []*models.SecurityEvent{ev})
		}
	}
	return groups
}

func (b *Builder) withinWindow(a, c *models.SecurityEvent) bool {
	d := c.Timestamp.Sub(a.Timestamp)
	if d < 0 {
		d = -d
	}
	return d <= b.cfg.CorrelationWindow
}

func eventsCorrelate(a, c *models.SecurityEvent) bool {
	if a.SourceHost != "" && a.SourceHost == c.SourceHost {
		return true
	}
	if a.SourceIP != "" && a.SourceIP == c.SourceIP {
		return true
	}
	if a.ProcessID != 0 && a.ProcessID == c.ParentProcessID {
		return true
	}
	if c.ProcessID != 0 && c.ProcessID == a.ParentProcessID {
		return true
	}
	if a.SourceUser != "" && a.SourceUser == c.SourceUser {
		return true
	}
	return indicatorsIntersect(a.Indicators, c.Indicators)
}

func indicatorsIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func (b *Builder) buildTimelineEvent(group []*models.SecurityEvent, enrich bool) models.TimelineEvent {
	eventIDs := make([]string, 0, len(group))
	assetSeen := make(map[string]struct{}, 4)
	indicatorSeen := make(map[string]struct{}, 8)
	techniqueSeen := make(map[string]struct{}, 4)

	var assetList, indicatorList, techniqueIDs []string
	severity := ""
	successCount := 0

	for _, ev := range group {
		eventIDs = append(eventIDs, ev.ID)
		severity = models.MaxSeverity(severity, ev.Severity)
		if strings.EqualFold(ev.Outcome, "success") {
			successCount++
		}
		for _, key := range []string{ev.SourceAssetKey(), ev.DestinationAssetKey()} {
			if key == "" {
				continue
			}
			if _, ok := assetSeen[key]; !ok {
				assetSeen[key] = struct{}{}
				assetList = append(assetList, key)
			}
		}
		for _, ind := range ev.Indicators {
			if ind == "" {
				continue
			}
			if _, ok := indicatorSeen[ind]; !ok {
				indicatorSeen[ind] = struct{}{}
				indicatorList = append(indicatorList, ind)
			}
		}
		if enrich {
			for _, id := range killchain.MatchTechniques(ev) {
				if _, ok := techniqueSeen[id]; !ok {
					techniqueSeen[id] = struct{}{}
					techniqueIDs = append(techniqueIDs, id)
				}
			}
		}
	}

	techniques := b.cat.Resolve(techniqueIDs)

	return models.TimelineEvent{
		ID:          groupID(eventIDs),
		Timestamp:   group[0].Timestamp,
		Phase:       b.inferPhase(techniques),
		Severity:    severity,
		Confidence:  groupConfidence(len(group), len(indicatorList), successCount),
		Description: describeGroup(group),
		Techniques:  techniques,
		Assets:      assetList,
		Indicators:  indicatorList,
		EventIDs:    eventIDs,
	}
}

// inferPhase counts the tactic of every matched technique and picks the
// phase of the most frequent tactic. Ties resolve to the earliest phase in
// the canonical order; no techniques means discovery.
func (b *Builder) inferPhase(techniques []models.MitreTechnique) string {
	if len(techniques) == 0 {
		return killchain.PhaseDiscovery
	}

	counts := make(map[string]int, len(techniques))
	for _, t := range techniques {
		phase, ok := killchain.TacticPhase(t.Tactic)
		if !ok {
			continue
		}
		counts[phase]++
	}
	if len(counts) == 0 {
		return killchain.PhaseDiscovery
	}

	best := ""
	bestCount := 0
	for _, phase := range killchain.PhaseOrder {
		if n := counts[phase]; n > bestCount {
			best = phase
			bestCount = n
		}
	}
	if best == "" {
		return killchain.PhaseDiscovery
	}
	return best
}

// groupConfidence is min(0.5+0.1n, 0.9) + min(0.05i, 0.1) + 0.1*(s/n), capped at 1.
func groupConfidence(eventCount, indicatorCount, successCount int) float64 {
	conf := 0.5 + 0.1*float64(eventCount)
	if conf > 0.9 {
		conf = 0.9
	}
	ind := 0.05 * float64(indicatorCount)
	if ind > 0.1 {
		ind = 0.1
	}
	conf += ind
	conf += 0.1 * float64(successCount) / float64(eventCount)
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func describeGroup(group []*models.SecurityEvent) string {
	if len(group) == 1 {
		ev := group[0]
		parts := []string{ev.EventType}
		if ev.ProcessName != "" {
			parts = append(parts, "process: "+ev.ProcessName)
		}
		if host := ev.SourceAssetKey(); host != "" {
			parts = append(parts, "host: "+host)
		}
		if ev.SourceUser != "" {
			parts = append(parts, "user: "+ev.SourceUser)
		}
		return strings.Join(parts, " | ")
	}

	seen := make(map[string]struct{}, 3)
	types := make([]string, 0, 3)
	for _, ev := range group {
		if _, ok := seen[ev.EventType]; ok {
			continue
		}
		seen[ev.EventType] = struct{}{}
		types = append(types, ev.EventType)
		if len(types) == 3 {
			break
		}
	}
	return fmt.Sprintf("%d correlated events: %s", len(group), strings.Join(types, ", "))
}

// enforceMonotonicity snaps low-confidence phase regressions to the previous
// phase. A regression with confidence >= 0.5 is kept as observed.
func enforceMonotonicity(timeline []models.TimelineEvent) {
	for i := 1; i < len(timeline); i++ {
		if timeline[i].Confidence >= 0.5 {
			continue
		}
		if killchain.PhaseBefore(timeline[i].Phase, timeline[i-1].Phase) {
			timeline[i].Phase = timeline[i-1].Phase
		}
	}
}

// groupID derives a stable identifier from the member event IDs so identical
// input always yields identical timeline output.
func groupID(eventIDs []string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("timeline:"+strings.Join(eventIDs, ","))).String()
}
