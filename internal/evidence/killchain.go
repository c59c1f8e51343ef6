package evidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"incidentgraph/internal/catalog"
	"incidentgraph/internal/killchain"
	"incidentgraph/pkg/models"
)

// MapperConfig controls kill-chain projection.
type MapperConfig struct {
	Version             string
	ConfidenceThreshold float64
}

// Mapper projects timeline events onto the 14 canonical kill-chain phases.
type Mapper struct {
	cfg MapperConfig
	cat *catalog.Catalog
}

// NewMapper validates bounds and constructs a mapper.
func NewMapper(cfg MapperConfig, cat *catalog.Catalog) (*Mapper, error) {
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("confidence threshold must be within [0,1]")
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.6
	}
	if cfg.Version == "" {
		cfg.Version = "14.1"
	}
	if cat == nil {
		return nil, fmt.Errorf("technique catalog is required")
	}
	return &Mapper{cfg: cfg, cat: cat}, nil
}

// MapToKillChain builds the phase mapping for one incident timeline.
func (m *Mapper) MapToKillChain(timeline []models.TimelineEvent, detectGaps, attributeActor bool) *models.KillChainMapping {
	mapping := &models.KillChainMapping{
		ID:      mappingID(timeline),
		Version: m.cfg.Version,
		Phases:  make([]models.KillChainPhase, len(killchain.PhaseOrder)),
	}
	for i, phase := range killchain.PhaseOrder {
		mapping.Phases[i] = models.KillChainPhase{Phase: phase}
	}

	observedSeen := make(map[string]struct{}, 8)
	var observed []string

	for i := range timeline {
		ev := &timeline[i]
		slot := mapping.PhaseSlot(ev.Phase)
		if slot == nil {
			continue
		}
		slot.Detected = true
		widenBounds(slot, ev.Timestamp)
		if ev.Confidence > slot.Confidence {
			slot.Confidence = ev.Confidence
		}
		for _, id := range ev.TechniqueIDs() {
			if !containsString(slot.Techniques, id) {
				slot.Techniques = append(slot.Techniques, id)
			}
			if _, ok := observedSeen[id]; !ok {
				observedSeen[id] = struct{}{}
				observed = append(observed, id)
			}
		}
	}

	detected := 0
	for i := range mapping.Phases {
		if mapping.Phases[i].Detected {
			detected++
		}
	}
	mapping.Completeness = float64(detected) / float64(len(killchain.PhaseOrder)) * 100

	if detectGaps {
		annotateGaps(mapping)
	}

	mapping.AttackVector = attackVector(mapping)
	mapping.AttackObjective = attackObjective(mapping)
	mapping.DwellTime = dwellTime(timeline)

	if attributeActor {
		mapping.Attribution = m.attribute(observed)
	}
	return mapping
}

func widenBounds(slot *models.KillChainPhase, ts time.Time) {
	if slot.StartTime == nil || ts.Before(*slot.StartTime) {
		t := ts
		slot.StartTime = &t
	}
	if slot.EndTime == nil || ts.After(*slot.EndTime) {
		t := ts
		slot.EndTime = &t
	}
}

// annotateGaps marks every undetected phase strictly between two detected
// phases with a visibility note.
func annotateGaps(mapping *models.KillChainMapping) {
	prev := -1
	for i := range mapping.Phases {
		if !mapping.Phases[i].Detected {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			for j := prev + 1; j < i; j++ {
				note := fmt.Sprintf("gap in visibility: no %s activity observed between %s and %s",
					mapping.Phases[j].Phase, mapping.Phases[prev].Phase, mapping.Phases[i].Phase)
				mapping.Phases[j].Notes = append(mapping.Phases[j].Notes, note)
			}
		}
		prev = i
	}
}

var vectorByPrefix = []struct {
	prefix string
	vector string
}{
	{"T1566", "Phishing"},
	{"T1078", "Valid Accounts"},
	{"T1190", "Exploit Public-Facing Application"},
	{"T1195", "Supply Chain Compromise"},
}

// attackVector inspects initial-access techniques only; the first prefix
// match in the fixed order wins.
func attackVector(mapping *models.KillChainMapping) string {
	slot := mapping.PhaseSlot(killchain.PhaseInitialAccess)
	if slot == nil || !slot.Detected {
		return "Unknown"
	}
	for _, entry := range vectorByPrefix {
		for _, id := range slot.Techniques {
			if strings.HasPrefix(id, entry.prefix) {
				return entry.vector
			}
		}
	}
	return "Unknown"
}

func attackObjective(mapping *models.KillChainMapping) string {
	if slot := mapping.PhaseSlot(killchain.PhaseImpact); slot != nil && slot.Detected {
		if containsString(slot.Techniques, "T1486") {
			return "Ransomware"
		}
	}
	if slot := mapping.PhaseSlot(killchain.PhaseExfiltration); slot != nil && slot.Detected {
		return "Data Exfiltration"
	}
	if slot := mapping.PhaseSlot(killchain.PhaseCollection); slot != nil && slot.Detected {
		return "Data Theft"
	}
	if slot := mapping.PhaseSlot(killchain.PhaseCredentialAccess); slot != nil && slot.Detected {
		return "Credential Harvesting"
	}
	return ""
}

func dwellTime(timeline []models.TimelineEvent) time.Duration {
	if len(timeline) == 0 {
		return 0
	}
	first := timeline[0].Timestamp
	last := timeline[0].Timestamp
	for _, ev := range timeline[1:] {
		if ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	}
	return last.Sub(first)
}

// attribute scores every seeded actor profile by observed-technique overlap
// and returns the best one clearing the confidence threshold.
func (m *Mapper) attribute(observed []string) *models.ActorAttribution {
	if len(observed) == 0 {
		return nil
	}
	observedSet := make(map[string]struct{}, len(observed))
	for _, id := range observed {
		observedSet[id] = struct{}{}
	}

	var best *models.ActorAttribution
	for _, actor := range m.cat.Actors() {
		var matched []string
		for _, id := range actor.KnownTechniques {
			if _, ok := observedSet[id]; ok {
				matched = append(matched, id)
			}
		}
		score := float64(len(matched)) / float64(len(actor.KnownTechniques))
		if score < m.cfg.ConfidenceThreshold {
			continue
		}
		if best == nil || score > best.Score {
			best = &models.ActorAttribution{
				ActorName:          actor.Name,
				Score:              score,
				MatchedTechniques:  matched,
				KnownTechniqueSize: len(actor.KnownTechniques),
			}
		}
	}
	return best
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func mappingID(timeline []models.TimelineEvent) string {
	ids := make([]string, 0, len(timeline))
	for _, ev := range timeline {
		ids = append(ids, ev.ID)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("killchain:"+strings.Join(ids, ","))).String()
}
