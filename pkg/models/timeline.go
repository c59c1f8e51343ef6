package models

import "time"

// MitreTechnique is a read-only catalog entry for an ATT&CK technique.
type MitreTechnique struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Tactic     string `json:"tactic"`
	Detection  string `json:"detection,omitempty"`
	Mitigation string `json:"mitigation,omitempty"`
}

// TimelineEvent is one correlated step of the reconstructed attack timeline.
// It aggregates a group of SecurityEvents and is immutable once built.
type TimelineEvent struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"ts"`
	Phase       string           `json:"phase"`
	Severity    string           `json:"severity"`
	Confidence  float64          `json:"confidence"`
	Description string           `json:"description"`
	Techniques  []MitreTechnique `json:"techniques,omitempty"`
	Assets      []string         `json:"assets,omitempty"`
	Indicators  []string         `json:"indicators,omitempty"`
	EventIDs    []string         `json:"event_ids"`
}

// HasTechnique reports whether the event carries the exact technique ID.
func (t *TimelineEvent) HasTechnique(id string) bool {
	for _, tech := range t.Techniques {
		if tech.ID == id {
			return true
		}
	}
	return false
}

// TechniqueIDs returns the technique IDs in catalog-match order.
func (t *TimelineEvent) TechniqueIDs() []string {
	if len(t.Techniques) == 0 {
		return nil
	}
	out := make([]string, 0, len(t.Techniques))
	for _, tech := range t.Techniques {
		out = append(out, tech.ID)
	}
	return out
}
