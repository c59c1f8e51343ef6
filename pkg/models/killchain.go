package models

import "time"

// KillChainPhase is one of the 14 ordered slots of a kill-chain mapping.
type KillChainPhase struct {
	Phase      string     `json:"phase"`
	Detected   bool       `json:"detected"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Techniques []string   `json:"techniques,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Notes      []string   `json:"notes,omitempty"`
}

// ActorAttribution names the best-matching threat actor profile.
type ActorAttribution struct {
	ActorName          string   `json:"actor_name"`
	Score              float64  `json:"score"`
	MatchedTechniques  []string `json:"matched_techniques,omitempty"`
	KnownTechniqueSize int      `json:"known_technique_size"`
}

// KillChainMapping projects an incident timeline onto the 14 canonical phases.
type KillChainMapping struct {
	ID              string            `json:"id"`
	Version         string            `json:"version"`
	Phases          []KillChainPhase  `json:"phases"`
	Completeness    float64           `json:"completeness"`
	AttackVector    string            `json:"attack_vector"`
	AttackObjective string            `json:"attack_objective,omitempty"`
	DwellTime       time.Duration     `json:"dwell_time"`
	Attribution     *ActorAttribution `json:"attribution,omitempty"`
}

// PhaseSlot returns the slot for a phase name, or nil if unknown.
func (m *KillChainMapping) PhaseSlot(phase string) *KillChainPhase {
	for i := range m.Phases {
		if m.Phases[i].Phase == phase {
			return &m.Phases[i]
		}
	}
	return nil
}
