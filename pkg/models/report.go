package models

import "time"

// IncidentReport bundles every reconstruction artifact for one incident.
type IncidentReport struct {
	IncidentID  string             `json:"incident_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Timeline    []TimelineEvent    `json:"timeline,omitempty"`
	Movements   []LateralMovement  `json:"lateral_movements,omitempty"`
	KillChain   *KillChainMapping  `json:"kill_chain,omitempty"`
	RootCause   *RootCauseAnalysis `json:"root_cause,omitempty"`
	Impact      *ImpactAssessment  `json:"impact,omitempty"`
	Graph       *AttackGraph       `json:"attack_graph,omitempty"`
}
