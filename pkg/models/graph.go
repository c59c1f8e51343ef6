package models

import "time"

// GraphNode is an asset or technique vertex of the attack graph.
type GraphNode struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // asset or technique
	Label       string `json:"label"`
	Compromised bool   `json:"compromised,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// GraphEdge is an observed relationship between two graph nodes.
type GraphEdge struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      string    `json:"type"` // lateral_movement or technique_used
	Timestamp time.Time `json:"ts,omitempty"`
}

// AttackGraph is the node/edge model of an incident with path analysis.
type AttackGraph struct {
	ID            string      `json:"id"`
	Nodes         []GraphNode `json:"nodes"`
	Edges         []GraphEdge `json:"edges"`
	EntryPoints   []string    `json:"entry_points,omitempty"`
	Objectives    []string    `json:"objectives,omitempty"`
	CriticalPaths [][]string  `json:"critical_paths,omitempty"`
	RiskScore     int         `json:"risk_score"`
}
