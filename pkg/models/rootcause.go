package models

import "time"

// CauseNode is one node of the root-cause tree.
type CauseNode struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Category    string       `json:"category"` // technical, process, human, external
	Confidence  float64      `json:"confidence"`
	Evidence    []string     `json:"evidence,omitempty"`
	Children    []*CauseNode `json:"children,omitempty"`
}

// EntryPoint identifies where the adversary is assessed to have gained access.
type EntryPoint struct {
	AssetID   string    `json:"asset_id"`
	EventID   string    `json:"event_id,omitempty"`
	Timestamp time.Time `json:"ts"`
	EntryType string    `json:"entry_type"` // phishing, exploit, credential_compromise, supply_chain, misconfiguration
	Technique string    `json:"technique,omitempty"`
}

// ContributingFactor is a condition that enabled or amplified the incident.
type ContributingFactor struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Remediation string `json:"remediation"`
}

// ExploitedVulnerability records a weakness the adversary used.
type ExploitedVulnerability struct {
	AssetID     string `json:"asset_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SecurityGap is a detection, prevention or response shortfall.
type SecurityGap struct {
	GapType     string `json:"gap_type"` // detection, prevention, response
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// Recommendation is a remediation action derived from the analysis.
type Recommendation struct {
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// RootCauseAnalysis is the output of one root-cause pass.
type RootCauseAnalysis struct {
	ID                  string                   `json:"id"`
	RootCause           *CauseNode               `json:"root_cause"`
	EntryPoint          EntryPoint               `json:"entry_point"`
	ContributingFactors []ContributingFactor     `json:"contributing_factors,omitempty"`
	Vulnerabilities     []ExploitedVulnerability `json:"vulnerabilities,omitempty"`
	SecurityGaps        []SecurityGap            `json:"security_gaps,omitempty"`
	Recommendations     []Recommendation         `json:"recommendations,omitempty"`
	Confidence          float64                  `json:"confidence"`
}
