package models

import "time"

// BusinessImpact quantifies operational disruption.
type BusinessImpact struct {
	OperationalDowntimeHours float64 `json:"operational_downtime_hours"`
	ProductivityLossUSD      float64 `json:"productivity_loss_usd"`
}

// TechnicalImpact quantifies data and system damage.
type TechnicalImpact struct {
	CompromisedAssetCount int           `json:"compromised_asset_count"`
	DataRecordsAffected   int64         `json:"data_records_affected"`
	DataVolumeMB          float64       `json:"data_volume_mb"`
	EstimatedRecoveryTime time.Duration `json:"estimated_recovery_time"`
}

// FinancialImpact estimates direct and indirect monetary loss.
type FinancialImpact struct {
	DirectCostsUSD       float64 `json:"direct_costs_usd"`
	IndirectCostsUSD     float64 `json:"indirect_costs_usd"`
	LegalCostsUSD        float64 `json:"legal_costs_usd"`
	RegulatoryFinesUSD   float64 `json:"regulatory_fines_usd"`
	TotalEstimatedLoss   float64 `json:"total_estimated_loss_usd"`
	RecoveryEstimateUSD  float64 `json:"recovery_estimate_usd"`
}

// RegulatoryImpact lists notification and compliance obligations.
type RegulatoryImpact struct {
	ApplicableRegulations []string      `json:"applicable_regulations,omitempty"`
	NotificationDeadline  time.Duration `json:"notification_deadline,omitempty"`
	EstimatedFinesUSD     float64       `json:"estimated_fines_usd"`
}

// ReputationalImpact is a coarse qualitative rating.
type ReputationalImpact struct {
	Level       string `json:"level"`
	Description string `json:"description,omitempty"`
}

// RecoveryStep is one ordered entry of the recovery checklist.
type RecoveryStep struct {
	Order     int           `json:"order"`
	Action    string        `json:"action"`
	Owner     string        `json:"owner"`
	Duration  time.Duration `json:"duration"`
	DependsOn []int         `json:"depends_on,omitempty"`
}

// RecoveryPlan is the ordered remediation checklist.
type RecoveryPlan struct {
	Steps []RecoveryStep `json:"steps"`
}

// ImpactAssessment aggregates the multi-dimensional impact of an incident.
type ImpactAssessment struct {
	ID                string              `json:"id"`
	ImpactTypes       []string            `json:"impact_types"`
	OverallImpact     string              `json:"overall_impact"`
	CompromisedAssets []string            `json:"compromised_assets,omitempty"`
	Business          BusinessImpact      `json:"business"`
	Technical         TechnicalImpact     `json:"technical"`
	Reputational      ReputationalImpact  `json:"reputational"`
	Financial         *FinancialImpact    `json:"financial,omitempty"`
	Regulatory        *RegulatoryImpact   `json:"regulatory,omitempty"`
	Recovery          RecoveryPlan        `json:"recovery"`
}
