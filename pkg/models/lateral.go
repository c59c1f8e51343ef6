package models

import "time"

// CredentialUsage describes the credential observed on a lateral movement.
type CredentialUsage struct {
	AccountName     string `json:"account_name"`
	AccountType     string `json:"account_type"` // local, domain, service
	Domain          string `json:"domain,omitempty"`
	AuthMethod      string `json:"auth_method"`
	PrivilegeLevel  string `json:"privilege_level"` // standard, service, high
	ValidCredential bool   `json:"valid_credential"`
}

// LateralMovement is one detected source->destination traversal.
type LateralMovement struct {
	ID               string           `json:"id"`
	SourceAsset      string           `json:"source_asset"`
	DestinationAsset string           `json:"destination_asset"`
	Method           string           `json:"method"`
	Timestamp        time.Time        `json:"ts"`
	Duration         time.Duration    `json:"duration"`
	Techniques       []string         `json:"techniques,omitempty"`
	CredentialsUsed  *CredentialUsage `json:"credentials_used,omitempty"`
	Confidence       float64          `json:"confidence"`
	DataTransferred  int64            `json:"data_transferred,omitempty"`
	EventIDs         []string         `json:"event_ids"`
}
