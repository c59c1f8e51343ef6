package models

import "time"

// Asset is a host or IP referenced by telemetry. Assets are created lazily on
// first reference and shared across analysis passes of the same incident.
type Asset struct {
	ID              string     `json:"id"`
	Hostname        string     `json:"hostname,omitempty"`
	IP              string     `json:"ip,omitempty"`
	Type            string     `json:"type,omitempty"`
	Criticality     string     `json:"criticality,omitempty"`
	CompromisedAt   *time.Time `json:"compromised_at,omitempty"`
	Vulnerabilities []string   `json:"vulnerabilities,omitempty"`
}

// Compromised reports whether the asset has a confirmed compromise time.
func (a *Asset) Compromised() bool {
	return a != nil && a.CompromisedAt != nil
}

// Matches reports whether the key identifies this asset by ID, hostname or IP.
func (a *Asset) Matches(key string) bool {
	if a == nil || key == "" {
		return false
	}
	return key == a.ID || key == a.Hostname || key == a.IP
}
