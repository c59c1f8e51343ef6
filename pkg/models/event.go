package models

import (
	"fmt"
	"strings"
	"time"
)

// SecurityEvent is an immutable raw telemetry record supplied by the
// collection layer. The engine never mutates one after ingestion.
type SecurityEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity,omitempty"`
	Outcome   string    `json:"outcome,omitempty"` // success, failure, blocked

	SourceHost      string `json:"source_host,omitempty"`
	SourceIP        string `json:"source_ip,omitempty"`
	SourceUser      string `json:"source_user,omitempty"`
	DestinationHost string `json:"destination_host,omitempty"`
	DestinationIP   string `json:"destination_ip,omitempty"`
	DestinationUser string `json:"destination_user,omitempty"`
	DestinationPort int    `json:"destination_port,omitempty"`
	Protocol        string `json:"protocol,omitempty"`

	ProcessID       int    `json:"pid,omitempty"`
	ParentProcessID int    `json:"parent_pid,omitempty"`
	ProcessName     string `json:"process_name,omitempty"`
	CommandLine     string `json:"command_line,omitempty"`

	FilePath string `json:"file_path,omitempty"`
	FileName string `json:"file_name,omitempty"`

	Indicators []string `json:"indicators,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	// Extra carries source-specific attributes that have no typed field.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// SourceAssetKey returns the source host, falling back to the source IP.
func (e *SecurityEvent) SourceAssetKey() string {
	if v := strings.TrimSpace(e.SourceHost); v != "" {
		return v
	}
	return strings.TrimSpace(e.SourceIP)
}

// DestinationAssetKey returns the destination host, falling back to the IP.
func (e *SecurityEvent) DestinationAssetKey() string {
	if v := strings.TrimSpace(e.DestinationHost); v != "" {
		return v
	}
	return strings.TrimSpace(e.DestinationIP)
}

// ExtraInt64 reads a numeric extra attribute, tolerating JSON number decoding.
func (e *SecurityEvent) ExtraInt64(name string) (int64, bool) {
	if e.Extra == nil {
		return 0, false
	}
	switch v := e.Extra[name].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		var n int64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Validate rejects records that cannot enter the pipeline.
func (e *SecurityEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("security event is missing an id")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("security event %s is missing a timestamp", e.ID)
	}
	return nil
}

// SeverityRank orders severity labels for max-of-group comparisons.
func SeverityRank(severity string) int {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical":
		return 5
	case "high":
		return 4
	case "medium":
		return 3
	case "low":
		return 2
	case "informational", "info":
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the higher of two severity labels.
func MaxSeverity(a, b string) string {
	if SeverityRank(b) > SeverityRank(a) {
		return b
	}
	return a
}
