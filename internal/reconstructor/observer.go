package reconstructor

import "time"

// Notification is one typed lifecycle event. Notifications carry summary
// metrics for observability consumers and never influence analysis results.
type Notification struct {
	Name       string             `json:"name"` // "<step>:started" or "<step>:completed"
	IncidentID string             `json:"incident_id"`
	Timestamp  time.Time          `json:"ts"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Observer receives lifecycle notifications. Delivery is synchronous on the
// calling goroutine; observers must not call back into the reconstructor.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(n Notification)

// Notify implements Observer.
func (f ObserverFunc) Notify(n Notification) { f(n) }

// Lifecycle step names.
const (
	StepTimeline    = "timeline"
	StepLateral     = "lateral_movement"
	StepKillChain   = "kill_chain"
	StepRootCause   = "root_cause"
	StepImpact      = "impact"
	StepAttackGraph = "attack_graph"
)
