package killchain

import "strings"

// The 14 canonical attack phases in lifecycle order. Phase comparisons always
// use this order, never wall-clock time.
const (
	PhaseReconnaissance      = "reconnaissance"
	PhaseResourceDevelopment = "resource_development"
	PhaseInitialAccess       = "initial_access"
	PhaseExecution           = "execution"
	PhasePersistence         = "persistence"
	PhasePrivilegeEscalation = "privilege_escalation"
	PhaseDefenseEvasion      = "defense_evasion"
	PhaseCredentialAccess    = "credential_access"
	PhaseDiscovery           = "discovery"
	PhaseLateralMovement     = "lateral_movement"
	PhaseCollection          = "collection"
	PhaseCommandAndControl   = "command_and_control"
	PhaseExfiltration        = "exfiltration"
	PhaseImpact              = "impact"
)

// PhaseOrder is the fixed ordered phase sequence.
var PhaseOrder = []string{
	PhaseReconnaissance,
	PhaseResourceDevelopment,
	PhaseInitialAccess,
	PhaseExecution,
	PhasePersistence,
	PhasePrivilegeEscalation,
	PhaseDefenseEvasion,
	PhaseCredentialAccess,
	PhaseDiscovery,
	PhaseLateralMovement,
	PhaseCollection,
	PhaseCommandAndControl,
	PhaseExfiltration,
	PhaseImpact,
}

var phaseIndex = buildPhaseIndex()

func buildPhaseIndex() map[string]int {
	m := make(map[string]int, len(PhaseOrder))
	for i, p := range PhaseOrder {
		m[p] = i
	}
	return m
}

// PhaseIndex returns the position of a phase in PhaseOrder, or -1.
func PhaseIndex(phase string) int {
	if idx, ok := phaseIndex[phase]; ok {
		return idx
	}
	return -1
}

// PhaseBefore reports whether phase a is strictly earlier than b in the
// canonical order. Unknown phases are never earlier.
func PhaseBefore(a, b string) bool {
	ai, aok := phaseIndex[a]
	bi, bok := phaseIndex[b]
	if !aok || !bok {
		return false
	}
	return ai < bi
}

// tacticPhase maps ATT&CK tactic names onto kill-chain phases.
var tacticPhase = map[string]string{
	"reconnaissance":       PhaseReconnaissance,
	"resource-development": PhaseResourceDevelopment,
	"initial-access":       PhaseInitialAccess,
	"execution":            PhaseExecution,
	"persistence":          PhasePersistence,
	"privilege-escalation": PhasePrivilegeEscalation,
	"defense-evasion":      PhaseDefenseEvasion,
	"credential-access":    PhaseCredentialAccess,
	"discovery":            PhaseDiscovery,
	"lateral-movement":     PhaseLateralMovement,
	"collection":           PhaseCollection,
	"command-and-control":  PhaseCommandAndControl,
	"exfiltration":         PhaseExfiltration,
	"impact":               PhaseImpact,
}

// TacticPhase resolves a tactic name to its kill-chain phase. Tactic names
// are normalized the way Sigma attack tags spell them.
func TacticPhase(tactic string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(tactic))
	n = strings.ReplaceAll(n, "_", "-")
	n = strings.ReplaceAll(n, " ", "-")
	phase, ok := tacticPhase[n]
	return phase, ok
}
