package catalog

import "incidentgraph/pkg/models"

// defaultTechniques is the static seed catalog. It covers the techniques the
// built-in matcher can emit plus the initial-access and objective techniques
// the mappers key on. Not a live threat-intel feed.
var defaultTechniques = []models.MitreTechnique{
	{ID: "T1059.001", Name: "PowerShell", Tactic: "execution",
		Detection: "Script block logging, command-line auditing",
		Mitigation: "Constrained language mode, execution policy"},
	{ID: "T1003.001", Name: "LSASS Memory", Tactic: "credential-access",
		Detection: "LSASS process access auditing",
		Mitigation: "Credential Guard, restrict debug privilege"},
	{ID: "T1021.001", Name: "Remote Desktop Protocol", Tactic: "lateral-movement",
		Detection: "RDP logon events, port 3389 flows",
		Mitigation: "Network level authentication, jump hosts"},
	{ID: "T1021.002", Name: "SMB/Windows Admin Shares", Tactic: "lateral-movement",
		Detection: "Admin share access, port 445/139 flows",
		Mitigation: "Disable admin shares, segment SMB"},
	{ID: "T1055", Name: "Process Injection", Tactic: "defense-evasion",
		Detection: "Remote thread creation, process access events",
		Mitigation: "Behavior-based endpoint prevention"},
	{ID: "T1486", Name: "Data Encrypted for Impact", Tactic: "impact",
		Detection: "Mass file renames with ransom extensions",
		Mitigation: "Offline backups, canary files"},
	{ID: "T1566", Name: "Phishing", Tactic: "initial-access",
		Detection: "Mail gateway detonation, URL rewriting",
		Mitigation: "User training, attachment sandboxing"},
	{ID: "T1078", Name: "Valid Accounts", Tactic: "initial-access",
		Detection: "Impossible travel, anomalous logon times",
		Mitigation: "MFA, credential hygiene"},
	{ID: "T1190", Name: "Exploit Public-Facing Application", Tactic: "initial-access",
		Detection: "WAF alerts, crash telemetry on edge services",
		Mitigation: "Patch management, external attack surface review"},
	{ID: "T1195", Name: "Supply Chain Compromise", Tactic: "initial-access",
		Detection: "Software integrity verification",
		Mitigation: "Vendor review, artifact signing"},
	{ID: "T1041", Name: "Exfiltration Over C2 Channel", Tactic: "exfiltration",
		Detection: "Outbound volume anomalies on C2 sessions",
		Mitigation: "Egress filtering, DLP"},
	{ID: "T1071", Name: "Application Layer Protocol", Tactic: "command-and-control",
		Detection: "Beaconing detection, TLS fingerprinting",
		Mitigation: "Proxy egress, protocol allow-lists"},
}

// defaultActors is a small static attribution seed. Scores are computed as
// observed-overlap divided by the profile's known-technique count.
var defaultActors = []ActorProfile{
	{
		Name:    "Wizard Spider",
		Aliases: []string{"UNC1878"},
		KnownTechniques: []string{
			"T1059.001", "T1003.001", "T1021.001", "T1021.002", "T1486",
		},
	},
	{
		Name:    "APT29",
		Aliases: []string{"Cozy Bear"},
		KnownTechniques: []string{
			"T1566", "T1059.001", "T1078", "T1071", "T1041",
		},
	},
	{
		Name:    "FIN7",
		Aliases: []string{"Carbanak Group"},
		KnownTechniques: []string{
			"T1566", "T1059.001", "T1055", "T1021.002",
		},
	},
	{
		Name: "Lazarus Group",
		KnownTechniques: []string{
			"T1190", "T1055", "T1003.001", "T1486", "T1041",
		},
	},
}

// Default returns the built-in seed catalog.
func Default() *Catalog {
	c, err := New(defaultTechniques, defaultActors)
	if err != nil {
		// The seed data is compiled in; a construction failure is a bug.
		panic(err)
	}
	return c
}
