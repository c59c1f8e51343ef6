package killchain

import (
	"regexp"
	"strings"

	"incidentgraph/pkg/models"
)

var ransomExtRegex = regexp.MustCompile(`\.(encrypted|locked|ransom)$`)

// MatchTechniques applies the fixed ordered technique rule set to one event.
// Several rules may fire for the same event; callers deduplicate across a
// correlated group by technique ID.
func MatchTechniques(ev *models.SecurityEvent) []string {
	proc := strings.ToLower(ev.ProcessName)
	cmd := strings.ToLower(ev.CommandLine)
	typ := strings.ToLower(ev.EventType)
	file := strings.ToLower(ev.FileName)

	out := make([]string, 0, 2)

	if strings.Contains(proc, "powershell") || strings.Contains(cmd, "powershell") {
		out = append(out, "T1059.001")
	}
	if strings.Contains(proc, "mimikatz") || strings.Contains(cmd, "mimikatz") ||
		strings.Contains(cmd, "sekurlsa") || strings.Contains(typ, "lsass") {
		out = append(out, "T1003.001")
	}
	if strings.Contains(typ, "rdp") || (ev.DestinationPort == 3389 && isTCPOrUnset(ev.Protocol)) {
		out = append(out, "T1021.001")
	}
	if ev.DestinationPort == 445 || ev.DestinationPort == 139 {
		out = append(out, "T1021.002")
	}
	if strings.Contains(typ, "inject") || strings.Contains(typ, "remote_thread") {
		out = append(out, "T1055")
	}
	if strings.Contains(typ, "file_encrypt") || ransomExtRegex.MatchString(file) {
		out = append(out, "T1486")
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func isTCPOrUnset(protocol string) bool {
	p := strings.ToLower(strings.TrimSpace(protocol))
	return p == "" || p == "tcp"
}
