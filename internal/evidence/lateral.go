package evidence

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"incidentgraph/internal/assets"
	"incidentgraph/internal/killchain"
	"incidentgraph/pkg/models"
)

var lateralKeywords = []string{"rdp", "ssh", "smb", "wmi", "psexec", "winrm", "dcom"}

var adminIndicators = []string{"admin", "root"}

// Tracker detects lateral movement between assets and marks destinations as
// compromised in the shared asset store.
type Tracker struct {
	store *assets.Store
}

// NewTracker creates a lateral-movement tracker over the shared asset store.
func NewTracker(store *assets.Store) *Tracker {
	return &Tracker{store: store}
}

// TrackLateralMovement groups qualifying events by ordered asset pair and
// emits one movement per pair. Destination assets are marked compromised at
// the movement timestamp; re-running on identical input is idempotent because
// the first compromise writer wins.
func (t *Tracker) TrackLateralMovement(events []*models.SecurityEvent, detectMethods, mapCredentials bool) []models.LateralMovement {
	type pairGroup struct {
		source string
		dest   string
		events []*models.SecurityEvent
	}

	groups := make(map[string]*pairGroup, 8)
	order := make([]string, 0, 8)

	for _, ev := range events {
		if ev == nil || !qualifiesLateral(ev) {
			continue
		}
		src := ev.SourceAssetKey()
		dst := ev.DestinationAssetKey()
		if src == "" || dst == "" || src == dst {
			continue
		}
		key := src + "->" + dst
		g := groups[key]
		if g == nil {
			g = &pairGroup{source: src, dest: dst}
			groups[key] = g
			order = append(order, key)
		}
		g.events = append(g.events, ev)
	}

	out := make([]models.LateralMovement, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		sort.SliceStable(g.events, func(i, j int) bool {
			if !g.events[i].Timestamp.Equal(g.events[j].Timestamp) {
				return g.events[i].Timestamp.Before(g.events[j].Timestamp)
			}
			return g.events[i].ID < g.events[j].ID
		})

		mv := t.buildMovement(key, g.source, g.dest, g.events, detectMethods, mapCredentials)
		t.store.Ensure(g.source)
		t.store.MarkCompromised(g.dest, mv.Timestamp)
		out = append(out, mv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].SourceAsset+out[i].DestinationAsset < out[j].SourceAsset+out[j].DestinationAsset
	})
	return out
}

// qualifiesLateral accepts events whose serialized form mentions a remote
// access protocol, or which span two distinct hosts.
func qualifiesLateral(ev *models.SecurityEvent) bool {
	if ev.SourceHost != "" && ev.DestinationHost != "" && ev.SourceHost != ev.DestinationHost {
		return true
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	serialized := strings.ToLower(string(raw))
	for _, kw := range lateralKeywords {
		if strings.Contains(serialized, kw) {
			return true
		}
	}
	return false
}

func (t *Tracker) buildMovement(key, source, dest string, group []*models.SecurityEvent, detectMethods, mapCredentials bool) models.LateralMovement {
	eventIDs := make([]string, 0, len(group))
	techniqueSeen := make(map[string]struct{}, 4)
	var techniques []string
	var bytes int64
	valid := false

	for _, ev := range group {
		eventIDs = append(eventIDs, ev.ID)
		if strings.EqualFold(ev.Outcome, "success") {
			valid = true
		}
		if n, ok := ev.ExtraInt64("bytes_transferred"); ok {
			bytes += n
		}
		for _, id := range killchain.MatchTechniques(ev) {
			if _, ok := techniqueSeen[id]; !ok {
				techniqueSeen[id] = struct{}{}
				techniques = append(techniques, id)
			}
		}
	}

	method := "smb"
	if detectMethods {
		method = detectMethod(group)
	}

	var creds *models.CredentialUsage
	if mapCredentials {
		creds = extractCredentials(group, valid)
	}

	first := group[0].Timestamp
	last := group[len(group)-1].Timestamp

	return models.LateralMovement{
		ID:               uuid.NewSHA1(uuid.NameSpaceOID, []byte("movement:"+key+":"+strings.Join(eventIDs, ","))).String(),
		SourceAsset:      source,
		DestinationAsset: dest,
		Method:           method,
		Timestamp:        first,
		Duration:         last.Sub(first),
		Techniques:       techniques,
		CredentialsUsed:  creds,
		Confidence:       movementConfidence(len(group), valid),
		DataTransferred:  bytes,
		EventIDs:         eventIDs,
	}
}

// detectMethod scans the group in order and returns the first rule that fires.
func detectMethod(group []*models.SecurityEvent) string {
	for _, ev := range group {
		typ := strings.ToLower(ev.EventType)
		proc := strings.ToLower(ev.ProcessName)
		cmd := strings.ToLower(ev.CommandLine)
		switch {
		case ev.DestinationPort == 3389:
			return "rdp"
		case ev.DestinationPort == 22:
			return "ssh"
		case ev.DestinationPort == 445 || ev.DestinationPort == 139:
			return "smb"
		case ev.DestinationPort == 5985 || ev.DestinationPort == 5986:
			return "winrm"
		case strings.Contains(proc, "psexec"):
			return "psexec"
		case strings.Contains(typ, "wmi"):
			return "wmi"
		case strings.Contains(typ, "dcom"):
			return "dcom"
		case strings.Contains(cmd, "pass-the-hash"):
			return "pass_the_hash"
		case strings.Contains(cmd, "golden"):
			return "golden_ticket"
		}
	}
	return "smb"
}

// extractCredentials takes the first event that exposes a user and infers
// account shape from the username itself.
func extractCredentials(group []*models.SecurityEvent, valid bool) *models.CredentialUsage {
	for _, ev := range group {
		user := ev.SourceUser
		if user == "" {
			user = ev.DestinationUser
		}
		if user == "" {
			continue
		}

		accountType := "local"
		domain := ""
		if strings.Contains(user, "$") {
			accountType = "service"
		} else if idx := strings.Index(user, `\`); idx > 0 {
			accountType = "domain"
			domain = user[:idx]
		}

		auth := "ntlm"
		typ := strings.ToLower(ev.EventType)
		switch {
		case strings.Contains(typ, "kerberos"):
			auth = "kerberos"
		case strings.Contains(typ, "certificate"):
			auth = "certificate"
		case strings.Contains(typ, "ntlm"):
			auth = "ntlm"
		}

		privilege := "standard"
		lower := strings.ToLower(user)
		for _, ind := range adminIndicators {
			if strings.Contains(lower, ind) {
				privilege = "high"
				break
			}
		}
		if privilege != "high" && strings.Contains(user, "$") {
			privilege = "service"
		}

		return &models.CredentialUsage{
			AccountName:     user,
			AccountType:     accountType,
			Domain:          domain,
			AuthMethod:      auth,
			PrivilegeLevel:  privilege,
			ValidCredential: valid,
		}
	}
	return nil
}

func movementConfidence(eventCount int, valid bool) float64 {
	conf := 0.5 + 0.1*float64(eventCount)
	if conf > 0.9 {
		conf = 0.9
	}
	if valid {
		conf += 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
