package rootcause

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"incidentgraph/internal/killchain"
	"incidentgraph/pkg/models"
)

// Analyzer identifies how an incident started and which conditions let it
// progress. It consumes timeline events plus the incident's asset set.
type Analyzer struct{}

// NewAnalyzer constructs a root-cause analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze builds the root-cause record. Depth limits how deep the canned
// cause chain is expanded; recommendations can be suppressed for callers
// that only want the tree.
func (a *Analyzer) Analyze(timeline []models.TimelineEvent, assetList []*models.Asset, depth int, includeRecommendations bool) *models.RootCauseAnalysis {
	entryEvent := findEntryEvent(timeline)
	entry := buildEntryPoint(entryEvent, assetList)

	tree := a.buildCauseTree(entry.EntryType, depth, timeline)
	factors := contributingFactors(timeline, assetList)
	vulns := exploitedVulnerabilities(timeline, assetList)
	gaps := securityGaps(timeline)

	var recs []models.Recommendation
	if includeRecommendations {
		recs = recommendations(tree, gaps, factors)
	}

	confidence := tree.Confidence
	if entryEvent != nil {
		if len(entryEvent.Techniques) > 0 {
			confidence += 0.1
		}
		if len(entryEvent.Indicators) > 0 {
			confidence += 0.05
		}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &models.RootCauseAnalysis{
		ID:                  analysisID(timeline),
		RootCause:           tree,
		EntryPoint:          entry,
		ContributingFactors: factors,
		Vulnerabilities:     vulns,
		SecurityGaps:        gaps,
		Recommendations:     recs,
		Confidence:          confidence,
	}
}

// findEntryEvent prefers the earliest initial-access event, otherwise the
// earliest event overall.
func findEntryEvent(timeline []models.TimelineEvent) *models.TimelineEvent {
	var entry *models.TimelineEvent
	for i := range timeline {
		ev := &timeline[i]
		if ev.Phase != killchain.PhaseInitialAccess {
			continue
		}
		if entry == nil || ev.Timestamp.Before(entry.Timestamp) {
			entry = ev
		}
	}
	if entry != nil {
		return entry
	}
	for i := range timeline {
		ev := &timeline[i]
		if entry == nil || ev.Timestamp.Before(entry.Timestamp) {
			entry = ev
		}
	}
	return entry
}

func buildEntryPoint(entryEvent *models.TimelineEvent, assetList []*models.Asset) models.EntryPoint {
	entry := models.EntryPoint{AssetID: "unknown", EntryType: "misconfiguration"}
	if entryEvent == nil {
		return entry
	}

	entry.EventID = entryEvent.ID
	entry.Timestamp = entryEvent.Timestamp

	asset := matchAsset(entryEvent.Assets, assetList)
	if asset != nil {
		entry.AssetID = asset.ID
	}

	if ids := entryEvent.TechniqueIDs(); len(ids) > 0 {
		entry.Technique = ids[0]
		entry.EntryType = entryTypeFor(ids[0])
	}
	return entry
}

func matchAsset(keys []string, assetList []*models.Asset) *models.Asset {
	for _, asset := range assetList {
		for _, key := range keys {
			if asset.Matches(key) {
				return asset
			}
		}
	}
	if len(assetList) > 0 {
		return assetList[0]
	}
	return nil
}

func entryTypeFor(techniqueID string) string {
	switch {
	case strings.HasPrefix(techniqueID, "T1566"):
		return "phishing"
	case strings.HasPrefix(techniqueID, "T1190"):
		return "exploit"
	case strings.HasPrefix(techniqueID, "T1078"):
		return "credential_compromise"
	case strings.HasPrefix(techniqueID, "T1195"):
		return "supply_chain"
	default:
		return "misconfiguration"
	}
}

// buildCauseTree expands the template chain for the entry type down to the
// requested depth and always appends the segmentation child, carrying
// lateral-movement events as its evidence.
func (a *Analyzer) buildCauseTree(entryType string, depth int, timeline []models.TimelineEvent) *models.CauseNode {
	tmpl := templateFor(entryType)
	root := nodeFromTemplate(tmpl, entryType, 0)

	if depth > 0 {
		parent := root
		for i, child := range tmpl.chain {
			if i >= depth {
				break
			}
			node := nodeFromTemplate(child, entryType, i+1)
			parent.Children = append(parent.Children, node)
			parent = node
		}

		seg := nodeFromTemplate(segmentationTemplate, entryType, len(tmpl.chain)+1)
		for i := range timeline {
			if timeline[i].Phase == killchain.PhaseLateralMovement {
				seg.Evidence = append(seg.Evidence, timeline[i].ID)
			}
		}
		root.Children = append(root.Children, seg)
	}
	return root
}

func nodeFromTemplate(tmpl causeTemplate, entryType string, position int) *models.CauseNode {
	return &models.CauseNode{
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("cause:%s:%d:%s", entryType, position, tmpl.description))).String(),
		Description: tmpl.description,
		Category:    tmpl.category,
		Confidence:  tmpl.confidence,
	}
}

// contributingFactors runs the independent rule checks. Factors are not
// deduplicated or merged.
func contributingFactors(timeline []models.TimelineEvent, assetList []*models.Asset) []models.ContributingFactor {
	var out []models.ContributingFactor

	lateralCount := 0
	privEsc := false
	credAccess := false
	for i := range timeline {
		switch timeline[i].Phase {
		case killchain.PhasePrivilegeEscalation:
			privEsc = true
		case killchain.PhaseCredentialAccess:
			credAccess = true
		case killchain.PhaseLateralMovement:
			lateralCount++
		}
	}

	if privEsc {
		out = append(out, models.ContributingFactor{
			Category:    "technical",
			Description: "privilege escalation activity observed",
			Impact:      "adversary gained elevated rights on compromised systems",
			Remediation: "enforce least privilege and monitor privileged group changes",
		})
	}
	if credAccess {
		out = append(out, models.ContributingFactor{
			Category:    "technical",
			Description: "credential access activity observed",
			Impact:      "harvested credentials enable re-entry and lateral movement",
			Remediation: "rotate exposed credentials and deploy credential guard controls",
		})
	}
	if lateralCount > 2 {
		out = append(out, models.ContributingFactor{
			Category:    "technical",
			Description: "extensive lateral movement across the environment",
			Impact:      "flat network allowed the adversary to reach multiple assets",
			Remediation: "segment networks and restrict peer-to-peer administrative protocols",
		})
	}
	for _, asset := range assetList {
		if strings.EqualFold(asset.Criticality, "critical") && asset.Compromised() {
			out = append(out, models.ContributingFactor{
				Category:    "process",
				Description: fmt.Sprintf("critical asset %s was compromised", asset.ID),
				Impact:      "business-critical services were directly exposed to the adversary",
				Remediation: "add compensating controls and isolation for critical assets",
			})
		}
	}
	return out
}

func exploitedVulnerabilities(timeline []models.TimelineEvent, assetList []*models.Asset) []models.ExploitedVulnerability {
	var out []models.ExploitedVulnerability
	for i := range timeline {
		ev := &timeline[i]
		if !hasTechniquePrefix(ev, "T1190") {
			continue
		}
		assetID := ""
		if len(ev.Assets) > 0 {
			assetID = ev.Assets[0]
		}
		out = append(out, models.ExploitedVulnerability{
			AssetID:     assetID,
			Name:        "unpatched public-facing application",
			Description: "exploited during " + ev.Phase + " activity",
		})
	}
	for _, asset := range assetList {
		for _, vuln := range asset.Vulnerabilities {
			out = append(out, models.ExploitedVulnerability{
				AssetID: asset.ID,
				Name:    vuln,
			})
		}
	}
	return out
}

func hasTechniquePrefix(ev *models.TimelineEvent, prefix string) bool {
	for _, t := range ev.Techniques {
		if strings.HasPrefix(t.ID, prefix) {
			return true
		}
	}
	return false
}

func securityGaps(timeline []models.TimelineEvent) []models.SecurityGap {
	var out []models.SecurityGap

	if len(timeline) > 0 {
		sum := 0.0
		for i := range timeline {
			sum += timeline[i].Confidence
		}
		if sum/float64(len(timeline)) < 0.7 {
			out = append(out, models.SecurityGap{
				GapType:     "detection",
				Description: "low average detection confidence across the timeline",
				Priority:    "high",
			})
		}
	}

	for i := range timeline {
		if timeline[i].Phase == killchain.PhaseExecution {
			out = append(out, models.SecurityGap{
				GapType:     "prevention",
				Description: "adversary code execution was not blocked",
				Priority:    "critical",
			})
			break
		}
	}

	if dwell(timeline) > 24*time.Hour {
		out = append(out, models.SecurityGap{
			GapType:     "response",
			Description: "adversary dwell time exceeded 24 hours",
			Priority:    "high",
		})
	}
	return out
}

func dwell(timeline []models.TimelineEvent) time.Duration {
	if len(timeline) == 0 {
		return 0
	}
	first := timeline[0].Timestamp
	last := timeline[0].Timestamp
	for i := range timeline {
		if timeline[i].Timestamp.Before(first) {
			first = timeline[i].Timestamp
		}
		if timeline[i].Timestamp.After(last) {
			last = timeline[i].Timestamp
		}
	}
	return last.Sub(first)
}

// recommendations emits one entry per human-category root, one per gap and
// one per factor, in that order, without deduplication.
func recommendations(root *models.CauseNode, gaps []models.SecurityGap, factors []models.ContributingFactor) []models.Recommendation {
	var out []models.Recommendation

	if root != nil && root.Category == "human" {
		out = append(out, models.Recommendation{
			Priority:    "high",
			Category:    "awareness",
			Description: "run targeted security awareness training addressing: " + root.Description,
		})
	}
	for _, gap := range gaps {
		out = append(out, models.Recommendation{
			Priority:    gap.Priority,
			Category:    gap.GapType,
			Description: "close " + gap.GapType + " gap: " + gap.Description,
		})
	}
	for _, f := range factors {
		out = append(out, models.Recommendation{
			Priority:    "medium",
			Category:    f.Category,
			Description: f.Remediation,
		})
	}
	return out
}

func analysisID(timeline []models.TimelineEvent) string {
	ids := make([]string, 0, len(timeline))
	for i := range timeline {
		ids = append(ids, timeline[i].ID)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("rootcause:"+strings.Join(ids, ","))).String()
}
