package enrich

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"incidentgraph/pkg/models"
)

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// LoadStats tracks the number of loaded and skipped rules.
type LoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedComplex int
	SkippedInvalid int
}

// RuleTag is the annotation appended to an event's tag list on a rule match.
type RuleTag struct {
	ID        string
	Name      string
	Severity  string
	Tactic    string
	Technique string
}

type compiledRule struct {
	eval *sigmaevaluator.RuleEvaluator
	tag  RuleTag
}

// SigmaEngine evaluates Sigma rules against individual security events. It
// implements the threat-intel enrichment stage: matches annotate events with
// technique and tactic tags before reconstruction. The built-in technique
// matcher stays authoritative for phase inference.
type SigmaEngine struct {
	rules []compiledRule
	ctx   context.Context
}

// NewSigmaEngine loads Sigma rules from a file or directory and compiles
// evaluators. Unsupported or complex rules are skipped and counted in stats.
func NewSigmaEngine(path string) (*SigmaEngine, LoadStats, error) {
	var stats LoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 64)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() {
				return nil
			}
			if isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledRule, 0, len(files))
	for _, ruleFile := range files {
		raw, err := os.ReadFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		rule, err := sigma.ParseRule(raw)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if !isSimpleSingleEventRule(rule) {
			stats.SkippedComplex++
			continue
		}
		compiled = append(compiled, compiledRule{
			eval: sigmaevaluator.ForRule(rule),
			tag:  ruleTag(rule),
		})
		stats.Loaded++
	}

	return &SigmaEngine{rules: compiled, ctx: context.Background()}, stats, nil
}

// EnrichEvents returns copies of the input events with matched rule tags
// appended. Input events are never mutated.
func (e *SigmaEngine) EnrichEvents(events []*models.SecurityEvent) []*models.SecurityEvent {
	if e == nil || len(e.rules) == 0 {
		return events
	}
	out := make([]*models.SecurityEvent, 0, len(events))
	for _, ev := range events {
		if ev == nil {
			continue
		}
		tags := e.apply(ev)
		if len(tags) == 0 {
			out = append(out, ev)
			continue
		}
		cp := *ev
		cp.Tags = append(append([]string(nil), ev.Tags...), tags...)
		out = append(out, &cp)
	}
	return out
}

func (e *SigmaEngine) apply(ev *models.SecurityEvent) []string {
	eventMap := eventFields(ev)
	var tags []string
	for _, rule := range e.rules {
		res, err := rule.eval.Matches(e.ctx, eventMap)
		if err != nil || !res.Match {
			continue
		}
		if rule.tag.Name != "" {
			tags = append(tags, "sigma:"+rule.tag.Name)
		}
		if rule.tag.Technique != "" {
			tags = append(tags, "technique:"+rule.tag.Technique)
		}
		if rule.tag.Tactic != "" {
			tags = append(tags, "tactic:"+rule.tag.Tactic)
		}
	}
	return tags
}

// eventFields flattens the typed event into the field map Sigma evaluators
// expect, merging the extra-attribute side channel last.
func eventFields(ev *models.SecurityEvent) map[string]interface{} {
	buf := make(map[string]interface{}, len(ev.Extra)+16)
	buf["EventType"] = ev.EventType
	buf["Severity"] = ev.Severity
	buf["Outcome"] = ev.Outcome
	if ev.SourceHost != "" {
		buf["Computer"] = ev.SourceHost
		buf["SourceHost"] = ev.SourceHost
	}
	if ev.SourceIP != "" {
		buf["SourceIp"] = ev.SourceIP
	}
	if ev.SourceUser != "" {
		buf["User"] = ev.SourceUser
	}
	if ev.DestinationHost != "" {
		buf["DestinationHostname"] = ev.DestinationHost
	}
	if ev.DestinationIP != "" {
		buf["DestinationIp"] = ev.DestinationIP
	}
	if ev.DestinationPort != 0 {
		buf["DestinationPort"] = ev.DestinationPort
	}
	if ev.ProcessName != "" {
		buf["Image"] = ev.ProcessName
	}
	if ev.CommandLine != "" {
		buf["CommandLine"] = ev.CommandLine
	}
	if ev.ParentProcessID != 0 {
		buf["ParentProcessId"] = ev.ParentProcessID
	}
	if ev.ProcessID != 0 {
		buf["ProcessId"] = ev.ProcessID
	}
	if ev.FilePath != "" {
		buf["TargetFilename"] = ev.FilePath
	}
	for k, v := range ev.Extra {
		buf[k] = v
	}
	return buf
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func isSimpleSingleEventRule(rule sigma.Rule) bool {
	if rule.Detection.Timeframe > 0 {
		return false
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false
		}
	}
	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false
		}
		if len(search.EventMatchers) == 0 {
			return false
		}
	}
	return true
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

func ruleTag(rule sigma.Rule) RuleTag {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}
	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}
	tactic, technique := parseAttackTags(rule.Tags)
	return RuleTag{
		ID:        id,
		Name:      strings.TrimSpace(rule.Title),
		Severity:  level,
		Tactic:    tactic,
		Technique: technique,
	}
}

func parseAttackTags(tags []string) (string, string) {
	var tactic, technique string
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		suffix := strings.TrimPrefix(tag, "attack.")
		if technique == "" && techniqueTagRegex.MatchString(tag) {
			technique = strings.ToUpper(suffix)
			continue
		}
		if tactic == "" && !strings.HasPrefix(suffix, "t") {
			tactic = strings.ReplaceAll(suffix, "_", "-")
		}
	}
	return tactic, technique
}
