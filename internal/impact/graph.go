package impact

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"incidentgraph/internal/killchain"
	"incidentgraph/internal/logger"
	"incidentgraph/pkg/models"
)

const (
	nodeTypeAsset     = "asset"
	nodeTypeTechnique = "technique"

	edgeTypeLateral   = "lateral_movement"
	edgeTypeTechnique = "technique_used"

	maxPathLength    = 10
	maxCriticalPaths = 5
)

// GenerateAttackGraph builds the node/edge model of the incident. Asset nodes
// are added first, then technique nodes fill the remaining node budget;
// overruns truncate deterministically and log instead of failing.
func (a *Analyzer) GenerateAttackGraph(timeline []models.TimelineEvent, movements []models.LateralMovement, includeCriticalPaths bool) *models.AttackGraph {
	graph := &models.AttackGraph{ID: graphID(timeline, movements)}

	nodeIndex := make(map[string]int, 64)
	addNode := func(node models.GraphNode) bool {
		if _, ok := nodeIndex[node.ID]; ok {
			return true
		}
		if len(graph.Nodes) >= a.cfg.MaxGraphNodes {
			return false
		}
		nodeIndex[node.ID] = len(graph.Nodes)
		graph.Nodes = append(graph.Nodes, node)
		return true
	}

	truncated := false
	addAssetNode := func(key string) {
		if key == "" {
			return
		}
		id := nodeTypeAsset + ":" + key
		node := models.GraphNode{ID: id, Type: nodeTypeAsset, Label: key}
		if asset := a.store.Get(key); asset != nil {
			node.Compromised = asset.Compromised()
			node.Severity = asset.Criticality
		}
		if !addNode(node) {
			truncated = true
		}
	}

	for i := range timeline {
		for _, key := range timeline[i].Assets {
			addAssetNode(key)
		}
	}
	for i := range movements {
		addAssetNode(movements[i].SourceAsset)
		addAssetNode(movements[i].DestinationAsset)
	}

	techniqueSeen := make(map[string]struct{}, 16)
	for i := range timeline {
		for _, t := range timeline[i].Techniques {
			if _, ok := techniqueSeen[t.ID]; ok {
				continue
			}
			techniqueSeen[t.ID] = struct{}{}
			id := nodeTypeTechnique + ":" + t.ID
			label := t.Name
			if label == "" {
				label = t.ID
			}
			if !addNode(models.GraphNode{ID: id, Type: nodeTypeTechnique, Label: label, Severity: timeline[i].Severity}) {
				truncated = true
			}
		}
	}
	if truncated {
		logger.Warnf("attack graph truncated at %d nodes", a.cfg.MaxGraphNodes)
	}

	hasNode := func(id string) bool {
		_, ok := nodeIndex[id]
		return ok
	}

	edgeSeq := 0
	addEdge := func(source, target, edgeType string, ev *models.TimelineEvent, mv *models.LateralMovement) {
		if !hasNode(source) || !hasNode(target) {
			return
		}
		edge := models.GraphEdge{
			ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(graph.ID+":edge:"+strconv.Itoa(edgeSeq))).String(),
			Source: source,
			Target: target,
			Type:   edgeType,
		}
		if ev != nil {
			edge.Timestamp = ev.Timestamp
		}
		if mv != nil {
			edge.Timestamp = mv.Timestamp
		}
		edgeSeq++
		graph.Edges = append(graph.Edges, edge)
	}

	for i := range movements {
		mv := &movements[i]
		addEdge(nodeTypeAsset+":"+mv.SourceAsset, nodeTypeAsset+":"+mv.DestinationAsset, edgeTypeLateral, nil, mv)
	}
	// One edge per (event, asset, technique) triple, deliberately without
	// deduplication.
	for i := range timeline {
		ev := &timeline[i]
		for _, key := range ev.Assets {
			for _, t := range ev.Techniques {
				addEdge(nodeTypeAsset+":"+key, nodeTypeTechnique+":"+t.ID, edgeTypeTechnique, ev, nil)
			}
		}
	}

	graph.EntryPoints = entryPointNodes(timeline, hasNode)
	graph.Objectives = objectiveNodes(timeline, hasNode)

	if includeCriticalPaths && len(graph.EntryPoints) > 0 && len(graph.Objectives) > 0 {
		graph.CriticalPaths = criticalPaths(graph, graph.EntryPoints[0], graph.Objectives[0])
	}

	graph.RiskScore = riskScore(graph, len(movements))
	return graph
}

// entryPointNodes returns the asset nodes of the chronologically earliest
// timeline event.
func entryPointNodes(timeline []models.TimelineEvent, hasNode func(string) bool) []string {
	var earliest *models.TimelineEvent
	for i := range timeline {
		if earliest == nil || timeline[i].Timestamp.Before(earliest.Timestamp) {
			earliest = &timeline[i]
		}
	}
	if earliest == nil {
		return nil
	}
	var out []string
	for _, key := range earliest.Assets {
		id := nodeTypeAsset + ":" + key
		if hasNode(id) && !containsString(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func objectiveNodes(timeline []models.TimelineEvent, hasNode func(string) bool) []string {
	var out []string
	for i := range timeline {
		phase := timeline[i].Phase
		if phase != killchain.PhaseImpact && phase != killchain.PhaseExfiltration {
			continue
		}
		for _, key := range timeline[i].Assets {
			id := nodeTypeAsset + ":" + key
			if hasNode(id) && !containsString(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// criticalPaths runs a depth-first search from entry to objective, capping
// path length at 10 nodes and collecting up to 5 paths. The visited set is
// shared across the whole search: a node used on one branch is never
// revisited on another, which keeps the search linear but can suppress
// alternate paths through shared nodes.
func criticalPaths(graph *models.AttackGraph, entry, objective string) [][]string {
	adjacency := make(map[string][]string, len(graph.Nodes))
	for _, edge := range graph.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	var paths [][]string
	visited := make(map[string]struct{}, len(graph.Nodes))

	var walk func(node string, path []string)
	walk = func(node string, path []string) {
		if len(paths) >= maxCriticalPaths || len(path) >= maxPathLength {
			return
		}
		visited[node] = struct{}{}
		path = append(path, node)

		if node == objective {
			paths = append(paths, append([]string(nil), path...))
			return
		}
		for _, next := range adjacency[node] {
			if _, ok := visited[next]; ok {
				continue
			}
			walk(next, path)
			if len(paths) >= maxCriticalPaths {
				return
			}
		}
	}

	walk(entry, nil)
	return paths
}

// riskScore is 20 per compromised critical node, 5 per movement, plus the
// edge count capped at 50, all capped at 100.
func riskScore(graph *models.AttackGraph, movementCount int) int {
	criticalCompromised := 0
	for _, node := range graph.Nodes {
		if node.Compromised && strings.EqualFold(node.Severity, "critical") {
			criticalCompromised++
		}
	}
	edges := len(graph.Edges)
	if edges > 50 {
		edges = 50
	}
	score := 20*criticalCompromised + 5*movementCount + edges
	if score > 100 {
		score = 100
	}
	return score
}

func graphID(timeline []models.TimelineEvent, movements []models.LateralMovement) string {
	parts := make([]string, 0, len(timeline)+len(movements))
	for i := range timeline {
		parts = append(parts, timeline[i].ID)
	}
	for i := range movements {
		parts = append(parts, movements[i].ID)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("graph:"+strings.Join(parts, ","))).String()
}
