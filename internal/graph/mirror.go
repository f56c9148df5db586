package graph

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Mirror pushes built graphs into an optional graph database backend.
// The in-memory arenas remain the source of truth; the mirror exists for
// ad-hoc Cypher exploration and reporting. Unique keys are prefixed with
// the repository ID so multiple repositories can share one database.
type Mirror struct {
	backend Backend
	logger  *slog.Logger
}

// NewMirror creates a mirror over a graph database backend
func NewMirror(backend Backend) *Mirror {
	return &Mirror{
		backend: backend,
		logger:  slog.Default().With("component", "graph_mirror"),
	}
}

// MirrorRepo replaces the mirrored graphs for a repository.
// Any previously mirrored state for the repository is cleared first so
// re-indexing never leaves stale nodes behind.
func (m *Mirror) MirrorRepo(ctx context.Context, repoID string, dep, call, class, module *Graph) error {
	if err := m.DeleteRepo(ctx, repoID); err != nil {
		return fmt.Errorf("failed to clear mirrored repo %s: %w", repoID, err)
	}

	kinds := []struct {
		graph     *Graph
		label     string
		edgeLabel string
	}{
		{dep, "File", "IMPORTS"},
		{call, "Function", "CALLS"},
		{class, "Class", "INHERITS"},
		{module, "Module", "DEPENDS_ON"},
	}

	var totalNodes, totalEdges int
	for _, k := range kinds {
		if k.graph == nil || k.graph.Empty() {
			continue
		}

		nodes, edges := m.convert(repoID, k.graph, k.label, k.edgeLabel)

		if _, err := m.backend.CreateNodes(ctx, nodes); err != nil {
			return fmt.Errorf("failed to mirror %s nodes: %w", k.label, err)
		}
		if err := m.backend.CreateEdges(ctx, edges); err != nil {
			return fmt.Errorf("failed to mirror %s edges: %w", k.label, err)
		}

		totalNodes += len(nodes)
		totalEdges += len(edges)
	}

	m.logger.Info("mirrored repository graphs",
		"repo_id", repoID,
		"nodes", totalNodes,
		"edges", totalEdges)

	return nil
}

// DeleteRepo removes all mirrored nodes and edges for a repository
func (m *Mirror) DeleteRepo(ctx context.Context, repoID string) error {
	if !validMirrorRepoID.MatchString(repoID) {
		return fmt.Errorf("invalid repo id for mirror delete: %q", repoID)
	}

	// repoID is validated above, so embedding it in the literal is safe
	cmd := fmt.Sprintf(`MATCH (n {repo_id: "%s"}) DETACH DELETE n`, repoID)
	return m.backend.ExecuteBatch(ctx, []string{cmd})
}

// Close releases the underlying backend connection
func (m *Mirror) Close(ctx context.Context) error {
	return m.backend.Close(ctx)
}

// convert flattens an arena graph into mirror nodes and edges
func (m *Mirror) convert(repoID string, g *Graph, label, defaultEdgeLabel string) ([]GraphNode, []GraphEdge) {
	prefix := strings.ToLower(label) + ":"
	key := getUniqueKey(label)

	nodes := make([]GraphNode, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		props := map[string]any{
			key:       repoID + ":" + n.ID,
			"repo_id": repoID,
			"name":    n.Label,
		}
		if label == "File" {
			props["path"] = n.ID
		}
		nodes = append(nodes, GraphNode{
			Label:      label,
			ID:         prefix + repoID + ":" + n.ID,
			Properties: props,
		})
	}

	edges := make([]GraphEdge, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edgeLabel := defaultEdgeLabel
		if e.Type != "" {
			edgeLabel = edgeCypherLabel(e.Type)
		}
		edges = append(edges, GraphEdge{
			Label: edgeLabel,
			From:  prefix + repoID + ":" + e.Source,
			To:    prefix + repoID + ":" + e.Target,
			Properties: map[string]any{
				"weight":  e.Weight,
				"repo_id": repoID,
			},
		})
	}

	return nodes, edges
}

var (
	validMirrorRepoID = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)
	nonIdentRE        = regexp.MustCompile(`[^A-Z0-9_]+`)
)

// edgeCypherLabel converts an edge type like "imports" into a Cypher
// relationship label like IMPORTS
func edgeCypherLabel(typ string) string {
	label := nonIdentRE.ReplaceAllString(strings.ToUpper(typ), "_")
	label = strings.Trim(label, "_")
	if label == "" {
		return "RELATES_TO"
	}
	return label
}
