package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Builder constructs the per-repo code graphs during ingest. The
// dependency graph comes from parsed imports; call, class, and module
// graphs come from an external tool when one is configured.
type Builder struct {
	logger     *slog.Logger
	toolCmd    string
	cmdTimeout time.Duration
}

// BuildStats tracks graph construction statistics
type BuildStats struct {
	Nodes int
	Edges int
}

// NewBuilder creates a graph builder. toolCmd may be empty, in which
// case external graphs are empty and retrieval treats them as carrying
// no additional signal.
func NewBuilder(toolCmd string, cmdTimeout time.Duration) *Builder {
	if cmdTimeout <= 0 {
		cmdTimeout = 120 * time.Second
	}
	return &Builder{
		logger:     slog.Default().With("component", "graph_builder"),
		toolCmd:    toolCmd,
		cmdTimeout: cmdTimeout,
	}
}

// BuildDependencyGraph builds the file import graph. All files become
// nodes first; edges A->B mean "A imports B". An import edge is kept
// only when its target is itself a parsed file node.
func (b *Builder) BuildDependencyGraph(files []string, imports map[string][]string) *Graph {
	g := New()

	for _, f := range files {
		g.AddNode(Node{ID: f, Label: f, Type: "file"})
	}

	edges := 0
	for src, targets := range imports {
		if !g.HasNode(src) {
			continue
		}
		for _, dst := range targets {
			if !g.HasNode(dst) {
				continue
			}
			g.AddEdge(src, dst, "imports", 1)
			edges++
		}
	}

	b.logger.Debug("dependency graph built",
		"nodes", g.NodeCount(),
		"edges", edges)

	return g
}

// GraphKind selects which external graph the tool should produce
type GraphKind string

const (
	KindCall   GraphKind = "call"
	KindClass  GraphKind = "class"
	KindModule GraphKind = "module"
)

// ExternalGraph runs the configured tool to produce a call, class, or
// module graph for the repository. The tool is invoked as
// `<cmd> <kind> <repoPath>` inside the repo and must print a
// {nodes, edges} JSON document on stdout. Missing tooling or a failed
// run yields an empty graph, never an error: absence of a graph is
// absence of signal.
func (b *Builder) ExternalGraph(ctx context.Context, kind GraphKind, repoPath string) *Graph {
	if b.toolCmd == "" {
		return New()
	}

	ctx, cancel := context.WithTimeout(ctx, b.cmdTimeout)
	defer cancel()

	parts := strings.Fields(b.toolCmd)
	args := append(parts[1:], string(kind), repoPath)

	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Dir = repoPath

	output, err := cmd.Output()
	if err != nil {
		b.logger.Warn("external graph tool failed, continuing without graph",
			"kind", kind,
			"cmd", parts[0],
			"error", err)
		return New()
	}

	g := New()
	if err := json.Unmarshal(output, g); err != nil {
		b.logger.Warn("external graph tool produced invalid JSON, continuing without graph",
			"kind", kind,
			"error", err)
		return New()
	}

	b.logger.Debug("external graph loaded",
		"kind", kind,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount())

	return g
}

// MergeTrace folds a dynamic trace, serialized as {nodes, edges} JSON,
// into the stored call graph. New nodes are added, weights of existing
// edges are incremented by the trace weight, and new edges are appended.
func (b *Builder) MergeTrace(callGraph *Graph, traceJSON []byte) (*BuildStats, error) {
	trace := New()
	if err := json.Unmarshal(traceJSON, trace); err != nil {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}

	beforeNodes := callGraph.NodeCount()
	beforeEdges := callGraph.EdgeCount()

	callGraph.Merge(trace)

	stats := &BuildStats{
		Nodes: callGraph.NodeCount() - beforeNodes,
		Edges: callGraph.EdgeCount() - beforeEdges,
	}

	b.logger.Info("dynamic trace merged",
		"new_nodes", stats.Nodes,
		"new_edges", stats.Edges,
		"trace_nodes", trace.NodeCount(),
		"trace_edges", trace.EdgeCount())

	return stats, nil
}

// ReportCycles logs dependency cycles for operator attention and
// returns them for inclusion in ingest output
func (b *Builder) ReportCycles(depGraph *Graph) [][]string {
	cycles := depGraph.SimpleCycles()
	if len(cycles) > 0 {
		b.logger.Info("dependency cycles detected",
			"count", len(cycles),
			"first", strings.Join(cycles[0], " -> "))
	}
	return cycles
}
