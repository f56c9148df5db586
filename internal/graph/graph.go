// Package graph builds and queries the code graphs backing retrieval:
// the file dependency graph derived from imports, and the call, class,
// and module graphs produced by external tooling. Graphs are arenas of
// node records plus edge index vectors, so cyclic structures are cheap
// to store and every traversal is depth-bounded.
package graph

import (
	"encoding/json"
	"sort"
)

// Node is one vertex in a code graph
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// Edge is one directed edge in wire form. Weight is meaningful for call
// graphs, where it accumulates across ingests and dynamic traces.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
	Weight int    `json:"weight,omitempty"`
}

type edgeRec struct {
	src    int
	dst    int
	typ    string
	weight int
}

// Graph is a directed graph over string-identified nodes. Not safe for
// concurrent mutation; ingest builds a graph single-threaded and
// publishes it read-only through a snapshot.
type Graph struct {
	nodes []Node
	index map[string]int
	edges []edgeRec
	out   [][]int // node index -> edge indexes leaving it
	in    [][]int // node index -> edge indexes entering it
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
	}
}

// AddNode inserts a node, returning its arena index. Re-adding an
// existing id fills in a missing label or type but never duplicates.
func (g *Graph) AddNode(n Node) int {
	if i, ok := g.index[n.ID]; ok {
		if g.nodes[i].Label == "" {
			g.nodes[i].Label = n.Label
		}
		if g.nodes[i].Type == "" {
			g.nodes[i].Type = n.Type
		}
		return i
	}

	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index[n.ID] = i
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return i
}

// ensureNode inserts a bare node when only an id is known
func (g *Graph) ensureNode(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return g.AddNode(Node{ID: id, Label: id})
}

// AddEdge appends a directed edge, creating endpoints as needed
func (g *Graph) AddEdge(source, target, typ string, weight int) {
	si := g.ensureNode(source)
	ti := g.ensureNode(target)

	ei := len(g.edges)
	g.edges = append(g.edges, edgeRec{src: si, dst: ti, typ: typ, weight: weight})
	g.out[si] = append(g.out[si], ei)
	g.in[ti] = append(g.in[ti], ei)
}

// findEdge returns the index of the first edge source->target of the
// given type, or -1
func (g *Graph) findEdge(source, target, typ string) int {
	si, ok := g.index[source]
	if !ok {
		return -1
	}
	ti, ok := g.index[target]
	if !ok {
		return -1
	}

	for _, ei := range g.out[si] {
		e := g.edges[ei]
		if e.dst == ti && e.typ == typ {
			return ei
		}
	}
	return -1
}

// HasNode reports whether the id is present
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node returns the node record for an id
func (g *Graph) Node(id string) (Node, bool) {
	if i, ok := g.index[id]; ok {
		return g.nodes[i], true
	}
	return Node{}, false
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Empty reports whether the graph has no nodes
func (g *Graph) Empty() bool { return len(g.nodes) == 0 }

// Nodes returns all node records in arena order
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// NodeIDs returns all node ids in arena order
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Edges materializes all edges in wire form, in insertion order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	for i, e := range g.edges {
		out[i] = Edge{
			Source: g.nodes[e.src].ID,
			Target: g.nodes[e.dst].ID,
			Type:   e.typ,
			Weight: e.weight,
		}
	}
	return out
}

// OutNeighbors returns the ids this node points to, deduplicated,
// in first-edge order
func (g *Graph) OutNeighbors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}

	seen := make(map[int]bool)
	var out []string
	for _, ei := range g.out[i] {
		d := g.edges[ei].dst
		if !seen[d] {
			seen[d] = true
			out = append(out, g.nodes[d].ID)
		}
	}
	return out
}

// InNeighbors returns the ids pointing at this node, deduplicated
func (g *Graph) InNeighbors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}

	seen := make(map[int]bool)
	var out []string
	for _, ei := range g.in[i] {
		s := g.edges[ei].src
		if !seen[s] {
			seen[s] = true
			out = append(out, g.nodes[s].ID)
		}
	}
	return out
}

// Degree returns out-degree plus in-degree counted over distinct neighbors
func (g *Graph) Degree(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}

	seen := make(map[int]bool)
	for _, ei := range g.out[i] {
		seen[g.edges[ei].dst] = true
	}
	for _, ei := range g.in[i] {
		seen[g.edges[ei].src] = true
	}
	return len(seen)
}

// Slice returns the subgraph reachable from start within depth hops.
// reverse follows in-edges instead of out-edges (backward slice).
// Traversal is BFS with a visited set, so cycles terminate naturally.
func (g *Graph) Slice(start string, depth int, reverse bool) *Graph {
	sub := New()

	si, ok := g.index[start]
	if !ok {
		return sub
	}

	sub.AddNode(g.nodes[si])

	type item struct {
		idx int
		d   int
	}
	visited := map[int]bool{si: true}
	queue := []item{{idx: si, d: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.d >= depth {
			continue
		}

		edgeSet := g.out[cur.idx]
		if reverse {
			edgeSet = g.in[cur.idx]
		}

		for _, ei := range edgeSet {
			e := g.edges[ei]
			next := e.dst
			if reverse {
				next = e.src
			}

			sub.AddNode(g.nodes[next])
			sub.AddEdge(g.nodes[e.src].ID, g.nodes[e.dst].ID, e.typ, e.weight)

			if !visited[next] {
				visited[next] = true
				queue = append(queue, item{idx: next, d: cur.d + 1})
			}
		}
	}

	return sub
}

// Neighborhood unions forward slices from each seed, used for the
// call-graph artifact attached to callgraph-mode retrieval
func (g *Graph) Neighborhood(seeds []string, depth int) *Graph {
	merged := New()
	for _, seed := range seeds {
		sub := g.Slice(seed, depth, false)
		merged.Merge(sub)
	}
	return merged
}

// Merge folds another graph into this one: new nodes are added, an
// existing edge's weight is incremented by the incoming weight, and
// unseen edges are appended. This is the dynamic trace merge.
func (g *Graph) Merge(other *Graph) {
	for _, n := range other.nodes {
		g.AddNode(n)
	}

	for _, e := range other.edges {
		src := other.nodes[e.src].ID
		dst := other.nodes[e.dst].ID

		if ei := g.findEdge(src, dst, e.typ); ei >= 0 {
			g.edges[ei].weight += e.weight
			continue
		}
		g.AddEdge(src, dst, e.typ, e.weight)
	}
}

// wire is the serialized {nodes, edges} form shared with external
// tooling, dynamic traces, and persisted metadata
type wire struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON serializes to the {nodes, edges} wire format
func (g *Graph) MarshalJSON() ([]byte, error) {
	w := wire{Nodes: g.Nodes(), Edges: g.Edges()}
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	if w.Edges == nil {
		w.Edges = []Edge{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON loads the {nodes, edges} wire format
func (g *Graph) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*g = *New()
	for _, n := range w.Nodes {
		g.AddNode(n)
	}
	for _, e := range w.Edges {
		g.AddEdge(e.Source, e.Target, e.Type, e.Weight)
	}
	return nil
}

// FromWire builds a graph from already-decoded node and edge lists
func FromWire(nodes []Node, edges []Edge) *Graph {
	g := New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		g.AddEdge(e.Source, e.Target, e.Type, e.Weight)
	}
	return g
}

// EdgePairs returns [src, dst] pairs sorted lexicographically, the form
// persisted in index metadata
func (g *Graph) EdgePairs() [][2]string {
	pairs := make([][2]string, 0, len(g.edges))
	for _, e := range g.edges {
		pairs = append(pairs, [2]string{g.nodes[e.src].ID, g.nodes[e.dst].ID})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}
