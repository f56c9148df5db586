package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeIdempotent(t *testing.T) {
	g := New()

	g.AddNode(Node{ID: "src/app.py", Type: "file"})
	g.AddNode(Node{ID: "src/app.py", Label: "src/app.py", Type: "file"})

	assert.Equal(t, 1, g.NodeCount())

	n, ok := g.Node("src/app.py")
	require.True(t, ok)
	assert.Equal(t, "src/app.py", n.Label, "re-adding should fill the missing label")
}

func TestAddEdgeCreatesEndpoints(t *testing.T) {
	g := New()

	g.AddEdge("a.py", "b.py", "imports", 1)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.True(t, g.HasNode("a.py"))
	assert.True(t, g.HasNode("b.py"))
}

func TestNeighborsDeduplicated(t *testing.T) {
	g := New()

	g.AddEdge("a", "b", "calls", 1)
	g.AddEdge("a", "b", "calls", 1)
	g.AddEdge("a", "c", "calls", 1)
	g.AddEdge("d", "a", "calls", 1)

	assert.Equal(t, []string{"b", "c"}, g.OutNeighbors("a"))
	assert.Equal(t, []string{"a"}, g.InNeighbors("b"))
	assert.Equal(t, 3, g.Degree("a"), "degree counts distinct neighbors")
}

func TestSliceForward(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "imports", 1)
	g.AddEdge("b", "c", "imports", 1)
	g.AddEdge("c", "d", "imports", 1)

	sub := g.Slice("a", 2, false)

	assert.True(t, sub.HasNode("a"))
	assert.True(t, sub.HasNode("b"))
	assert.True(t, sub.HasNode("c"))
	assert.False(t, sub.HasNode("d"), "d is three hops away")
	assert.Equal(t, 2, sub.EdgeCount())
}

func TestSliceReverse(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "imports", 1)
	g.AddEdge("b", "c", "imports", 1)

	sub := g.Slice("c", 1, true)

	assert.True(t, sub.HasNode("c"))
	assert.True(t, sub.HasNode("b"))
	assert.False(t, sub.HasNode("a"))

	edges := sub.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "b", edges[0].Source, "reverse slice keeps original edge direction")
	assert.Equal(t, "c", edges[0].Target)
}

func TestSliceTerminatesOnCycle(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "imports", 1)
	g.AddEdge("b", "a", "imports", 1)

	sub := g.Slice("a", 10, false)

	assert.Equal(t, 2, sub.NodeCount())
}

func TestSliceUnknownStart(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "imports", 1)

	sub := g.Slice("missing", 3, false)

	assert.True(t, sub.Empty())
}

func TestMergeIncrementsExistingEdgeWeight(t *testing.T) {
	g := New()
	g.AddEdge("f", "g", "calls", 2)

	trace := New()
	trace.AddEdge("f", "g", "calls", 3)
	trace.AddEdge("g", "h", "calls", 1)

	g.Merge(trace)

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())

	for _, e := range g.Edges() {
		if e.Source == "f" && e.Target == "g" {
			assert.Equal(t, 5, e.Weight)
		}
	}
}

func TestNeighborhoodUnionsSeeds(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "calls", 1)
	g.AddEdge("x", "y", "calls", 1)
	g.AddEdge("y", "z", "calls", 1)

	sub := g.Neighborhood([]string{"a", "x"}, 1)

	assert.True(t, sub.HasNode("a"))
	assert.True(t, sub.HasNode("b"))
	assert.True(t, sub.HasNode("x"))
	assert.True(t, sub.HasNode("y"))
	assert.False(t, sub.HasNode("z"))
}

func TestJSONRoundTrip(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a", Label: "main", Type: "function"})
	g.AddEdge("a", "b", "calls", 4)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	decoded := New()
	require.NoError(t, json.Unmarshal(data, decoded))

	assert.Equal(t, 2, decoded.NodeCount())
	require.Len(t, decoded.Edges(), 1)
	assert.Equal(t, 4, decoded.Edges()[0].Weight)

	n, ok := decoded.Node("a")
	require.True(t, ok)
	assert.Equal(t, "main", n.Label)
	assert.Equal(t, "function", n.Type)
}

func TestMarshalEmptyGraph(t *testing.T) {
	data, err := json.Marshal(New())
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(data))
}

func TestFromWire(t *testing.T) {
	g := FromWire(
		[]Node{{ID: "a"}, {ID: "b"}},
		[]Edge{{Source: "a", Target: "b", Type: "imports", Weight: 1}},
	)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
}

func TestEdgePairsSorted(t *testing.T) {
	g := New()
	g.AddEdge("c", "a", "imports", 1)
	g.AddEdge("a", "b", "imports", 1)
	g.AddEdge("a", "a2", "imports", 1)

	pairs := g.EdgePairs()

	assert.Equal(t, [][2]string{{"a", "a2"}, {"a", "b"}, {"c", "a"}}, pairs)
}

func TestDOTOutput(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a", Label: "handler"})
	g.AddEdge("a", "b", "calls", 3)

	dot := g.DOT("call graph")

	assert.Contains(t, dot, "digraph call_graph {")
	assert.Contains(t, dot, `"a" [label="handler"];`)
	assert.Contains(t, dot, `"a" -> "b" [label="calls" weight=3];`)
}
