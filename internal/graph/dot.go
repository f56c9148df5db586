package graph

import (
	"fmt"
	"strings"
)

// DOT renders the graph in Graphviz dot format, the text artifact
// attached to callgraph and slice retrieval responses. Output order
// follows the arena so identical graphs render identical text.
func (g *Graph) DOT(name string) string {
	var sb strings.Builder

	if name == "" {
		name = "g"
	}
	sb.WriteString(fmt.Sprintf("digraph %s {\n", sanitizeDOTName(name)))

	for _, n := range g.nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		if label != n.ID {
			sb.WriteString(fmt.Sprintf("  %s [label=%s];\n", quoteDOT(n.ID), quoteDOT(label)))
		} else {
			sb.WriteString(fmt.Sprintf("  %s;\n", quoteDOT(n.ID)))
		}
	}

	for _, e := range g.edges {
		src := g.nodes[e.src].ID
		dst := g.nodes[e.dst].ID

		var attrs []string
		if e.typ != "" {
			attrs = append(attrs, fmt.Sprintf("label=%s", quoteDOT(e.typ)))
		}
		if e.weight > 1 {
			attrs = append(attrs, fmt.Sprintf("weight=%d", e.weight))
		}

		if len(attrs) > 0 {
			sb.WriteString(fmt.Sprintf("  %s -> %s [%s];\n", quoteDOT(src), quoteDOT(dst), strings.Join(attrs, " ")))
		} else {
			sb.WriteString(fmt.Sprintf("  %s -> %s;\n", quoteDOT(src), quoteDOT(dst)))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func quoteDOT(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func sanitizeDOTName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "g"
	}
	return sb.String()
}
