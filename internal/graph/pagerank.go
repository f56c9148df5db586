package graph

const (
	pagerankDamping   = 0.85
	pagerankMaxIter   = 100
	pagerankTolerance = 1e-6
)

// Centrality scores every node in [0,1]. PageRank is the primary
// measure; when it cannot run (empty graph or no convergence) the
// fallback is degree centrality. The returned map is max-normalized so
// the most central node scores 1.
func (g *Graph) Centrality() map[string]float64 {
	if g.Empty() {
		return map[string]float64{}
	}

	scores, ok := g.pageRank()
	if !ok {
		scores = g.DegreeCentrality()
	}
	return scores
}

// pageRank runs the standard power iteration with damping 0.85.
// Dangling mass is redistributed uniformly. Scores are max-normalized.
func (g *Graph) pageRank() (map[string]float64, bool) {
	n := len(g.nodes)
	if n == 0 {
		return nil, false
	}

	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	// Distinct out-neighbor lists, so parallel edges do not skew mass
	outNbrs := make([][]int, n)
	for i := range g.nodes {
		seen := make(map[int]bool)
		for _, ei := range g.out[i] {
			d := g.edges[ei].dst
			if !seen[d] {
				seen[d] = true
				outNbrs[i] = append(outNbrs[i], d)
			}
		}
	}

	converged := false
	for iter := 0; iter < pagerankMaxIter; iter++ {
		base := (1.0 - pagerankDamping) / float64(n)

		dangling := 0.0
		for i := range next {
			next[i] = base
		}
		for i := range rank {
			if len(outNbrs[i]) == 0 {
				dangling += rank[i]
				continue
			}
			share := pagerankDamping * rank[i] / float64(len(outNbrs[i]))
			for _, d := range outNbrs[i] {
				next[d] += share
			}
		}

		danglingShare := pagerankDamping * dangling / float64(n)
		diff := 0.0
		for i := range next {
			next[i] += danglingShare
			if d := next[i] - rank[i]; d >= 0 {
				diff += d
			} else {
				diff -= d
			}
		}

		rank, next = next, rank

		if diff < pagerankTolerance {
			converged = true
			break
		}
	}

	if !converged {
		return nil, false
	}

	// Max-normalize into [0,1]
	max := 0.0
	for _, r := range rank {
		if r > max {
			max = r
		}
	}

	scores := make(map[string]float64, n)
	for i, node := range g.nodes {
		if max > 0 {
			scores[node.ID] = rank[i] / max
		} else {
			scores[node.ID] = 0
		}
	}
	return scores, true
}

// DegreeCentrality scores each node as degree / (n-1). A graph with a
// single node scores it 1.
func (g *Graph) DegreeCentrality() map[string]float64 {
	n := len(g.nodes)
	scores := make(map[string]float64, n)

	if n <= 1 {
		for _, node := range g.nodes {
			scores[node.ID] = 1
		}
		return scores
	}

	denom := float64(n - 1)
	for _, node := range g.nodes {
		scores[node.ID] = float64(g.Degree(node.ID)) / denom
	}
	return scores
}
