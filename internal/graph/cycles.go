package graph

const (
	// maxCycles caps the number of reported cycles per graph
	maxCycles = 100
	// maxCycleLen caps the length of any reported cycle
	maxCycleLen = 20
)

// SimpleCycles enumerates simple cycles for reporting. Each cycle is a
// node-id sequence starting at its smallest arena index, so every cycle
// appears exactly once. Enumeration stops at maxCycles and ignores
// cycles longer than maxCycleLen; import graphs past those bounds are a
// structural problem the first hundred cycles already demonstrate.
func (g *Graph) SimpleCycles() [][]string {
	var cycles [][]string

	n := len(g.nodes)
	onPath := make([]bool, n)
	path := make([]int, 0, maxCycleLen)

	var dfs func(root, cur int) bool
	dfs = func(root, cur int) bool {
		if len(cycles) >= maxCycles {
			return false
		}
		if len(path) >= maxCycleLen {
			return true
		}

		path = append(path, cur)
		onPath[cur] = true

		for _, ei := range g.out[cur] {
			next := g.edges[ei].dst
			if next == root {
				cycle := make([]string, len(path))
				for i, idx := range path {
					cycle[i] = g.nodes[idx].ID
				}
				cycles = append(cycles, cycle)
				if len(cycles) >= maxCycles {
					break
				}
				continue
			}
			// Only visit nodes above the root so each cycle is rooted
			// at its minimal index
			if next > root && !onPath[next] {
				if !dfs(root, next) {
					break
				}
			}
		}

		onPath[cur] = false
		path = path[:len(path)-1]
		return len(cycles) < maxCycles
	}

	for root := 0; root < n; root++ {
		if !dfs(root, root) {
			break
		}
	}

	return cycles
}
