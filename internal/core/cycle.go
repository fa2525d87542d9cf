package core

// cycleDetector tracks the active "is waiting on" graph for one build
// and reports a cycle the moment a new edge would close one.
//
// An edge (from, to) means "from's computation is waiting on to".
// Edges come from both Request and MustFollow (§4.4 of the spec
// resolves Open Question (a): MustFollow does participate).
//
// A fresh cycleDetector is created for each Build call; the graph
// never needs to be cleared mid-build, only discarded at the end.
type cycleDetector struct {
	edges map[Key][]Key
}

func newCycleDetector() *cycleDetector {
	return &cycleDetector{edges: make(map[Key][]Key)}
}

// addEdge records that from is now waiting on to. If doing so would
// close a cycle (to can already reach from), the edge is NOT recorded
// and the offending chain is returned, with from first in traversal
// order. Returns (nil, false) when no cycle is formed.
func (c *cycleDetector) addEdge(from, to Key) ([]Key, bool) {
	if from == to {
		return []Key{from, to}, true
	}
	if path := c.findPath(to, from); path != nil {
		chain := make([]Key, 0, len(path)+1)
		chain = append(chain, from)
		chain = append(chain, path...)
		return chain, true
	}
	c.edges[from] = append(c.edges[from], to)
	return nil, false
}

// findPath performs a DFS from start looking for target, returning the
// path (inclusive of both ends) if reachable.
func (c *cycleDetector) findPath(start, target Key) []Key {
	visited := make(map[Key]bool)
	var dfs func(Key) []Key
	dfs = func(cur Key) []Key {
		if cur == target {
			return []Key{cur}
		}
		if visited[cur] {
			return nil
		}
		visited[cur] = true
		for _, next := range c.edges[cur] {
			if p := dfs(next); p != nil {
				return append([]Key{cur}, p...)
			}
		}
		return nil
	}
	return dfs(start)
}
