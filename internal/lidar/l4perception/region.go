package l4perception

import "sort"

// OverflowPolicy decides what happens to a cluster's pending neighbours once
// the cluster reaches its maximum size.
type OverflowPolicy int

const (
	// OverflowFragment leaves pending neighbours unvisited. They remain
	// available as seeds, so an oversized component is split into several
	// adjacent clusters over the extraction pass.
	OverflowFragment OverflowPolicy = iota
	// OverflowTruncate marks pending neighbours visited without adding them
	// to any cluster, permanently dropping the overflow.
	OverflowTruncate
)

// String returns the config name of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowTruncate:
		return "truncate"
	default:
		return "fragment"
	}
}

// ParseOverflowPolicy maps a config name to a policy. Unknown names report false.
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "", "fragment":
		return OverflowFragment, true
	case "truncate":
		return OverflowTruncate, true
	}
	return OverflowFragment, false
}

// VisitedSet records which point indices have been claimed during one
// extraction. Entries are only ever set.
type VisitedSet []bool

// NewVisitedSet returns an empty set for n points.
func NewVisitedSet(n int) VisitedSet {
	return make(VisitedSet, n)
}

// growFrame is one level of the depth-first traversal: the neighbours of a
// point and the position of the next one to examine.
type growFrame struct {
	neighbours []int
	next       int
}

// Grow returns the points transitively connected to seed through chains of
// radius-proximity, stopping once the cluster holds maxSize points.
//
// Traversal is depth-first over each point's neighbours in ascending index
// order, so membership under a binding maxSize does not depend on how the
// tree was built. An explicit work-list keeps component size from bounding
// the goroutine stack. The size check sits between seeing an unvisited
// neighbour and descending into it.
func Grow(seed int, points []WorldPoint, tree *KDTree, radius float64,
	visited VisitedSet, maxSize int, policy OverflowPolicy) Cluster {

	n := len(points)
	var cluster Cluster
	var stack []growFrame

	visit := func(idx int) {
		cluster = append(cluster, idx)
		visited[idx] = true
		neighbours := tree.Search(points[idx].Vector(), radius)
		sort.Ints(neighbours)
		stack = append(stack, growFrame{neighbours: neighbours})
	}

	visit(seed)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.neighbours) {
			stack = stack[:len(stack)-1]
			continue
		}

		idx := top.neighbours[top.next]
		top.next++
		if idx < 0 || idx >= n {
			panic(&IndexIntegrityError{Index: idx, N: n})
		}
		if visited[idx] {
			continue
		}
		if len(cluster) >= maxSize {
			if policy == OverflowTruncate {
				top.next--
				dropPending(stack, visited, n)
			}
			break
		}
		visit(idx)
	}

	return cluster
}

// dropPending marks every neighbour still waiting on the work-list as visited.
func dropPending(stack []growFrame, visited VisitedSet, n int) {
	for _, f := range stack {
		for _, idx := range f.neighbours[f.next:] {
			if idx < 0 || idx >= n {
				panic(&IndexIntegrityError{Index: idx, N: n})
			}
			visited[idx] = true
		}
	}
}
