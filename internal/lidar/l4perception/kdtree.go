package l4perception

import (
	"sort"

	"github.com/golang/geo/r3"
)

// kdDims is the dimensionality of the tree. The splitting axis at depth d is d % kdDims.
const kdDims = 3

// kdNode is a single inserted point. Each node owns exactly its subtree.
type kdNode struct {
	point r3.Vector
	index int
	axis  int
	left  *kdNode
	right *kdNode
}

// KDTree is a 3-D k-d tree over the points of one frame. It is write-once,
// read-many: points are inserted during construction, then queried with
// Search. The tree performs no rebalancing, so its shape depends on
// insertion order (see BuildBalancedKDTree for a median-split build).
type KDTree struct {
	root *kdNode
	size int
}

// NewKDTree returns an empty tree.
func NewKDTree() *KDTree {
	return &KDTree{}
}

// BuildKDTree inserts every point in index order.
func BuildKDTree(points []WorldPoint) *KDTree {
	t := NewKDTree()
	for i, p := range points {
		t.Insert(p.Vector(), i)
	}
	return t
}

// Len returns the number of inserted points.
func (t *KDTree) Len() int { return t.size }

// axisValue returns the coordinate of v along axis 0 (X), 1 (Y) or 2 (Z).
func axisValue(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Insert places p with its external index. At each node the coordinate on the
// node's axis is compared: strictly less descends left, otherwise right.
// Inserting the same index twice is not guarded.
func (t *KDTree) Insert(p r3.Vector, index int) {
	t.size++
	if t.root == nil {
		t.root = &kdNode{point: p, index: index, axis: 0}
		return
	}

	node := t.root
	for {
		if axisValue(p, node.axis) < axisValue(node.point, node.axis) {
			if node.left == nil {
				node.left = &kdNode{point: p, index: index, axis: (node.axis + 1) % kdDims}
				return
			}
			node = node.left
		} else {
			if node.right == nil {
				node.right = &kdNode{point: p, index: index, axis: (node.axis + 1) % kdDims}
				return
			}
			node = node.right
		}
	}
}

// Search returns the index of every stored point whose Euclidean distance to
// q is at most radius. Result order is unspecified.
//
// The descent always visits the child on q's side of the splitting plane and
// visits the far child only when q lies within radius of that plane.
func (t *KDTree) Search(q r3.Vector, radius float64) []int {
	var result []int
	if t.root == nil {
		return result
	}

	r2 := radius * radius
	stack := []*kdNode{t.root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if q.Sub(node.point).Norm2() <= r2 {
			result = append(result, node.index)
		}

		diff := axisValue(q, node.axis) - axisValue(node.point, node.axis)
		near, far := node.right, node.left
		if diff < 0 {
			near, far = node.left, node.right
			diff = -diff
		}

		// Far child first so the near child is popped next.
		if far != nil && diff <= radius {
			stack = append(stack, far)
		}
		if near != nil {
			stack = append(stack, near)
		}
	}
	return result
}

// Depth returns the number of nodes on the longest root-to-leaf path.
func (t *KDTree) Depth() int {
	if t.root == nil {
		return 0
	}
	type item struct {
		node  *kdNode
		depth int
	}
	maxDepth := 0
	stack := []item{{t.root, 1}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.depth > maxDepth {
			maxDepth = it.depth
		}
		if it.node.left != nil {
			stack = append(stack, item{it.node.left, it.depth + 1})
		}
		if it.node.right != nil {
			stack = append(stack, item{it.node.right, it.depth + 1})
		}
	}
	return maxDepth
}

// BuildBalancedKDTree builds a median-split tree. Each subtree's median on the
// depth's axis is inserted before its halves, and the median is chosen so that
// every point left of it is strictly less, so Insert reproduces the split
// exactly and the Search contract is unchanged. Depth is O(log n) for
// inputs without heavy coordinate ties.
func BuildBalancedKDTree(points []WorldPoint) *KDTree {
	t := NewKDTree()
	if len(points) == 0 {
		return t
	}

	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}

	type span struct {
		idx   []int
		depth int
	}
	stack := []span{{order, 0}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(s.idx) == 0 {
			continue
		}

		axis := s.depth % kdDims
		sort.SliceStable(s.idx, func(a, b int) bool {
			return axisValue(points[s.idx[a]].Vector(), axis) < axisValue(points[s.idx[b]].Vector(), axis)
		})

		mid := len(s.idx) / 2
		midVal := axisValue(points[s.idx[mid]].Vector(), axis)
		for mid > 0 && axisValue(points[s.idx[mid-1]].Vector(), axis) == midVal {
			mid--
		}

		t.Insert(points[s.idx[mid]].Vector(), s.idx[mid])
		stack = append(stack,
			span{s.idx[mid+1:], s.depth + 1},
			span{s.idx[:mid], s.depth + 1},
		)
	}
	return t
}
