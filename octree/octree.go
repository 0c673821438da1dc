// Package octree implements a sparse store that maps discrete 3D coordinates
// to values. Space is recursively split into octants only where the number
// of stored values requires it, and octants are merged back once they become
// sparse again.
//
// An Octree is not safe for concurrent use.
package octree

// AddResult is the outcome of an insertion.
type AddResult int

const (
	// The value has been stored.
	Added AddResult = iota

	// The position is outside the region covered by the octree.
	OutOfBounds

	// A value is already stored at the position. The stored value is left
	// untouched.
	AlreadyExists
)

// Ok reports whether the value has been stored.
func (r AddResult) Ok() bool {
	return r == Added
}

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case OutOfBounds:
		return "out_of_bounds"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Octree is a sparse store of values indexed by position. It covers the
// cubic region [0, size) on every axis.
type Octree[T any] struct {
	cords Vector3
	root  *node[T]
	count int
}

// New creates an octree that covers a cube of the given size. Nodes are not
// subdivided into children smaller than minSize. Sizes lower than 1 are
// set to 1. Any size is accepted: when an edge is odd, the upper octants
// along that axis are one longer than the lower ones.
//
// cords is not used to store values. It locates the octree among others,
// for example the coordinates of the region it represents.
func New[T any](cords Vector3, size, minSize int) *Octree[T] {
	if size < 1 {
		size = 1
	}
	if minSize < 1 {
		minSize = 1
	}

	return &Octree[T]{
		cords: cords,
		root:  newNode[T](Vector3{}, NewVector3(size, size, size), minSize),
	}
}

// Cords returns the coordinates given at creation.
func (o *Octree[T]) Cords() Vector3 {
	return o.cords
}

func (o *Octree[T]) Size() int {
	return o.root.size.X
}

func (o *Octree[T]) MinSize() int {
	return o.root.minSize
}

// Count returns the number of stored values.
func (o *Octree[T]) Count() int {
	return o.count
}

// Add stores v at p. Nothing is stored when p is outside the octree or
// already holds a value.
func (o *Octree[T]) Add(v T, p Vector3) AddResult {
	res := o.root.add(v, p)
	if res == Added {
		o.count++
	}
	return res
}

// Get returns the value stored at p.
func (o *Octree[T]) Get(p Vector3) (T, bool) {
	return o.root.get(p)
}

// Exists reports whether a value is stored at p.
func (o *Octree[T]) Exists(p Vector3) bool {
	return o.root.exists(p)
}

// GetAllWithCords returns a snapshot of all the stored values with their
// position. Values held by a node come before the ones of its children, and
// children are visited in octant index order.
func (o *Octree[T]) GetAllWithCords() []Entry[T] {
	return o.root.getAll(make([]Entry[T], 0, o.count))
}

// RemoveAt removes the value stored at p and reports whether there was one.
func (o *Octree[T]) RemoveAt(p Vector3) bool {
	_, removed := o.Take(p)
	return removed
}

// Take removes the value stored at p and returns it.
func (o *Octree[T]) Take(p Vector3) (T, bool) {
	v, removed := o.root.remove(p)
	if removed {
		o.count--
	}
	return v, removed
}

// Walk calls fn for every node, parents before children.
func (o *Octree[T]) Walk(fn func(NodeInfo)) {
	o.root.walk(0, fn)
}

// Nodes returns the geometry of every node in Walk order.
func (o *Octree[T]) Nodes() []NodeInfo {
	var nodes []NodeInfo
	o.Walk(func(n NodeInfo) {
		nodes = append(nodes, n)
	})
	return nodes
}

// NodeCount returns the number of nodes, root included.
func (o *Octree[T]) NodeCount() int {
	var c int
	o.Walk(func(NodeInfo) {
		c++
	})
	return c
}
