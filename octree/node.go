package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// MaxEntriesPerNode is the number of entries a leaf holds before it is
// subdivided. Leaves that can no longer be halved without going under the
// minimum size keep growing past it.
const MaxEntriesPerNode = 8

// ErrTypeInvariantViolation is the type of the errors the octree panics with
// when its internal structure is inconsistent.
const ErrTypeInvariantViolation = "octree_invariant_violation"

// Octant indexes. Bit 2 is x, bit 1 is y and bit 0 is z. A set bit means the
// upper half of the axis.
const (
	LeftBottomBack   = 0b000
	LeftBottomFront  = 0b001
	LeftUpperBack    = 0b010
	LeftUpperFront   = 0b011
	RightBottomBack  = 0b100
	RightBottomFront = 0b101
	RightUpperBack   = 0b110
	RightUpperFront  = 0b111
)

// Entry is a value stored at a position.
type Entry[T any] struct {
	Position Vector3
	Value    T
}

// NodeInfo describes the geometry of a node and the positions it directly
// holds. Size is the edge length along each axis. Nodes of a region whose
// size is not a power of two are boxes rather than cubes.
type NodeInfo struct {
	Origin    Vector3   `json:"origin"`
	Size      Vector3   `json:"size"`
	Depth     int       `json:"depth"`
	Leaf      bool      `json:"leaf"`
	Positions []Vector3 `json:"positions,omitempty"`
}

type node[T any] struct {
	origin  Vector3
	size    Vector3
	minSize int

	entries  []Entry[T]
	children *[8]*node[T]
}

func newNode[T any](origin, size Vector3, minSize int) *node[T] {
	return &node[T]{
		origin:  origin,
		size:    size,
		minSize: minSize,
		entries: make([]Entry[T], 0, MaxEntriesPerNode),
	}
}

func (n *node[T]) isLeaf() bool {
	return n.children == nil
}

func (n *node[T]) isInside(p Vector3) bool {
	return p.X >= n.origin.X && p.X < n.origin.X+n.size.X &&
		p.Y >= n.origin.Y && p.Y < n.origin.Y+n.size.Y &&
		p.Z >= n.origin.Z && p.Z < n.origin.Z+n.size.Z
}

// half returns the edge lengths of the lower octants. Upper octants take the
// remainder so that the children cover the node exactly.
func (n *node[T]) half() Vector3 {
	return Vector3{n.size.X / 2, n.size.Y / 2, n.size.Z / 2}
}

func (n *node[T]) subNodeIndex(p Vector3) int {
	center := n.origin.Add(n.half())

	var i int
	if p.X >= center.X {
		i |= 0b100
	}
	if p.Y >= center.Y {
		i |= 0b010
	}
	if p.Z >= center.Z {
		i |= 0b001
	}
	return i
}

// canSubdivide reports whether the smallest edge can be halved without going
// under the minimum size.
func (n *node[T]) canSubdivide() bool {
	half := n.half()
	return min(half.X, half.Y, half.Z) >= n.minSize
}

func (n *node[T]) subdivide() {
	half := n.half()
	upper := Vector3{n.size.X - half.X, n.size.Y - half.Y, n.size.Z - half.Z}

	var children [8]*node[T]
	for i := range children {
		origin := n.origin
		size := half
		if i&0b100 != 0 {
			origin.X += half.X
			size.X = upper.X
		}
		if i&0b010 != 0 {
			origin.Y += half.Y
			size.Y = upper.Y
		}
		if i&0b001 != 0 {
			origin.Z += half.Z
			size.Z = upper.Z
		}
		children[i] = newNode[T](origin, size, n.minSize)
	}

	// Placement is checked before the node changes so that a violation
	// leaves the node as it was.
	for _, e := range n.entries {
		if !children[n.subNodeIndex(e.Position)].isInside(e.Position) {
			panic(errors.New("redistributing entry after subdivision failed").
				WithType(ErrTypeInvariantViolation).
				WithTag("position", e.Position).
				WithTag("origin", n.origin).
				WithTag("size", n.size))
		}
	}

	for _, e := range n.entries {
		c := children[n.subNodeIndex(e.Position)]
		c.entries = append(c.entries, e)
	}
	n.entries = nil
	n.children = &children

	instrumentSubdivide()
}

func (n *node[T]) add(v T, p Vector3) AddResult {
	if !n.isInside(p) {
		return OutOfBounds
	}

	if n.isLeaf() {
		for _, e := range n.entries {
			if e.Position == p {
				return AlreadyExists
			}
		}

		if len(n.entries) < MaxEntriesPerNode || !n.canSubdivide() {
			n.entries = append(n.entries, Entry[T]{Position: p, Value: v})
			return Added
		}

		n.subdivide()
	}

	res := n.children[n.subNodeIndex(p)].add(v, p)
	if res == OutOfBounds {
		panic(errors.New("child rejected a position inside its parent").
			WithType(ErrTypeInvariantViolation).
			WithTag("position", p).
			WithTag("origin", n.origin).
			WithTag("size", n.size))
	}
	return res
}

func (n *node[T]) get(p Vector3) (T, bool) {
	if !n.isInside(p) {
		var zero T
		return zero, false
	}

	for _, e := range n.entries {
		if e.Position == p {
			return e.Value, true
		}
	}

	if !n.isLeaf() {
		return n.children[n.subNodeIndex(p)].get(p)
	}

	var zero T
	return zero, false
}

func (n *node[T]) exists(p Vector3) bool {
	if !n.isInside(p) {
		return false
	}

	for _, e := range n.entries {
		if e.Position == p {
			return true
		}
	}

	if !n.isLeaf() {
		return n.children[n.subNodeIndex(p)].exists(p)
	}
	return false
}

func (n *node[T]) getAll(acc []Entry[T]) []Entry[T] {
	acc = append(acc, n.entries...)

	if !n.isLeaf() {
		for _, c := range n.children {
			acc = c.getAll(acc)
		}
	}
	return acc
}

// remove deletes the entry at p and merges the node back into a leaf when
// its children became sparse enough.
func (n *node[T]) remove(p Vector3) (T, bool) {
	var (
		v       T
		removed bool
	)

	if !n.isInside(p) {
		return v, false
	}

	for i, e := range n.entries {
		if e.Position == p {
			v = e.Value
			removed = true
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			break
		}
	}

	if !removed && !n.isLeaf() {
		v, removed = n.children[n.subNodeIndex(p)].remove(p)
	}

	if removed && !n.isLeaf() && n.shouldMerge() {
		n.merge()
	}
	return v, removed
}

// shouldMerge reports whether all the children are leaves and hold, with the
// node own entries, no more than MaxEntriesPerNode entries.
func (n *node[T]) shouldMerge() bool {
	total := len(n.entries)

	for _, c := range n.children {
		if !c.isLeaf() {
			return false
		}
		total += len(c.entries)
	}
	return total <= MaxEntriesPerNode
}

func (n *node[T]) merge() {
	for _, c := range n.children {
		n.entries = append(n.entries, c.entries...)
	}
	n.children = nil

	instrumentMerge()
}

func (n *node[T]) walk(depth int, fn func(NodeInfo)) {
	info := NodeInfo{
		Origin: n.origin,
		Size:   n.size,
		Depth:  depth,
		Leaf:   n.isLeaf(),
	}
	if len(n.entries) != 0 {
		info.Positions = make([]Vector3, len(n.entries))
		for i, e := range n.entries {
			info.Positions[i] = e.Position
		}
	}
	fn(info)

	if !n.isLeaf() {
		for _, c := range n.children {
			c.walk(depth+1, fn)
		}
	}
}
