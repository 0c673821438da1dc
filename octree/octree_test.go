package octree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates an empty leaf root", func(t *testing.T) {
		o := New[string](NewVector3(1, 2, 3), 16, 2)
		require.Equal(t, NewVector3(1, 2, 3), o.Cords())
		require.Equal(t, 16, o.Size())
		require.Equal(t, 2, o.MinSize())
		require.Zero(t, o.Count())
		require.True(t, o.root.isLeaf())
		require.Equal(t, Vector3{}, o.root.origin)
	})

	t.Run("clamps sizes", func(t *testing.T) {
		o := New[string](Vector3{}, 0, -4)
		require.Equal(t, 1, o.Size())
		require.Equal(t, 1, o.MinSize())
	})
}

func TestOctreeAdd(t *testing.T) {
	t.Run("stores a value", func(t *testing.T) {
		o := New[string](Vector3{}, 8, 1)
		require.Equal(t, Added, o.Add("stone", NewVector3(1, 2, 3)))
		require.Equal(t, 1, o.Count())
		require.True(t, o.Exists(NewVector3(1, 2, 3)))

		v, ok := o.Get(NewVector3(1, 2, 3))
		require.True(t, ok)
		require.Equal(t, "stone", v)
	})

	t.Run("rejects positions outside the region", func(t *testing.T) {
		o := New[string](Vector3{}, 8, 1)

		for _, p := range []Vector3{
			NewVector3(8, 0, 0),
			NewVector3(0, 8, 0),
			NewVector3(0, 0, 8),
			NewVector3(-1, 0, 0),
			NewVector3(0, -1, 0),
			NewVector3(0, 0, -1),
		} {
			require.Equal(t, OutOfBounds, o.Add("dirt", p))
			require.False(t, o.Exists(p))
		}
		require.Zero(t, o.Count())
	})

	t.Run("does not overwrite an existing value", func(t *testing.T) {
		o := New[string](Vector3{}, 8, 1)
		p := NewVector3(4, 4, 4)

		require.Equal(t, Added, o.Add("stone", p))
		require.Equal(t, AlreadyExists, o.Add("dirt", p))
		require.Equal(t, 1, o.Count())

		v, _ := o.Get(p)
		require.Equal(t, "stone", v)
	})

	t.Run("rejects duplicates stored in a child", func(t *testing.T) {
		o := New[int](Vector3{}, 8, 1)
		for z := 0; z < 8; z++ {
			o.Add(z, NewVector3(0, 0, z))
		}
		require.Equal(t, Added, o.Add(42, NewVector3(1, 0, 0)))
		require.False(t, o.root.isLeaf())

		require.Equal(t, AlreadyExists, o.Add(43, NewVector3(0, 0, 5)))
		require.Equal(t, 9, o.Count())

		v, _ := o.Get(NewVector3(0, 0, 5))
		require.Equal(t, 5, v)
	})
}

func TestOctreeSubdivision(t *testing.T) {
	o := New[int](Vector3{}, 8, 1)

	for z := 0; z < 8; z++ {
		require.Equal(t, Added, o.Add(z, NewVector3(0, 0, z)))
	}
	require.True(t, o.root.isLeaf())

	require.Equal(t, Added, o.Add(100, NewVector3(1, 0, 0)))
	require.Equal(t, 9, o.Count())
	require.False(t, o.root.isLeaf())
	require.Empty(t, o.root.entries)

	require.Len(t, o.root.children[LeftBottomBack].entries, 5)
	require.Len(t, o.root.children[LeftBottomFront].entries, 4)

	require.Equal(t, []Entry[int]{
		{Position: NewVector3(0, 0, 0), Value: 0},
		{Position: NewVector3(0, 0, 1), Value: 1},
		{Position: NewVector3(0, 0, 2), Value: 2},
		{Position: NewVector3(0, 0, 3), Value: 3},
		{Position: NewVector3(1, 0, 0), Value: 100},
		{Position: NewVector3(0, 0, 4), Value: 4},
		{Position: NewVector3(0, 0, 5), Value: 5},
		{Position: NewVector3(0, 0, 6), Value: 6},
		{Position: NewVector3(0, 0, 7), Value: 7},
	}, o.GetAllWithCords())
}

func TestOctreeMerge(t *testing.T) {
	t.Run("merges back into a leaf", func(t *testing.T) {
		o := New[int](Vector3{}, 8, 1)
		for z := 0; z < 8; z++ {
			o.Add(z, NewVector3(0, 0, z))
		}
		o.Add(100, NewVector3(1, 0, 0))
		require.False(t, o.root.isLeaf())

		require.True(t, o.RemoveAt(NewVector3(1, 0, 0)))
		require.True(t, o.root.isLeaf())
		require.Len(t, o.root.entries, 8)
		require.Equal(t, 8, o.Count())

		for z := 0; z < 8; z++ {
			v, ok := o.Get(NewVector3(0, 0, z))
			require.True(t, ok)
			require.Equal(t, z, v)
		}
	})

	t.Run("does not merge when a child has children", func(t *testing.T) {
		o := New[int](Vector3{}, 8, 1)
		fillCube(o, 2)
		o.Add(100, NewVector3(2, 0, 0))
		o.Add(101, NewVector3(3, 0, 0))

		child := o.root.children[LeftBottomBack]
		require.False(t, o.root.isLeaf())
		require.False(t, child.isLeaf())

		require.True(t, o.RemoveAt(NewVector3(3, 0, 0)))
		require.False(t, o.root.isLeaf())
		require.False(t, child.isLeaf())
		require.Equal(t, 9, o.Count())
	})

	t.Run("merges level by level", func(t *testing.T) {
		o := New[int](Vector3{}, 8, 1)
		fillCube(o, 2)
		o.Add(100, NewVector3(2, 0, 0))
		require.False(t, o.root.children[LeftBottomBack].isLeaf())

		require.True(t, o.RemoveAt(NewVector3(2, 0, 0)))
		require.True(t, o.root.isLeaf())
		require.Len(t, o.GetAllWithCords(), 8)
	})
}

func TestOctreeMinSize(t *testing.T) {
	o := New[int](Vector3{}, 4, 4)

	var added int
	for x := 0; x < 4 && added < 20; x++ {
		for y := 0; y < 4 && added < 20; y++ {
			for z := 0; z < 4 && added < 20; z++ {
				require.Equal(t, Added, o.Add(added, NewVector3(x, y, z)))
				added++
			}
		}
	}

	require.Equal(t, 20, o.Count())
	require.True(t, o.root.isLeaf())
	require.Len(t, o.root.entries, 20)
	require.Equal(t, 1, o.NodeCount())

	for _, e := range o.GetAllWithCords() {
		require.True(t, o.Exists(e.Position))
	}
}

func TestOctreeSizesNotPowerOfTwo(t *testing.T) {
	tests := []struct {
		size    int
		minSize int
	}{
		{size: 3, minSize: 1},
		{size: 5, minSize: 1},
		{size: 6, minSize: 1},
		{size: 10, minSize: 1},
		{size: 12, minSize: 1},
		{size: 10, minSize: 3},
		{size: 12, minSize: 5},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("size %d min size %d", test.size, test.minSize), func(t *testing.T) {
			o := New[int](Vector3{}, test.size, test.minSize)
			fillCube(o, test.size)

			volume := test.size * test.size * test.size
			require.Equal(t, volume, o.Count())
			require.Len(t, o.GetAllWithCords(), o.Count())
			require.Equal(t, OutOfBounds, o.Add(-1, NewVector3(test.size, 0, 0)))

			var i int
			for x := 0; x < test.size; x++ {
				for y := 0; y < test.size; y++ {
					for z := 0; z < test.size; z++ {
						v, ok := o.Get(NewVector3(x, y, z))
						require.True(t, ok)
						require.Equal(t, i, v)
						i++
					}
				}
			}

			covered := 0
			o.Walk(func(n NodeInfo) {
				if n.Leaf {
					covered += n.Size.X * n.Size.Y * n.Size.Z
				}
			})
			require.Equal(t, volume, covered)

			for _, e := range o.GetAllWithCords() {
				require.True(t, o.RemoveAt(e.Position))
			}
			require.Zero(t, o.Count())
			require.Empty(t, o.GetAllWithCords())
			require.Equal(t, 1, o.NodeCount())
		})
	}
}

func TestOctreeRemoveAt(t *testing.T) {
	t.Run("removes once", func(t *testing.T) {
		o := New[string](Vector3{}, 8, 1)
		p := NewVector3(7, 7, 7)
		o.Add("stone", p)

		require.True(t, o.RemoveAt(p))
		require.False(t, o.RemoveAt(p))
		require.Zero(t, o.Count())
		require.False(t, o.Exists(p))
	})

	t.Run("ignores positions outside the region", func(t *testing.T) {
		o := New[string](Vector3{}, 8, 1)
		require.False(t, o.RemoveAt(NewVector3(-1, 0, 0)))
		require.Zero(t, o.Count())
	})
}

func TestOctreeTake(t *testing.T) {
	o := New[string](Vector3{}, 8, 1)
	p := NewVector3(3, 1, 4)
	o.Add("gold", p)

	v, ok := o.Take(p)
	require.True(t, ok)
	require.Equal(t, "gold", v)
	require.Zero(t, o.Count())

	_, ok = o.Take(p)
	require.False(t, ok)
}

func TestOctreeRandomOperations(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	o := New[int](Vector3{}, 16, 1)
	expected := make(map[Vector3]int)

	randomPosition := func() Vector3 {
		return NewVector3(rnd.Intn(18)-1, rnd.Intn(18)-1, rnd.Intn(18)-1)
	}

	for i := 0; i < 5000; i++ {
		p := randomPosition()

		if rnd.Intn(3) == 0 {
			_, exists := expected[p]
			require.Equal(t, exists, o.RemoveAt(p))
			delete(expected, p)
		} else {
			res := o.Add(i, p)
			_, exists := expected[p]

			switch {
			case !o.root.isInside(p):
				require.Equal(t, OutOfBounds, res)
			case exists:
				require.Equal(t, AlreadyExists, res)
			default:
				require.Equal(t, Added, res)
				expected[p] = i
			}
		}

		require.Equal(t, len(expected), o.Count())
	}

	entries := o.GetAllWithCords()
	require.Len(t, entries, len(expected))
	for _, e := range entries {
		require.Equal(t, expected[e.Position], e.Value)
	}

	for p, v := range expected {
		got, ok := o.Get(p)
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func TestOctreeWalk(t *testing.T) {
	o := New[int](NewVector3(5, 0, 5), 8, 1)
	for z := 0; z < 8; z++ {
		o.Add(z, NewVector3(0, 0, z))
	}
	o.Add(8, NewVector3(7, 7, 7))

	nodes := o.Nodes()
	require.Len(t, nodes, 9)
	require.Equal(t, 9, o.NodeCount())

	root := nodes[0]
	require.Equal(t, Vector3{}, root.Origin)
	require.Equal(t, NewVector3(8, 8, 8), root.Size)
	require.Zero(t, root.Depth)
	require.False(t, root.Leaf)
	require.Empty(t, root.Positions)

	last := nodes[8]
	require.Equal(t, NewVector3(4, 4, 4), last.Origin)
	require.Equal(t, NewVector3(4, 4, 4), last.Size)
	require.Equal(t, 1, last.Depth)
	require.True(t, last.Leaf)
	require.Equal(t, []Vector3{NewVector3(7, 7, 7)}, last.Positions)

	var positions int
	for _, n := range nodes {
		positions += len(n.Positions)
	}
	require.Equal(t, o.Count(), positions)
}

func TestAddResultString(t *testing.T) {
	require.Equal(t, "added", Added.String())
	require.Equal(t, "out_of_bounds", OutOfBounds.String())
	require.Equal(t, "already_exists", AlreadyExists.String())
	require.Equal(t, "unknown", AddResult(42).String())
	require.True(t, Added.Ok())
	require.False(t, AlreadyExists.Ok())
}

func fillCube(o *Octree[int], size int) {
	var i int
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				o.Add(i, NewVector3(x, y, z))
				i++
			}
		}
	}
}
