package octree

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/voxeltree/logging"
)

func newTestContext(t *testing.T, levels int) *Context {
	t.Helper()
	ctx, err := NewContext(Config{MaxNumLevels: levels, Scale: 1})
	test.That(t, err, test.ShouldBeNil)
	return ctx
}

func newTestStore(t *testing.T, levels int, opts ...StoreOption) *Store {
	t.Helper()
	s, err := NewStore(newTestContext(t, levels), logging.NewTestLogger(t), opts...)
	test.That(t, err, test.ShouldBeNil)
	return s
}

func TestCreateLoc(t *testing.T) {
	ctx := newTestContext(t, 5)

	t.Run("quantizes to leaf units", func(t *testing.T) {
		loc, err := ctx.CreateLoc(0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, loc, test.ShouldEqual, NodeLoc(0))

		loc, err = ctx.CreateLoc(0.3)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, loc, test.ShouldEqual, NodeLoc(4))

		loc, err = ctx.CreateLoc(0.999999)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, loc, test.ShouldEqual, NodeLoc(15))
	})

	t.Run("rejects coordinates outside the grid", func(t *testing.T) {
		for _, v := range []float64{-0.01, 1, 3} {
			_, err := ctx.CreateLoc(v)
			test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)
		}
	})

	t.Run("scale divides coordinates", func(t *testing.T) {
		scaled, err := NewContext(Config{MaxNumLevels: 5, Scale: 4})
		test.That(t, err, test.ShouldBeNil)
		loc, err := scaled.CreateLoc(2)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, loc, test.ShouldEqual, NodeLoc(8))
		test.That(t, scaled.Location(loc), test.ShouldAlmostEqual, 2.0)
	})

	t.Run("point", func(t *testing.T) {
		l, err := ctx.CreateLoc3(r3.Vector{X: 0.1, Y: 0.5, Z: 0.9})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, l, test.ShouldResemble, CreateLoc3(1, 8, 14))

		_, err = ctx.CreateLoc3(r3.Vector{X: 0.1, Y: 1.5, Z: 0.9})
		test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)
		test.That(t, ctx.ClampedLoc3(r3.Vector{X: -1, Y: 1.5, Z: 0.9}), test.ShouldResemble, CreateLoc3(0, 15, 14))
	})
}

func TestLocationMonotonic(t *testing.T) {
	ctx := newTestContext(t, 8)
	prev := -1.0
	for i := 0; i < ctx.LeafNodesPerDimension(); i++ {
		v := ctx.Location(NodeLoc(i))
		test.That(t, v, test.ShouldBeGreaterThan, prev)
		prev = v
	}
	for depth := 0; depth <= ctx.MaxDepth(); depth++ {
		a := ctx.VoxelLocation(CreateLoc3(0, 0, 0), depth)
		b := ctx.VoxelLocation(CreateLoc3(ctx.DepthMask(depth), 0, 0), depth)
		if depth > 0 {
			test.That(t, b.X, test.ShouldBeGreaterThan, a.X)
		}
	}
}

func TestRegion(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		r, err := CreateRegion(CreateLoc3(1, 2, 3), CreateLoc3(4, 5, 6))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, r.Size(), test.ShouldResemble, [3]int{4, 4, 4})
		test.That(t, r.Contains(CreateLoc3(1, 5, 4)), test.ShouldBeTrue)
		test.That(t, r.Contains(CreateLoc3(0, 5, 4)), test.ShouldBeFalse)
		test.That(t, r.String(), test.ShouldEqual, "[(1, 2, 3), (4, 5, 6)]")
	})

	t.Run("min above max", func(t *testing.T) {
		_, err := CreateRegion(CreateLoc3(1, 7, 3), CreateLoc3(4, 5, 6))
		test.That(t, errors.Is(err, ErrInvalidRegion), test.ShouldBeTrue)

		r := NormalizeRegion(CreateLoc3(1, 7, 3), CreateLoc3(4, 5, 6))
		test.That(t, r, test.ShouldResemble, Region3{Min: CreateLoc3(1, 5, 3), Max: CreateLoc3(4, 7, 6)})
	})
}

func TestClampLoc(t *testing.T) {
	t.Run("bounds", func(t *testing.T) {
		test.That(t, ClampLoc(0, 3, 9), test.ShouldEqual, NodeLoc(3))
		test.That(t, ClampLoc(65535, 3, 9), test.ShouldEqual, NodeLoc(9))
		test.That(t, ClampLoc(5, 3, 9), test.ShouldEqual, NodeLoc(5))
		test.That(t, ClampLoc(5, 9, 3), test.ShouldEqual, NodeLoc(5))
		test.That(t, ClampLoc(0, 0, 65535), test.ShouldEqual, NodeLoc(0))
		test.That(t, ClampLoc(65535, 0, 65535), test.ShouldEqual, NodeLoc(65535))
	})

	t.Run("idempotent", func(t *testing.T) {
		r, err := CreateRegion(CreateLoc3(2, 4, 6), CreateLoc3(10, 12, 14))
		test.That(t, err, test.ShouldBeNil)
		for x := 0; x < 16; x++ {
			for y := 0; y < 16; y += 3 {
				l := CreateLoc3(NodeLoc(x), NodeLoc(y), NodeLoc(15-x))
				once := ClampLoc3(l, r)
				test.That(t, r.Contains(once), test.ShouldBeTrue)
				test.That(t, ClampLoc3(once, r), test.ShouldResemble, once)
				if r.Contains(l) {
					test.That(t, once, test.ShouldResemble, l)
				}
			}
		}
	})
}

func TestMorton(t *testing.T) {
	test.That(t, CreateLoc3(1, 0, 0).Morton(), test.ShouldEqual, uint64(1))
	test.That(t, CreateLoc3(0, 1, 0).Morton(), test.ShouldEqual, uint64(2))
	test.That(t, CreateLoc3(0, 0, 1).Morton(), test.ShouldEqual, uint64(4))
	test.That(t, CreateLoc3(3, 0, 0).Morton(), test.ShouldEqual, uint64(9))
	for _, l := range []NodeLoc3{CreateLoc3(0, 0, 0), CreateLoc3(65535, 1, 32768), CreateLoc3(1234, 4321, 777)} {
		test.That(t, LocFromMorton(l.Morton()), test.ShouldResemble, l)
	}
}
