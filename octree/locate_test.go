package octree

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestNeighborLoc(t *testing.T) {
	ctx := newTestContext(t, 5)
	id := NodeID{Depth: 2, Loc: CreateLoc3(4, 4, 4)}
	for _, tc := range []struct {
		name   string
		offset [3]int
		want   NodeLoc3
	}{
		{"self", [3]int{0, 0, 0}, CreateLoc3(4, 4, 4)},
		{"next x", [3]int{1, 0, 0}, CreateLoc3(8, 4, 4)},
		{"previous x", [3]int{-1, 0, 0}, CreateLoc3(3, 4, 4)},
		{"two ahead", [3]int{2, 0, 0}, CreateLoc3(12, 4, 4)},
		{"diagonal", [3]int{0, -1, 1}, CreateLoc3(4, 3, 8)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l, err := ctx.NeighborLoc(id, tc.offset)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, l, test.ShouldResemble, tc.want)
			// the code lies in the neighbor of the same size
			test.That(t, l.Mask(ctx.LocMask(id.Depth)), test.ShouldResemble, NodeLoc3{
				X: NodeLoc(int(id.Loc.X) + tc.offset[0]*4),
				Y: NodeLoc(int(id.Loc.Y) + tc.offset[1]*4),
				Z: NodeLoc(int(id.Loc.Z) + tc.offset[2]*4),
			})
		})
	}

	for _, offset := range [][3]int{{-2, 0, 0}, {3, 0, 0}, {0, 0, -2}} {
		_, err := ctx.NeighborLoc(id, offset)
		test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)
	}
	_, err := ctx.NeighborLoc(NodeID{Depth: 0}, [3]int{1, 0, 0})
	test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)
	_, err = ctx.NeighborLoc(NodeID{Depth: 2, Loc: CreateLoc3(5, 4, 4)}, [3]int{1, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)

	leaf, err := ctx.NeighborLoc(NodeID{Depth: 4, Loc: CreateLoc3(15, 0, 7)}, [3]int{-1, 1, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, leaf, test.ShouldResemble, CreateLoc3(14, 1, 8))
}

func TestLocateLoc(t *testing.T) {
	s := newTestStore(t, 5)
	deep, err := s.Insert(NodeID{Depth: 3, Loc: CreateLoc3(4, 4, 4)})
	test.That(t, err, test.ShouldBeNil)

	ref, err := s.LocateLoc(CreateLoc3(5, 5, 5), DepthUnspecified)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ref, test.ShouldEqual, deep)

	ref, err = s.LocateLoc(CreateLoc3(5, 5, 5), 2)
	test.That(t, err, test.ShouldBeNil)
	id, err := s.ID(ref)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldResemble, NodeID{Depth: 2, Loc: CreateLoc3(4, 4, 4)})

	// no node below the root in that octant
	ref, err = s.LocateLoc(CreateLoc3(12, 0, 0), DepthUnspecified)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ref, test.ShouldEqual, s.Root())

	_, err = s.LocateLoc(CreateLoc3(16, 0, 0), DepthUnspecified)
	test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)

	t.Run("sub root", func(t *testing.T) {
		s := newTestStore(t, 5, WithRoot(NodeID{Depth: 1, Loc: CreateLoc3(8, 0, 0)}))
		ref, err := s.LocateLoc(CreateLoc3(9, 1, 1), DepthUnspecified)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ref, test.ShouldEqual, s.Root())
		_, err = s.LocateLoc(CreateLoc3(0, 0, 0), DepthUnspecified)
		test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)
		_, err = s.LocateLoc(CreateLoc3(9, 1, 1), 0)
		test.That(t, errors.Is(err, ErrInvalidDepth), test.ShouldBeTrue)
	})
}

func TestLocateRegion(t *testing.T) {
	s := newTestStore(t, 5)
	deep, err := s.Insert(NodeID{Depth: 3, Loc: CreateLoc3(4, 4, 4)})
	test.That(t, err, test.ShouldBeNil)

	locate := func(r Region3, maxDepth int) NodeID {
		t.Helper()
		ref, err := s.LocateRegion(r, maxDepth)
		test.That(t, err, test.ShouldBeNil)
		id, err := s.ID(ref)
		test.That(t, err, test.ShouldBeNil)
		return id
	}
	ref, err := s.LocateRegion(Region3{Min: CreateLoc3(4, 4, 4), Max: CreateLoc3(5, 5, 5)}, DepthUnspecified)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ref, test.ShouldEqual, deep)

	test.That(t, locate(Region3{Min: CreateLoc3(4, 4, 4), Max: CreateLoc3(7, 5, 5)}, DepthUnspecified),
		test.ShouldResemble, NodeID{Depth: 2, Loc: CreateLoc3(4, 4, 4)})
	test.That(t, locate(Region3{Min: CreateLoc3(4, 4, 4), Max: CreateLoc3(5, 5, 5)}, 1),
		test.ShouldResemble, NodeID{Depth: 1})
	// the region spans two octants of the root
	test.That(t, locate(Region3{Min: CreateLoc3(4, 4, 4), Max: CreateLoc3(9, 5, 5)}, DepthUnspecified),
		test.ShouldResemble, NodeID{Depth: 0})
	// the smallest node holding the region is missing, its nearest ancestor is returned
	test.That(t, locate(Region3{Min: CreateLoc3(6, 6, 6), Max: CreateLoc3(7, 7, 7)}, DepthUnspecified),
		test.ShouldResemble, NodeID{Depth: 2, Loc: CreateLoc3(4, 4, 4)})

	_, err = s.LocateRegion(Region3{Min: CreateLoc3(5, 5, 5), Max: CreateLoc3(4, 4, 4)}, DepthUnspecified)
	test.That(t, errors.Is(err, ErrInvalidRegion), test.ShouldBeTrue)
	_, err = s.LocateRegion(Region3{Min: CreateLoc3(4, 4, 4), Max: CreateLoc3(16, 4, 4)}, DepthUnspecified)
	test.That(t, errors.Is(err, ErrOutOfBounds), test.ShouldBeTrue)
}
