package octree

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/voxeltree/logging"
	"go.viam.com/voxeltree/spatialmath"
)

var testTriangle = spatialmath.NewTriangle(
	r3.Vector{X: 0.1, Y: 0.2, Z: 0.3},
	r3.Vector{X: 0.8, Y: 0.35, Z: 0.4},
	r3.Vector{X: 0.3, Y: 0.9, Z: 0.7},
)

// bruteForceSurface tests the center of every voxel at depth.
func bruteForceSurface(ctx *Context, d *TriangleVoxelizationData, depth int) map[uint64]bool {
	set := map[uint64]bool{}
	step := ctx.DepthMask(depth)
	n := NodeLoc(ctx.LeafNodesPerDimension())
	for x := NodeLoc(0); x < n; x += step {
		for y := NodeLoc(0); y < n; y += step {
			for z := NodeLoc(0); z < n; z += step {
				id := NodeID{Depth: depth, Loc: CreateLoc3(x, y, z)}
				if VoxelizePointTest(d, ctx.VoxelCenter(id)) {
					set[id.Key()] = true
				}
			}
		}
	}
	return set
}

func markedVoxels(t *testing.T, s *Store, depth int) map[uint64]bool {
	t.Helper()
	refs, err := s.Nodes(NodeFilter{MinDepth: depth, MaxDepth: depth, Class: VoxelClassFilled})
	test.That(t, err, test.ShouldBeNil)
	set := map[uint64]bool{}
	for _, ref := range refs {
		id, err := s.ID(ref)
		test.That(t, err, test.ShouldBeNil)
		set[id.Key()] = true
	}
	return set
}

func TestVoxelizeTriangle(t *testing.T) {
	for _, sep := range []int{Separability6, Separability26} {
		for _, depth := range []int{2, 4} {
			s := newTestStore(t, 5)
			ctx := s.Context()
			d, err := ctx.NewTriangleVoxelizationData(testTriangle, sep, depth)
			test.That(t, err, test.ShouldBeNil)
			want := bruteForceSurface(ctx, d, depth)
			test.That(t, want, test.ShouldNotBeEmpty)

			v, err := NewVoxelizer(s, logging.NewTestLogger(t), VoxelizeOptions{Depth: depth, Separability: sep, Target: TargetClass})
			test.That(t, err, test.ShouldBeNil)
			marked, err := v.VoxelizeTriangle(testTriangle)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, marked, test.ShouldEqual, len(want))
			test.That(t, markedVoxels(t, s, depth), test.ShouldResemble, want)

			stats := v.Stats()
			test.That(t, stats.Triangles, test.ShouldEqual, 1)
			test.That(t, stats.Marked, test.ShouldEqual, len(want))
			test.That(t, stats.Tests, test.ShouldBeGreaterThanOrEqualTo, len(want))

			for key := range want {
				test.That(t, ctx.Contains(d.Node, NodeID{Depth: depth, Loc: LocFromMorton(key &^ (0xffff << 48))}), test.ShouldBeTrue)
			}
		}
	}
}

func TestSeparability(t *testing.T) {
	ctx := newTestContext(t, 5)
	d6, err := ctx.NewTriangleVoxelizationData(testTriangle, Separability6, 4)
	test.That(t, err, test.ShouldBeNil)
	d26, err := ctx.NewTriangleVoxelizationData(testTriangle, Separability26, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d6.T, test.ShouldBeLessThan, d26.T)
	test.That(t, d6.RC, test.ShouldAlmostEqual, 0.5*ctx.VoxelSize(4))
	test.That(t, d26.RC, test.ShouldAlmostEqual, 0.5*spatialmath.Sqrt3*ctx.VoxelSize(4))

	thin := bruteForceSurface(ctx, d6, 4)
	thick := bruteForceSurface(ctx, d26, 4)
	test.That(t, len(thin), test.ShouldBeLessThan, len(thick))
	for key := range thin {
		test.That(t, thick[key], test.ShouldBeTrue)
	}

	_, err = ctx.NewTriangleVoxelizationData(testTriangle, 18, 4)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ctx.NewTriangleVoxelizationData(testTriangle, Separability6, 5)
	test.That(t, errors.Is(err, ErrInvalidDepth), test.ShouldBeTrue)
}

func TestVoxelizePointTestDebug(t *testing.T) {
	ctx := newTestContext(t, 5)
	d, err := ctx.NewTriangleVoxelizationData(testTriangle, Separability26, 4)
	test.That(t, err, test.ShouldBeNil)
	logger, logs := logging.NewObservedTestLogger(t)

	for x := NodeLoc(0); x < 16; x++ {
		for y := NodeLoc(0); y < 16; y += 5 {
			center := ctx.VoxelCenter(NodeID{Depth: 4, Loc: CreateLoc3(x, y, 15-x)})
			got, trace := VoxelizePointTestDebug(d, center, nil)
			test.That(t, got, test.ShouldEqual, VoxelizePointTest(d, center))
			test.That(t, trace.Result, test.ShouldEqual, got)
			test.That(t, trace.Point, test.ShouldResemble, center)
		}
	}

	onSurface := testTriangle.ClosestPointToPoint(r3.Vector{X: 0.4, Y: 0.5, Z: 0.5})
	got, trace := VoxelizePointTestDebug(d, onSurface, logger)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, trace.InsidePlanes, test.ShouldBeTrue)
	test.That(t, logs.FilterMessage("voxelize point test").Len(), test.ShouldEqual, 1)

	got, trace = VoxelizePointTestDebug(d, r3.Vector{X: 0.95, Y: 0.05, Z: 0.95}, logger)
	test.That(t, got, test.ShouldBeFalse)
	test.That(t, trace.Edge, test.ShouldEqual, -1)
	test.That(t, trace.Vertex, test.ShouldEqual, -1)

	got, trace = VoxelizePointTestDebug(d, testTriangle.Vertex(1).Add(r3.Vector{X: 0.02}), nil)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, trace.Vertex, test.ShouldEqual, 1)
}

func TestVoxelizeTargets(t *testing.T) {
	t.Run("density with siblings", func(t *testing.T) {
		s := newTestStore(t, 5)
		v, err := NewVoxelizer(s, logging.NewTestLogger(t), VoxelizeOptions{Depth: 3, FillSiblings: true})
		test.That(t, err, test.ShouldBeNil)
		marked, err := v.VoxelizeTriangle(testTriangle)
		test.That(t, err, test.ShouldBeNil)

		leaves, err := s.Nodes(LeavesAt(3))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(leaves)%NumChildren, test.ShouldEqual, 0)
		filled := 0
		for _, ref := range leaves {
			dt, err := s.DataType(ref)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, dt, test.ShouldEqual, DataTypeDensity)
			density, err := s.Density(ref)
			test.That(t, err, test.ShouldBeNil)
			if density == DensityFilled {
				filled++
			} else {
				test.That(t, density, test.ShouldEqual, DensityEmpty)
			}
		}
		test.That(t, filled, test.ShouldEqual, marked)
		test.That(t, len(leaves), test.ShouldBeGreaterThan, marked)
	})

	t.Run("class keeps existing flags", func(t *testing.T) {
		s := newTestStore(t, 5)
		v, err := NewVoxelizer(s, logging.NewTestLogger(t), VoxelizeOptions{Depth: 3, Target: TargetClass, FillSiblings: true})
		test.That(t, err, test.ShouldBeNil)
		ctx := s.Context()
		id, err := ctx.NodeIDForPoint(testTriangle.Vertex(0), 3)
		test.That(t, err, test.ShouldBeNil)
		ref, err := s.Insert(id)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.SetVoxelClass(ref, VoxelClassEmpty|VoxelClassHit), test.ShouldBeNil)

		_, err = v.VoxelizeTriangle(testTriangle)
		test.That(t, err, test.ShouldBeNil)
		c, err := s.VoxelClass(ref)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c, test.ShouldEqual, VoxelClassFilled|VoxelClassHit)

		empty, err := s.Nodes(NodeFilter{MinDepth: 3, MaxDepth: 3, Class: VoxelClassEmpty})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, empty, test.ShouldNotBeEmpty)
	})

	t.Run("capacity", func(t *testing.T) {
		s := newTestStore(t, 5, WithCapacity(20))
		v, err := NewVoxelizer(s, logging.NewTestLogger(t), VoxelizeOptions{Depth: 4})
		test.That(t, err, test.ShouldBeNil)
		_, err = v.VoxelizeTriangle(testTriangle)
		test.That(t, errors.Is(err, ErrCapacityExceeded), test.ShouldBeTrue)
	})
}

func TestNewVoxelizer(t *testing.T) {
	s := newTestStore(t, 5)
	logger := logging.NewTestLogger(t)
	_, err := NewVoxelizer(s, logger, VoxelizeOptions{Depth: 3, Separability: 18})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewVoxelizer(s, logger, VoxelizeOptions{Depth: 5})
	test.That(t, errors.Is(err, ErrInvalidDepth), test.ShouldBeTrue)
	_, err = NewVoxelizer(s, logger, VoxelizeOptions{Depth: 3, Target: VoxelizationTarget(9)})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestVoxelizeMesh(t *testing.T) {
	degenerate := spatialmath.NewTriangle(
		r3.Vector{X: 0.1, Y: 0.1, Z: 0.1},
		r3.Vector{X: 0.2, Y: 0.2, Z: 0.2},
		r3.Vector{X: 0.4, Y: 0.4, Z: 0.4},
	)
	s := newTestStore(t, 5)
	_, err := s.Context().NewTriangleVoxelizationData(degenerate, Separability26, 3)
	test.That(t, errors.Is(err, ErrDegenerateTriangle), test.ShouldBeTrue)

	logger, logs := logging.NewObservedTestLogger(t)
	v, err := NewVoxelizer(s, logger, VoxelizeOptions{Depth: 3})
	test.That(t, err, test.ShouldBeNil)
	_, err = v.VoxelizeTriangle(degenerate)
	test.That(t, errors.Is(err, ErrDegenerateTriangle), test.ShouldBeTrue)

	stats, err := v.VoxelizeMesh(context.Background(), spatialmath.NewMesh([]*spatialmath.Triangle{degenerate, testTriangle}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Triangles, test.ShouldEqual, 1)
	test.That(t, stats.Skipped, test.ShouldEqual, 1)
	test.That(t, stats.Marked, test.ShouldBeGreaterThan, 0)
	test.That(t, logs.FilterMessage("skipping degenerate triangle").Len(), test.ShouldEqual, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.VoxelizeMesh(ctx, spatialmath.NewMesh([]*spatialmath.Triangle{testTriangle}))
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}
