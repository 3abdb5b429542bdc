package octree

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/voxeltree/spatialmath"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		conf := Config{}.WithDefaults()
		test.That(t, conf, test.ShouldResemble, Config{
			MaxNumLevels: DefaultMaxNumLevels,
			Scale:        DefaultScale,
			Tolerance:    DefaultTolerance,
		})
		test.That(t, conf.Validate(), test.ShouldBeNil)
	})

	t.Run("from attributes", func(t *testing.T) {
		conf, err := NewConfigFromAttributes(map[string]interface{}{
			"max_num_levels": 6,
			"scale":          2.5,
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, conf.MaxNumLevels, test.ShouldEqual, 6)
		test.That(t, conf.Scale, test.ShouldEqual, 2.5)

		_, err = NewConfigFromAttributes(map[string]interface{}{"levels": 6})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("validation reports every problem", func(t *testing.T) {
		err := Config{MaxNumLevels: 17, Scale: -1, Tolerance: -1}.Validate()
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "max_num_levels")
		test.That(t, err.Error(), test.ShouldContainSubstring, "scale")
		test.That(t, err.Error(), test.ShouldContainSubstring, "tolerance")

		_, err = NewContext(Config{MaxNumLevels: 1})
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestContextTables(t *testing.T) {
	ctx := newTestContext(t, 5)
	test.That(t, ctx.MaxDepth(), test.ShouldEqual, 4)
	test.That(t, ctx.LeafNodesPerDimension(), test.ShouldEqual, 16)
	test.That(t, ctx.DepthMask(0), test.ShouldEqual, NodeLoc(16))
	test.That(t, ctx.DepthMask(4), test.ShouldEqual, NodeLoc(1))
	test.That(t, ctx.LocMask(0), test.ShouldEqual, NodeLoc(16))
	test.That(t, ctx.LocMask(2), test.ShouldEqual, NodeLoc(0b11100))
	test.That(t, ctx.VoxelSize(2), test.ShouldAlmostEqual, 0.25)
	test.That(t, ctx.MinLeafSize(), test.ShouldAlmostEqual, 0.0625)
	test.That(t, ctx.DepthMask(5), test.ShouldEqual, NodeLoc(0))
	test.That(t, ctx.String(), test.ShouldEqual, "Context[maxNumLevels = 5, scale = 1, tolerance = 1e-06]")

	test.That(t, errors.Is(ctx.CheckDepth(5), ErrInvalidDepth), test.ShouldBeTrue)
	test.That(t, errors.Is(ctx.CheckDepthRange(3, 2), ErrInvalidDepth), test.ShouldBeTrue)
	test.That(t, errors.Is(ctx.CheckLoc(CreateLoc3(0, 16, 0)), ErrOutOfBounds), test.ShouldBeTrue)
}

func TestContextTreeHelpers(t *testing.T) {
	ctx := newTestContext(t, 5)

	t.Run("child order", func(t *testing.T) {
		for i := 0; i < NumChildren; i++ {
			child := ctx.ChildLoc(CreateLoc3(8, 0, 8), 2, i)
			test.That(t, ctx.ChildOrderIndex(child, 2), test.ShouldEqual, i)
			test.That(t, ctx.LocEqual(child, CreateLoc3(8, 0, 8), 1), test.ShouldBeTrue)
		}
		test.That(t, ctx.ChildLoc(CreateLoc3(8, 0, 8), 2, 7), test.ShouldResemble, CreateLoc3(12, 4, 12))
	})

	t.Run("common ancestor", func(t *testing.T) {
		test.That(t, ctx.CommonAncestorLevel(CreateLoc3(3, 3, 3), CreateLoc3(3, 3, 3)), test.ShouldEqual, 4)
		test.That(t, ctx.CommonAncestorLevel(CreateLoc3(2, 0, 0), CreateLoc3(3, 0, 0)), test.ShouldEqual, 3)
		test.That(t, ctx.CommonAncestorLevel(CreateLoc3(0, 0, 0), CreateLoc3(0, 15, 0)), test.ShouldEqual, 0)
		test.That(t, ctx.CommonAncestorLevel(CreateLoc3(4, 4, 4), CreateLoc3(7, 5, 6)), test.ShouldEqual, 2)
	})

	t.Run("containing node", func(t *testing.T) {
		id, err := ctx.ContainingNode(spatialmath.NewBox(r3.Vector{X: 0.26, Y: 0.26, Z: 0.26}, r3.Vector{X: 0.49, Y: 0.3, Z: 0.3}))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, id, test.ShouldResemble, NodeID{Depth: 2, Loc: CreateLoc3(4, 4, 4)})
		box := ctx.VoxelBox(id)
		test.That(t, box.Min.X, test.ShouldAlmostEqual, 0.25)
		test.That(t, box.Max.X, test.ShouldAlmostEqual, 0.5)
	})

	t.Run("voxel region", func(t *testing.T) {
		r := ctx.VoxelRegion(CreateLoc3(5, 6, 7), 2, false)
		test.That(t, r, test.ShouldResemble, Region3{Min: CreateLoc3(4, 4, 4), Max: CreateLoc3(7, 7, 7)})
		r = ctx.VoxelRegion(CreateLoc3(5, 6, 7), 2, true)
		test.That(t, r.Max, test.ShouldResemble, CreateLoc3(8, 8, 8))
	})

	t.Run("node identity", func(t *testing.T) {
		id, err := ctx.NodeIDForPoint(r3.Vector{X: 0.7, Y: 0.1, Z: 0.4}, 3)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, id, test.ShouldResemble, NodeID{Depth: 3, Loc: CreateLoc3(10, 0, 6)})
		test.That(t, id.Valid(ctx), test.ShouldBeTrue)
		parent, err := id.Parent(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parent, test.ShouldResemble, NodeID{Depth: 2, Loc: CreateLoc3(8, 0, 4)})
		test.That(t, ctx.Contains(parent, id), test.ShouldBeTrue)
		test.That(t, ctx.Contains(id, parent), test.ShouldBeFalse)

		_, err = NodeID{Depth: 0}.Parent(ctx)
		test.That(t, errors.Is(err, ErrInvalidDepth), test.ShouldBeTrue)
		test.That(t, NodeID{Depth: 1, Loc: CreateLoc3(1, 0, 0)}.Valid(ctx), test.ShouldBeFalse)
		test.That(t, CreateNodeID(DepthUnspecified, CreateLoc3(1, 2, 3)).Valid(ctx), test.ShouldBeFalse)
		test.That(t, NodeID{Depth: 2, Loc: CreateLoc3(4, 0, 0)}.Key(), test.ShouldNotEqual, NodeID{Depth: 3, Loc: CreateLoc3(4, 0, 0)}.Key())
	})
}

func TestContextClose(t *testing.T) {
	ctx := newTestContext(t, 4)
	test.That(t, ctx.Close(), test.ShouldBeNil)
	test.That(t, errors.Is(ctx.Close(), ErrContextClosed), test.ShouldBeTrue)
	_, err := ctx.CreateLoc(0.5)
	test.That(t, errors.Is(err, ErrContextClosed), test.ShouldBeTrue)
	test.That(t, ctx.VoxelSize(1), test.ShouldEqual, 0.0)
	_, err = NewStore(ctx, nil)
	test.That(t, errors.Is(err, ErrContextClosed), test.ShouldBeTrue)
}
