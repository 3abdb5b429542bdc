package octree

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/spatialmath"
)

// RayProcessor consumes the intersections of the rays of a ray grid. For every ray Begin is called
// once, then Process for each reported node in ray order, then Finish.
type RayProcessor interface {
	Begin(ray spatialmath.Ray) error
	Process(hit NodeIntersection) error
	Finish() error
}

// DefaultPlaneOffset is the distance, in target voxel sizes, between the ray origins and the root.
const DefaultPlaneOffset = 1.0

// RayGridOptions describes a grid of parallel rays through a store.
type RayGridOptions struct {
	// Axis is the direction of the rays. Rays run towards increasing coordinates.
	Axis        spatialmath.Axis
	TargetDepth int
	// Fill creates every node the rays pass through down to TargetDepth.
	Fill bool
	// PlaneOffset moves the ray origins before the root. Zero means DefaultPlaneOffset.
	PlaneOffset float64
}

// CastRayGrid casts one ray through the center of every column of target depth voxels of the
// store's root, along opts.Axis, and hands the reported leaves to proc. It returns the number of
// rays cast. Cancelling ctx stops the grid between rays.
func CastRayGrid(ctx context.Context, s *Store, opts RayGridOptions, proc RayProcessor) (int, error) {
	if !opts.Axis.Valid() {
		return 0, errors.Wrapf(ErrInvalidAxis, "ray grid axis %v", opts.Axis)
	}
	rootID := s.RootID()
	if err := s.ctx.CheckDepthRange(rootID.Depth, opts.TargetDepth); err != nil {
		return 0, err
	}
	offset := opts.PlaneOffset
	if offset == 0 {
		offset = DefaultPlaneOffset
	}

	n := int(s.ctx.DepthMask(rootID.Depth) / s.ctx.DepthMask(opts.TargetDepth))
	ts := s.ctx.VoxelSize(opts.TargetDepth)
	u, v := opts.Axis.Others()
	dir := opts.Axis.Unit()
	start := s.ctx.VoxelBox(rootID).Min.Sub(dir.Mul(offset * ts))
	intersect := IntersectOptions{MaxDepth: opts.TargetDepth, Fill: opts.Fill, Leaf: LeafStatusLeaf}

	s.logger.Debugw("casting ray grid", "axis", opts.Axis, "depth", opts.TargetDepth, "rays", n*n)
	cast := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if err := ctx.Err(); err != nil {
				return cast, err
			}
			origin := start.
				Add(u.Unit().Mul((float64(i) + 0.5) * ts)).
				Add(v.Unit().Mul((float64(j) + 0.5) * ts))
			ray := spatialmath.Ray{Origin: origin, Direction: dir}
			if err := castRay(s, ray, intersect, proc); err != nil {
				return cast, errors.Wrapf(err, "ray %d, %d along %v", i, j, opts.Axis)
			}
			cast++
		}
	}
	return cast, nil
}

func castRay(s *Store, ray spatialmath.Ray, opts IntersectOptions, proc RayProcessor) error {
	if err := proc.Begin(ray); err != nil {
		return err
	}
	hits, err := s.IntersectRay(ray, opts)
	if err != nil {
		return err
	}
	for _, hit := range hits {
		if err := proc.Process(hit); err != nil {
			return err
		}
	}
	return proc.Finish()
}
