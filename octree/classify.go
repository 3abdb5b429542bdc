package octree

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/logging"
	"go.viam.com/voxeltree/spatialmath"
)

// ClassifyOptions configures Classify.
type ClassifyOptions struct {
	TargetDepth int
	// Axes lists the ray grid directions. Empty means all three axes.
	Axes  []spatialmath.Axis
	Flags ProcessingFlags
	// Fill creates every node down to TargetDepth so each voxel is classified individually.
	Fill        bool
	PlaneOffset float64
	// Evaluator decides inside and outside from the votes. Nil means DefaultVoteEvaluator.
	Evaluator *VoteEvaluator
}

// Classify casts a ray grid along each axis through a voxelized store, recording crossings, votes,
// boundary faces and wall thickness, and then evaluates the votes of every leaf.
func Classify(ctx context.Context, s *Store, logger logging.Logger, opts ClassifyOptions) (IOBStats, error) {
	axes := opts.Axes
	if len(axes) == 0 {
		axes = spatialmath.Axes[:]
	}
	eval := DefaultVoteEvaluator()
	if opts.Evaluator != nil {
		eval = *opts.Evaluator
	}
	if err := eval.Validate(); err != nil {
		return IOBStats{}, err
	}

	proc := NewIOBProcessor(s, logger, opts.Flags)
	for _, axis := range axes {
		rays, err := CastRayGrid(ctx, s, RayGridOptions{
			Axis:        axis,
			TargetDepth: opts.TargetDepth,
			Fill:        opts.Fill,
			PlaneOffset: opts.PlaneOffset,
		}, proc)
		if err != nil {
			return proc.Stats(), errors.Wrapf(err, "classifying along %v", axis)
		}
		logger.Debugw("cast ray grid", "axis", axis, "rays", rays)
	}

	if opts.Flags.Has(CastVotes) {
		filter := NodeFilter{MaxDepth: opts.TargetDepth, Leaf: LeafStatusLeaf}
		if _, err := eval.EvaluateStore(s, filter); err != nil {
			return proc.Stats(), err
		}
	}
	stats := proc.Stats()
	logger.Infow("classified voxels",
		"rays", stats.Rays, "invalid", stats.InvalidRays, "voxels", stats.Voxels, "flags", opts.Flags)
	return stats, nil
}
