package octree

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/logging"
	"go.viam.com/voxeltree/spatialmath"
)

// ThicknessOptions configures a WallThicknessProcessor.
type ThicknessOptions struct {
	// MinWallThickness is the thinnest filled run, in leaf units, that is left alone. Thinner runs
	// are grown into the voxels after them. Zero only measures.
	MinWallThickness uint16
	// MaxFillNodes limits how many inside voxels a run may grow by per pass. Zero means no limit.
	MaxFillNodes int
	// FillOutside keeps growing runs that are still thin after the inside voxels are used up, one
	// voxel per run and pass.
	FillOutside bool
	// MaxPasses limits the FillOutside rounds per ray. Zero means until no thin run is left.
	MaxPasses int
}

// ThicknessStats counts the work of a WallThicknessProcessor.
type ThicknessStats struct {
	Rays   int
	Voxels int
	Filled int
	// ThinComponents counts the runs still thinner than the minimum after the last pass of each ray.
	ThinComponents int
	Passes         int
}

// WallThicknessProcessor records the length of the filled runs along axis aligned rays and fills
// voxels next to runs that are too thin. It implements RayProcessor.
type WallThicknessProcessor struct {
	store  *Store
	logger logging.Logger
	opts   ThicknessOptions

	axis spatialmath.Axis
	hits []NodeIntersection
	data []VoxelDataIOB

	stats ThicknessStats
}

// NewWallThicknessProcessor returns a processor writing into s.
func NewWallThicknessProcessor(s *Store, logger logging.Logger, opts ThicknessOptions) *WallThicknessProcessor {
	return &WallThicknessProcessor{store: s, logger: logger, opts: opts, axis: spatialmath.AxisUndefined}
}

// Stats returns the counters accumulated so far.
func (p *WallThicknessProcessor) Stats() ThicknessStats {
	return p.stats
}

// Begin starts a ray, which must run along an axis.
func (p *WallThicknessProcessor) Begin(ray spatialmath.Ray) error {
	p.hits = p.hits[:0]
	p.axis = spatialmath.AxisOf(ray.Direction)
	if !p.axis.Valid() {
		return errors.Wrapf(ErrInvalidAxis, "wall thickness needs an axis aligned ray, got direction %v", ray.Direction)
	}
	return nil
}

// Process collects an intersection.
func (p *WallThicknessProcessor) Process(hit NodeIntersection) error {
	p.hits = append(p.hits, hit)
	return nil
}

// Finish runs the passes over the collected intersections and writes the voxel data back.
func (p *WallThicknessProcessor) Finish() error {
	p.stats.Rays++
	if len(p.hits) == 0 {
		return nil
	}
	p.data = p.data[:0]
	for _, hit := range p.hits {
		d, err := p.store.IOBData(hit.Node)
		if err != nil {
			return errors.Wrapf(err, "loading voxel data of %v", hit.ID)
		}
		p.data = append(p.data, d)
	}

	p.pass(false, true, p.opts.MaxFillNodes)
	p.pass(true, true, p.opts.MaxFillNodes)
	thin := 0
	if p.opts.MinWallThickness > 0 {
		// a backward fill is only measured forward by another pass
		thin = p.pass(false, true, p.opts.MaxFillNodes)
		for passes := 0; p.opts.FillOutside && thin > 0; passes++ {
			if p.opts.MaxPasses > 0 && passes >= p.opts.MaxPasses {
				break
			}
			p.pass(false, false, 1)
			p.pass(true, false, 1)
			thin = p.pass(false, false, 1)
			p.stats.Passes++
		}
	}
	if thin > 0 {
		p.logger.Debugw("thin walls left on ray", "first", p.hits[0].ID, "components", thin)
	}
	p.stats.ThinComponents += thin

	for i, hit := range p.hits {
		if err := p.store.SetIOBData(hit.Node, p.data[i]); err != nil {
			return errors.Wrapf(err, "storing voxel data of %v", hit.ID)
		}
	}
	p.stats.Voxels += len(p.hits)
	return nil
}

// pass walks the loaded records in one direction, recording run lengths and growing thin runs,
// and returns the number of runs it left thinner than the minimum.
func (p *WallThicknessProcessor) pass(backward, insideOnly bool, maxFill int) int {
	minWT := p.opts.MinWallThickness
	state := stateUndefined
	var wt, maxWT uint16
	thin, grown := 0, 0

	n := len(p.data)
	for k := 0; k < n; k++ {
		i := k
		if backward {
			i = n - 1 - k
		}
		d := &p.data[i]
		step := uint16(p.store.ctx.DepthMask(p.hits[i].Depth()))
		filled := d.Class.Has(VoxelClassFilled)

		switch state {
		case stateUndefined, stateOutside:
			if filled {
				state = stateInside
				wt = step
				maxWT = d.WallThickness[p.axis]
				grown = 0
			} else {
				state = stateOutside
			}
		case stateInside:
			if filled {
				wt += step
				break
			}
			t := max(wt, maxWT)
			if t < minWT && (!insideOnly || d.Class.Has(VoxelClassInside)) && (maxFill == 0 || grown < maxFill) {
				d.Class = d.Class.With(VoxelClassInside|VoxelClassOutside|VoxelClassBoundary|VoxelClassEmpty, false).
					With(VoxelClassFilled, true)
				d.BoundaryFaces = FaceNone
				filled = true
				grown++
				p.stats.Filled++
				wt += step
				break
			}
			if t < minWT {
				thin++
			}
			wt, maxWT = 0, 0
			state = stateOutside
		}

		if filled {
			d.WallThickness[p.axis] = max(wt, maxWT)
		}
	}
	return thin
}

// FillOptions configures FillThinWalls.
type FillOptions struct {
	ThicknessOptions
	TargetDepth int
	// Axes lists the ray grid directions. Empty means all three axes.
	Axes []spatialmath.Axis
	// Fill creates every node down to TargetDepth so each voxel can be filled individually.
	Fill        bool
	PlaneOffset float64
}

// FillThinWalls casts a ray grid along each axis, recording wall thickness and filling voxels
// next to filled runs thinner than opts.MinWallThickness.
func FillThinWalls(ctx context.Context, s *Store, logger logging.Logger, opts FillOptions) (ThicknessStats, error) {
	axes := opts.Axes
	if len(axes) == 0 {
		axes = spatialmath.Axes[:]
	}
	if opts.MaxFillNodes < 0 || opts.MaxPasses < 0 {
		return ThicknessStats{}, errors.Errorf("invalid fill limits (nodes %d, passes %d)", opts.MaxFillNodes, opts.MaxPasses)
	}
	proc := NewWallThicknessProcessor(s, logger, opts.ThicknessOptions)
	for _, axis := range axes {
		if _, err := CastRayGrid(ctx, s, RayGridOptions{
			Axis:        axis,
			TargetDepth: opts.TargetDepth,
			Fill:        opts.Fill,
			PlaneOffset: opts.PlaneOffset,
		}, proc); err != nil {
			return proc.Stats(), errors.Wrapf(err, "measuring walls along %v", axis)
		}
	}
	stats := proc.Stats()
	logger.Infow("filled thin walls",
		"rays", stats.Rays, "filled", stats.Filled, "thin", stats.ThinComponents, "minWallThickness", opts.MinWallThickness)
	return stats, nil
}
