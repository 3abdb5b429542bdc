package octree

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/logging"
	"go.viam.com/voxeltree/spatialmath"
)

// ProcessingFlags select what the inside/outside/boundary processor records.
type ProcessingFlags uint16

// Processing flags.
const (
	// DirectionBackward walks the intersections of a ray from its end. It is set internally for
	// the second pass and selects NumInts1 and the far planes.
	DirectionBackward ProcessingFlags = 1 << iota
	// EnableBoundaryData marks voxels where the ray enters a filled run as boundary and records
	// the face it enters through.
	EnableBoundaryData
	// EnableWallThickness records the length of filled runs along the ray axis.
	EnableWallThickness
	// CastVotes adds inside and outside votes from the crossing counts of valid rays.
	CastVotes
	// RayStabbing marks voxels with no crossing on one side of the ray as outside.
	RayStabbing

	DefaultProcessingFlags = EnableBoundaryData | EnableWallThickness | CastVotes | RayStabbing
)

var processingFlagNames = []struct {
	f    ProcessingFlags
	name string
}{
	{DirectionBackward, "directionBackward"},
	{EnableBoundaryData, "enableBoundaryData"},
	{EnableWallThickness, "enableWallThickness"},
	{CastVotes, "castVotes"},
	{RayStabbing, "rayStabbing"},
}

// Has returns whether every flag of f2 is set.
func (f ProcessingFlags) Has(f2 ProcessingFlags) bool {
	return f&f2 == f2
}

func (f ProcessingFlags) String() string {
	var parts []string
	for _, n := range processingFlagNames {
		if f.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// IOBStats counts the work of an IOBProcessor.
type IOBStats struct {
	Rays        int
	ValidRays   int
	InvalidRays int
	Voxels      int
	Votes       int
	Stabbed     int
}

// IOBProcessor classifies the voxels along each ray as inside, outside or boundary from the
// filled voxels the ray crosses. It implements RayProcessor.
type IOBProcessor struct {
	store  *Store
	logger logging.Logger
	flags  ProcessingFlags

	axis spatialmath.Axis
	hits []NodeIntersection
	data []VoxelDataIOB

	stats IOBStats
}

// NewIOBProcessor returns a processor writing into s.
func NewIOBProcessor(s *Store, logger logging.Logger, flags ProcessingFlags) *IOBProcessor {
	return &IOBProcessor{
		store:  s,
		logger: logger,
		flags:  flags &^ DirectionBackward,
		axis:   spatialmath.AxisUndefined,
	}
}

// Flags returns the processing flags.
func (p *IOBProcessor) Flags() ProcessingFlags {
	return p.flags
}

// Stats returns the counters accumulated so far.
func (p *IOBProcessor) Stats() IOBStats {
	return p.stats
}

// Begin starts a ray. Wall thickness is only recorded for axis aligned rays.
func (p *IOBProcessor) Begin(ray spatialmath.Ray) error {
	p.hits = p.hits[:0]
	p.axis = spatialmath.AxisOf(ray.Direction)
	return nil
}

// Process collects an intersection.
func (p *IOBProcessor) Process(hit NodeIntersection) error {
	p.hits = append(p.hits, hit)
	return nil
}

// Finish processes the collected intersections.
func (p *IOBProcessor) Finish() error {
	return p.SetIOBData()
}

// SetIOBData runs the forward and backward passes over the collected intersections and writes the
// resulting voxel data. Nothing is written unless every record could be updated.
func (p *IOBProcessor) SetIOBData() error {
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

	crossings := p.pass(p.flags)
	p.pass(p.flags | DirectionBackward)
	valid := crossings%2 == 0
	if valid {
		p.stats.ValidRays++
	} else {
		p.stats.InvalidRays++
		p.logger.Debugw("ray with odd crossing count casts no votes",
			"first", p.hits[0].ID, "crossings", crossings, "voxels", len(p.hits))
	}

	for i := range p.data {
		d := &p.data[i]
		d.Class |= VoxelClassHit
		if d.Class.Has(VoxelClassFilled) {
			continue
		}
		if p.flags.Has(RayStabbing) && (d.NumInts0 == 0 || d.NumInts1 == 0) {
			d.Class |= VoxelClassOutside
			p.stats.Stabbed++
		}
		if p.flags.Has(CastVotes) && valid {
			if err := d.CastVote(d.NumInts0%2 == 1); err != nil {
				return errors.Wrapf(err, "voting for %v", p.hits[i].ID)
			}
			if err := d.CastVote(d.NumInts1%2 == 1); err != nil {
				return errors.Wrapf(err, "voting for %v", p.hits[i].ID)
			}
			p.stats.Votes += 2
		}
	}

	for i, hit := range p.hits {
		if err := p.store.SetIOBData(hit.Node, p.data[i]); err != nil {
			return errors.Wrapf(err, "storing voxel data of %v", hit.ID)
		}
	}
	p.stats.Voxels += len(p.hits)
	return nil
}

type iobState uint8

const (
	stateUndefined iobState = iota
	stateInside
	stateOutside
)

// pass walks the loaded records in one direction and returns the number of filled runs crossed.
func (p *IOBProcessor) pass(flags ProcessingFlags) int {
	backward := flags.Has(DirectionBackward)
	wallThickness := flags.Has(EnableWallThickness) && p.axis.Valid()
	state := stateUndefined
	numInts := 0
	var wt, maxWT uint16

	n := len(p.data)
	for k := 0; k < n; k++ {
		i := k
		if backward {
			i = n - 1 - k
		}
		d := &p.data[i]
		hit := p.hits[i]
		filled := d.Class.Has(VoxelClassFilled)

		entering := false
		switch state {
		case stateUndefined:
			entering = filled
			if filled {
				state = stateInside
			} else {
				state = stateOutside
			}
		case stateInside:
			if !filled {
				state = stateOutside
				numInts++
			}
		case stateOutside:
			if filled {
				state = stateInside
				entering = true
				if flags.Has(EnableBoundaryData) {
					d.Class |= VoxelClassBoundary
					face := hit.Intersection.NearPlane
					if backward {
						face = hit.Intersection.FarPlane
					}
					d.BoundaryFaces |= FaceMaskFromBoxFaces(face)
				}
			}
		}

		if backward {
			d.NumInts1 = clampCount(numInts)
		} else {
			d.NumInts0 = clampCount(numInts)
		}

		if wallThickness && filled {
			step := uint16(p.store.ctx.DepthMask(hit.Depth()))
			if entering {
				// The forward pass leaves the full run length in the last voxel of a run, which
				// is where the backward pass enters it.
				wt = step
				maxWT = d.WallThickness[p.axis]
			} else {
				wt += step
			}
			d.WallThickness[p.axis] = max(d.WallThickness[p.axis], wt, maxWT)
		}
	}
	if state == stateInside {
		// A ray cannot end inside a filled run; the run is closed by the end of the tree.
		numInts++
	}
	return numInts
}

func clampCount(n int) uint16 {
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(n)
}
