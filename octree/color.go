package octree

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/montanaflynn/stats"
	"go.uber.org/multierr"
)

// VoxelClassColor maps voxels carrying every flag of Mask to Color.
type VoxelClassColor struct {
	Mask  VoxelClass
	Color colorful.Color
}

// GetVoxelClassColor returns the color of the first rule whose mask is present in c.
func GetVoxelClassColor(colors []VoxelClassColor, c VoxelClass) (colorful.Color, bool) {
	for _, rule := range colors {
		if c.Has(rule.Mask) {
			return rule.Color, true
		}
	}
	return colorful.Color{}, false
}

// DefaultVoxelClassColors returns a palette in which boundary voxels come first, then filled,
// inside and outside voxels.
func DefaultVoxelClassColors() []VoxelClassColor {
	return []VoxelClassColor{
		{Mask: VoxelClassBoundary, Color: colorful.Hsv(0, 0.85, 0.9)},
		{Mask: VoxelClassFilled, Color: colorful.Hsv(40, 0.1, 0.75)},
		{Mask: VoxelClassInside, Color: colorful.Hsv(120, 0.7, 0.8)},
		{Mask: VoxelClassOutside, Color: colorful.Hsv(210, 0.6, 0.9)},
		{Mask: VoxelClassEmpty, Color: colorful.Hsv(0, 0, 0.4)},
	}
}

// ColorToRGBA converts a color to linear RGBA components as used by glTF vertex colors.
func ColorToRGBA(c colorful.Color, alpha float64) [4]float32 {
	r, g, b := c.Clamped().LinearRgb()
	return [4]float32{float32(r), float32(g), float32(b), float32(alpha)}
}

// GetColorIndex maps v from [vMin, vMax] linearly onto the palette range [minIdx, maxIdx]. Values
// outside the range map to its ends. Unspecified or reversed ranges give ColorIndexUnspecified.
func GetColorIndex(v, vMin, vMax uint16, minIdx, maxIdx ColorIndex) ColorIndex {
	if minIdx == ColorIndexUnspecified || maxIdx == ColorIndexUnspecified || maxIdx < minIdx || vMax < vMin {
		return ColorIndexUnspecified
	}
	if v >= vMax {
		return maxIdx
	}
	if v <= vMin {
		return minIdx
	}
	cr := int(maxIdx) - int(minIdx)
	vr := int(vMax) - int(vMin)
	return minIdx + ColorIndex((int(v)-int(vMin))*cr/vr)
}

// WallThicknessRange is the spread of minimum wall thicknesses found by ColorByWallThickness.
type WallThicknessRange struct {
	Min    uint16
	Max    uint16
	Mean   float64
	StdDev float64
	Nodes  int
}

// ColorByWallThickness assigns each node matching filter a palette index in [minIdx, maxIdx] by
// its minimum wall thickness, thinnest first. Nodes without a recorded wall thickness keep their
// color.
func ColorByWallThickness(s *Store, filter NodeFilter, minIdx, maxIdx ColorIndex) (WallThicknessRange, error) {
	refs, err := s.Nodes(filter)
	if err != nil {
		return WallThicknessRange{}, err
	}
	type entry struct {
		ref Ref
		d   VoxelDataIOB
		wt  uint16
	}
	var entries []entry
	var samples []float64
	rng := WallThicknessRange{Min: math.MaxUint16}
	for _, ref := range refs {
		dt, err := s.DataType(ref)
		if err != nil {
			return WallThicknessRange{}, err
		}
		if dt != DataTypeVoxelIOB {
			continue
		}
		d, err := s.IOBData(ref)
		if err != nil {
			return WallThicknessRange{}, err
		}
		wt, _, err := d.GetWallThicknessMin()
		if err != nil {
			continue
		}
		rng.Min = min(rng.Min, wt)
		rng.Max = max(rng.Max, wt)
		entries = append(entries, entry{ref: ref, d: d, wt: wt})
		samples = append(samples, float64(wt))
	}
	if len(entries) == 0 {
		return WallThicknessRange{}, nil
	}
	rng.Nodes = len(entries)
	mean, err := stats.Mean(samples)
	sd, err2 := stats.StandardDeviation(samples)
	if err := multierr.Combine(err, err2); err != nil {
		return WallThicknessRange{}, err
	}
	rng.Mean, rng.StdDev = mean, sd
	for _, e := range entries {
		e.d.Color = GetColorIndex(e.wt, rng.Min, rng.Max, minIdx, maxIdx)
		if err := s.SetIOBData(e.ref, e.d); err != nil {
			return rng, err
		}
	}
	s.logger.Debugw("colored by wall thickness", "min", rng.Min, "max", rng.Max, "mean", rng.Mean, "nodes", rng.Nodes)
	return rng, nil
}
