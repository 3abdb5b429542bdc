package octree

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/voxeltree/spatialmath"
)

// NodeLoc is a quantized coordinate on one axis. Codes are in units of the smallest leaf size, so
// larger codes are farther along the axis, and the bits below LocMask(depth) are ignored at depth.
type NodeLoc uint16

// NodeLoc3 addresses a grid cell by its three location codes.
type NodeLoc3 struct {
	X NodeLoc
	Y NodeLoc
	Z NodeLoc
}

// CreateLoc3 returns the location with the given codes.
func CreateLoc3(x, y, z NodeLoc) NodeLoc3 {
	return NodeLoc3{X: x, Y: y, Z: z}
}

// Get returns the code along axis a.
func (l NodeLoc3) Get(a spatialmath.Axis) NodeLoc {
	switch a {
	case spatialmath.AxisX:
		return l.X
	case spatialmath.AxisY:
		return l.Y
	case spatialmath.AxisZ:
		return l.Z
	default:
		return 0
	}
}

// With returns a copy of l with the code along axis a replaced.
func (l NodeLoc3) With(a spatialmath.Axis, v NodeLoc) NodeLoc3 {
	switch a {
	case spatialmath.AxisX:
		l.X = v
	case spatialmath.AxisY:
		l.Y = v
	case spatialmath.AxisZ:
		l.Z = v
	default:
	}
	return l
}

// Mask returns l with every code masked by m.
func (l NodeLoc3) Mask(m NodeLoc) NodeLoc3 {
	return NodeLoc3{X: l.X & m, Y: l.Y & m, Z: l.Z & m}
}

// Morton returns the interleaved bits of the three codes, x in the lowest position.
func (l NodeLoc3) Morton() uint64 {
	return part1By2(uint64(l.X)) | part1By2(uint64(l.Y))<<1 | part1By2(uint64(l.Z))<<2
}

// LocFromMorton is the inverse of NodeLoc3.Morton.
func LocFromMorton(key uint64) NodeLoc3 {
	return NodeLoc3{
		X: NodeLoc(compact1By2(key)),
		Y: NodeLoc(compact1By2(key >> 1)),
		Z: NodeLoc(compact1By2(key >> 2)),
	}
}

func (l NodeLoc3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", l.X, l.Y, l.Z)
}

func part1By2(x uint64) uint64 {
	x &= 0x1fffff
	x = (x | (x << 32)) & 0x1f00000000ffff
	x = (x | (x << 16)) & 0x1f0000ff0000ff
	x = (x | (x << 8)) & 0x100f00f00f00f00f
	x = (x | (x << 4)) & 0x10c30c30c30c30c3
	x = (x | (x << 2)) & 0x1249249249249249
	return x
}

func compact1By2(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0x1fffff
	return x
}

// Region3 is an inclusive range of grid cells. Min is never greater than Max on any axis.
type Region3 struct {
	Min NodeLoc3
	Max NodeLoc3
}

// CreateRegion returns the region from locMin to locMax. A region whose min exceeds its max on any
// axis is rejected with ErrInvalidRegion.
func CreateRegion(locMin, locMax NodeLoc3) (Region3, error) {
	for _, a := range spatialmath.Axes {
		if locMin.Get(a) > locMax.Get(a) {
			return Region3{}, errors.Wrapf(ErrInvalidRegion, "min %v exceeds max %v on %v axis", locMin, locMax, a)
		}
	}
	return Region3{Min: locMin, Max: locMax}, nil
}

// NormalizeRegion returns the region spanned by two arbitrary corners.
func NormalizeRegion(a, b NodeLoc3) Region3 {
	var r Region3
	for _, ax := range spatialmath.Axes {
		lo, hi := a.Get(ax), b.Get(ax)
		if lo > hi {
			lo, hi = hi, lo
		}
		r.Min = r.Min.With(ax, lo)
		r.Max = r.Max.With(ax, hi)
	}
	return r
}

// Contains returns whether l lies inside the region.
func (r Region3) Contains(l NodeLoc3) bool {
	for _, a := range spatialmath.Axes {
		if l.Get(a) < r.Min.Get(a) || l.Get(a) > r.Max.Get(a) {
			return false
		}
	}
	return true
}

// Size returns the number of codes covered on each axis.
func (r Region3) Size() [3]int {
	var s [3]int
	for i, a := range spatialmath.Axes {
		s[i] = int(r.Max.Get(a)) - int(r.Min.Get(a)) + 1
	}
	return s
}

func (r Region3) String() string {
	return fmt.Sprintf("[%v, %v]", r.Min, r.Max)
}

// ClampLoc clamps loc to the inclusive range [rMin, rMax]. Swapped bounds are reordered.
func ClampLoc(loc, rMin, rMax NodeLoc) NodeLoc {
	if rMin > rMax {
		rMin, rMax = rMax, rMin
	}
	if loc < rMin {
		return rMin
	}
	if loc > rMax {
		return rMax
	}
	return loc
}

// ClampLoc3 clamps each code of loc to the region.
func ClampLoc3(loc NodeLoc3, r Region3) NodeLoc3 {
	return NodeLoc3{
		X: ClampLoc(loc.X, r.Min.X, r.Max.X),
		Y: ClampLoc(loc.Y, r.Min.Y, r.Max.Y),
		Z: ClampLoc(loc.Z, r.Min.Z, r.Max.Z),
	}
}
