package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

const floatEpsilon = 1e-6

// Sqrt3 and Sqrt3Inv are used for voxel diagonals.
var (
	Sqrt3    = math.Sqrt(3)
	Sqrt3Inv = 1 / math.Sqrt(3)
)

// PlaneNormal returns the unit normal of the plane through p0, p1 and p2, following the right hand rule.
// Collinear points produce the zero vector.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Norm() < floatEpsilon*floatEpsilon {
		return r3.Vector{}
	}
	return n.Normalize()
}

// ClosestPointSegmentPoint takes a line segment defined by two points and a third point, and returns
// the closest point on the segment to the third point.
func ClosestPointSegmentPoint(segA, segB, pt r3.Vector) r3.Vector {
	ab := segB.Sub(segA)
	denom := ab.Norm2()
	if denom == 0 {
		return segA
	}
	t := pt.Sub(segA).Dot(ab) / denom
	t = math.Max(0, math.Min(1, t))
	return segA.Add(ab.Mul(t))
}

// DistToLineSegment returns the distance from pt to the segment between segA and segB.
func DistToLineSegment(segA, segB, pt r3.Vector) float64 {
	return pt.Sub(ClosestPointSegmentPoint(segA, segB, pt)).Norm()
}

// VectorMin returns the component-wise minimum.
func VectorMin(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

// VectorMax returns the component-wise maximum.
func VectorMax(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// SignVector returns a vector whose components are -1 or 1 depending on the sign of the
// components of v. Zero components map to 1.
func SignVector(v r3.Vector) r3.Vector {
	sign := func(f float64) float64 {
		if f < 0 {
			return -1
		}
		return 1
	}
	return r3.Vector{X: sign(v.X), Y: sign(v.Y), Z: sign(v.Z)}
}
