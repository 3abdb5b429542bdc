package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// BoxFaces is a bit set of the six faces of an axis aligned box.
type BoxFaces uint8

// Face bits, ordered -x, +x, -y, +y, -z, +z.
const (
	BoxFaceX0 BoxFaces = 1 << iota
	BoxFaceX1
	BoxFaceY0
	BoxFaceY1
	BoxFaceZ0
	BoxFaceZ1
	BoxFaceNone BoxFaces = 0
	BoxFaceAll  BoxFaces = 63
)

// MinFace returns the face bit of the low side of the box along a.
func MinFace(a Axis) BoxFaces {
	if !a.Valid() {
		return BoxFaceNone
	}
	return BoxFaceX0 << (2 * uint(a))
}

// MaxFace returns the face bit of the high side of the box along a.
func MaxFace(a Axis) BoxFaces {
	if !a.Valid() {
		return BoxFaceNone
	}
	return BoxFaceX1 << (2 * uint(a))
}

// Ordered list of unit box corners, indexed by x | y<<1 | z<<2.
var boxCorners = [8]r3.Vector{
	{0, 0, 0},
	{1, 0, 0},
	{0, 1, 0},
	{1, 1, 0},
	{0, 0, 1},
	{1, 0, 1},
	{0, 1, 1},
	{1, 1, 1},
}

// Corner indices of the two triangles of each face, wound counter clockwise seen from outside.
var boxTriangles = [12][3]int{
	{0, 4, 6}, {0, 6, 2}, // -x
	{1, 3, 7}, {1, 7, 5}, // +x
	{0, 1, 5}, {0, 5, 4}, // -y
	{2, 6, 7}, {2, 7, 3}, // +y
	{0, 2, 3}, {0, 3, 1}, // -z
	{4, 5, 7}, {4, 7, 6}, // +z
}

// Box is an axis aligned box given by its minimum and maximum corners.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBox returns the box spanned by two arbitrary corners.
func NewBox(a, b r3.Vector) Box {
	return Box{Min: VectorMin(a, b), Max: VectorMax(a, b)}
}

// BoxFromPoints returns the smallest box containing all points. The zero box is returned for no points.
func BoxFromPoints(pts ...r3.Vector) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = VectorMin(b.Min, p)
		b.Max = VectorMax(b.Max, p)
	}
	return b
}

// Center returns the center of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis.
func (b Box) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Contains returns whether pt lies inside or on the box.
func (b Box) Contains(pt r3.Vector) bool {
	return pt.X >= b.Min.X && pt.X <= b.Max.X &&
		pt.Y >= b.Min.Y && pt.Y <= b.Max.Y &&
		pt.Z >= b.Min.Z && pt.Z <= b.Max.Z
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(o Box) Box {
	return Box{Min: VectorMin(b.Min, o.Min), Max: VectorMax(b.Max, o.Max)}
}

// Expand grows the box by d on every side.
func (b Box) Expand(d float64) Box {
	off := r3.Vector{X: d, Y: d, Z: d}
	return Box{Min: b.Min.Sub(off), Max: b.Max.Add(off)}
}

// Corner returns the corner with index x | y<<1 | z<<2.
func (b Box) Corner(i int) r3.Vector {
	c := boxCorners[i&7]
	s := b.Size()
	return b.Min.Add(r3.Vector{X: c.X * s.X, Y: c.Y * s.Y, Z: c.Z * s.Z})
}

// Triangles returns the 12 triangles tiling the box surface with outward facing normals.
func (b Box) Triangles() []*Triangle {
	tris := make([]*Triangle, 0, len(boxTriangles))
	for _, t := range boxTriangles {
		tris = append(tris, NewTriangle(b.Corner(t[0]), b.Corner(t[1]), b.Corner(t[2])))
	}
	return tris
}

func (b Box) String() string {
	return fmt.Sprintf("[%v, %v]", b.Min, b.Max)
}

// Ray is a half line starting at Origin. Direction need not be normalized, the ray parameter t is
// measured in multiples of Direction.
type Ray struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// At returns the point at parameter t.
func (r Ray) At(t float64) r3.Vector {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Reverse returns the ray running the other way from the same origin.
func (r Ray) Reverse() Ray {
	return Ray{Origin: r.Origin, Direction: r.Direction.Mul(-1)}
}

// BoxIntersection is the result of intersecting a ray with the slabs of an axis aligned box.
// NearPlane and FarPlane hold the faces through which the ray enters and leaves; more than one
// bit is set when the ray passes through an edge or a corner.
type BoxIntersection struct {
	Valid     bool
	TNear     float64
	TFar      float64
	NearPlane BoxFaces
	FarPlane  BoxFaces
}

func (bi BoxIntersection) String() string {
	if !bi.Valid {
		return "<no intersection>"
	}
	return fmt.Sprintf("tNear = %g, tFar = %g, nearPlane = %d, farPlane = %d", bi.TNear, bi.TFar, bi.NearPlane, bi.FarPlane)
}

// IntersectRay intersects the ray with the box using the slab method. A ray that misses the box, or
// whose box intersection lies entirely behind the origin, yields an invalid result.
func (b Box) IntersectRay(r Ray) BoxIntersection {
	if r.Direction.Norm2() == 0 {
		return BoxIntersection{}
	}
	tNear := math.Inf(-1)
	tFar := math.Inf(1)
	var nearPlane, farPlane BoxFaces
	for _, a := range Axes {
		o := a.Component(r.Origin)
		d := a.Component(r.Direction)
		lo := a.Component(b.Min)
		hi := a.Component(b.Max)
		if d == 0 {
			if o < lo || o > hi {
				return BoxIntersection{}
			}
			continue
		}
		t0 := (lo - o) / d
		t1 := (hi - o) / d
		f0, f1 := MinFace(a), MaxFace(a)
		if t0 > t1 {
			t0, t1 = t1, t0
			f0, f1 = f1, f0
		}
		switch {
		case t0 > tNear:
			tNear = t0
			nearPlane = f0
		case t0 == tNear:
			nearPlane |= f0
		}
		switch {
		case t1 < tFar:
			tFar = t1
			farPlane = f1
		case t1 == tFar:
			farPlane |= f1
		}
		if tNear > tFar {
			return BoxIntersection{}
		}
	}
	if tFar < 0 {
		return BoxIntersection{}
	}
	return BoxIntersection{Valid: true, TNear: tNear, TFar: tFar, NearPlane: nearPlane, FarPlane: farPlane}
}
