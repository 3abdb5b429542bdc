package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Triangle is a triangle in space with a cached unit normal.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle returns the triangle p0, p1, p2. The normal follows the right hand rule.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// Points returns the three vertices.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Vertex returns vertex i (mod 3).
func (t *Triangle) Vertex(i int) r3.Vector {
	switch i % 3 {
	case 0:
		return t.p0
	case 1:
		return t.p1
	default:
		return t.p2
	}
}

// Normal returns the unit normal, or the zero vector for a degenerate triangle.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Degenerate returns whether the vertices are collinear.
func (t *Triangle) Degenerate() bool {
	return t.normal.Norm2() == 0
}

// Bounds returns the axis aligned bounding box.
func (t *Triangle) Bounds() Box {
	return BoxFromPoints(t.p0, t.p1, t.p2)
}

// ClosestPointToPoint takes a point, and returns the closest point on the triangle to the given point.
func (t *Triangle) ClosestPointToPoint(point r3.Vector) r3.Vector {
	closestPtInside, inside := t.ClosestInsidePoint(point)
	if inside {
		return closestPtInside
	}

	// If the closest point is outside the triangle, it must be on an edge, so we
	// check each triangle edge for a closest point to the point pt.
	closestPt := ClosestPointSegmentPoint(t.p0, t.p1, point)
	bestDist := point.Sub(closestPt).Norm2()

	newPt := ClosestPointSegmentPoint(t.p1, t.p2, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		closestPt = newPt
		bestDist = newDist
	}

	newPt = ClosestPointSegmentPoint(t.p2, t.p0, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		return newPt
	}
	return closestPt
}

// DistanceToPoint returns the unsigned distance from point to the triangle.
func (t *Triangle) DistanceToPoint(point r3.Vector) float64 {
	return point.Sub(t.ClosestPointToPoint(point)).Norm()
}

// ClosestInsidePoint returns the closest point on a triangle IF AND ONLY IF the query point's projection overlaps
// the triangle. Otherwise the second return value is false. Degenerate triangles never report an inside point.
func (t *Triangle) ClosestInsidePoint(point r3.Vector) (r3.Vector, bool) {
	eps := 1e-6

	// Parametrize the triangle s.t. a point inside the triangle is
	// Q = p0 + u * e0 + v * e1, when 0 <= u <= 1, 0 <= v <= 1, and
	// 0 <= u + v <= 1. Let e0 = (p1 - p0) and e1 = (p2 - p0).
	// We analytically minimize the distance between the point pt and Q.
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	d := point.Sub(t.p0)
	det := (a*c - b*b)
	if det == 0 {
		return point, false
	}
	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	inside := (0 <= u+eps) && (u <= 1+eps) && (0 <= v+eps) && (v <= 1+eps) && (u+v <= 1+eps)
	return t.p0.Add(e0.Mul(u)).Add(e1.Mul(v)), inside
}

func (t *Triangle) String() string {
	return fmt.Sprintf("triangle[%v, %v, %v]", t.p0, t.p1, t.p2)
}
