package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Primitive is a shape with a signed distance function. Negative distances are inside (or behind)
// the shape, positive distances are outside (or in front of) it and zero is on its surface.
//
// The set of primitives is closed: Plane, Sphere and Capsule.
type Primitive interface {
	SignedDistance(v r3.Vector) float64
	String() string
	isPrimitive()
}

// Plane is an oriented plane given by a point on it and a unit normal.
type Plane struct {
	Point  r3.Vector
	Normal r3.Vector
}

// NewPlane returns a plane through p with normal n. The normal is normalized.
func NewPlane(p, n r3.Vector) (Plane, error) {
	if n.Norm() < floatEpsilon {
		return Plane{}, errors.Errorf("cannot create plane with degenerate normal %v", n)
	}
	return Plane{Point: p, Normal: n.Normalize()}, nil
}

// SignedDistance implements Primitive.
func (p Plane) SignedDistance(v r3.Vector) float64 {
	return DistanceToPlane(v, p)
}

func (p Plane) String() string {
	return fmt.Sprintf("plane[p = %v, n = %v]", p.Point, p.Normal)
}

func (Plane) isPrimitive() {}

// DistanceToPlane returns the signed distance from v to the plane, positive on the side the normal points to.
func DistanceToPlane(v r3.Vector, p Plane) float64 {
	return p.Normal.Dot(v.Sub(p.Point))
}

// Sphere is a ball with center and radius.
type Sphere struct {
	Center r3.Vector
	Radius float64
}

// SignedDistance implements Primitive.
func (s Sphere) SignedDistance(v r3.Vector) float64 {
	return DistanceToSphere(v, s)
}

func (s Sphere) String() string {
	return fmt.Sprintf("sphere[c = %v, r = %g]", s.Center, s.Radius)
}

func (Sphere) isPrimitive() {}

// DistanceToSphere returns the signed distance from v to the sphere surface.
func DistanceToSphere(v r3.Vector, s Sphere) float64 {
	return v.Sub(s.Center).Norm() - s.Radius
}

// Capsule is a cylinder with hemispherical caps. Center is the middle of the axis segment,
// Direction is the unit axis direction and Length is the length of the axis segment, so the
// capsule extends Length/2 + Radius from the center along the axis.
//
// ....___________________
// .../                   \
// ..|  |-------O-------|  |
// ...\___________________/
type Capsule struct {
	Center    r3.Vector
	Direction r3.Vector
	Length    float64
	Radius    float64
}

// NewCapsuleFromSegment returns the capsule around the segment from a to b.
func NewCapsuleFromSegment(a, b r3.Vector, radius float64) Capsule {
	d := b.Sub(a)
	length := d.Norm()
	dir := r3.Vector{}
	if length > 0 {
		dir = d.Mul(1 / length)
	}
	return Capsule{
		Center:    a.Add(b).Mul(0.5),
		Direction: dir,
		Length:    length,
		Radius:    radius,
	}
}

// Segment returns the endpoints of the capsule axis.
func (c Capsule) Segment() (r3.Vector, r3.Vector) {
	half := c.Direction.Mul(c.Length / 2)
	return c.Center.Sub(half), c.Center.Add(half)
}

// SignedDistance implements Primitive.
func (c Capsule) SignedDistance(v r3.Vector) float64 {
	return DistanceToCylinderSC(v, c)
}

func (c Capsule) String() string {
	return fmt.Sprintf("capsule[c = %v, dir = %v, l = %g, r = %g]", c.Center, c.Direction, c.Length, c.Radius)
}

func (Capsule) isPrimitive() {}

// DistanceToCylinderSC returns the signed distance from v to a cylinder with spherical caps.
// Inside the axis span the distance is measured to the mantle, beyond it to the cap sphere. Both
// branches measure the distance to the closest axis point, so the result is continuous.
func DistanceToCylinderSC(v r3.Vector, c Capsule) float64 {
	rel := v.Sub(c.Center)
	d0 := c.Direction.Dot(rel)
	s0 := c.Length / 2
	if math.Abs(d0) <= s0 {
		return rel.Sub(c.Direction.Mul(d0)).Norm() - c.Radius
	}
	capCenter := c.Center.Add(c.Direction.Mul(math.Copysign(s0, d0)))
	return DistanceToSphere(v, Sphere{Center: capCenter, Radius: c.Radius})
}
