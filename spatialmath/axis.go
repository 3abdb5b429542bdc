package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Axis names one of the three coordinate axes.
type Axis int

// The three coordinate axes. AxisUndefined is used where an operation did not find an axis.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisUndefined Axis = -1
)

// Axes lists the three valid axes in order.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

// Valid returns whether the axis is one of x, y or z.
func (a Axis) Valid() bool {
	return a >= AxisX && a <= AxisZ
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	case AxisUndefined:
		return "undefined"
	default:
		return "invalid"
	}
}

// Unit returns the unit vector along the axis.
func (a Axis) Unit() r3.Vector {
	switch a {
	case AxisX:
		return r3.Vector{X: 1}
	case AxisY:
		return r3.Vector{Y: 1}
	case AxisZ:
		return r3.Vector{Z: 1}
	default:
		return r3.Vector{}
	}
}

// Component returns the component of v along the axis.
func (a Axis) Component(v r3.Vector) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return 0
	}
}

// Others returns the two remaining axes in cyclic order.
func (a Axis) Others() (Axis, Axis) {
	return (a + 1) % 3, (a + 2) % 3
}

// WithComponent returns a copy of v with the component along a replaced by value.
func WithComponent(v r3.Vector, a Axis, value float64) r3.Vector {
	switch a {
	case AxisX:
		v.X = value
	case AxisY:
		v.Y = value
	case AxisZ:
		v.Z = value
	default:
	}
	return v
}

// AxisOf returns the axis a direction is parallel to, or AxisUndefined if it is not axis aligned.
func AxisOf(dir r3.Vector) Axis {
	found := AxisUndefined
	for _, a := range Axes {
		if a.Component(dir) == 0 {
			continue
		}
		if found != AxisUndefined {
			return AxisUndefined
		}
		found = a
	}
	return found
}
