package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Mesh is a set of triangles.
type Mesh struct {
	triangles []*Triangle
}

// NewMesh returns a mesh of the given triangles.
func NewMesh(triangles []*Triangle) *Mesh {
	return &Mesh{
		triangles: triangles,
	}
}

// Triangles returns the triangles of the mesh.
func (m *Mesh) Triangles() []*Triangle {
	return m.triangles
}

// Bounds returns the axis aligned bounding box of the mesh.
func (m *Mesh) Bounds() (Box, error) {
	if len(m.triangles) == 0 {
		return Box{}, errors.New("cannot compute bounds of an empty mesh")
	}
	b := m.triangles[0].Bounds()
	for _, t := range m.triangles[1:] {
		b = b.Union(t.Bounds())
	}
	return b, nil
}

// Transform returns a new mesh with every vertex scaled by scale and then moved by offset.
func (m *Mesh) Transform(scale float64, offset r3.Vector) *Mesh {
	tris := make([]*Triangle, 0, len(m.triangles))
	for _, t := range m.triangles {
		tris = append(tris, NewTriangle(
			t.p0.Mul(scale).Add(offset),
			t.p1.Mul(scale).Add(offset),
			t.p2.Mul(scale).Add(offset),
		))
	}
	return NewMesh(tris)
}

// FitToBox uniformly scales and moves the mesh so that its bounding box is centered in target and
// its largest extent equals the smallest extent of target.
func (m *Mesh) FitToBox(target Box) (*Mesh, error) {
	b, err := m.Bounds()
	if err != nil {
		return nil, err
	}
	size := b.Size()
	extent := math.Max(size.X, math.Max(size.Y, size.Z))
	if extent == 0 {
		return nil, errors.New("cannot fit a mesh without extent")
	}
	ts := target.Size()
	scale := math.Min(ts.X, math.Min(ts.Y, ts.Z)) / extent
	offset := target.Center().Sub(b.Center().Mul(scale))
	return m.Transform(scale, offset), nil
}
