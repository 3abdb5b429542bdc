package spatialmath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/qmuntal/gltf"
	"go.viam.com/test"
)

func makeTestMesh() *Mesh {
	return NewMesh(NewBox(r3.Vector{}, r3.Vector{2, 1, 1}).Triangles())
}

func TestNewMesh(t *testing.T) {
	m := makeTestMesh()
	test.That(t, m.Triangles(), test.ShouldHaveLength, 12)

	_, err := NewMesh(nil).Bounds()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMeshTransform(t *testing.T) {
	m := makeTestMesh().Transform(2, r3.Vector{1, -1, 0})
	bounds, err := m.Bounds()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bounds, test.ShouldResemble, Box{Min: r3.Vector{1, -1, 0}, Max: r3.Vector{5, 1, 2}})

	orig := makeTestMesh()
	orig.Transform(3, r3.Vector{})
	bounds, err = orig.Bounds()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bounds.Max, test.ShouldResemble, r3.Vector{2, 1, 1})
}

func TestMeshFitToBox(t *testing.T) {
	m, err := makeTestMesh().FitToBox(NewBox(r3.Vector{}, r3.Vector{1, 1, 1}))
	test.That(t, err, test.ShouldBeNil)
	bounds, err := m.Bounds()
	test.That(t, err, test.ShouldBeNil)
	vectorsAlmostEqual(t, bounds.Min, r3.Vector{0, 0.25, 0.25})
	vectorsAlmostEqual(t, bounds.Max, r3.Vector{1, 0.75, 0.75})

	// the smallest extent of the target limits the scale
	m, err = makeTestMesh().FitToBox(NewBox(r3.Vector{}, r3.Vector{4, 4, 1}))
	test.That(t, err, test.ShouldBeNil)
	bounds, err = m.Bounds()
	test.That(t, err, test.ShouldBeNil)
	vectorsAlmostEqual(t, bounds.Size(), r3.Vector{1, 0.5, 0.5})
	vectorsAlmostEqual(t, bounds.Center(), r3.Vector{2, 2, 0.5})

	p := r3.Vector{1, 1, 1}
	_, err = NewMesh([]*Triangle{NewTriangle(p, p, p)}).FitToBox(NewBox(r3.Vector{}, r3.Vector{1, 1, 1}))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewMesh(nil).FitToBox(NewBox(r3.Vector{}, r3.Vector{1, 1, 1}))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMeshGLTF(t *testing.T) {
	m := makeTestMesh()

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "box.glb")
		test.That(t, SaveMeshGLB(path, m, nil), test.ShouldBeNil)
		info, err := os.Stat(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

		read, err := NewMeshFromGLTFFile(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.Triangles(), test.ShouldHaveLength, len(m.Triangles()))
		for i, tri := range read.Triangles() {
			for j := 0; j < 3; j++ {
				vectorsAlmostEqual(t, tri.Vertex(j), m.Triangles()[i].Vertex(j))
			}
		}
	})

	t.Run("colors", func(t *testing.T) {
		colors := make([][4]float32, len(m.Triangles()))
		for i := range colors {
			colors[i] = [4]float32{1, 0, 0, 1}
		}
		doc, err := MeshToGLTF(m, colors)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, doc.Materials[0].AlphaMode, test.ShouldEqual, gltf.AlphaOpaque)
		prim := doc.Meshes[0].Primitives[0]
		test.That(t, prim.Attributes, test.ShouldResemble, gltf.PrimitiveAttributes{
			gltf.POSITION: 0, gltf.NORMAL: 1, gltf.COLOR_0: 2,
		})
		test.That(t, *prim.Indices, test.ShouldEqual, 3)
		test.That(t, doc.Accessors[prim.Attributes[gltf.COLOR_0]].Count, test.ShouldEqual, 36)
		test.That(t, doc.Scenes[0].Nodes, test.ShouldResemble, []int{0})

		colors[3][3] = 0.5
		doc, err = MeshToGLTF(m, colors)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, doc.Materials[0].AlphaMode, test.ShouldEqual, gltf.AlphaBlend)

		read, err := NewMeshFromGLTF(doc)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.Triangles(), test.ShouldHaveLength, 12)

		_, err = MeshToGLTF(m, colors[:5])
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := MeshToGLTF(NewMesh(nil), nil)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewMeshFromGLTFFile(filepath.Join(t.TempDir(), "missing.glb"))
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewMeshFromGLTF(gltf.NewDocument())
		test.That(t, err, test.ShouldNotBeNil)
	})
}
