package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/samber/lo"
)

// NewMeshFromGLTFFile reads every triangle primitive of a glTF or glb file into a single mesh.
// Node transforms are not applied; vertices are taken in mesh space.
func NewMeshFromGLTFFile(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open gltf file %q", path)
	}
	return NewMeshFromGLTF(doc)
}

// NewMeshFromGLTF converts the triangle primitives of a decoded glTF document into a mesh.
func NewMeshFromGLTF(doc *gltf.Document) (*Mesh, error) {
	var tris []*Triangle
	for _, m := range doc.Meshes {
		for _, p := range m.Primitives {
			if p.Mode != gltf.PrimitiveTriangles {
				continue
			}
			posIdx, ok := p.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			if posIdx < 0 || posIdx >= len(doc.Accessors) {
				return nil, errors.Errorf("mesh %q references missing position accessor %d", m.Name, posIdx)
			}
			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, errors.Wrapf(err, "cannot read positions of mesh %q", m.Name)
			}
			verts := lo.Map(positions, func(p [3]float32, _ int) r3.Vector {
				return r3.Vector{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
			})

			var indices []uint32
			if p.Indices != nil {
				if *p.Indices < 0 || *p.Indices >= len(doc.Accessors) {
					return nil, errors.Errorf("mesh %q references missing index accessor %d", m.Name, *p.Indices)
				}
				indices, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
				if err != nil {
					return nil, errors.Wrapf(err, "cannot read indices of mesh %q", m.Name)
				}
			} else {
				indices = lo.Times(len(verts), func(i int) uint32 { return uint32(i) })
			}
			if len(indices)%3 != 0 {
				return nil, errors.Errorf("mesh %q has %d indices, not a multiple of 3", m.Name, len(indices))
			}
			for i := 0; i < len(indices); i += 3 {
				i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
				if int(i0) >= len(verts) || int(i1) >= len(verts) || int(i2) >= len(verts) {
					return nil, errors.Errorf("mesh %q has vertex index out of range", m.Name)
				}
				tris = append(tris, NewTriangle(verts[i0], verts[i1], verts[i2]))
			}
		}
	}
	if len(tris) == 0 {
		return nil, errors.New("gltf document contains no triangles")
	}
	return NewMesh(tris), nil
}

// MeshToGLTF builds a glTF document holding the mesh with flat normals. colors holds one RGBA
// color per triangle; nil colors every triangle white.
func MeshToGLTF(m *Mesh, colors [][4]float32) (*gltf.Document, error) {
	if len(m.triangles) == 0 {
		return nil, errors.New("cannot export an empty mesh")
	}
	if colors != nil && len(colors) != len(m.triangles) {
		return nil, errors.Errorf("got %d colors for %d triangles", len(colors), len(m.triangles))
	}

	positions := make([][3]float32, 0, 3*len(m.triangles))
	normals := make([][3]float32, 0, 3*len(m.triangles))
	vertColors := make([][4]float32, 0, 3*len(m.triangles))
	hasAlpha := false
	for i, t := range m.triangles {
		n := t.Normal()
		c := [4]float32{1, 1, 1, 1}
		if colors != nil {
			c = colors[i]
		}
		if c[3] < 1 {
			hasAlpha = true
		}
		for _, p := range t.Points() {
			positions = append(positions, [3]float32{float32(p.X), float32(p.Y), float32(p.Z)})
			normals = append(normals, [3]float32{float32(n.X), float32(n.Y), float32(n.Z)})
			vertColors = append(vertColors, c)
		}
	}
	indices := lo.Times(len(positions), func(i int) uint32 { return uint32(i) })

	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxeltree"

	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	colorAccessor := modeler.WriteColor(doc, vertColors)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: posAccessor,
			gltf.NORMAL:   normalAccessor,
			gltf.COLOR_0:  colorAccessor,
		},
		Indices:  gltf.Index(indicesAccessor),
		Material: gltf.Index(0),
	}

	material := &gltf.Material{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode: gltf.AlphaOpaque,
	}
	if hasAlpha {
		material.AlphaMode = gltf.AlphaBlend
	}
	doc.Materials = []*gltf.Material{material}
	doc.Meshes = []*gltf.Mesh{{Name: "mesh", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}

// SaveMeshGLB writes the mesh as a binary glTF file. See MeshToGLTF for colors.
func SaveMeshGLB(path string, m *Mesh, colors [][4]float32) error {
	doc, err := MeshToGLTF(m, colors)
	if err != nil {
		return err
	}
	return errors.Wrapf(gltf.SaveBinary(doc, path), "cannot write %q", path)
}
