package octree

import (
	"github.com/pkg/errors"

	"go.viam.com/voxeltree/spatialmath"
)

// ExportOptions selects and colors the voxels written by ExportVoxelsGLB.
type ExportOptions struct {
	Filter NodeFilter
	// Colors maps voxel classes to colors. Nil means DefaultVoxelClassColors. Voxels matching no
	// rule are skipped.
	Colors []VoxelClassColor
	// Alpha is the opacity of every voxel. Zero means opaque.
	Alpha float64
}

// ExportVoxelsMesh builds a mesh with one cube per voxel matching opts and the color of each of
// its triangles.
func ExportVoxelsMesh(s *Store, opts ExportOptions) (*spatialmath.Mesh, [][4]float32, error) {
	colors := opts.Colors
	if colors == nil {
		colors = DefaultVoxelClassColors()
	}
	alpha := opts.Alpha
	if alpha == 0 {
		alpha = 1
	}
	refs, err := s.Nodes(opts.Filter)
	if err != nil {
		return nil, nil, err
	}
	var tris []*spatialmath.Triangle
	var triColors [][4]float32
	for _, ref := range refs {
		dt, err := s.DataType(ref)
		if err != nil {
			return nil, nil, err
		}
		if dt == DataTypeDensity {
			continue
		}
		c, err := s.VoxelClass(ref)
		if err != nil {
			return nil, nil, err
		}
		col, ok := GetVoxelClassColor(colors, c)
		if !ok {
			continue
		}
		id, err := s.ID(ref)
		if err != nil {
			return nil, nil, err
		}
		rgba := ColorToRGBA(col, alpha)
		for _, t := range s.ctx.VoxelBox(id).Triangles() {
			tris = append(tris, t)
			triColors = append(triColors, rgba)
		}
	}
	if len(tris) == 0 {
		return nil, nil, errors.New("no voxels to export")
	}
	return spatialmath.NewMesh(tris), triColors, nil
}

// ExportVoxelsGLB writes the voxels matching opts as colored cubes to a binary glTF file and
// returns the number of cubes written.
func ExportVoxelsGLB(s *Store, path string, opts ExportOptions) (int, error) {
	m, colors, err := ExportVoxelsMesh(s, opts)
	if err != nil {
		return 0, err
	}
	if err := spatialmath.SaveMeshGLB(path, m, colors); err != nil {
		return 0, err
	}
	cubes := len(m.Triangles()) / 12
	s.logger.Debugw("exported voxels", "path", path, "cubes", cubes)
	return cubes, nil
}
