package octree

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/voxeltree/logging"
	"go.viam.com/voxeltree/spatialmath"
)

// TriangleVoxelizationData holds the bounding primitives of a triangle for voxelization at one
// depth, after Huang et al. 1998. A voxel is on the surface if its center lies between the offset
// planes and inside the edge planes, or within any edge capsule or vertex sphere.
type TriangleVoxelizationData struct {
	VoxelSize    float64
	Triangle     *spatialmath.Triangle
	Normal       r3.Vector
	Separability int
	// T is the half thickness of the slab between PlaneU and PlaneL.
	T float64
	// RC is the radius of the edge capsules and vertex spheres.
	RC        float64
	Tolerance float64

	PlaneU     spatialmath.Plane
	PlaneL     spatialmath.Plane
	EdgePlanes [3]spatialmath.Plane
	Edges      [3]spatialmath.Capsule
	Vertices   [3]spatialmath.Sphere

	Depth int
	// Node is the smallest node containing every voxel the triangle can mark.
	Node NodeID
}

// NewTriangleVoxelizationData precomputes the voxelization primitives of tri for voxels at depth.
// separability is Separability6 or Separability26.
func (c *Context) NewTriangleVoxelizationData(
	tri *spatialmath.Triangle,
	separability, depth int,
) (*TriangleVoxelizationData, error) {
	if err := c.CheckDepth(depth); err != nil {
		return nil, err
	}
	if tri.Degenerate() {
		return nil, errors.Wrapf(ErrDegenerateTriangle, "%v", tri)
	}
	s := c.VoxelSize(depth)
	n := tri.Normal()
	d := &TriangleVoxelizationData{
		VoxelSize:    s,
		Triangle:     tri,
		Normal:       n,
		Separability: separability,
		Tolerance:    c.tolerance,
		Depth:        depth,
	}
	switch separability {
	case Separability26:
		d.T = 0.5 * s * (math.Abs(n.X) + math.Abs(n.Y) + math.Abs(n.Z))
		d.RC = 0.5 * spatialmath.Sqrt3 * s
	case Separability6:
		d.T = 0.5 * s * math.Max(math.Abs(n.X), math.Max(math.Abs(n.Y), math.Abs(n.Z)))
		d.RC = 0.5 * s
	default:
		return nil, errors.Errorf("unsupported separability %d", separability)
	}

	v0 := tri.Vertex(0)
	d.PlaneU = spatialmath.Plane{Point: v0.Add(n.Mul(d.T)), Normal: n}
	d.PlaneL = spatialmath.Plane{Point: v0.Sub(n.Mul(d.T)), Normal: n.Mul(-1)}
	for i := 0; i < 3; i++ {
		a, b := tri.Vertex(i), tri.Vertex(i+1)
		p, err := spatialmath.NewPlane(a, b.Sub(a).Cross(n))
		if err != nil {
			return nil, errors.Wrapf(ErrDegenerateTriangle, "edge %d: %v", i, err)
		}
		d.EdgePlanes[i] = p
		d.Edges[i] = spatialmath.NewCapsuleFromSegment(a, b, d.RC)
		d.Vertices[i] = spatialmath.Sphere{Center: a, Radius: d.RC}
	}

	node, err := c.ContainingNode(tri.Bounds().Expand(d.RC))
	if err != nil {
		return nil, err
	}
	if node.Depth > depth {
		node = NodeID{Depth: depth, Loc: node.Loc.Mask(c.LocMask(depth))}
	}
	d.Node = node
	return d, nil
}

// surfaceReach bounds the distance to the triangle of any point passing VoxelizePointTest. Points
// within tolerance of the edge planes can lie beyond a vertex by Tolerance/sin(angle/2).
func (d *TriangleVoxelizationData) surfaceReach() float64 {
	minHalfSin := 1.0
	for i := 0; i < 3; i++ {
		a := d.Triangle.Vertex(i)
		e1 := d.Triangle.Vertex(i + 1).Sub(a).Normalize()
		e2 := d.Triangle.Vertex(i + 2).Sub(a).Normalize()
		minHalfSin = math.Min(minHalfSin, math.Sqrt(math.Max(0, (1-e1.Dot(e2))/2)))
	}
	if minHalfSin == 0 {
		return math.Inf(1)
	}
	return d.RC + d.Tolerance + d.Tolerance/minHalfSin
}

func (d *TriangleVoxelizationData) String() string {
	return TriangleVoxelizationDataString(d)
}

// PointTestTrace records the distances evaluated by VoxelizePointTestDebug.
type PointTestTrace struct {
	Point      r3.Vector
	PlaneU     float64
	PlaneL     float64
	EdgePlanes [3]float64
	Edges      [3]float64
	Vertices   [3]float64
	// InsidePlanes is set if the point is within all five planes.
	InsidePlanes bool
	// Edge and Vertex are the index of the first capsule or sphere containing the point, or -1.
	Edge   int
	Vertex int
	Result bool
}

// VoxelizePointTest returns whether a voxel centered at v is on the surface of the triangle.
func VoxelizePointTest(d *TriangleVoxelizationData, v r3.Vector) bool {
	tol := d.Tolerance
	inside := d.PlaneU.SignedDistance(v) <= tol && d.PlaneL.SignedDistance(v) <= tol
	for i := 0; inside && i < 3; i++ {
		inside = d.EdgePlanes[i].SignedDistance(v) <= tol
	}
	if inside {
		return true
	}
	for i := 0; i < 3; i++ {
		if d.Edges[i].SignedDistance(v) <= tol || d.Vertices[i].SignedDistance(v) <= tol {
			return true
		}
	}
	return false
}

// VoxelizePointTestDebug is VoxelizePointTest reporting every distance it evaluates. The trace is
// logged at debug level if logger is not nil.
func VoxelizePointTestDebug(d *TriangleVoxelizationData, v r3.Vector, logger logging.Logger) (bool, PointTestTrace) {
	tol := d.Tolerance
	tr := PointTestTrace{
		Point:  v,
		PlaneU: d.PlaneU.SignedDistance(v),
		PlaneL: d.PlaneL.SignedDistance(v),
		Edge:   -1,
		Vertex: -1,
	}
	tr.InsidePlanes = tr.PlaneU <= tol && tr.PlaneL <= tol
	for i := 0; i < 3; i++ {
		tr.EdgePlanes[i] = d.EdgePlanes[i].SignedDistance(v)
		tr.Edges[i] = d.Edges[i].SignedDistance(v)
		tr.Vertices[i] = d.Vertices[i].SignedDistance(v)
		tr.InsidePlanes = tr.InsidePlanes && tr.EdgePlanes[i] <= tol
		if tr.Edge < 0 && tr.Edges[i] <= tol {
			tr.Edge = i
		}
		if tr.Vertex < 0 && tr.Vertices[i] <= tol {
			tr.Vertex = i
		}
	}
	tr.Result = tr.InsidePlanes || tr.Edge >= 0 || tr.Vertex >= 0
	if logger != nil {
		logger.Debugw("voxelize point test",
			"point", v,
			"planeU", tr.PlaneU,
			"planeL", tr.PlaneL,
			"edgePlanes", tr.EdgePlanes,
			"edges", tr.Edges,
			"vertices", tr.Vertices,
			"result", tr.Result)
	}
	return tr.Result, tr
}

// VoxelizeOptions configures a Voxelizer.
type VoxelizeOptions struct {
	Depth int
	// Separability is Separability6 or Separability26. Zero means Separability26.
	Separability int
	Target       VoxelizationTarget
	// FillSiblings creates the missing siblings of every marked voxel and marks those without
	// payload as empty.
	FillSiblings bool
}

// VoxelizeStats counts the work of a Voxelizer.
type VoxelizeStats struct {
	Triangles int
	Skipped   int
	Tests     int
	Marked    int
}

// Voxelizer marks the voxels of a store that lie on the surface of triangles.
type Voxelizer struct {
	store  *Store
	logger logging.Logger
	opts   VoxelizeOptions
	stats  VoxelizeStats
}

// NewVoxelizer returns a voxelizer writing into s.
func NewVoxelizer(s *Store, logger logging.Logger, opts VoxelizeOptions) (*Voxelizer, error) {
	if opts.Separability == 0 {
		opts.Separability = Separability26
	}
	if opts.Separability != Separability6 && opts.Separability != Separability26 {
		return nil, errors.Errorf("unsupported separability %d", opts.Separability)
	}
	if err := s.ctx.CheckDepthRange(s.RootID().Depth, opts.Depth); err != nil {
		return nil, errors.Wrap(err, "invalid voxelization depth")
	}
	switch opts.Target {
	case TargetDensity, TargetClass:
	default:
		return nil, errors.Errorf("unknown voxelization target %d", opts.Target)
	}
	return &Voxelizer{store: s, logger: logger, opts: opts}, nil
}

// Stats returns the counters accumulated so far.
func (v *Voxelizer) Stats() VoxelizeStats {
	return v.stats
}

// VoxelizeTriangle marks every voxel at the target depth whose center passes VoxelizePointTest for
// tri and returns how many voxels it marked. Only children that can contain a passing center are
// visited.
func (v *Voxelizer) VoxelizeTriangle(tri *spatialmath.Triangle) (int, error) {
	ctx := v.store.ctx
	d, err := ctx.NewTriangleVoxelizationData(tri, v.opts.Separability, v.opts.Depth)
	if err != nil {
		return 0, err
	}
	v.stats.Triangles++
	marked := 0
	reach := d.surfaceReach() + floatSlack
	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if id.Depth == v.opts.Depth {
			v.stats.Tests++
			if !VoxelizePointTest(d, ctx.VoxelCenter(id)) {
				return nil
			}
			if err := v.mark(id); err != nil {
				return err
			}
			marked++
			return nil
		}
		for i := 0; i < NumChildren; i++ {
			cid := ctx.ChildID(id, i)
			halfDiag := 0.5 * spatialmath.Sqrt3 * ctx.VoxelSize(cid.Depth)
			if tri.DistanceToPoint(ctx.VoxelCenter(cid)) > halfDiag+reach {
				continue
			}
			if err := visit(cid); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(v.store.RootID()); err != nil {
		return marked, err
	}
	v.stats.Marked += marked
	return marked, nil
}

// floatSlack absorbs rounding in the child pruning distance.
const floatSlack = 1e-9

func (v *Voxelizer) mark(id NodeID) error {
	ref, err := v.store.Insert(id)
	if err != nil {
		return errors.Wrapf(err, "marking %v", id)
	}
	if err := v.write(ref, true); err != nil {
		return err
	}
	if !v.opts.FillSiblings || id.Depth == v.store.RootID().Depth {
		return nil
	}
	parent, err := v.store.Parent(ref)
	if err != nil {
		return err
	}
	if err := v.store.Fill(parent); err != nil {
		return errors.Wrapf(err, "filling siblings of %v", id)
	}
	siblings, err := v.store.Children(parent)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		dt, err := v.store.DataType(sib)
		if err != nil {
			return err
		}
		if dt != DataTypeNull {
			continue
		}
		if err := v.write(sib, false); err != nil {
			return err
		}
	}
	return nil
}

func (v *Voxelizer) write(ref Ref, filled bool) error {
	switch v.opts.Target {
	case TargetDensity:
		if filled {
			return v.store.SetDensity(ref, DensityFilled)
		}
		return v.store.SetDensity(ref, DensityEmpty)
	case TargetClass:
		c, err := v.store.VoxelClass(ref)
		if err != nil {
			return err
		}
		if filled {
			c = c.With(VoxelClassFilled, true).With(VoxelClassEmpty, false)
		} else {
			c |= VoxelClassEmpty
		}
		return v.store.SetVoxelClass(ref, c)
	default:
		return errors.Errorf("unknown voxelization target %d", v.opts.Target)
	}
}

// VoxelizeMesh voxelizes every triangle of m. Degenerate triangles are skipped. Cancelling ctx
// stops between triangles.
func (v *Voxelizer) VoxelizeMesh(ctx context.Context, m *spatialmath.Mesh) (VoxelizeStats, error) {
	for i, tri := range m.Triangles() {
		if err := ctx.Err(); err != nil {
			return v.stats, err
		}
		if _, err := v.VoxelizeTriangle(tri); err != nil {
			if errors.Is(err, ErrDegenerateTriangle) {
				v.stats.Skipped++
				v.logger.Debugw("skipping degenerate triangle", "index", i)
				continue
			}
			return v.stats, errors.Wrapf(err, "triangle %d", i)
		}
	}
	v.logger.Debugw("voxelized mesh",
		"triangles", v.stats.Triangles, "skipped", v.stats.Skipped, "marked", v.stats.Marked)
	return v.stats, nil
}
