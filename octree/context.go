package octree

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/voxeltree/spatialmath"
)

// Context holds the grid parameters and the per depth lookup tables shared by every operation on a
// tree. It is created with NewContext and handed explicitly to the code that needs it; it is
// read only after creation and may be shared by several stores.
type Context struct {
	maxNumLevels int
	scale        float64
	tolerance    float64

	depthMasks []NodeLoc
	locMasks   []NodeLoc
	voxelSizes []float64
	leafNodes  int
	closed     bool
}

// NewContext validates the config and builds a context for it.
func NewContext(conf Config) (*Context, error) {
	conf = conf.WithDefaults()
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid octree config")
	}
	c := &Context{
		maxNumLevels: conf.MaxNumLevels,
		scale:        conf.Scale,
		tolerance:    conf.Tolerance,
		depthMasks:   make([]NodeLoc, conf.MaxNumLevels),
		locMasks:     make([]NodeLoc, conf.MaxNumLevels),
		voxelSizes:   make([]float64, conf.MaxNumLevels),
		leafNodes:    1 << (conf.MaxNumLevels - 1),
	}
	var lm NodeLoc
	for i := 0; i < conf.MaxNumLevels; i++ {
		c.depthMasks[i] = NodeLoc(1 << (conf.MaxNumLevels - i - 1))
		lm |= c.depthMasks[i]
		c.locMasks[i] = lm
		c.voxelSizes[i] = conf.Scale / math.Pow(DefaultOrder, float64(i))
	}
	return c, nil
}

// NewDefaultContext returns a context with every config field at its default.
func NewDefaultContext() *Context {
	c, err := NewContext(Config{})
	if err != nil {
		// The default config is always valid.
		panic(err)
	}
	return c
}

// Close releases the lookup tables. A closed context reports ErrContextClosed from every
// operation that can fail and zero values from the plain accessors.
func (c *Context) Close() error {
	if c.closed {
		return ErrContextClosed
	}
	c.closed = true
	c.depthMasks = nil
	c.locMasks = nil
	c.voxelSizes = nil
	return nil
}

func (c *Context) checkOpen() error {
	if c == nil || c.closed {
		return ErrContextClosed
	}
	return nil
}

// MaxNumLevels returns the number of levels including the root.
func (c *Context) MaxNumLevels() int {
	return c.maxNumLevels
}

// MaxDepth returns the depth of the smallest leaves.
func (c *Context) MaxDepth() int {
	return c.maxNumLevels - 1
}

// Scale returns the real world side length of the root node.
func (c *Context) Scale() float64 {
	return c.scale
}

// Tolerance returns the comparison tolerance.
func (c *Context) Tolerance() float64 {
	return c.tolerance
}

// LeafNodesPerDimension returns the number of smallest leaves along one axis of the root.
func (c *Context) LeafNodesPerDimension() int {
	return c.leafNodes
}

func (c *Context) validDepth(depth int) bool {
	return !c.closed && depth >= 0 && depth < c.maxNumLevels
}

// DepthMask returns the location bit that selects between the children of a node at depth-1. It
// is also the side length of a node at depth in leaf units.
func (c *Context) DepthMask(depth int) NodeLoc {
	if !c.validDepth(depth) {
		return 0
	}
	return c.depthMasks[depth]
}

// LocMask returns the mask of location bits significant at depth.
func (c *Context) LocMask(depth int) NodeLoc {
	if !c.validDepth(depth) {
		return 0
	}
	return c.locMasks[depth]
}

// VoxelSize returns the real world side length of a node at depth.
func (c *Context) VoxelSize(depth int) float64 {
	if !c.validDepth(depth) {
		return 0
	}
	return c.voxelSizes[depth]
}

// MinLeafSize returns the side length of the smallest leaves.
func (c *Context) MinLeafSize() float64 {
	return c.VoxelSize(c.MaxDepth())
}

// CheckDepth returns ErrInvalidDepth unless 0 <= depth < MaxNumLevels.
func (c *Context) CheckDepth(depth int) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if depth < 0 || depth >= c.maxNumLevels {
		return errors.Wrapf(ErrInvalidDepth, "depth %d not in [0, %d]", depth, c.MaxDepth())
	}
	return nil
}

// CheckDepthRange checks both depths and that minDepth <= maxDepth.
func (c *Context) CheckDepthRange(minDepth, maxDepth int) error {
	if err := c.CheckDepth(minDepth); err != nil {
		return err
	}
	if err := c.CheckDepth(maxDepth); err != nil {
		return err
	}
	if minDepth > maxDepth {
		return errors.Wrapf(ErrInvalidDepth, "min depth %d exceeds max depth %d", minDepth, maxDepth)
	}
	return nil
}

// CheckLoc returns ErrOutOfBounds unless every code addresses a leaf of the grid.
func (c *Context) CheckLoc(l NodeLoc3) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	for _, a := range spatialmath.Axes {
		if int(l.Get(a)) >= c.leafNodes {
			return errors.Wrapf(ErrOutOfBounds, "location %v exceeds %d leaves per dimension", l, c.leafNodes)
		}
	}
	return nil
}

// CreateLoc quantizes a real world coordinate. Values must lie in [0, Scale).
func (c *Context) CreateLoc(v float64) (NodeLoc, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	f := v / c.scale
	if !(f >= 0 && f < 1) {
		return 0, errors.Wrapf(ErrOutOfBounds, "coordinate %g not in [0, %g)", v, c.scale)
	}
	return c.quantize(f), nil
}

func (c *Context) quantize(f float64) NodeLoc {
	n := int(f * float64(c.leafNodes))
	if n < 0 {
		n = 0
	}
	if n >= c.leafNodes {
		n = c.leafNodes - 1
	}
	return NodeLoc(n)
}

// CreateLoc3 quantizes a real world point.
func (c *Context) CreateLoc3(v r3.Vector) (NodeLoc3, error) {
	var l NodeLoc3
	for _, a := range spatialmath.Axes {
		loc, err := c.CreateLoc(a.Component(v))
		if err != nil {
			return NodeLoc3{}, err
		}
		l = l.With(a, loc)
	}
	return l, nil
}

// ClampedLoc3 quantizes a point, clamping coordinates outside the grid to its border.
func (c *Context) ClampedLoc3(v r3.Vector) NodeLoc3 {
	var l NodeLoc3
	for _, a := range spatialmath.Axes {
		l = l.With(a, c.quantize(a.Component(v)/c.scale))
	}
	return l
}

// Location decodes a code to its real world coordinate.
func (c *Context) Location(loc NodeLoc) float64 {
	return c.MinLeafSize() * float64(loc)
}

// Location3 decodes a location to the real world position of the leaf's minimum corner.
func (c *Context) Location3(l NodeLoc3) r3.Vector {
	return r3.Vector{X: c.Location(l.X), Y: c.Location(l.Y), Z: c.Location(l.Z)}
}

// VoxelLocation returns the minimum corner of the node at depth containing l.
func (c *Context) VoxelLocation(l NodeLoc3, depth int) r3.Vector {
	return c.Location3(l.Mask(c.LocMask(depth)))
}

// VoxelBox returns the real world box of a node.
func (c *Context) VoxelBox(id NodeID) spatialmath.Box {
	p := c.VoxelLocation(id.Loc, id.Depth)
	s := c.VoxelSize(id.Depth)
	return spatialmath.Box{Min: p, Max: p.Add(r3.Vector{X: s, Y: s, Z: s})}
}

// VoxelCenter returns the real world center of a node.
func (c *Context) VoxelCenter(id NodeID) r3.Vector {
	s := 0.5 * c.VoxelSize(id.Depth)
	return c.VoxelLocation(id.Loc, id.Depth).Add(r3.Vector{X: s, Y: s, Z: s})
}

// VoxelRegion returns the leaf codes covered by the node at depth containing l. With
// includeMaxBoundary the max corner is the first code past the node.
func (c *Context) VoxelRegion(l NodeLoc3, depth int, includeMaxBoundary bool) Region3 {
	l0 := l.Mask(c.LocMask(depth))
	ext := c.DepthMask(depth)
	if !includeMaxBoundary {
		ext--
	}
	return Region3{
		Min: l0,
		Max: NodeLoc3{X: l0.X + ext, Y: l0.Y + ext, Z: l0.Z + ext},
	}
}

// RegionForBox returns the leaf codes overlapped by a real world box, clamped to the grid.
func (c *Context) RegionForBox(b spatialmath.Box) Region3 {
	return NormalizeRegion(c.ClampedLoc3(b.Min), c.ClampedLoc3(b.Max))
}

// LocEqual compares two locations on the bits significant at maxDepth.
func (c *Context) LocEqual(a, b NodeLoc3, maxDepth int) bool {
	m := c.LocMask(maxDepth)
	return a.Mask(m) == b.Mask(m)
}

// ChildOrderIndex returns which child of its parent the node at depth containing l is, packed as
// x | y<<1 | z<<2.
func (c *Context) ChildOrderIndex(l NodeLoc3, depth int) int {
	dm := c.DepthMask(depth)
	idx := 0
	if l.X&dm != 0 {
		idx |= 1
	}
	if l.Y&dm != 0 {
		idx |= 2
	}
	if l.Z&dm != 0 {
		idx |= 4
	}
	return idx
}

// ChildLoc returns the location of child i of a node, where childDepth is the depth of the child.
func (c *Context) ChildLoc(parent NodeLoc3, childDepth, i int) NodeLoc3 {
	l := parent.Mask(c.LocMask(childDepth - 1))
	dm := c.DepthMask(childDepth)
	if i&1 != 0 {
		l.X |= dm
	}
	if i&2 != 0 {
		l.Y |= dm
	}
	if i&4 != 0 {
		l.Z |= dm
	}
	return l
}

// NeighborLoc returns a leaf code inside the node offset[a] node sizes away from id along each
// axis a. For positive offsets that is the first code of the neighbor, for negative offsets the
// last one, so the code is adjacent to id when the offset is 1 or -1. Codes off the grid are
// reported as ErrOutOfBounds.
func (c *Context) NeighborLoc(id NodeID, offset [3]int) (NodeLoc3, error) {
	if err := c.CheckNodeID(id); err != nil {
		return NodeLoc3{}, err
	}
	vs := int(c.DepthMask(id.Depth))
	l := id.Loc
	for i, a := range spatialmath.Axes {
		o := offset[i]
		switch {
		case o > 0:
			o *= vs
		case o < 0:
			o = (o+1)*vs - 1
		}
		v := int(l.Get(a)) + o
		if v < 0 || v >= c.leafNodes {
			return NodeLoc3{}, errors.Wrapf(ErrOutOfBounds, "neighbor %v of %v", offset, id)
		}
		l = l.With(a, NodeLoc(v))
	}
	return l, nil
}

// CommonAncestorLevel returns the depth of the deepest node containing both locations.
func (c *Context) CommonAncestorLevel(a, b NodeLoc3) int {
	diff := uint16((a.X ^ b.X) | (a.Y ^ b.Y) | (a.Z ^ b.Z))
	if diff == 0 {
		return c.MaxDepth()
	}
	highest := bits.Len16(diff) - 1
	level := c.maxNumLevels - 2 - highest
	if level < 0 {
		return 0
	}
	return level
}

// ContainingNode returns the smallest node containing a real world box. Parts of the box outside
// the grid are clamped.
func (c *Context) ContainingNode(b spatialmath.Box) (NodeID, error) {
	if err := c.checkOpen(); err != nil {
		return NodeID{}, err
	}
	r := c.RegionForBox(b)
	depth := c.CommonAncestorLevel(r.Min, r.Max)
	return NodeID{Depth: depth, Loc: r.Min.Mask(c.LocMask(depth))}, nil
}

func (c *Context) String() string {
	return fmt.Sprintf("Context[maxNumLevels = %d, scale = %g, tolerance = %g]", c.maxNumLevels, c.scale, c.tolerance)
}
