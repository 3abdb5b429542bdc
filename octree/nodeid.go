package octree

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// NodeID names a node by depth and location, independent of where it is stored.
type NodeID struct {
	Depth int
	Loc   NodeLoc3
}

// CreateNodeID returns the identity of the node at depth containing loc. Use DepthUnspecified for
// identities that carry a location only.
func CreateNodeID(depth int, loc NodeLoc3) NodeID {
	return NodeID{Depth: depth, Loc: loc}
}

// Equal returns whether both identities have the same depth and location.
func (id NodeID) Equal(o NodeID) bool {
	return id.Depth == o.Depth && id.Loc == o.Loc
}

// Key returns a map key unique per identity: the Morton code of the location with the depth in
// the high bits.
func (id NodeID) Key() uint64 {
	return id.Loc.Morton() | uint64(id.Depth+1)<<48
}

// CheckNodeID returns an error unless id names a node of the grid, with no location bits below its depth.
func (c *Context) CheckNodeID(id NodeID) error {
	if err := c.CheckDepth(id.Depth); err != nil {
		return err
	}
	if err := c.CheckLoc(id.Loc); err != nil {
		return err
	}
	if id.Loc.Mask(c.LocMask(id.Depth)) != id.Loc {
		return errors.Wrapf(ErrOutOfBounds, "location %v has bits below depth %d", id.Loc, id.Depth)
	}
	return nil
}

// NodeIDForPoint returns the node at depth containing the real world point v.
func (c *Context) NodeIDForPoint(v r3.Vector, depth int) (NodeID, error) {
	if err := c.CheckDepth(depth); err != nil {
		return NodeID{}, err
	}
	l, err := c.CreateLoc3(v)
	if err != nil {
		return NodeID{}, err
	}
	return NodeID{Depth: depth, Loc: l.Mask(c.LocMask(depth))}, nil
}

// ParentID returns the identity of the parent node.
func (c *Context) ParentID(id NodeID) (NodeID, error) {
	if id.Depth <= 0 {
		return NodeID{}, errors.Wrapf(ErrInvalidDepth, "node at depth %d has no parent", id.Depth)
	}
	return NodeID{Depth: id.Depth - 1, Loc: id.Loc.Mask(c.LocMask(id.Depth - 1))}, nil
}

// ChildID returns the identity of child i of a node.
func (c *Context) ChildID(id NodeID, i int) NodeID {
	return NodeID{Depth: id.Depth + 1, Loc: c.ChildLoc(id.Loc, id.Depth+1, i)}
}

// Contains returns whether the node named by ancestor contains the node named by id.
func (c *Context) Contains(ancestor, id NodeID) bool {
	return ancestor.Depth <= id.Depth && c.LocEqual(ancestor.Loc, id.Loc, ancestor.Depth)
}

// Parent returns the identity of the parent node.
func (id NodeID) Parent(c *Context) (NodeID, error) {
	return c.ParentID(id)
}

// Valid returns whether id names a node of the grid of c.
func (id NodeID) Valid(c *Context) bool {
	return c.CheckNodeID(id) == nil
}
