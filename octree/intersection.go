package octree

import (
	"cmp"
	"fmt"
	"slices"

	"go.viam.com/voxeltree/spatialmath"
)

// NodeIntersection is a crossing of a ray with the box of a node.
type NodeIntersection struct {
	Intersection spatialmath.BoxIntersection
	Node         Ref
	ID           NodeID
}

// Depth returns the depth of the intersected node.
func (ni NodeIntersection) Depth() int {
	return ni.ID.Depth
}

// Equal compares node identity and intersection parameters. The handle is not compared, so hits
// on structurally identical trees compare equal.
func (ni NodeIntersection) Equal(o NodeIntersection) bool {
	return ni.ID.Equal(o.ID) && ni.Intersection == o.Intersection
}

func (ni NodeIntersection) String() string {
	return fmt.Sprintf("node = [%s], %v", NodeIDValueString(ni.ID, nil, false, true, false), ni.Intersection)
}

// CompareNodeIntersections orders intersections along their ray: by entry parameter, then exit
// parameter, then depth and finally Morton key, so distinct nodes never compare equal.
func CompareNodeIntersections(a, b NodeIntersection) int {
	if c := cmp.Compare(a.Intersection.TNear, b.Intersection.TNear); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Intersection.TFar, b.Intersection.TFar); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID.Depth, b.ID.Depth); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.Loc.Morton(), b.ID.Loc.Morton())
}

// IntersectOptions controls Store.IntersectRay.
type IntersectOptions struct {
	// MaxDepth stops the descent. DepthUnspecified means the deepest level of the grid.
	MaxDepth int
	// Fill creates the missing children of every intersected node above MaxDepth before descending.
	Fill bool
	// Leaf selects which intersected nodes are reported. A node counts as a leaf when the walk does
	// not descend below it.
	Leaf LeafStatus
}

// IntersectRay returns the nodes whose boxes the ray crosses, ordered along the ray with parents
// before their children. A ray that misses the tree yields no intersections and no error.
func (s *Store) IntersectRay(ray spatialmath.Ray, opts IntersectOptions) ([]NodeIntersection, error) {
	maxDepth := opts.MaxDepth
	if maxDepth == DepthUnspecified {
		maxDepth = s.ctx.MaxDepth()
	} else if err := s.ctx.CheckDepth(maxDepth); err != nil {
		return nil, err
	}
	rootID := s.RootID()
	bi := s.ctx.VoxelBox(rootID).IntersectRay(ray)
	if !bi.Valid {
		return nil, nil
	}
	var hits []NodeIntersection
	root := NodeIntersection{Intersection: bi, Node: s.root, ID: rootID}
	if err := s.intersectNode(root, ray, maxDepth, opts, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func (s *Store) intersectNode(
	ni NodeIntersection,
	ray spatialmath.Ray,
	maxDepth int,
	opts IntersectOptions,
	hits *[]NodeIntersection,
) error {
	descend := ni.ID.Depth < maxDepth
	if descend && opts.Fill {
		if err := s.Fill(ni.Node); err != nil {
			return err
		}
	}
	var children []NodeIntersection
	if descend {
		refs, err := s.Children(ni.Node)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			descend = false
		}
		for _, c := range refs {
			cid, err := s.ID(c)
			if err != nil {
				return err
			}
			if bi := s.ctx.VoxelBox(cid).IntersectRay(ray); bi.Valid {
				children = append(children, NodeIntersection{Intersection: bi, Node: c, ID: cid})
			}
		}
		slices.SortFunc(children, CompareNodeIntersections)
	}

	reportable := true
	switch opts.Leaf {
	case LeafStatusLeaf:
		reportable = !descend
	case LeafStatusNonLeaf:
		reportable = descend
	case LeafStatusAny:
	}
	if reportable {
		*hits = append(*hits, ni)
	}
	for _, c := range children {
		if err := s.intersectNode(c, ray, maxDepth, opts, hits); err != nil {
			return err
		}
	}
	return nil
}
