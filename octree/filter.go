package octree

// NodeFilter selects nodes by depth, leaf status and voxel class.
type NodeFilter struct {
	MinDepth int
	// MaxDepth of DepthUnspecified means no limit.
	MaxDepth int
	Leaf     LeafStatus
	// Class lists flags a node must carry. VoxelClassUndefined accepts any class.
	Class VoxelClass
}

// AllNodes matches every node.
var AllNodes = NodeFilter{MaxDepth: DepthUnspecified}

// LeavesAt matches the leaves at depth.
func LeavesAt(depth int) NodeFilter {
	return NodeFilter{MinDepth: depth, MaxDepth: depth, Leaf: LeafStatusLeaf}
}

// MatchDepth returns whether depth lies in the filter's depth range.
func (f NodeFilter) MatchDepth(depth int) bool {
	if depth < f.MinDepth {
		return false
	}
	return f.MaxDepth == DepthUnspecified || depth <= f.MaxDepth
}

// MatchLeaf returns whether a node with the given leaf status passes.
func (f NodeFilter) MatchLeaf(isLeaf bool) bool {
	switch f.Leaf {
	case LeafStatusLeaf:
		return isLeaf
	case LeafStatusNonLeaf:
		return !isLeaf
	case LeafStatusAny:
		return true
	default:
		return true
	}
}

// Match returns whether the node ref of s passes the filter.
func (f NodeFilter) Match(s *Store, ref Ref) (bool, error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return false, err
	}
	if !f.MatchDepth(recID(r).Depth) || !f.MatchLeaf(recValid(r) == 0) {
		return false, nil
	}
	if f.Class == VoxelClassUndefined {
		return true, nil
	}
	if recDataType(r) == DataTypeDensity {
		return false, nil
	}
	c, err := s.VoxelClass(ref)
	if err != nil {
		return false, err
	}
	return c.Has(f.Class), nil
}
