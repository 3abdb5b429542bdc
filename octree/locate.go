package octree

import "github.com/pkg/errors"

// LocateLoc returns the deepest node of the store containing the leaf code l, descending no
// further than maxDepth. DepthUnspecified means no limit.
func (s *Store) LocateLoc(l NodeLoc3, maxDepth int) (Ref, error) {
	if err := s.ctx.CheckLoc(l); err != nil {
		return NoRef, err
	}
	if maxDepth == DepthUnspecified || maxDepth > s.ctx.MaxDepth() {
		maxDepth = s.ctx.MaxDepth()
	}
	rootID := s.RootID()
	if maxDepth < rootID.Depth {
		return NoRef, errors.Wrapf(ErrInvalidDepth, "max depth %d above store root %v", maxDepth, rootID)
	}
	if !s.ctx.LocEqual(l, rootID.Loc, rootID.Depth) {
		return NoRef, errors.Wrapf(ErrOutOfBounds, "location %v outside store root %v", l, rootID)
	}

	cur := s.root
	for depth := rootID.Depth; depth < maxDepth; depth++ {
		r := s.rec(cur)
		i := s.ctx.ChildOrderIndex(l, depth+1)
		if recValid(r)&(1<<uint(i)) == 0 {
			break
		}
		cur = recFirstChild(r) + Ref(i)
	}
	return cur, nil
}

// LocateRegion returns the deepest existing node containing every leaf of region, descending no
// further than maxDepth.
func (s *Store) LocateRegion(region Region3, maxDepth int) (Ref, error) {
	if _, err := CreateRegion(region.Min, region.Max); err != nil {
		return NoRef, err
	}
	if err := s.ctx.CheckLoc(region.Max); err != nil {
		return NoRef, err
	}
	depth := s.ctx.CommonAncestorLevel(region.Min, region.Max)
	if maxDepth != DepthUnspecified && maxDepth < depth {
		depth = maxDepth
	}
	return s.LocateLoc(region.Min, depth)
}
