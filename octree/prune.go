package octree

import (
	"github.com/pkg/errors"
)

// PruneEmpty removes every leaf matching filter that carries no payload and returns how many
// nodes were removed. The root is never removed. Candidates are chosen before anything is
// removed, so a node that only becomes a leaf through pruning stays until the next call.
func (s *Store) PruneEmpty(filter NodeFilter) (int, error) {
	var prune []Ref
	err := s.Walk(func(ref Ref, _ NodeID) error {
		r := s.rec(ref)
		if ref == s.root || recValid(r) != 0 || recDataType(r) != DataTypeNull {
			return nil
		}
		ok, err := filter.Match(s, ref)
		if ok {
			prune = append(prune, ref)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, ref := range prune {
		s.unlink(ref)
	}
	if len(prune) > 0 {
		s.logger.Debugw("pruned empty leaves", "nodes", len(prune), "remaining", s.numLive)
	}
	return len(prune), nil
}

// unlink removes a node and its descendants. Their records stay allocated; the parent's child
// block is reused when a child is created again.
func (s *Store) unlink(ref Ref) {
	r := s.rec(ref)
	if p := recParent(r); p != NoRef {
		i := s.ctx.ChildOrderIndex(recID(r).Loc, recID(r).Depth)
		s.rec(p)[7] &^= 1 << uint(i)
	}
	s.release(ref)
}

func (s *Store) release(ref Ref) {
	r := s.rec(ref)
	valid, first := recValid(r), recFirstChild(r)
	for i := 0; i < NumChildren; i++ {
		if valid&(1<<uint(i)) != 0 {
			s.release(first + Ref(i))
		}
	}
	delete(s.index, recID(r).Key())
	r[7] = 0
	r[9] &^= recordFlagLive
	s.numLive--
}

// MergeChildren replaces children of ref by copies of nodes of src. srcNodes holds one handle per
// child slot; NoRef leaves the slot as it is, or creates an empty leaf there when fill is set.
// Each copied node brings its subtree and payloads along and takes the identity of the slot it
// lands in. src must be a different store.
func (s *Store) MergeChildren(ref Ref, src *Store, srcNodes []Ref, fill bool) error {
	r, err := s.checkRef(ref)
	if err != nil {
		return err
	}
	if src == s {
		return errors.Wrap(ErrInvalidRef, "cannot merge a store into itself")
	}
	if len(srcNodes) != NumChildren {
		return errors.Errorf("need %d source nodes, got %d", NumChildren, len(srcNodes))
	}
	id := recID(r)
	if id.Depth >= s.ctx.MaxDepth() {
		return errors.Wrapf(ErrInvalidDepth, "cannot merge children into %v at max depth", id)
	}

	blocks := 0
	if recFirstChild(r) == NoRef {
		blocks++
	}
	for i, sn := range srcNodes {
		if sn == NoRef {
			continue
		}
		n, height, err := src.subtreeShape(sn)
		if err != nil {
			return errors.Wrapf(err, "source node for child %d", i)
		}
		if id.Depth+1+height > s.ctx.MaxDepth() {
			return errors.Wrapf(ErrInvalidDepth, "source node for child %d of %v is %d levels deep", i, id, height)
		}
		blocks += n
	}
	if s.capacity > 0 && s.numRecords+blocks*NumChildren > s.capacity {
		return errors.Wrapf(ErrCapacityExceeded, "merging into %v needs %d records, %d of %d used",
			id, blocks*NumChildren, s.numRecords, s.capacity)
	}

	for i, sn := range srcNodes {
		valid := recValid(s.rec(ref))&(1<<uint(i)) != 0
		switch {
		case sn != NoRef:
			if valid {
				s.unlink(recFirstChild(s.rec(ref)) + Ref(i))
			}
			child, err := s.createChild(ref, i)
			if err != nil {
				return err
			}
			if err := s.copySubtree(child, src, sn); err != nil {
				return err
			}
		case fill && !valid:
			if _, err := s.createChild(ref, i); err != nil {
				return err
			}
		}
	}
	return nil
}

// subtreeShape returns the number of child blocks below ref and how many levels its deepest
// descendant lies below it.
func (s *Store) subtreeShape(ref Ref) (blocks, height int, err error) {
	r, err := s.checkRef(ref)
	if err != nil {
		return 0, 0, err
	}
	valid, first := recValid(r), recFirstChild(r)
	if valid == 0 {
		return 0, 0, nil
	}
	blocks = 1
	for i := 0; i < NumChildren; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		b, h, err := s.subtreeShape(first + Ref(i))
		if err != nil {
			return 0, 0, err
		}
		blocks += b
		height = max(height, h+1)
	}
	return blocks, height, nil
}

func (s *Store) copySubtree(dst Ref, src *Store, sref Ref) error {
	if err := s.copyPayload(dst, src, sref); err != nil {
		return err
	}
	sr := src.rec(sref)
	valid, first := recValid(sr), recFirstChild(sr)
	for i := 0; i < NumChildren; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		child, err := s.createChild(dst, i)
		if err != nil {
			return err
		}
		if err := s.copySubtree(child, src, first+Ref(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) copyPayload(dst Ref, src *Store, sref Ref) error {
	dt, err := src.DataType(sref)
	if err != nil {
		return err
	}
	switch dt {
	case DataTypeNull:
		return nil
	case DataTypeDensity:
		v, err := src.Density(sref)
		if err != nil {
			return err
		}
		return s.SetDensity(dst, v)
	case DataTypeVoxelClass:
		c, err := src.VoxelClass(sref)
		if err != nil {
			return err
		}
		return s.SetVoxelClass(dst, c)
	case DataTypeVoxelIOB:
		d, err := src.IOBData(sref)
		if err != nil {
			return err
		}
		return s.SetIOBData(dst, d)
	default:
		return errors.Wrapf(ErrWrongDataType, "cannot copy %v", dt)
	}
}
