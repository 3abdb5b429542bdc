package octree

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// VoteEvaluator turns the inside and outside votes of a voxel into a class.
type VoteEvaluator struct {
	// InsideThreshold is the share of inside votes a voxel must exceed to be inside. At the
	// default of 0.5 a tie is outside.
	InsideThreshold float64
	// MinVotes is the number of votes below which a voxel keeps its class.
	MinVotes int
	// KeepExisting leaves a voxel unchanged when it already carries the flag opposite to the
	// outcome of the vote.
	KeepExisting bool
}

// DefaultVoteEvaluator returns the majority evaluator: inside iff inside votes outnumber outside votes.
func DefaultVoteEvaluator() VoteEvaluator {
	return VoteEvaluator{InsideThreshold: 0.5, MinVotes: 1}
}

// Validate checks the threshold and the vote minimum.
func (e VoteEvaluator) Validate() error {
	var err error
	if e.InsideThreshold < 0 || e.InsideThreshold >= 1 {
		err = multierr.Append(err, errors.Errorf("inside threshold %g not in [0, 1)", e.InsideThreshold))
	}
	if e.MinVotes < 0 {
		err = multierr.Append(err, errors.Errorf("negative vote minimum %d", e.MinVotes))
	}
	return err
}

// Classify returns the class of d after counting its votes.
func (e VoteEvaluator) Classify(d VoxelDataIOB) VoxelClass {
	n := d.NumVotes()
	c := d.Class
	if n == 0 || n < e.MinVotes {
		return c
	}
	if float64(d.VotesInside)/float64(n) > e.InsideThreshold {
		if e.KeepExisting && c.Has(VoxelClassOutside) {
			return c
		}
		return c.With(VoxelClassOutside|VoxelClassEmpty, false).With(VoxelClassInside, true)
	}
	if e.KeepExisting && c.Has(VoxelClassInside) {
		return c
	}
	return c.With(VoxelClassInside, false).With(VoxelClassOutside, true)
}

// EvaluateStore classifies every node matching filter that holds voxel data and returns how many
// classes were updated.
func (e VoteEvaluator) EvaluateStore(s *Store, filter NodeFilter) (int, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	refs, err := s.Nodes(filter)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, ref := range refs {
		dt, err := s.DataType(ref)
		if err != nil {
			return updated, err
		}
		if dt != DataTypeVoxelIOB {
			continue
		}
		d, err := s.IOBData(ref)
		if err != nil {
			return updated, err
		}
		c := e.Classify(d)
		if c == d.Class {
			continue
		}
		if err := s.SetVoxelClass(ref, c); err != nil {
			return updated, err
		}
		updated++
	}
	s.logger.Debugw("evaluated votes", "nodes", len(refs), "updated", updated)
	return updated, nil
}
