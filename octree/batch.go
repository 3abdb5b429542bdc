package octree

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/voxeltree/logging"
	"go.viam.com/voxeltree/spatialmath"
)

// BatchJob voxelizes one mesh into a tree of its own.
type BatchJob struct {
	Name     string
	Config   Config
	Mesh     *spatialmath.Mesh
	Voxelize VoxelizeOptions
	// Classify, if set, runs the ray grid classification after voxelization.
	Classify *ClassifyOptions
}

// BatchResult is the outcome of a BatchJob. The store keeps its context open.
type BatchResult struct {
	Name     string
	Store    *Store
	Voxelize VoxelizeStats
	Classify IOBStats
}

// RunBatch runs jobs concurrently, at most limit at a time, or without limit if limit is not
// positive. Every job owns its context and store. The first failing job cancels the others.
func RunBatch(ctx context.Context, logger logging.Logger, jobs []BatchJob, limit int) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := runJob(gctx, logger.Sublogger(job.Name), job)
			if err != nil {
				return errors.Wrapf(err, "job %q", job.Name)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runJob(ctx context.Context, logger logging.Logger, job BatchJob) (BatchResult, error) {
	res := BatchResult{Name: job.Name}
	tctx, err := NewContext(job.Config)
	if err != nil {
		return res, err
	}
	s, err := NewStore(tctx, logger)
	if err != nil {
		return res, err
	}
	v, err := NewVoxelizer(s, logger, job.Voxelize)
	if err != nil {
		return res, err
	}
	if res.Voxelize, err = v.VoxelizeMesh(ctx, job.Mesh); err != nil {
		return res, err
	}
	if job.Classify != nil {
		if res.Classify, err = Classify(ctx, s, logger, *job.Classify); err != nil {
			return res, err
		}
	}
	res.Store = s
	return res, nil
}
