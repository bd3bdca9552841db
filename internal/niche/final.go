package niche

import (
	"context"
	"fmt"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

// EnsembleSpec configures the final bootstrap replicate ensemble of a
// selected candidate.
type EnsembleSpec struct {
	Base       RunSpec // OutDir is the ensemble directory
	Replicates int
	// Parallel caps the engine's worker threads. Zero keeps the engine
	// default.
	Parallel int
}

// Ensemble fits the selected configuration as one replicated engine run:
// the engine bootstrap-resamples the presences per replicate and writes
// replicate-aggregate mean and standard-deviation grids, which are read
// back here. When the base spec projects onto a second layer stack, the
// projected aggregates are returned instead of the calibration-extent
// ones.
func Ensemble(ctx context.Context, runner Runner, spec EnsembleSpec) (mean, std *raster.Grid, err error) {
	// a single replicate has no spread to estimate
	if spec.Replicates < 2 {
		return nil, nil, fmt.Errorf("replicate count %d must be >= 2", spec.Replicates)
	}

	rs := spec.Base
	rs.Replicates = spec.Replicates
	rs.ReplicateType = ReplicateBootstrap
	rs.Threads = spec.Parallel

	res, err := runner.Run(ctx, rs)
	if err != nil {
		return nil, nil, fmt.Errorf("ensemble: %w", err)
	}

	meanPath, stdPath := res.MeanASC, res.StddevASC
	if rs.ProjectionLayersDir != "" {
		meanPath, stdPath = res.ProjectionMeanASC, res.ProjectionStddevASC
	}
	if mean, err = raster.ReadASCIIGrid(meanPath); err != nil {
		return nil, nil, fmt.Errorf("ensemble mean: %w", err)
	}
	if std, err = raster.ReadASCIIGrid(stdPath); err != nil {
		return nil, nil, fmt.Errorf("ensemble stddev: %w", err)
	}
	return mean, std, nil
}
