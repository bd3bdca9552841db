package niche

import (
	"context"
	"errors"
)

// ErrEngineUnavailable reports the modeling engine cannot be invoked.
var ErrEngineUnavailable = errors.New("niche modeling engine unavailable")

// Replicate types supported by the engine.
const (
	ReplicateBootstrap     = "bootstrap"
	ReplicateCrossvalidate = "crossvalidate"
	ReplicateSubsample     = "subsample"
)

// Output transforms supported by the engine.
const (
	OutputCloglog  = "cloglog"
	OutputLogistic = "logistic"
	OutputRaw      = "raw"
)

// RunSpec describes one engine invocation.
type RunSpec struct {
	// SamplesCSV is the species,longitude,latitude occurrence file.
	SamplesCSV string
	// LayersDir holds the predictor stack as ASCII grids. Variable
	// reduction materializes a new directory rather than toggling layers,
	// so a spec always uses every grid in its LayersDir.
	LayersDir string
	// OutDir receives every engine output. It must not already exist, so
	// distinct runs can never overwrite one another.
	OutDir string
	// ProjectionLayersDir, when set, makes the engine also project the
	// fitted model onto this second predictor stack (the full extent).
	ProjectionLayersDir string

	Candidate    Candidate
	OutputFormat string
	// Jackknife enables leave-one-variable-out importance estimation.
	Jackknife bool

	// Replicates above one makes the engine fit that many replicates in a
	// single invocation and write replicate-aggregate mean and
	// standard-deviation grids next to the per-replicate outputs.
	Replicates int
	// ReplicateType selects the engine's resampling scheme, one of the
	// Replicate* constants. Required when Replicates > 1.
	ReplicateType string
	// Threads caps the engine's worker threads. Zero keeps the engine
	// default of one.
	Threads int
}

// RunResult locates the artifacts of one engine invocation.
type RunResult struct {
	// PredictionASC is the prediction raster over the calibration extent.
	PredictionASC string
	// ProjectionASC is the prediction projected onto the full extent, when
	// a projection layers directory was supplied.
	ProjectionASC string
	// LambdasPath is the fitted-parameters file.
	LambdasPath string
	// ResultsCSV is the engine's summary table (training AUC, contributions).
	ResultsCSV string

	// MeanASC and StddevASC are the replicate-aggregate predictions over
	// the calibration extent, set only for replicated runs.
	MeanASC   string
	StddevASC string
	// ProjectionMeanASC and ProjectionStddevASC are the aggregates over
	// the projection extent, set for replicated runs with a projection
	// layers directory.
	ProjectionMeanASC   string
	ProjectionStddevASC string
}

// Runner abstracts the maximum-entropy engine so calibration logic can be
// tested without the external process.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (*RunResult, error)
	Check(ctx context.Context) error
}
