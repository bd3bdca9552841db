// Package pipeline orchestrates the staged workflow: stages run in
// dependency order, every execution and artifact is tracked in the state
// store, inputs are validated against the manifest before compute, and the
// two operator checkpoints halt the run with a decision artifact.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/state"
)

// ErrCheckpoint signals that a stage completed by emitting a decision
// artifact and the run must halt until the operator resumes it with a
// decision file. It is a stop condition, not a failure.
var ErrCheckpoint = errors.New("awaiting operator decision")

// Stage is one unit of the pipeline.
type Stage interface {
	// Name is the stage's unique name in the graph.
	Name() string

	// Inputs lists the manifest artifact names the stage consumes. They
	// are validated before Run is called.
	Inputs() []string

	// Run executes the stage. Returning ErrCheckpoint (possibly wrapped)
	// halts the run for an operator decision; any other error fails the
	// stage and skips its downstream.
	Run(ctx context.Context, rc *RunContext) error
}

// RunContext carries the per-run environment into stages.
type RunContext struct {
	Config *config.Config
	Store  state.Store
	Logger *slog.Logger
	RunID  string
}

// RecordArtifact registers a stage output in the run manifest.
func (rc *RunContext) RecordArtifact(a *state.Artifact) error {
	a.RunID = rc.RunID
	return rc.Store.RecordArtifact(a)
}

// Artifact looks up a manifest entry of the current run.
func (rc *RunContext) Artifact(name string) (*state.Artifact, error) {
	return rc.Store.GetArtifact(rc.RunID, name)
}
