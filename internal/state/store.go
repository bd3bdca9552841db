// Package state tracks pipeline execution in SQLite: runs, per-stage
// outcomes, the artifact manifest, and recorded operator decisions.
package state

import "time"

// RunStatus represents the lifecycle of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
	// RunStatusAwaiting marks a run halted at a checkpoint, waiting for an
	// operator decision before it can be resumed.
	RunStatusAwaiting RunStatus = "awaiting_decision"
)

// StageStatus represents the lifecycle of one stage within a run.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// Run is one invocation of the pipeline over a study region.
type Run struct {
	ID          string
	Region      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StageRun is the execution record of a single stage within a run.
type StageRun struct {
	ID          string
	RunID       string
	Stage       string
	Status      StageStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Artifact is one manifest entry: a file a stage produced, with enough
// spatial metadata to validate downstream consumers against it.
type Artifact struct {
	ID        string
	RunID     string
	Stage     string
	Name      string
	Kind      string // raster, vector, table, stack, model, map
	Path      string
	CRS       string
	CellSize  float64
	Xmin      float64
	Ymin      float64
	Xmax      float64
	Ymax      float64
	CreatedAt time.Time
}

// Decision records an operator checkpoint resolution: which checkpoint,
// what was chosen, and the decision file it came from.
type Decision struct {
	ID         string
	RunID      string
	Checkpoint string
	Choice     string
	Path       string
	CreatedAt  time.Time
}

// Store is the persistence interface for pipeline execution state.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(region string) (*Run, error)
	GetRun(id string) (*Run, error)
	GetLatestRun(region string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error

	CreateStageRun(runID, stage string) (*StageRun, error)
	CompleteStageRun(id string, status StageStatus, errMsg string) error
	ListStageRuns(runID string) ([]*StageRun, error)

	RecordArtifact(a *Artifact) error
	ListArtifacts(runID string) ([]*Artifact, error)
	GetArtifact(runID, name string) (*Artifact, error)

	RecordDecision(d *Decision) error
	GetDecision(runID, checkpoint string) (*Decision, error)
}
