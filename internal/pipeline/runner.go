package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/dag"
	"github.com/geovector-labs/aedesmap/internal/state"
)

// Runner executes registered stages in dependency order, persisting every
// transition in the state store.
type Runner struct {
	cfg    *config.Config
	store  state.Store
	logger *slog.Logger

	graph  *dag.Graph
	stages map[string]Stage
}

// NewRunner creates a runner over the given store.
func NewRunner(cfg *config.Config, store state.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		cfg:    cfg,
		store:  store,
		logger: logger,
		graph:  dag.New(),
		stages: make(map[string]Stage),
	}
}

// Register adds a stage and its dependencies to the graph. All upstream
// stages must already be registered.
func (r *Runner) Register(s Stage, upstream ...string) error {
	name := s.Name()
	if _, dup := r.stages[name]; dup {
		return fmt.Errorf("stage %q registered twice", name)
	}
	r.stages[name] = s
	r.graph.Add(name)
	for _, up := range upstream {
		if err := r.graph.Depend(name, up); err != nil {
			return err
		}
	}
	return nil
}

// Result summarizes one Execute call.
type Result struct {
	Run      *state.Run
	Statuses map[string]state.StageStatus
	// HaltedAt names the checkpoint stage the run stopped at, if any.
	HaltedAt string
}

// Execute runs the selected stages in graph order. With no selection, the
// whole graph runs. Execution is two-phase: the plan (ordering, unknown
// stage names, cycles) is validated before any stage computes. A stage
// failure marks the stage and its downstream, and fails the run; a
// checkpoint halts the run cleanly.
func (r *Runner) Execute(ctx context.Context, only ...string) (*Result, error) {
	g, err := r.plan(only)
	if err != nil {
		return nil, err
	}
	run, err := r.store.CreateRun(r.cfg.Region.Name)
	if err != nil {
		return nil, err
	}
	return r.exec(ctx, g, run)
}

// Resume continues a run halted at a checkpoint, executing the selected
// stages against the same run so its manifest stays in scope. With no
// selection, every stage that has not yet succeeded in the run is executed.
func (r *Runner) Resume(ctx context.Context, runID string, only ...string) (*Result, error) {
	run, err := r.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run.Status != state.RunStatusAwaiting {
		return nil, fmt.Errorf("run %s is %s, not awaiting a decision", runID, run.Status)
	}
	if len(only) == 0 {
		only, err = r.remaining(runID)
		if err != nil {
			return nil, err
		}
	}
	g, err := r.plan(only)
	if err != nil {
		return nil, err
	}
	return r.exec(ctx, g, run)
}

// Attach executes the selected stages inside an existing run, reusing its
// artifact manifest. Per-stage commands use it to advance a run step by
// step under operator control.
func (r *Runner) Attach(ctx context.Context, runID string, only ...string) (*Result, error) {
	run, err := r.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	g, err := r.plan(only)
	if err != nil {
		return nil, err
	}
	return r.exec(ctx, g, run)
}

// remaining lists the stages with no successful record in the run, in
// dependency order.
func (r *Runner) remaining(runID string) ([]string, error) {
	stageRuns, err := r.store.ListStageRuns(runID)
	if err != nil {
		return nil, err
	}
	succeeded := make(map[string]bool, len(stageRuns))
	for _, sr := range stageRuns {
		if sr.Status == state.StageStatusSuccess {
			succeeded[sr.Stage] = true
		}
	}
	order, err := r.graph.Sort()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range order {
		if !succeeded[name] {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s has no stages left to execute", runID)
	}
	return out, nil
}

// plan validates the stage selection and returns the graph to execute.
func (r *Runner) plan(only []string) (*dag.Graph, error) {
	g := r.graph
	if len(only) > 0 {
		for _, name := range only {
			if !g.Has(name) {
				return nil, fmt.Errorf("unknown stage %q", name)
			}
		}
		g = g.Subgraph(only)
	}
	return g, nil
}

func (r *Runner) exec(ctx context.Context, g *dag.Graph, run *state.Run) (*Result, error) {
	order, err := g.Sort()
	if err != nil {
		return nil, err
	}

	res := &Result{Run: run, Statuses: make(map[string]state.StageStatus, len(order))}
	skip := make(map[string]bool)
	var firstFailure error

	for _, name := range order {
		stage := r.stages[name]

		if skip[name] {
			res.Statuses[name] = state.StageStatusSkipped
			sr, err := r.store.CreateStageRun(run.ID, name)
			if err != nil {
				return res, err
			}
			if err := r.store.CompleteStageRun(sr.ID, state.StageStatusSkipped, "upstream failed"); err != nil {
				return res, err
			}
			continue
		}
		if res.HaltedAt != "" {
			// stages after a checkpoint stay pending for the resume command
			res.Statuses[name] = state.StageStatusPending
			continue
		}

		status, err := r.runStage(ctx, run.ID, stage)
		res.Statuses[name] = status

		switch {
		case err == nil && status == state.StageStatusSuccess:
			// next stage
		case errors.Is(err, ErrCheckpoint):
			res.HaltedAt = name
		default:
			if firstFailure == nil {
				firstFailure = fmt.Errorf("stage %s: %w", name, err)
			}
			for _, d := range g.Downstream(name) {
				if d != name {
					skip[d] = true
				}
			}
		}
	}

	switch {
	case firstFailure != nil:
		if err := r.store.CompleteRun(run.ID, state.RunStatusFailed, firstFailure.Error()); err != nil {
			return res, err
		}
		run.Status = state.RunStatusFailed
		return res, firstFailure
	case res.HaltedAt != "":
		if err := r.store.CompleteRun(run.ID, state.RunStatusAwaiting, ""); err != nil {
			return res, err
		}
		run.Status = state.RunStatusAwaiting
		r.logger.Info("run halted at checkpoint", slog.String("stage", res.HaltedAt))
		return res, nil
	default:
		if err := r.store.CompleteRun(run.ID, state.RunStatusCompleted, ""); err != nil {
			return res, err
		}
		run.Status = state.RunStatusCompleted
		return res, nil
	}
}

// runStage executes one stage with manifest validation, recording the
// outcome in the store.
func (r *Runner) runStage(ctx context.Context, runID string, stage Stage) (state.StageStatus, error) {
	sr, err := r.store.CreateStageRun(runID, stage.Name())
	if err != nil {
		return state.StageStatusFailed, err
	}

	rc := &RunContext{
		Config: r.cfg,
		Store:  r.store,
		Logger: r.logger.With(slog.String("stage", stage.Name())),
		RunID:  runID,
	}

	if err := validateInputs(rc, stage); err != nil {
		if cerr := r.store.CompleteStageRun(sr.ID, state.StageStatusFailed, err.Error()); cerr != nil {
			return state.StageStatusFailed, cerr
		}
		return state.StageStatusFailed, err
	}

	r.logger.Info("stage started", slog.String("stage", stage.Name()))
	err = stage.Run(ctx, rc)
	switch {
	case err == nil:
		if cerr := r.store.CompleteStageRun(sr.ID, state.StageStatusSuccess, ""); cerr != nil {
			return state.StageStatusFailed, cerr
		}
		return state.StageStatusSuccess, nil
	case errors.Is(err, ErrCheckpoint):
		// the stage did its work; the halt is the run's concern
		if cerr := r.store.CompleteStageRun(sr.ID, state.StageStatusSuccess, ""); cerr != nil {
			return state.StageStatusFailed, cerr
		}
		return state.StageStatusSuccess, err
	default:
		if cerr := r.store.CompleteStageRun(sr.ID, state.StageStatusFailed, err.Error()); cerr != nil {
			return state.StageStatusFailed, cerr
		}
		return state.StageStatusFailed, err
	}
}
