package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/ctessum/geom"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/niche"
	"github.com/geovector-labs/aedesmap/internal/occurrence"
	"github.com/geovector-labs/aedesmap/internal/raster"
)

// CalibrateStage fits the full candidate grid over the accessible area,
// scores every candidate by AICc and omission rate, and halts at the
// model-selection checkpoint with a ranked decision table.
type CalibrateStage struct {
	Runner niche.Runner
}

func (s *CalibrateStage) Name() string { return StageCalibrate }

func (s *CalibrateStage) Inputs() []string {
	return []string{ArtifactSamples, ArtifactRecords, ArtifactLayersM}
}

func (s *CalibrateStage) Run(ctx context.Context, rc *RunContext) error {
	cal := rc.Config.Calibration
	candidates, err := candidateGrid(&cal)
	if err != nil {
		return err
	}

	trainPts, evalPts, err := splitPoints(rc)
	if err != nil {
		return err
	}
	samples, err := rc.Artifact(ArtifactSamples)
	if err != nil {
		return err
	}
	layersM, err := rc.Artifact(ArtifactLayersM)
	if err != nil {
		return err
	}

	modelsDir := filepath.Join(rc.Config.Workspace, "models", rc.RunID)
	evals, err := evaluateGrid(ctx, s.Runner, candidates, samples.Path, layersM.Path,
		modelsDir, trainPts, evalPts, &cal)
	if err != nil {
		return err
	}

	ranked := niche.Rank(evals, cal.OmissionTolerance)
	doc := &CandidateDecision{RunID: rc.RunID, Checkpoint: CheckpointCandidate}
	for _, ev := range ranked {
		doc.Candidates = append(doc.Candidates, CandidateRow{
			ID:        ev.Candidate.ID(),
			AICc:      ev.AICc,
			Omission:  ev.Omission,
			NParams:   ev.NParams,
			Qualifies: ev.Omission <= cal.OmissionTolerance,
		})
	}
	path := filepath.Join(rc.Config.Workspace, "candidates.yaml")
	if err := WriteDecision(path, doc); err != nil {
		return err
	}
	if err := rc.RecordArtifact(tableArtifact(StageCalibrate, ArtifactCandidates, "table", path)); err != nil {
		return err
	}

	// A grid with no viable candidate fails the stage outright; the ranked
	// table is still on disk for diagnosis.
	if _, err := niche.Select(evals, cal.OmissionTolerance); err != nil {
		return err
	}
	rc.Logger.Info("candidate grid calibrated",
		"candidates", len(candidates), "decision", path)
	return fmt.Errorf("%d candidates ranked in %s: %w", len(candidates), path, ErrCheckpoint)
}

// candidateGrid expands the configured multipliers and feature sets.
func candidateGrid(cal *config.CalibrationConfig) ([]niche.Candidate, error) {
	sets := make([]niche.FeatureSet, 0, len(cal.FeatureSets))
	for _, s := range cal.FeatureSets {
		fs, err := niche.ParseFeatureSet(s)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fs)
	}
	return niche.Grid(cal.RegMultipliers, sets)
}

// evaluateGrid fits and scores every candidate, bounded by the configured
// parallelism. Each candidate writes under its own directory below outRoot.
func evaluateGrid(ctx context.Context, runner niche.Runner, candidates []niche.Candidate,
	samplesCSV, layersDir, outRoot string, trainPts, evalPts []geom.Point,
	cal *config.CalibrationConfig) ([]niche.Evaluation, error) {

	evals := make([]niche.Evaluation, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	parallel := cal.Parallel
	if parallel < 1 {
		parallel = 1
	}
	g.SetLimit(parallel)

	for i, cand := range candidates {
		g.Go(func() error {
			outDir, err := freshDir(filepath.Join(outRoot, cand.ID()))
			if err != nil {
				return fmt.Errorf("candidate %s: %w", cand.ID(), err)
			}
			spec := niche.RunSpec{
				SamplesCSV:   samplesCSV,
				LayersDir:    layersDir,
				OutDir:       outDir,
				Candidate:    cand,
				OutputFormat: niche.OutputRaw,
			}
			res, err := runner.Run(gctx, spec)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", cand.ID(), err)
			}
			raw, err := raster.ReadASCIIGrid(res.PredictionASC)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", cand.ID(), err)
			}
			ev, err := niche.Evaluate(cand, raw, res.LambdasPath, trainPts, evalPts, cal.OmissionPercentile)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", cand.ID(), err)
			}
			evals[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

// freshDir returns path if nothing exists there, or path with a numeric
// suffix otherwise. The engine refuses to write into an existing output
// directory, so a stage re-run inside the same run gets a fresh directory
// instead of failing on the leftovers of the previous attempt.
func freshDir(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	} else if err != nil {
		return "", err
	}
	for i := 2; ; i++ {
		p := fmt.Sprintf("%s_r%d", path, i)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p, nil
		} else if err != nil {
			return "", err
		}
	}
}

// splitPoints reloads the labeled records and returns the projected
// presence locations of the calibration and evaluation folds.
func splitPoints(rc *RunContext) (train, eval []geom.Point, err error) {
	recArt, err := rc.Artifact(ArtifactRecords)
	if err != nil {
		return nil, nil, err
	}
	records, err := occurrence.ReadRecordsCSV(recArt.Path)
	if err != nil {
		return nil, nil, err
	}
	trainRecs, evalRecs := occurrence.TrainEval(records, rc.Config.Occurrence.EvaluationFold)
	train = occurrence.PresencePoints(trainRecs)
	eval = occurrence.PresencePoints(evalRecs)
	if len(train) == 0 {
		return nil, nil, fmt.Errorf("fold split left no calibration presences")
	}
	if len(eval) == 0 {
		return nil, nil, fmt.Errorf("fold split left no evaluation presences")
	}
	return train, eval, nil
}
