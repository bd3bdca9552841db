package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/geovector-labs/aedesmap/internal/niche"
	"github.com/geovector-labs/aedesmap/internal/raster"
)

// ReductionReport is the artifact documenting the variable-reduction pass.
type ReductionReport struct {
	Kept    []string          `yaml:"kept"`
	Dropped map[string]string `yaml:"dropped"`
}

// FinalizeStage turns the operator-chosen candidate into the final model:
// it prunes correlated and uninformative predictors using the candidate's
// permutation importances, re-selects over the reduced stack, fits the
// bootstrap ensemble, and projects the mean and deviation suitability
// surfaces onto the full region extent.
type FinalizeStage struct {
	Runner niche.Runner

	// Chosen is the candidate ID resolved at the calibration checkpoint.
	Chosen string
}

func (s *FinalizeStage) Name() string { return StageFinalize }

func (s *FinalizeStage) Inputs() []string {
	return []string{ArtifactCandidates, ArtifactSamples, ArtifactRecords,
		ArtifactLayersM, ArtifactLayersG}
}

func (s *FinalizeStage) Run(ctx context.Context, rc *RunContext) error {
	if s.Chosen == "" {
		return fmt.Errorf("finalize requires a resolved candidate decision")
	}
	cal := rc.Config.Calibration
	modelsDir := filepath.Join(rc.Config.Workspace, "models", rc.RunID)

	importance, err := niche.ParseImportance(filepath.Join(modelsDir, s.Chosen, "maxentResults.csv"))
	if err != nil {
		return fmt.Errorf("candidate %s: %w", s.Chosen, err)
	}

	layersM, err := rc.Artifact(ArtifactLayersM)
	if err != nil {
		return err
	}
	mGrids, err := loadLayerDir(layersM.Path)
	if err != nil {
		return err
	}
	red, err := niche.Reduce(mGrids, importance, cal.CorrelationCutoff, cal.ContributionFloor)
	if err != nil {
		return err
	}
	rc.Logger.Info("predictor stack reduced",
		"kept", len(red.Kept), "dropped", len(red.Dropped), "candidate", s.Chosen)

	reportPath := filepath.Join(rc.Config.Workspace, "reduction.yaml")
	if err := WriteDecision(reportPath, ReductionReport{Kept: red.Kept, Dropped: red.Dropped}); err != nil {
		return err
	}
	if err := rc.RecordArtifact(tableArtifact(StageFinalize, ArtifactReduction, "table", reportPath)); err != nil {
		return err
	}

	reducedM := filepath.Join(modelsDir, "layers_m_final")
	if err := writeLayerDir(reducedM, mGrids, red.Kept); err != nil {
		return err
	}
	layersG, err := rc.Artifact(ArtifactLayersG)
	if err != nil {
		return err
	}
	gGrids, err := loadLayerDir(layersG.Path)
	if err != nil {
		return err
	}
	reducedG := filepath.Join(modelsDir, "layers_g_final")
	if err := writeLayerDir(reducedG, gGrids, red.Kept); err != nil {
		return err
	}

	// Re-select over the pruned stack: dropping predictors shifts both the
	// fits and their AICc ordering, so the pre-reduction winner cannot be
	// assumed to survive.
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
	evals, err := evaluateGrid(ctx, s.Runner, candidates, samples.Path, reducedM,
		filepath.Join(modelsDir, "final"), trainPts, evalPts, &cal)
	if err != nil {
		return err
	}
	best, err := niche.Select(evals, cal.OmissionTolerance)
	if err != nil {
		return fmt.Errorf("re-selection on reduced stack: %w", err)
	}
	rc.Logger.Info("final model selected",
		"candidate", best.Candidate.ID(), "aicc", best.AICc, "omission", best.Omission)

	ensembleDir, err := freshDir(filepath.Join(modelsDir, "ensemble"))
	if err != nil {
		return err
	}
	mean, std, err := niche.Ensemble(ctx, s.Runner, niche.EnsembleSpec{
		Base: niche.RunSpec{
			SamplesCSV:          samples.Path,
			LayersDir:           reducedM,
			OutDir:              ensembleDir,
			ProjectionLayersDir: reducedG,
			Candidate:           best.Candidate,
			OutputFormat:        niche.OutputCloglog,
			Jackknife:           true,
		},
		Replicates: cal.Replicates,
		Parallel:   cal.Parallel,
	})
	if err != nil {
		return err
	}

	meanPath := filepath.Join(rc.Config.Workspace, "suitability_mean.asc")
	if err := raster.WriteASCIIGrid(meanPath, mean); err != nil {
		return err
	}
	stdPath := filepath.Join(rc.Config.Workspace, "suitability_std.asc")
	if err := raster.WriteASCIIGrid(stdPath, std); err != nil {
		return err
	}
	if err := rc.RecordArtifact(rasterArtifact(StageFinalize, ArtifactMean, meanPath, &rc.Config.Region)); err != nil {
		return err
	}
	return rc.RecordArtifact(rasterArtifact(StageFinalize, ArtifactStd, stdPath, &rc.Config.Region))
}
