package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/geovector-labs/aedesmap/internal/geo"
	"github.com/geovector-labs/aedesmap/internal/occurrence"
	"github.com/geovector-labs/aedesmap/internal/raster"
)

// OccurrenceStage loads the trap survey, labels presences over the
// configured window, projects sites into the working CRS and assigns
// cross-validation folds.
type OccurrenceStage struct{}

func (s *OccurrenceStage) Name() string     { return StageOccurrence }
func (s *OccurrenceStage) Inputs() []string { return nil }

func (s *OccurrenceStage) Run(ctx context.Context, rc *RunContext) error {
	cfg := rc.Config.Occurrence
	records, err := occurrence.LoadCSV(cfg.CSV)
	if err != nil {
		return err
	}

	weeks := make([]int, 0, cfg.WindowEnd-cfg.WindowStart+1)
	for wk := cfg.WindowStart; wk <= cfg.WindowEnd; wk++ {
		weeks = append(weeks, wk)
	}
	labeled, err := occurrence.Label(records, weeks)
	if err != nil {
		return err
	}
	if err := occurrence.Project(labeled, rc.Config.Region.Projection); err != nil {
		return err
	}
	if err := occurrence.Split(labeled, cfg.Folds, cfg.Seed); err != nil {
		return err
	}

	recordsPath := filepath.Join(rc.Config.Workspace, "records.csv")
	if err := occurrence.WriteRecordsCSV(recordsPath, labeled); err != nil {
		return err
	}

	train, eval := occurrence.TrainEval(labeled, cfg.EvaluationFold)
	samplesPath := filepath.Join(rc.Config.Workspace, "samples.csv")
	if err := occurrence.WriteSamplesCSV(samplesPath, Species, train); err != nil {
		return err
	}

	rc.Logger.Info("occurrence records prepared",
		"sites", len(labeled), "training", len(train), "evaluation", len(eval))
	if err := rc.RecordArtifact(tableArtifact(StageOccurrence, ArtifactRecords, "table", recordsPath)); err != nil {
		return err
	}
	return rc.RecordArtifact(tableArtifact(StageOccurrence, ArtifactSamples, "table", samplesPath))
}

// AreaStage builds the accessible area M: a buffer union around the
// presence sites, rasterized onto the region grid and applied as a mask to
// every scene predictor.
type AreaStage struct{}

func (s *AreaStage) Name() string     { return StageArea }
func (s *AreaStage) Inputs() []string { return []string{ArtifactRecords, ArtifactLayersG} }

func (s *AreaStage) Run(ctx context.Context, rc *RunContext) error {
	recArt, err := rc.Artifact(ArtifactRecords)
	if err != nil {
		return err
	}
	records, err := occurrence.ReadRecordsCSV(recArt.Path)
	if err != nil {
		return err
	}
	points := occurrence.PresencePoints(records)
	if len(points) == 0 {
		return occurrence.ErrNoPresence
	}

	region, err := geo.BufferUnion(points, rc.Config.Area.BufferRadiusMeters)
	if err != nil {
		return err
	}
	for i, p := range points {
		if !geo.Contains(region, p) {
			return fmt.Errorf("presence site %d at (%g,%g) falls outside its own buffer union", i, p.X, p.Y)
		}
	}

	template := regionTemplate(&rc.Config.Region)
	mask := geo.PolygonMask(region, template)
	if mask.CountEqual(1) == 0 {
		return fmt.Errorf("accessible area does not intersect the region grid")
	}

	maskPath := filepath.Join(rc.Config.Workspace, "mask.asc")
	if err := raster.WriteASCIIGrid(maskPath, mask); err != nil {
		return err
	}
	if err := rc.RecordArtifact(rasterArtifact(StageArea, ArtifactAreaMask, maskPath, &rc.Config.Region)); err != nil {
		return err
	}

	layersG, err := rc.Artifact(ArtifactLayersG)
	if err != nil {
		return err
	}
	layers, err := loadLayerDir(layersG.Path)
	if err != nil {
		return err
	}

	masked := make(map[string]*raster.Grid, len(layers))
	names := make([]string, 0, len(layers))
	for name, g := range layers {
		m, err := g.ApplyMask(mask)
		if err != nil {
			return fmt.Errorf("predictor %s: %w", name, err)
		}
		masked[name] = m
		names = append(names, name)
	}

	outDir := filepath.Join(rc.Config.Workspace, "layers_m")
	if err := writeLayerDir(outDir, masked, names); err != nil {
		return err
	}
	rc.Logger.Info("accessible area built",
		"cells", mask.CountEqual(1), "predictors", len(masked),
		"buffer_m", rc.Config.Area.BufferRadiusMeters)
	return rc.RecordArtifact(tableArtifact(StageArea, ArtifactLayersM, "stack", outDir))
}
