package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geovector-labs/aedesmap/internal/geo"
	"github.com/geovector-labs/aedesmap/internal/occurrence"
	"github.com/geovector-labs/aedesmap/internal/raster"
	"github.com/geovector-labs/aedesmap/internal/render"
	"github.com/geovector-labs/aedesmap/internal/validate"
)

// ValidateStage scores the mean suitability surface against independent
// field sites and halts at the threshold checkpoint with one operating
// point per threshold rule.
type ValidateStage struct{}

func (s *ValidateStage) Name() string { return StageValidate }

func (s *ValidateStage) Inputs() []string {
	return []string{ArtifactMean, ArtifactRecords}
}

func (s *ValidateStage) Run(ctx context.Context, rc *RunContext) error {
	csv := rc.Config.Occurrence.ValidationCSV
	if csv == "" {
		return fmt.Errorf("occurrence.validation_csv is not configured")
	}
	sites, err := validate.LoadSites(csv, rc.Config.Region.Projection)
	if err != nil {
		return err
	}

	recArt, err := rc.Artifact(ArtifactRecords)
	if err != nil {
		return err
	}
	records, err := occurrence.ReadRecordsCSV(recArt.Path)
	if err != nil {
		return err
	}
	calibrationIDs := make(map[string]bool, len(records))
	for _, r := range records {
		calibrationIDs[r.SiteID] = true
	}
	if err := validate.CheckIndependence(sites, calibrationIDs); err != nil {
		return err
	}

	meanArt, err := rc.Artifact(ArtifactMean)
	if err != nil {
		return err
	}
	mean, err := raster.ReadASCIIGrid(meanArt.Path)
	if err != nil {
		return err
	}
	samples, err := validate.Sampler(mean, sites)
	if err != nil {
		return err
	}
	results, err := validate.Run(samples, rc.Config.Occurrence.ValidationOmissionPercentile/100)
	if err != nil {
		return err
	}

	doc := &ThresholdDecision{RunID: rc.RunID, Checkpoint: CheckpointThreshold}
	for _, res := range results {
		doc.Rules = append(doc.Rules, ThresholdRow{
			Rule:        string(res.Rule),
			Threshold:   res.Threshold,
			Sensitivity: res.Confusion.Sensitivity(),
			Specificity: res.Confusion.Specificity(),
			Accuracy:    res.Confusion.Accuracy(),
		})
	}
	path := filepath.Join(rc.Config.Workspace, "thresholds.yaml")
	if err := WriteDecision(path, doc); err != nil {
		return err
	}
	if err := rc.RecordArtifact(tableArtifact(StageValidate, ArtifactThresholds, "table", path)); err != nil {
		return err
	}
	rc.Logger.Info("threshold rules evaluated",
		"sites", len(sites), "rules", len(results), "decision", path)
	return fmt.Errorf("%d threshold rules in %s: %w", len(results), path, ErrCheckpoint)
}

// RenderStage produces the cartographic outputs at the operator-chosen
// threshold: the binary presence map, the classified suitability and
// uncertainty maps, and per-neighborhood mean suitability as a table and
// a choropleth.
type RenderStage struct {
	// Rule and Threshold come from the resolved threshold decision.
	Rule      string
	Threshold float64
}

func (s *RenderStage) Name() string     { return StageRender }
func (s *RenderStage) Inputs() []string { return []string{ArtifactMean, ArtifactStd} }

func (s *RenderStage) Run(ctx context.Context, rc *RunContext) error {
	if s.Rule == "" {
		return fmt.Errorf("render requires a resolved threshold decision")
	}

	meanArt, err := rc.Artifact(ArtifactMean)
	if err != nil {
		return err
	}
	mean, err := raster.ReadASCIIGrid(meanArt.Path)
	if err != nil {
		return err
	}

	mapsDir := filepath.Join(rc.Config.Workspace, "maps")
	if err := os.MkdirAll(mapsDir, 0o755); err != nil {
		return err
	}

	r := render.New(rc.Config.Region.Projection, rc.Config.Render.Breaks, rc.Logger)
	binary, err := r.BinaryMap(mean, s.Threshold, mapsDir)
	if err != nil {
		return err
	}
	if err := r.BinaryPNG(binary, filepath.Join(mapsDir, "presence.png")); err != nil {
		return err
	}
	if err := r.ClassifiedPNG(mean, filepath.Join(mapsDir, "suitability.png")); err != nil {
		return err
	}
	if err := r.ExportGeoTIFF(mean, filepath.Join(mapsDir, "suitability.tif")); err != nil {
		return err
	}
	if err := rc.RecordArtifact(rasterArtifact(StageRender, ArtifactPresence,
		filepath.Join(mapsDir, "presence.asc"), &rc.Config.Region)); err != nil {
		return err
	}

	stdArt, err := rc.Artifact(ArtifactStd)
	if err != nil {
		return err
	}
	std, err := raster.ReadASCIIGrid(stdArt.Path)
	if err != nil {
		return err
	}
	if err := r.UncertaintyPNG(std, filepath.Join(mapsDir, "uncertainty.png")); err != nil {
		return err
	}
	if err := r.ExportGeoTIFF(std, filepath.Join(mapsDir, "uncertainty.tif")); err != nil {
		return err
	}

	if shp := rc.Config.Render.Neighborhoods; shp != "" {
		zones, err := geo.LoadPolygons(shp, rc.Config.Render.NameField, rc.Config.Region.Projection)
		if err != nil {
			return err
		}
		zonalPath := filepath.Join(mapsDir, "neighborhood_means.csv")
		means, err := r.NeighborhoodMeans(mean, zones, zonalPath)
		if err != nil {
			return err
		}
		if err := rc.RecordArtifact(tableArtifact(StageRender, ArtifactZonal, "table", zonalPath)); err != nil {
			return err
		}
		if err := r.NeighborhoodMap(mean, zones, means, filepath.Join(mapsDir, "neighborhoods.png")); err != nil {
			return err
		}
		rc.Logger.Info("neighborhood means computed", "zones", len(means))
	}

	rc.Logger.Info("maps rendered", "rule", s.Rule, "threshold", s.Threshold, "dir", mapsDir)
	return nil
}
