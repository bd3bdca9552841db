package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geovector-labs/aedesmap/internal/gis"
	"github.com/geovector-labs/aedesmap/internal/scene"
)

// Ancillary is the ingest summary handed to the scene chain: the DEM-derived
// correction parameter and the rasterized base layers for distance surfaces.
type Ancillary struct {
	MeanElevation float64           `yaml:"mean_elevation"`
	VectorLayers  map[string]string `yaml:"vector_layers"`
}

// IngestStage imports the DEM and vector base layers into the GIS workspace
// and records the ancillary summary.
type IngestStage struct {
	Engine gis.Engine
}

func (s *IngestStage) Name() string     { return StageIngest }
func (s *IngestStage) Inputs() []string { return nil }

func (s *IngestStage) Run(ctx context.Context, rc *RunContext) error {
	ig := scene.NewIngestor(s.Engine, rc.Logger)
	res, err := ig.Ingest(ctx, rc.Config.DEM, rc.Config.BaseLayers)
	if err != nil {
		return err
	}

	path := filepath.Join(rc.Config.Workspace, "ancillary.yaml")
	doc := Ancillary{MeanElevation: res.MeanElevation, VectorLayers: res.VectorLayers}
	if err := WriteDecision(path, doc); err != nil {
		return err
	}
	rc.Logger.Info("ancillary data ingested",
		"mean_elevation", res.MeanElevation, "base_layers", len(res.VectorLayers))
	return rc.RecordArtifact(tableArtifact(StageIngest, ArtifactAncillary, "table", path))
}

// SceneStage runs the per-scene predictor chain and exports the full-extent
// predictor stack.
type SceneStage struct {
	Engine gis.Engine

	// Only restricts processing to one scene ID, for reruns.
	Only string
}

func (s *SceneStage) Name() string     { return StageScene }
func (s *SceneStage) Inputs() []string { return []string{ArtifactAncillary} }

func (s *SceneStage) Run(ctx context.Context, rc *RunContext) error {
	anc, err := rc.Artifact(ArtifactAncillary)
	if err != nil {
		return err
	}
	var info Ancillary
	if err := loadYAML(anc.Path, &info); err != nil {
		return err
	}

	proc := scene.NewProcessor(s.Engine, rc.Logger)
	proc.MeanElevation = info.MeanElevation
	proc.DistanceSources = info.VectorLayers
	proc.Parallel = rc.Config.Calibration.Parallel

	outDir := filepath.Join(rc.Config.Workspace, "layers_g")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	processed := 0
	for _, sc := range rc.Config.Scenes {
		if s.Only != "" && sc.ID != s.Only {
			continue
		}
		res, err := proc.Process(ctx, sc, outDir)
		if err != nil {
			return err
		}
		for name, path := range res.Predictors {
			if err := rc.RecordArtifact(rasterArtifact(StageScene, name, path, &rc.Config.Region)); err != nil {
				return err
			}
		}
		rc.Logger.Info("scene processed", "scene", sc.ID, "predictors", len(res.Predictors))
		processed++
	}
	if processed == 0 {
		return fmt.Errorf("no scene matched %q", s.Only)
	}
	return rc.RecordArtifact(tableArtifact(StageScene, ArtifactLayersG, "stack", outDir))
}
