package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/raster"
	"github.com/geovector-labs/aedesmap/internal/state"
)

// Stage names, fixed so runs can be resumed and subsets selected by name.
const (
	StageIngest     = "ingest"
	StageScene      = "scene"
	StageOccurrence = "occurrence"
	StageArea       = "area"
	StageCalibrate  = "calibrate"
	StageFinalize   = "finalize"
	StageValidate   = "validate"
	StageRender     = "render"
)

// Manifest artifact names shared between producing and consuming stages.
const (
	ArtifactAncillary  = "ancillary"
	ArtifactLayersG    = "layers_g"
	ArtifactSamples    = "samples"
	ArtifactRecords    = "records"
	ArtifactAreaMask   = "m_mask"
	ArtifactLayersM    = "layers_m"
	ArtifactCandidates = "candidates"
	ArtifactReduction  = "reduction"
	ArtifactMean       = "suitability_mean"
	ArtifactStd        = "suitability_std"
	ArtifactThresholds = "thresholds"
	ArtifactPresence   = "presence_map"
	ArtifactZonal      = "neighborhood_means"
)

// Species is the single modeled taxon. The samples file carries it so the
// modeling engine names its outputs consistently across stages.
const Species = "aedes_aegypti"

// regionTemplate builds an empty grid covering the configured region.
func regionTemplate(r *config.Region) *raster.Grid {
	ncols := int(math.Round((r.Xmax - r.Xmin) / r.CellSize))
	nrows := int(math.Round((r.Ymax - r.Ymin) / r.CellSize))
	return raster.New(ncols, nrows, r.Xmin, r.Ymin, r.CellSize)
}

// rasterArtifact builds a manifest entry for a grid covering the region.
func rasterArtifact(stage, name, path string, r *config.Region) *state.Artifact {
	return &state.Artifact{
		Stage:    stage,
		Name:     name,
		Kind:     "raster",
		Path:     path,
		CRS:      r.Projection,
		CellSize: r.CellSize,
		Xmin:     r.Xmin,
		Ymin:     r.Ymin,
		Xmax:     r.Xmax,
		Ymax:     r.Ymax,
	}
}

// tableArtifact builds a manifest entry for a non-spatial file or directory.
func tableArtifact(stage, name, kind, path string) *state.Artifact {
	return &state.Artifact{Stage: stage, Name: name, Kind: kind, Path: path}
}

// loadLayerDir reads every ASCII grid in dir, keyed by base name without
// extension.
func loadLayerDir(dir string) (map[string]*raster.Grid, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer directory: %w", err)
	}
	layers := make(map[string]*raster.Grid)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".asc") {
			continue
		}
		g, err := raster.ReadASCIIGrid(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		layers[strings.TrimSuffix(e.Name(), ".asc")] = g
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no ASCII grids in %s", dir)
	}
	return layers, nil
}

// writeLayerDir materializes the named grids as ASCII grids under dir. The
// directory must not carry leftovers from a previous run.
func writeLayerDir(dir string, layers map[string]*raster.Grid, names []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		g, ok := layers[name]
		if !ok {
			return fmt.Errorf("layer %q not loaded", name)
		}
		if err := raster.WriteASCIIGrid(filepath.Join(dir, name+".asc"), g); err != nil {
			return err
		}
	}
	return nil
}
