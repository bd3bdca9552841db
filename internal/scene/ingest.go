// Package scene prepares the GIS workspace: one-time ancillary ingestion
// (elevation, vector base layers) and the per-scene processing chain from
// raw bands to exported predictor grids.
package scene

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/geovector-labs/aedesmap/internal/gis"
	"github.com/geovector-labs/aedesmap/internal/raster"
)

// ElevationLayer is the workspace name of the imported DEM.
const ElevationLayer = "elevation"

// Ingestor performs the one-time ancillary import.
type Ingestor struct {
	engine gis.Engine
	logger *slog.Logger

	// readDEM loads the elevation raster for the mean-elevation statistic.
	// Overridable in tests.
	readDEM func(path string) (*raster.Grid, error)
}

// NewIngestor creates an ancillary importer over the given engine.
func NewIngestor(engine gis.Engine, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{engine: engine, logger: logger, readDEM: raster.ReadGeoTIFF}
}

// IngestResult reports what the ancillary import produced.
type IngestResult struct {
	// MeanElevation is the mean of valid DEM cells, used to parameterize
	// atmospheric correction.
	MeanElevation float64
	// VectorLayers maps base-layer names to their rasterized workspace
	// layers, inputs for the distance rasters.
	VectorLayers map[string]string
}

// Ingest imports the DEM and the vector base layers, rasterizes the
// vectors, and computes the mean elevation.
func (ig *Ingestor) Ingest(ctx context.Context, demPath string, baseLayers map[string]string) (*IngestResult, error) {
	if demPath == "" {
		return nil, fmt.Errorf("no DEM configured")
	}

	if err := ig.engine.Import(ctx, demPath, ElevationLayer, gis.Params{"kind": "raster"}); err != nil {
		return nil, err
	}

	res := &IngestResult{VectorLayers: make(map[string]string, len(baseLayers))}

	names := make([]string, 0, len(baseLayers))
	for name := range baseLayers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ig.engine.Import(ctx, baseLayers[name], name, gis.Params{"kind": "vector"}); err != nil {
			return nil, err
		}
		rast := name + "_rast"
		if err := ig.engine.Compute(ctx, "v.to.rast", []string{name}, rast,
			gis.Params{"use": "val", "value": "1"}); err != nil {
			return nil, err
		}
		res.VectorLayers[name] = rast
	}

	grid, err := ig.readDEM(demPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read DEM %s: %w", demPath, err)
	}
	mean, err := meanElevation(grid)
	if err != nil {
		return nil, fmt.Errorf("mean elevation from %s: %w", demPath, err)
	}
	res.MeanElevation = mean

	ig.logger.Info("ancillary import done",
		slog.Float64("mean_elevation", res.MeanElevation),
		slog.Int("base_layers", len(res.VectorLayers)))
	return res, nil
}

func meanElevation(grid *raster.Grid) (float64, error) {
	sum, n := 0.0, 0
	for _, v := range grid.Data {
		if grid.IsNodata(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("DEM has no valid cells")
	}
	return sum / float64(n), nil
}
