// Package render produces the final cartographic outputs: the binary
// presence/absence map at the chosen threshold, per-neighborhood mean
// suitability, classified PNG maps, and GeoTIFF exports.
package render

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/geovector-labs/aedesmap/internal/geo"
	"github.com/geovector-labs/aedesmap/internal/raster"
)

// Renderer writes the output artifacts of a run.
type Renderer struct {
	logger *slog.Logger
	// Projection is the working CRS, stamped onto GeoTIFF exports.
	Projection string
	// Breaks are the suitability class boundaries of the classified map.
	Breaks []float64
}

// New creates a renderer.
func New(projection string, breaks []float64, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renderer{logger: logger, Projection: projection, Breaks: breaks}
}

// BinaryMap binarizes the mean suitability raster at the threshold and
// writes it as both ASCII grid and GeoTIFF.
func (r *Renderer) BinaryMap(mean *raster.Grid, threshold float64, outDir string) (*raster.Grid, error) {
	if mean == nil {
		return nil, fmt.Errorf("no mean suitability raster")
	}

	binary := mean.Binarize(threshold)

	ascPath := filepath.Join(outDir, "presence.asc")
	if err := raster.WriteASCIIGrid(ascPath, binary); err != nil {
		return nil, fmt.Errorf("binary map: %w", err)
	}
	tifPath := filepath.Join(outDir, "presence.tif")
	if err := raster.WriteGeoTIFF(tifPath, binary, r.Projection); err != nil {
		return nil, fmt.Errorf("binary map: %w", err)
	}

	r.logger.Info("binary map written",
		slog.Float64("threshold", threshold),
		slog.Int("present_cells", binary.CountEqual(1)))
	return binary, nil
}

// NeighborhoodMeans computes the mean suitability per neighborhood polygon
// and writes the table as CSV.
func (r *Renderer) NeighborhoodMeans(mean *raster.Grid, zones []*geo.NamedPolygon, path string) ([]geo.ZonalMean, error) {
	means, err := geo.ZonalMeans(mean, zones)
	if err != nil {
		return nil, fmt.Errorf("neighborhood means: %w", err)
	}
	if err := writeZonalCSV(path, means); err != nil {
		return nil, fmt.Errorf("neighborhood means: %w", err)
	}
	r.logger.Info("neighborhood means written", slog.Int("neighborhoods", len(means)))
	return means, nil
}

// ExportGeoTIFF writes a suitability raster as GeoTIFF.
func (r *Renderer) ExportGeoTIFF(g *raster.Grid, path string) error {
	if err := raster.WriteGeoTIFF(path, g, r.Projection); err != nil {
		return fmt.Errorf("geotiff export %s: %w", path, err)
	}
	return nil
}

func writeZonalCSV(path string, means []geo.ZonalMean) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".zonal-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"neighborhood", "mean_suitability", "cells"}); err != nil {
		tmp.Close()
		return err
	}
	for _, m := range means {
		rec := []string{
			m.Name,
			strconv.FormatFloat(m.Mean, 'g', -1, 64),
			strconv.Itoa(m.Cells),
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
