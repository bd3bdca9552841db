// Package geo provides the vector-side geographic operations of the
// pipeline: coordinate reprojection, accessible-area buffering, shapefile
// loading and zonal statistics over raster grids.
package geo

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// LongLatProj is the proj4 definition for geographic WGS84 coordinates,
// the reference system field records are collected in.
const LongLatProj = "+proj=longlat +datum=WGS84 +no_defs"

// Transform converts coordinates between two proj4-defined reference systems.
type Transform struct {
	t proj.Transformer
}

// NewTransform builds a transform from one proj4 string to another.
func NewTransform(from, to string) (*Transform, error) {
	fromSR, err := proj.Parse(from)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source projection %q: %w", from, err)
	}
	toSR, err := proj.Parse(to)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target projection %q: %w", to, err)
	}
	t, err := fromSR.NewTransform(toSR)
	if err != nil {
		return nil, fmt.Errorf("failed to create transform: %w", err)
	}
	return &Transform{t: t}, nil
}

// Point transforms a single coordinate pair.
func (tr *Transform) Point(x, y float64) (float64, float64, error) {
	g, err := geom.Point{X: x, Y: y}.Transform(tr.t)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to transform point (%g,%g): %w", x, y, err)
	}
	p := g.(geom.Point)
	return p.X, p.Y, nil
}

// Geom transforms an arbitrary geometry.
func (tr *Transform) Geom(g geom.Geom) (geom.Geom, error) {
	return g.Transform(tr.t)
}
