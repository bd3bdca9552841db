// Package raster provides the in-memory raster grid type and the portable
// ASCII grid codec used for every predictor and prediction layer.
// Grids are row-major with the northernmost row first, matching the ESRI
// ASCII grid layout consumed by the niche-modeling engine.
package raster

import (
	"errors"
	"fmt"
	"math"
)

// DefaultNodata is the nodata marker written when a grid does not set one.
const DefaultNodata = -9999.0

// alignTol is the tolerance used when comparing grid origins and cell sizes.
const alignTol = 1e-6

// ErrMisaligned reports a spatial-reference mismatch between layers.
// Any derived computation must abort when this is returned.
var ErrMisaligned = errors.New("raster layers are not spatially aligned")

// Grid is a single-band raster with a lower-left anchored square-cell grid.
type Grid struct {
	Ncols    int
	Nrows    int
	Xll      float64 // x of the lower-left corner
	Yll      float64 // y of the lower-left corner
	Cellsize float64
	Nodata   float64

	// Data is row-major, top row (northernmost) first.
	Data []float64
}

// New creates a grid filled with the nodata value.
func New(ncols, nrows int, xll, yll, cellsize float64) *Grid {
	g := &Grid{
		Ncols:    ncols,
		Nrows:    nrows,
		Xll:      xll,
		Yll:      yll,
		Cellsize: cellsize,
		Nodata:   DefaultNodata,
		Data:     make([]float64, ncols*nrows),
	}
	for i := range g.Data {
		g.Data[i] = g.Nodata
	}
	return g
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = make([]float64, len(g.Data))
	copy(c.Data, g.Data)
	return &c
}

// At returns the value at the given column and row (row 0 is the top row).
func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Ncols+col]
}

// Set assigns the value at the given column and row.
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Ncols+col] = v
}

// IsNodata reports whether v is the grid's nodata marker.
func (g *Grid) IsNodata(v float64) bool {
	return v == g.Nodata || math.IsNaN(v)
}

// CellCenter returns the map coordinates of the center of the given cell.
func (g *Grid) CellCenter(col, row int) (x, y float64) {
	x = g.Xll + (float64(col)+0.5)*g.Cellsize
	y = g.Yll + (float64(g.Nrows-1-row)+0.5)*g.Cellsize
	return x, y
}

// CellAt returns the column and row containing the map coordinate, and
// whether the coordinate falls inside the grid extent.
func (g *Grid) CellAt(x, y float64) (col, row int, ok bool) {
	col = int(math.Floor((x - g.Xll) / g.Cellsize))
	rowFromBottom := int(math.Floor((y - g.Yll) / g.Cellsize))
	row = g.Nrows - 1 - rowFromBottom
	if col < 0 || col >= g.Ncols || row < 0 || row >= g.Nrows {
		return 0, 0, false
	}
	return col, row, true
}

// Sample returns the cell value at the map coordinate. The second return
// is false when the coordinate is outside the extent or the cell is nodata.
func (g *Grid) Sample(x, y float64) (float64, bool) {
	col, row, ok := g.CellAt(x, y)
	if !ok {
		return 0, false
	}
	v := g.At(col, row)
	if g.IsNodata(v) {
		return 0, false
	}
	return v, true
}

// AlignedWith checks that two grids share extent, resolution and shape.
// Returns an error wrapping ErrMisaligned naming the first mismatch.
func (g *Grid) AlignedWith(o *Grid) error {
	switch {
	case g.Ncols != o.Ncols || g.Nrows != o.Nrows:
		return fmt.Errorf("%w: shape %dx%d vs %dx%d",
			ErrMisaligned, g.Ncols, g.Nrows, o.Ncols, o.Nrows)
	case math.Abs(g.Xll-o.Xll) > alignTol || math.Abs(g.Yll-o.Yll) > alignTol:
		return fmt.Errorf("%w: origin (%g,%g) vs (%g,%g)",
			ErrMisaligned, g.Xll, g.Yll, o.Xll, o.Yll)
	case math.Abs(g.Cellsize-o.Cellsize) > alignTol:
		return fmt.Errorf("%w: cellsize %g vs %g", ErrMisaligned, g.Cellsize, o.Cellsize)
	}
	return nil
}

// CheckAligned verifies that every named layer aligns with the first one.
// The offending layer name is included in the error so the failure can be
// traced to a specific input.
func CheckAligned(layers map[string]*Grid) error {
	var refName string
	var ref *Grid
	for name, g := range layers {
		if ref == nil {
			refName, ref = name, g
			continue
		}
		if err := ref.AlignedWith(g); err != nil {
			return fmt.Errorf("layer %q vs %q: %w", name, refName, err)
		}
	}
	return nil
}

// Binarize classifies the grid against a threshold: cells with value >=
// threshold become 1, others 0. Nodata cells stay nodata. Raising the
// threshold can only shrink the set of cells classified 1.
func (g *Grid) Binarize(threshold float64) *Grid {
	out := g.Clone()
	for i, v := range g.Data {
		if g.IsNodata(v) {
			continue
		}
		if v >= threshold {
			out.Data[i] = 1
		} else {
			out.Data[i] = 0
		}
	}
	return out
}

// CountEqual returns the number of non-nodata cells equal to v.
func (g *Grid) CountEqual(v float64) int {
	n := 0
	for _, c := range g.Data {
		if !g.IsNodata(c) && c == v {
			n++
		}
	}
	return n
}

// MinMax returns the minimum and maximum non-nodata values.
// ok is false when the grid has no valid cells.
func (g *Grid) MinMax() (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if g.IsNodata(v) {
			continue
		}
		ok = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, ok
}

// ApplyMask returns a copy of g with nodata wherever the mask is nodata or
// zero. The mask must be aligned with g.
func (g *Grid) ApplyMask(mask *Grid) (*Grid, error) {
	if err := g.AlignedWith(mask); err != nil {
		return nil, err
	}
	out := g.Clone()
	for i, m := range mask.Data {
		if mask.IsNodata(m) || m == 0 {
			out.Data[i] = out.Nodata
		}
	}
	return out, nil
}
