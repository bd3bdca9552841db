package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/geovector-labs/aedesmap/internal/geo"
	"github.com/geovector-labs/aedesmap/internal/raster"
)

// suitabilityPalette colors the classified map from low (pale yellow) to
// high (dark red); one color per class between consecutive breaks.
var suitabilityPalette = []color.NRGBA{
	{R: 255, G: 255, B: 178, A: 255},
	{R: 254, G: 204, B: 92, A: 255},
	{R: 253, G: 141, B: 60, A: 255},
	{R: 240, G: 59, B: 32, A: 255},
	{R: 189, G: 0, B: 38, A: 255},
}

var (
	nodataColor  = color.NRGBA{R: 220, G: 220, B: 220, A: 255}
	presentColor = color.NRGBA{R: 178, G: 24, B: 43, A: 255}
	absentColor  = color.NRGBA{R: 247, G: 247, B: 247, A: 255}
)

// uncertaintyRamp colors the deviation map from low (near white) to high
// (dark blue), scaled to the observed value range.
var uncertaintyRamp = []color.NRGBA{
	{R: 247, G: 251, B: 255, A: 255},
	{R: 198, G: 219, B: 239, A: 255},
	{R: 107, G: 174, B: 214, A: 255},
	{R: 33, G: 113, B: 181, A: 255},
	{R: 8, G: 48, B: 107, A: 255},
}

// checkBreaks validates the renderer's class breaks against the palette.
func (r *Renderer) checkBreaks() error {
	if len(r.Breaks) == 0 {
		return fmt.Errorf("no class breaks configured")
	}
	if len(r.Breaks)+1 > len(suitabilityPalette) {
		return fmt.Errorf("%d breaks need %d classes, palette has %d",
			len(r.Breaks), len(r.Breaks)+1, len(suitabilityPalette))
	}
	for i := 1; i < len(r.Breaks); i++ {
		if r.Breaks[i] <= r.Breaks[i-1] {
			return fmt.Errorf("class breaks must be strictly increasing")
		}
	}
	return nil
}

// ClassifiedPNG renders the suitability raster as a classified PNG using
// the renderer's breaks. Requires len(Breaks)+1 <= len(palette) classes.
func (r *Renderer) ClassifiedPNG(g *raster.Grid, path string) error {
	if err := r.checkBreaks(); err != nil {
		return err
	}

	img := image.NewNRGBA(image.Rect(0, 0, g.Ncols, g.Nrows))
	for row := 0; row < g.Nrows; row++ {
		for col := 0; col < g.Ncols; col++ {
			v := g.At(col, row)
			if g.IsNodata(v) {
				img.SetNRGBA(col, row, nodataColor)
				continue
			}
			img.SetNRGBA(col, row, suitabilityPalette[classOf(v, r.Breaks)])
		}
	}
	return writePNG(path, img)
}

// UncertaintyPNG renders the ensemble standard-deviation raster on the
// blue ramp. The ramp spans the raster's own value range, so the map shows
// where the replicates disagree most rather than absolute magnitudes.
func (r *Renderer) UncertaintyPNG(g *raster.Grid, path string) error {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if g.IsNodata(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return fmt.Errorf("uncertainty map: raster has no valid cells")
	}
	span := hi - lo

	img := image.NewNRGBA(image.Rect(0, 0, g.Ncols, g.Nrows))
	for row := 0; row < g.Nrows; row++ {
		for col := 0; col < g.Ncols; col++ {
			v := g.At(col, row)
			if g.IsNodata(v) {
				img.SetNRGBA(col, row, nodataColor)
				continue
			}
			cls := 0
			if span > 0 {
				cls = int(float64(len(uncertaintyRamp)) * (v - lo) / span)
				if cls >= len(uncertaintyRamp) {
					cls = len(uncertaintyRamp) - 1
				}
			}
			img.SetNRGBA(col, row, uncertaintyRamp[cls])
		}
	}
	return writePNG(path, img)
}

// NeighborhoodMap paints every cell with the suitability class of its
// neighborhood's mean, a choropleth companion to the per-neighborhood
// table. Cells outside every neighborhood, and neighborhoods that covered
// no valid cell, render as nodata.
func (r *Renderer) NeighborhoodMap(g *raster.Grid, zones []*geo.NamedPolygon, means []geo.ZonalMean, path string) error {
	if err := r.checkBreaks(); err != nil {
		return err
	}
	if len(zones) == 0 {
		return fmt.Errorf("no neighborhoods to render")
	}
	meanOf := make(map[string]geo.ZonalMean, len(means))
	for _, m := range means {
		meanOf[m.Name] = m
	}
	loc := geo.NewLocator(zones)

	img := image.NewNRGBA(image.Rect(0, 0, g.Ncols, g.Nrows))
	for row := 0; row < g.Nrows; row++ {
		for col := 0; col < g.Ncols; col++ {
			x, y := g.CellCenter(col, row)
			z := loc.Locate(x, y)
			if z == nil {
				img.SetNRGBA(col, row, nodataColor)
				continue
			}
			m, ok := meanOf[z.Name]
			if !ok || m.Cells == 0 {
				img.SetNRGBA(col, row, nodataColor)
				continue
			}
			img.SetNRGBA(col, row, suitabilityPalette[classOf(m.Mean, r.Breaks)])
		}
	}
	if err := writePNG(path, img); err != nil {
		return err
	}
	r.logger.Info("neighborhood map written", slog.Int("neighborhoods", len(zones)))
	return nil
}

// BinaryPNG renders a 0/1 presence raster.
func (r *Renderer) BinaryPNG(g *raster.Grid, path string) error {
	img := image.NewNRGBA(image.Rect(0, 0, g.Ncols, g.Nrows))
	for row := 0; row < g.Nrows; row++ {
		for col := 0; col < g.Ncols; col++ {
			v := g.At(col, row)
			switch {
			case g.IsNodata(v):
				img.SetNRGBA(col, row, nodataColor)
			case v >= 1:
				img.SetNRGBA(col, row, presentColor)
			default:
				img.SetNRGBA(col, row, absentColor)
			}
		}
	}
	return writePNG(path, img)
}

// classOf returns the class index of v under the given breaks: class i
// holds values < breaks[i], the last class holds the rest.
func classOf(v float64, breaks []float64) int {
	for i, b := range breaks {
		if v < b {
			return i
		}
	}
	return len(breaks)
}

func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".png-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
