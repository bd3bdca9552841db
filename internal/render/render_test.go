package render

import (
	"encoding/csv"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geovector-labs/aedesmap/internal/geo"
	"github.com/geovector-labs/aedesmap/internal/raster"
)

func suitabilityGrid() *raster.Grid {
	g := raster.New(4, 4, 0, 0, 10)
	for i := range g.Data {
		g.Data[i] = float64(i) / 15.0
	}
	g.Data[0] = g.Nodata
	return g
}

func TestNeighborhoodMeans(t *testing.T) {
	g := suitabilityGrid()
	// one zone covering the whole extent
	zone := &geo.NamedPolygon{
		Name: "centro",
		Polygonal: geom.Polygon{{
			{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 40}, {X: 0, Y: 40}, {X: 0, Y: 0},
		}},
	}

	path := filepath.Join(t.TempDir(), "zonal.csv")
	r := New("+proj=utm +zone=25 +south", nil, nil)

	means, err := r.NeighborhoodMeans(g, []*geo.NamedPolygon{zone}, path)
	require.NoError(t, err)
	require.Len(t, means, 1)
	assert.Equal(t, "centro", means[0].Name)
	assert.Equal(t, 15, means[0].Cells) // 16 minus the nodata hole

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"neighborhood", "mean_suitability", "cells"}, rows[0])
	assert.Equal(t, "centro", rows[1][0])
}

func TestClassOf(t *testing.T) {
	breaks := []float64{0.2, 0.4, 0.6, 0.8}
	assert.Equal(t, 0, classOf(0.1, breaks))
	assert.Equal(t, 1, classOf(0.2, breaks))
	assert.Equal(t, 3, classOf(0.79, breaks))
	assert.Equal(t, 4, classOf(0.95, breaks))
}

func TestClassifiedPNG(t *testing.T) {
	g := suitabilityGrid()
	path := filepath.Join(t.TempDir(), "suitability.png")
	r := New("", []float64{0.2, 0.4, 0.6, 0.8}, nil)

	require.NoError(t, r.ClassifiedPNG(g, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	// nodata cell renders gray
	r0, g0, b0, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(220<<8|220), r0)
	assert.Equal(t, r0, g0)
	assert.Equal(t, g0, b0)
}

func TestClassifiedPNG_BadBreaks(t *testing.T) {
	g := suitabilityGrid()
	path := filepath.Join(t.TempDir(), "x.png")

	r := New("", nil, nil)
	require.Error(t, r.ClassifiedPNG(g, path))

	r = New("", []float64{0.4, 0.2}, nil)
	require.Error(t, r.ClassifiedPNG(g, path))

	r = New("", []float64{0.1, 0.2, 0.3, 0.4, 0.5}, nil)
	require.Error(t, r.ClassifiedPNG(g, path))
}

func TestUncertaintyPNG(t *testing.T) {
	g := raster.New(2, 2, 0, 0, 10)
	g.Data = []float64{0.01, 0.05, 0.20, g.Nodata}

	path := filepath.Join(t.TempDir(), "uncertainty.png")
	r := New("", nil, nil)
	require.NoError(t, r.UncertaintyPNG(g, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	// lowest spread renders near white, highest near dark blue
	lr, lg, lb, _ := img.At(0, 0).RGBA()
	hr, _, hb, _ := img.At(0, 1).RGBA()
	assert.Greater(t, lr+lg+lb, uint32(3*200<<8))
	assert.Less(t, hr, uint32(64<<8))
	assert.Greater(t, hb, hr, "high uncertainty leans blue")

	// nodata cell renders gray
	nr, ng, nb, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(220<<8|220), nr)
	assert.Equal(t, nr, ng)
	assert.Equal(t, ng, nb)
}

func TestUncertaintyPNG_UniformSpread(t *testing.T) {
	g := raster.New(2, 2, 0, 0, 10)
	g.Data = []float64{0.1, 0.1, 0.1, 0.1}

	path := filepath.Join(t.TempDir(), "uncertainty.png")
	require.NoError(t, New("", nil, nil).UncertaintyPNG(g, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	// zero span maps everything to the lowest ramp entry
	r0, g0, b0, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(247<<8|247), r0)
	assert.Equal(t, uint32(251<<8|251), g0)
	assert.Equal(t, uint32(255<<8|255), b0)
}

func TestNeighborhoodMap(t *testing.T) {
	g := raster.New(4, 4, 0, 0, 10)
	for i := range g.Data {
		g.Data[i] = 0.5
	}

	// west zone low, middle zone high, east column uncovered
	west := &geo.NamedPolygon{
		Name: "west",
		Polygonal: geom.Polygon{{
			{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 40}, {X: 0, Y: 40}, {X: 0, Y: 0},
		}},
	}
	mid := &geo.NamedPolygon{
		Name: "mid",
		Polygonal: geom.Polygon{{
			{X: 20, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 40}, {X: 20, Y: 40}, {X: 20, Y: 0},
		}},
	}
	means := []geo.ZonalMean{
		{Name: "west", Mean: 0.1, Cells: 8},
		{Name: "mid", Mean: 0.9, Cells: 4},
	}

	path := filepath.Join(t.TempDir(), "neighborhoods.png")
	r := New("", []float64{0.2, 0.4, 0.6, 0.8}, nil)
	require.NoError(t, r.NeighborhoodMap(g, []*geo.NamedPolygon{west, mid}, means, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	// west cells take the lowest class, mid cells the highest
	wr, wg, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(255<<8|255), wr)
	assert.Equal(t, uint32(255<<8|255), wg)
	mr, mg, mb, _ := img.At(2, 0).RGBA()
	assert.Equal(t, uint32(189<<8|189), mr)
	assert.Equal(t, uint32(0), mg)
	assert.Equal(t, uint32(38<<8|38), mb)

	// the uncovered east column renders gray
	er, eg, eb, _ := img.At(3, 0).RGBA()
	assert.Equal(t, uint32(220<<8|220), er)
	assert.Equal(t, er, eg)
	assert.Equal(t, eg, eb)
}

func TestNeighborhoodMap_RequiresBreaks(t *testing.T) {
	g := raster.New(2, 2, 0, 0, 10)
	path := filepath.Join(t.TempDir(), "x.png")
	err := New("", nil, nil).NeighborhoodMap(g, []*geo.NamedPolygon{}, nil, path)
	require.Error(t, err)
}

func TestBinaryPNG(t *testing.T) {
	g := raster.New(2, 2, 0, 0, 10)
	g.Data = []float64{1, 0, g.Nodata, 1}

	path := filepath.Join(t.TempDir(), "presence.png")
	r := New("", nil, nil)
	require.NoError(t, r.BinaryPNG(g, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	pr, _, _, _ := img.At(0, 0).RGBA()
	ar, _, _, _ := img.At(1, 0).RGBA()
	assert.NotEqual(t, pr, ar, "present and absent cells must differ")
}
