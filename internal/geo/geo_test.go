package geo

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

func TestCircle(t *testing.T) {
	c := Circle(geom.Point{X: 100, Y: 200}, 50)

	require.Len(t, c, 1)
	for _, p := range c[0] {
		d := math.Hypot(p.X-100, p.Y-200)
		assert.InDelta(t, 50, d, 1e-9)
	}

	// area approaches pi*r^2 from below as the segment count grows
	area := c.Area()
	assert.InDelta(t, math.Pi*50*50, area, 0.01*math.Pi*50*50)
	assert.Less(t, area, math.Pi*50*50)
}

func TestBufferUnion_ContainsEveryPoint(t *testing.T) {
	points := []geom.Point{
		{X: 0, Y: 0},
		{X: 300, Y: 150},
		{X: -2500, Y: 4000}, // isolated cluster, forces a multi-part union
		{X: 310, Y: 160},
	}

	m, err := BufferUnion(points, 800)
	require.NoError(t, err)

	for i, p := range points {
		assert.True(t, Contains(m, p), "point %d not inside accessible area", i)
	}

	assert.False(t, Contains(m, geom.Point{X: 10000, Y: 10000}))
}

func TestBufferUnion_Degenerate(t *testing.T) {
	_, err := BufferUnion(nil, 800)
	require.Error(t, err)

	_, err = BufferUnion([]geom.Point{{X: 1, Y: 1}}, 0)
	require.Error(t, err)
}

func TestZonalMeans(t *testing.T) {
	// 4x4 grid, cellsize 10, origin (0,0); left half 2.0, right half 4.0.
	g := raster.New(4, 4, 0, 0, 10)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if col < 2 {
				g.Set(col, row, 2)
			} else {
				g.Set(col, row, 4)
			}
		}
	}
	g.Set(0, 0, g.Nodata) // one hole in the west zone

	rect := func(x0, y0, x1, y1 float64) geom.Polygon {
		return geom.Polygon{{
			{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
		}}
	}

	zones := []*NamedPolygon{
		{Name: "west", Polygonal: rect(0, 0, 20, 40)},
		{Name: "east", Polygonal: rect(20, 0, 40, 40)},
		{Name: "offshore", Polygonal: rect(100, 100, 120, 120)},
	}

	got, err := ZonalMeans(g, zones)
	require.NoError(t, err)
	require.Len(t, got, 3)

	byName := map[string]ZonalMean{}
	for _, z := range got {
		byName[z.Name] = z
	}

	assert.Equal(t, 7, byName["west"].Cells)
	assert.InDelta(t, 2.0, byName["west"].Mean, 1e-12)
	assert.Equal(t, 8, byName["east"].Cells)
	assert.InDelta(t, 4.0, byName["east"].Mean, 1e-12)
	assert.Equal(t, 0, byName["offshore"].Cells)
}

func TestPolygonMask(t *testing.T) {
	template := raster.New(4, 4, 0, 0, 10)
	// west half of the extent
	poly := geom.Polygon{{
		{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 40}, {X: 0, Y: 40}, {X: 0, Y: 0},
	}}

	mask := PolygonMask(poly, template)
	assert.Equal(t, 8, mask.CountEqual(1))
	for row := 0; row < 4; row++ {
		assert.Equal(t, 1.0, mask.At(0, row))
		assert.Equal(t, 1.0, mask.At(1, row))
		assert.True(t, mask.IsNodata(mask.At(2, row)))
		assert.True(t, mask.IsNodata(mask.At(3, row)))
	}
}
