package geo

import (
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

// ZonalMean is the mean of raster cell values whose centers fall inside a
// polygon, plus the contributing cell count.
type ZonalMean struct {
	Name  string
	Mean  float64
	Cells int
}

// Locator answers point-in-zone queries over a polygon set.
type Locator struct {
	tree *rtree.Rtree
}

// NewLocator indexes the zones for point lookups.
func NewLocator(zones []*NamedPolygon) *Locator {
	tree := rtree.NewTree(25, 50)
	for _, z := range zones {
		tree.Insert(z)
	}
	return &Locator{tree: tree}
}

// Locate returns the first zone containing the point, or nil.
func (l *Locator) Locate(x, y float64) *NamedPolygon {
	p := geom.Point{X: x, Y: y}
	for _, item := range l.tree.SearchIntersect(p.Bounds()) {
		z := item.(*NamedPolygon)
		if Contains(z.Polygonal, p) {
			return z
		}
	}
	return nil
}

// ZonalMeans aggregates the grid by mean over each polygon. Cell centers
// are assigned by point-in-polygon; nodata cells are skipped. Polygons that
// cover no valid cell are reported with zero cells so the caller can decide
// how to render them.
func ZonalMeans(g *raster.Grid, zones []*NamedPolygon) ([]ZonalMean, error) {
	if len(zones) == 0 {
		return nil, fmt.Errorf("no zones to aggregate")
	}

	tree := rtree.NewTree(25, 50)
	for _, z := range zones {
		tree.Insert(z)
	}

	sums := make(map[string]float64, len(zones))
	counts := make(map[string]int, len(zones))

	for row := 0; row < g.Nrows; row++ {
		for col := 0; col < g.Ncols; col++ {
			v := g.At(col, row)
			if g.IsNodata(v) {
				continue
			}
			x, y := g.CellCenter(col, row)
			p := geom.Point{X: x, Y: y}
			for _, item := range tree.SearchIntersect(p.Bounds()) {
				z := item.(*NamedPolygon)
				if Contains(z.Polygonal, p) {
					sums[z.Name] += v
					counts[z.Name]++
				}
			}
		}
	}

	out := make([]ZonalMean, 0, len(zones))
	for _, z := range zones {
		zm := ZonalMean{Name: z.Name, Cells: counts[z.Name]}
		if zm.Cells > 0 {
			zm.Mean = sums[z.Name] / float64(zm.Cells)
		}
		out = append(out, zm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
