package geo

import (
	"github.com/ctessum/geom"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

// PolygonMask rasterizes a polygon onto the template grid: cells whose
// center falls inside the polygon become 1, the rest nodata. Used to
// materialize the accessible-area mask.
func PolygonMask(poly geom.Polygonal, template *raster.Grid) *raster.Grid {
	mask := raster.New(template.Ncols, template.Nrows, template.Xll, template.Yll, template.Cellsize)
	for row := 0; row < mask.Nrows; row++ {
		for col := 0; col < mask.Ncols; col++ {
			x, y := mask.CellCenter(col, row)
			if Contains(poly, geom.Point{X: x, Y: y}) {
				mask.Set(col, row, 1)
			}
		}
	}
	return mask
}
