package raster

import (
	"fmt"

	"github.com/lukeroth/gdal"
)

// ReadGeoTIFF reads band 1 of a GeoTIFF into a Grid. North-up images with
// square cells only; rotated geotransforms are rejected.
func ReadGeoTIFF(path string) (*Grid, error) {
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open geotiff %s: %w", path, err)
	}
	defer ds.Close()

	gt := ds.GeoTransform()
	if gt[2] != 0 || gt[4] != 0 {
		return nil, fmt.Errorf("%s: rotated geotransform is not supported", path)
	}
	if gt[1] != -gt[5] {
		return nil, fmt.Errorf("%s: non-square cells (%g x %g)", path, gt[1], -gt[5])
	}

	band := ds.RasterBand(1)
	nx, ny := band.XSize(), band.YSize()

	g := &Grid{
		Ncols:    nx,
		Nrows:    ny,
		Cellsize: gt[1],
		Xll:      gt[0],
		Yll:      gt[3] + float64(ny)*gt[5],
		Nodata:   DefaultNodata,
		Data:     make([]float64, nx*ny),
	}
	if nd, ok := band.NoDataValue(); ok {
		g.Nodata = nd
	}

	if err := band.IO(gdal.Read, 0, 0, nx, ny, g.Data, nx, ny, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to read band 1 of %s: %w", path, err)
	}
	return g, nil
}

// WriteGeoTIFF writes the grid as a single-band float64 GeoTIFF.
// proj is a WKT spatial reference; empty leaves the projection unset.
func WriteGeoTIFF(path string, g *Grid, proj string) error {
	driver, err := gdal.GetDriverByName("GTiff")
	if err != nil {
		return fmt.Errorf("gtiff driver unavailable: %w", err)
	}

	ds := driver.Create(path, g.Ncols, g.Nrows, 1, gdal.Float64, nil)
	defer ds.Close()

	top := g.Yll + float64(g.Nrows)*g.Cellsize
	ds.SetGeoTransform([6]float64{g.Xll, g.Cellsize, 0, top, 0, -g.Cellsize})
	if proj != "" {
		if err := ds.SetProjection(proj); err != nil {
			return fmt.Errorf("failed to set projection on %s: %w", path, err)
		}
	}

	band := ds.RasterBand(1)
	band.SetNoDataValue(g.Nodata)
	if err := band.IO(gdal.Write, 0, 0, g.Ncols, g.Nrows, g.Data, g.Ncols, g.Nrows, 0, 0); err != nil {
		return fmt.Errorf("failed to write band 1 of %s: %w", path, err)
	}
	return nil
}
