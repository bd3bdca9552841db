package geo

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
)

// NamedPolygon is a polygon feature keyed by an attribute value, typically
// an administrative unit read from a neighborhoods shapefile.
type NamedPolygon struct {
	Name string
	geom.Polygonal
}

// LoadPolygons reads polygon features from a shapefile, keyed by the given
// attribute field, reprojected into the target proj4 reference system.
func LoadPolygons(path, nameField, targetProj string) ([]*NamedPolygon, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer dec.Close()

	srcSR, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("failed to read spatial reference of %s: %w", path, err)
	}
	targetSR, err := proj.Parse(targetProj)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target projection %q: %w", targetProj, err)
	}
	trans, err := srcSR.NewTransform(targetSR)
	if err != nil {
		return nil, fmt.Errorf("failed to create transform for %s: %w", path, err)
	}
	tr := &Transform{t: trans}

	var out []*NamedPolygon
	for {
		g, fields, more := dec.DecodeRowFields(nameField)
		if !more {
			break
		}

		gg, err := tr.Geom(g)
		if err != nil {
			return nil, fmt.Errorf("failed to reproject feature %q in %s: %w", fields[nameField], path, err)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("feature %q in %s is not polygonal (%T)", fields[nameField], path, gg)
		}

		out = append(out, &NamedPolygon{Name: fields[nameField], Polygonal: poly})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no polygon features in %s", path)
	}
	return out, nil
}
