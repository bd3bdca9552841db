package geo

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// bufferSegments is the number of vertices approximating each circular
// buffer. 64 keeps the radial error well under a raster cell at the
// dispersal distances used here.
const bufferSegments = 64

// Circle returns a closed polygon approximating a circle of the given
// radius around center, in the units of the projected coordinate system.
func Circle(center geom.Point, radius float64) geom.Polygon {
	ring := make([]geom.Point, bufferSegments+1)
	for i := 0; i <= bufferSegments; i++ {
		a := 2 * math.Pi * float64(i) / bufferSegments
		ring[i] = geom.Point{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		}
	}
	return geom.Polygon{ring}
}

// BufferUnion builds the accessible-area polygon: the union of circular
// buffers of the given radius around every point. The result may be
// multi-part when point clusters are farther apart than twice the radius.
func BufferUnion(points []geom.Point, radius float64) (geom.Polygonal, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to buffer")
	}
	if radius <= 0 {
		return nil, fmt.Errorf("non-positive buffer radius %g", radius)
	}

	var union geom.Polygonal = Circle(points[0], radius)
	for _, p := range points[1:] {
		union = union.Union(Circle(p, radius))
	}
	return union, nil
}

// Contains reports whether the point lies inside or on the boundary of the
// polygon.
func Contains(poly geom.Polygonal, p geom.Point) bool {
	return p.Within(poly) != geom.Outside
}
