// Package geo holds the polygon helpers used by the map session: the
// quick-analytics circle, popup anchors and GeoJSON conversion.
package geo

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
)

// EarthRadiusMeters matches the mean radius used by the analytics backend.
const EarthRadiusMeters = 6371008.8

const DefaultCircleSteps = 32

var ErrTooFewVertices = errors.New("polygon needs at least 3 vertices")

// Validate checks the selection invariants: >=3 finite vertices.
func Validate(points []model.LatLng) error {
	if len(points) < 3 {
		return fmt.Errorf("%w (got %d)", ErrTooFewVertices, len(points))
	}
	for i, p := range points {
		if !p.Finite() {
			return fmt.Errorf("vertex %d is not finite", i)
		}
	}
	return nil
}

// Circle approximates a geodesic circle with steps vertices, starting due
// north and walking counter-clockwise. The ring is not explicitly closed.
func Circle(center model.LatLng, radiusMeters float64, steps int) ([]model.LatLng, bool) {
	if radiusMeters <= 0 || steps < 3 || !center.Finite() {
		return nil, false
	}
	c := orb.Point{center.Lng, center.Lat}
	out := make([]model.LatLng, steps)
	for i := range steps {
		bearing := float64(i) * -360 / float64(steps)
		p := orbgeo.PointAtBearingAndDistance(c, bearing, radiusMeters*orb.EarthRadius/EarthRadiusMeters)
		out[i] = model.LatLng{Lat: p[1], Lng: p[0]}
	}
	return out, true
}

// QuickAnalyticsPolygon yields the analysed circle, or nil when the mode is
// inactive or the center or radius is missing.
func QuickAnalyticsPolygon(active bool, center *model.LatLng, radius *float64, steps int) []model.LatLng {
	if !active || center == nil || radius == nil {
		return nil
	}
	pts, ok := Circle(*center, *radius, steps)
	if !ok {
		return nil
	}
	return pts
}

// DistanceMeters is the great-circle distance between a and b.
func DistanceMeters(a, b model.LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// AnchorVertex picks the vertex with the lowest latitude; popups hang off it.
func AnchorVertex(points []model.LatLng) (model.LatLng, bool) {
	if len(points) == 0 {
		return model.LatLng{}, false
	}
	anchor := points[0]
	for _, p := range points[1:] {
		if p.Lat < anchor.Lat {
			anchor = p
		}
	}
	return anchor, true
}

// Center is the arithmetic mean of the vertices.
func Center(points []model.LatLng) (model.LatLng, bool) {
	if len(points) == 0 {
		return model.LatLng{}, false
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return model.LatLng{Lat: lat / n, Lng: lng / n}, true
}

// Bounds returns the south-west and north-east corners.
func Bounds(points []model.LatLng) (sw, ne model.LatLng, err error) {
	if len(points) < 2 {
		return sw, ne, errors.New("cannot create bounds: not enough vertices")
	}
	b := Ring(points).Bound()
	return model.LatLng{Lat: b.Min[1], Lng: b.Min[0]}, model.LatLng{Lat: b.Max[1], Lng: b.Max[0]}, nil
}

// Ring converts vertices to a closed orb ring in lng/lat order.
func Ring(points []model.LatLng) orb.Ring {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, orb.Point{p.Lng, p.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

// ToFeature wraps the vertices as a GeoJSON polygon feature.
func ToFeature(points []model.LatLng) *geojson.Feature {
	return geojson.NewFeature(orb.Polygon{Ring(points)})
}

// AreaSquareMeters is the geodesic area enclosed by the vertices.
func AreaSquareMeters(points []model.LatLng) float64 {
	if len(points) < 3 {
		return 0
	}
	return orbgeo.Area(orb.Polygon{Ring(points)})
}
