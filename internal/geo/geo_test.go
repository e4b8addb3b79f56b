package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
)

func TestCircle_VertexCountAndRadius(t *testing.T) {
	center := model.LatLng{Lat: 55.75, Lng: 37.61}
	pts, ok := Circle(center, 1000, DefaultCircleSteps)
	if !ok {
		t.Fatalf("expected a circle")
	}
	if len(pts) != 32 {
		t.Fatalf("vertices=%d want 32", len(pts))
	}
	for i, p := range pts {
		d := DistanceMeters(center, p)
		if math.Abs(d-1000)/1000 > 0.01 {
			t.Fatalf("vertex %d at %.2fm, want 1000m +-1%%", i, d)
		}
	}
	if pts[0].Lat <= center.Lat || math.Abs(pts[0].Lng-center.Lng) > 1e-9 {
		t.Fatalf("first vertex must be due north: %+v", pts[0])
	}
	// counter-clockwise: second vertex lies west of the center
	if pts[1].Lng >= center.Lng {
		t.Fatalf("expected counter-clockwise walk, got %+v", pts[1])
	}
}

func TestCircle_Deterministic(t *testing.T) {
	c := model.LatLng{Lat: 59.33, Lng: 18.06}
	a, _ := Circle(c, 2500, 32)
	b, _ := Circle(c, 2500, 32)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vertex %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCircle_RejectsDegenerateInput(t *testing.T) {
	c := model.LatLng{Lat: 1, Lng: 1}
	if _, ok := Circle(c, 0, 32); ok {
		t.Fatalf("zero radius must yield no polygon")
	}
	if _, ok := Circle(c, 100, 2); ok {
		t.Fatalf("two steps must yield no polygon")
	}
	if _, ok := Circle(model.LatLng{Lat: math.NaN()}, 100, 32); ok {
		t.Fatalf("NaN center must yield no polygon")
	}
}

func TestQuickAnalyticsPolygon(t *testing.T) {
	center := model.LatLng{Lat: 55.75, Lng: 37.61}
	radius := 1000.0
	if QuickAnalyticsPolygon(false, &center, &radius, 32) != nil {
		t.Fatalf("inactive mode must yield nil")
	}
	if QuickAnalyticsPolygon(true, nil, &radius, 32) != nil {
		t.Fatalf("missing center must yield nil")
	}
	if QuickAnalyticsPolygon(true, &center, nil, 32) != nil {
		t.Fatalf("missing radius must yield nil")
	}
	if got := QuickAnalyticsPolygon(true, &center, &radius, 32); len(got) != 32 {
		t.Fatalf("vertices=%d want 32", len(got))
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]model.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}); !errors.Is(err, ErrTooFewVertices) {
		t.Fatalf("expected ErrTooFewVertices, got %v", err)
	}
	bad := []model.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}, {Lat: math.Inf(1), Lng: 0}}
	if err := Validate(bad); err == nil {
		t.Fatalf("expected error for infinite vertex")
	}
	ok := []model.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}, {Lat: 1, Lng: 3}}
	if err := Validate(ok); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestAnchorCenterBounds(t *testing.T) {
	pts := []model.LatLng{{Lat: 55.8, Lng: 37.5}, {Lat: 55.7, Lng: 37.7}, {Lat: 55.9, Lng: 37.6}}

	a, ok := AnchorVertex(pts)
	if !ok || a != pts[1] {
		t.Fatalf("anchor=%+v want lowest latitude vertex", a)
	}
	c, _ := Center(pts)
	if math.Abs(c.Lat-55.8) > 1e-9 || math.Abs(c.Lng-37.6) > 1e-9 {
		t.Fatalf("center=%+v", c)
	}
	sw, ne, err := Bounds(pts)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if sw.Lat != 55.7 || sw.Lng != 37.5 || ne.Lat != 55.9 || ne.Lng != 37.7 {
		t.Fatalf("bounds sw=%+v ne=%+v", sw, ne)
	}
	if _, _, err := Bounds(pts[:1]); err == nil {
		t.Fatalf("expected error for single vertex")
	}
}

func TestToFeature_ClosesRing(t *testing.T) {
	pts := []model.LatLng{{Lat: 1, Lng: 1}, {Lat: 1, Lng: 2}, {Lat: 2, Lng: 2}}
	f := ToFeature(pts)
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("geometry type %T", f.Geometry)
	}
	ring := poly[0]
	if len(ring) != 4 || ring[0] != ring[3] {
		t.Fatalf("ring not closed: %v", ring)
	}
	if ring[0] != (orb.Point{1, 1}) {
		t.Fatalf("expected lng/lat order, got %v", ring[0])
	}
	if AreaSquareMeters(pts) <= 0 {
		t.Fatalf("expected positive area")
	}
}
