package model

import (
	"math"
	"testing"
)

func TestFilterRequest_IsEmptyIgnoresPolygon(t *testing.T) {
	f := FilterRequest{Polygon: &PolygonPoints{Points: []LatLng{{1, 1}, {2, 2}, {3, 1}}}}
	if !f.IsEmpty() {
		t.Fatalf("polygon-only filter must count as empty")
	}
	f.SportKinds = []string{"football"}
	if f.IsEmpty() {
		t.Fatalf("filter with sport kinds must not be empty")
	}
	if !(FilterRequest{SportKinds: []string{}}).IsEmpty() {
		t.Fatalf("empty list must count as absent")
	}
}

func TestFilterRequest_Equal(t *testing.T) {
	a := FilterRequest{Availabilities: []Availability{2}, ObjectNames: []string{"arena"}}
	b := FilterRequest{Availabilities: []Availability{2}, ObjectNames: []string{"arena"}}
	if !a.Equal(b) {
		t.Fatalf("expected equal filters")
	}
	c := b.WithPolygon([]LatLng{{1, 1}, {1, 2}, {2, 2}})
	if a.Equal(c) {
		t.Fatalf("polygon must participate in equality")
	}
	if !c.Equal(b.WithPolygon([]LatLng{{1, 1}, {1, 2}, {2, 2}})) {
		t.Fatalf("identical polygons must compare equal")
	}
}

func TestFilterRequest_WithPolygonCopies(t *testing.T) {
	pts := []LatLng{{1, 1}, {1, 2}, {2, 2}}
	f := FilterRequest{}.WithPolygon(pts)
	pts[0].Lat = 99
	if f.Polygon.Points[0].Lat != 1 {
		t.Fatalf("WithPolygon must copy vertices")
	}
	if g := (FilterRequest{}).WithPolygon(nil); g.Polygon != nil {
		t.Fatalf("nil vertices must not set polygon")
	}
}

func TestSingleAvailability(t *testing.T) {
	if _, ok := (FilterRequest{Availabilities: []Availability{1, 2}}).SingleAvailability(); ok {
		t.Fatalf("two tiers must not be singular")
	}
	tier, ok := (FilterRequest{Availabilities: []Availability{3}}).SingleAvailability()
	if !ok || tier != AvailabilityDistrict {
		t.Fatalf("got %v,%v want district,true", tier, ok)
	}
}

func TestAreaTypesAndSportKinds(t *testing.T) {
	areas := []SportArea{
		{SportsAreaType: "field", SportsAreaName: "north", SportKind: "football"},
		{SportsAreaType: "pool", SportsAreaName: "main", SportKind: "swimming"},
		{SportsAreaType: "field", SportsAreaName: "south", SportKind: "football"},
	}
	types := AreaTypes(areas)
	if len(types) != 2 || types[0].Type != "field" || len(types[0].Names) != 2 {
		t.Fatalf("unexpected grouping: %+v", types)
	}
	kinds := SportKinds(areas)
	if len(kinds) != 2 || kinds[0] != "football" || kinds[1] != "swimming" {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
}

func TestLatLng_Finite(t *testing.T) {
	if !(LatLng{55.75, 37.61}).Finite() {
		t.Fatalf("expected finite")
	}
	if (LatLng{math.NaN(), 0}).Finite() || (LatLng{0, math.Inf(1)}).Finite() {
		t.Fatalf("expected non-finite")
	}
}
