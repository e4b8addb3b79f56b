// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
	"slices"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Finite reports whether both coordinates are finite numbers
func (p LatLng) Finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// PolygonPoints is the wire shape {"points": [...]} used by the backend.
type PolygonPoints struct {
	Points []LatLng `json:"points"`
}

type Availability int

const (
	AvailabilityCity            Availability = 1
	AvailabilityRegion          Availability = 2
	AvailabilityDistrict        Availability = 3
	AvailabilityWalkingDistance Availability = 4
)

func (a Availability) Valid() bool {
	return a >= AvailabilityCity && a <= AvailabilityWalkingDistance
}

func (a Availability) String() string {
	switch a {
	case AvailabilityCity:
		return "city"
	case AvailabilityRegion:
		return "region"
	case AvailabilityDistrict:
		return "district"
	case AvailabilityWalkingDistance:
		return "walking-distance"
	default:
		return fmt.Sprintf("availability(%d)", int(a))
	}
}

type FilterRequest struct {
	ObjectIDs                     []int64        `json:"objectIds,omitempty"`
	ObjectNames                   []string       `json:"objectNames,omitempty"`
	DepartmentalOrganizationIDs   []int64        `json:"departmentalOrganizationIds,omitempty"`
	DepartmentalOrganizationNames []string       `json:"departmentalOrganizationNames,omitempty"`
	SportsAreaNames               []string       `json:"sportsAreaNames,omitempty"`
	SportsAreaTypes               []string       `json:"sportsAreaTypes,omitempty"`
	SportKinds                    []string       `json:"sportKinds,omitempty"`
	Availabilities                []Availability `json:"availabilities,omitempty"`
	Polygon                       *PolygonPoints `json:"polygon,omitempty"`
}

// IsEmpty ignores the polygon; an area restriction alone is not a filter.
func (f FilterRequest) IsEmpty() bool {
	return len(f.ObjectIDs) == 0 &&
		len(f.ObjectNames) == 0 &&
		len(f.DepartmentalOrganizationIDs) == 0 &&
		len(f.DepartmentalOrganizationNames) == 0 &&
		len(f.SportsAreaNames) == 0 &&
		len(f.SportsAreaTypes) == 0 &&
		len(f.SportKinds) == 0 &&
		len(f.Availabilities) == 0
}

func (f FilterRequest) Equal(o FilterRequest) bool {
	if !slices.Equal(f.ObjectIDs, o.ObjectIDs) ||
		!slices.Equal(f.ObjectNames, o.ObjectNames) ||
		!slices.Equal(f.DepartmentalOrganizationIDs, o.DepartmentalOrganizationIDs) ||
		!slices.Equal(f.DepartmentalOrganizationNames, o.DepartmentalOrganizationNames) ||
		!slices.Equal(f.SportsAreaNames, o.SportsAreaNames) ||
		!slices.Equal(f.SportsAreaTypes, o.SportsAreaTypes) ||
		!slices.Equal(f.SportKinds, o.SportKinds) ||
		!slices.Equal(f.Availabilities, o.Availabilities) {
		return false
	}
	switch {
	case f.Polygon == nil && o.Polygon == nil:
		return true
	case f.Polygon == nil || o.Polygon == nil:
		return false
	default:
		return slices.Equal(f.Polygon.Points, o.Polygon.Points)
	}
}

// WithPolygon returns a copy restricted to the given vertices. A nil or
// empty polygon leaves the copy unrestricted.
func (f FilterRequest) WithPolygon(points []LatLng) FilterRequest {
	out := f
	if len(points) == 0 {
		return out
	}
	out.Polygon = &PolygonPoints{Points: slices.Clone(points)}
	return out
}

// SingleAvailability returns the tier when exactly one is selected.
func (f FilterRequest) SingleAvailability() (Availability, bool) {
	if len(f.Availabilities) != 1 {
		return 0, false
	}
	return f.Availabilities[0], true
}

// AnalyticsRequest is the body of the polygon analytics endpoints.
type AnalyticsRequest struct {
	Polygon                       PolygonPoints  `json:"polygon"`
	SportKinds                    []string       `json:"sportKinds,omitempty"`
	SportsAreaTypes               []string       `json:"sportsAreaTypes,omitempty"`
	SportsAreaNames               []string       `json:"sportsAreaNames,omitempty"`
	DepartmentalOrganizationNames []string       `json:"departmentalOrganizationNames,omitempty"`
	Availabilities                []Availability `json:"availabilities,omitempty"`
}

func AnalyticsRequestFrom(f FilterRequest, polygon []LatLng) AnalyticsRequest {
	return AnalyticsRequest{
		Polygon:                       PolygonPoints{Points: slices.Clone(polygon)},
		SportKinds:                    f.SportKinds,
		SportsAreaTypes:               f.SportsAreaTypes,
		SportsAreaNames:               f.SportsAreaNames,
		DepartmentalOrganizationNames: f.DepartmentalOrganizationNames,
		Availabilities:                f.Availabilities,
	}
}

type IntersectionRequest struct {
	Polygon                       PolygonPoints `json:"polygon"`
	Availability                  Availability  `json:"availability"`
	SportKinds                    []string      `json:"sportKinds,omitempty"`
	SportsAreaTypes               []string      `json:"sportsAreaTypes,omitempty"`
	SportsAreaNames               []string      `json:"sportsAreaNames,omitempty"`
	DepartmentalOrganizationNames []string      `json:"departmentalOrganizationNames,omitempty"`
}

func IntersectionRequestFrom(f FilterRequest, polygon []LatLng, tier Availability) IntersectionRequest {
	return IntersectionRequest{
		Polygon:                       PolygonPoints{Points: slices.Clone(polygon)},
		Availability:                  tier,
		SportKinds:                    f.SportKinds,
		SportsAreaTypes:               f.SportsAreaTypes,
		SportsAreaNames:               f.SportsAreaNames,
		DepartmentalOrganizationNames: f.DepartmentalOrganizationNames,
	}
}
