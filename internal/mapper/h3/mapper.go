package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/sportmap/internal/mapper"
)

// CellProperty holds the H3 index of an aggregated feature.
const CellProperty = "cell"

type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

var _ mapper.Aggregator = (*Mapper)(nil)

func (m *Mapper) Resolution() int { return m.res }

func (m *Mapper) Aggregate(fc *geojson.FeatureCollection, weightProp string) (*geojson.FeatureCollection, error) {
	if fc == nil {
		return nil, errors.New("nil feature collection")
	}
	sums := make(map[h3.Cell]float64)
	for i, f := range fc.Features {
		p, ok := representative(f.Geometry)
		if !ok {
			continue
		}
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: p[1], Lng: p[0]}, m.res)
		if err != nil {
			return nil, fmt.Errorf("feature %d: h3 cell: %w", i, err)
		}
		w := 1.0
		if weightProp != "" {
			w = f.Properties.MustFloat64(weightProp, 0)
		}
		sums[cell] += w
	}

	cells := make([]h3.Cell, 0, len(sums))
	for c := range sums {
		cells = append(cells, c)
	}
	// sorted for deterministic output
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })

	out := geojson.NewFeatureCollection()
	for _, c := range cells {
		ll, err := c.LatLng()
		if err != nil {
			return nil, fmt.Errorf("h3 cell center: %w", err)
		}
		f := geojson.NewFeature(orb.Point{ll.Lng, ll.Lat})
		f.Properties[CellProperty] = c.String()
		key := weightProp
		if key == "" {
			key = "count"
		}
		f.Properties[key] = sums[c]
		out.Append(f)
	}
	return out, nil
}

// representative picks the point a feature contributes to: the point itself,
// or the area centroid of polygonal geometry.
func representative(g orb.Geometry) (orb.Point, bool) {
	switch g := g.(type) {
	case nil:
		return orb.Point{}, false
	case orb.Point:
		return g, true
	case orb.Polygon, orb.MultiPolygon:
		c, area := planar.CentroidArea(g)
		if area == 0 {
			return orb.Point{}, false
		}
		return c, true
	default:
		return g.Bound().Center(), true
	}
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
