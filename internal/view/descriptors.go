package view

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
)

type RadiusStop struct {
	Zoom   int `json:"zoom"`
	Radius int `json:"radius"`
}

type Heatmap struct {
	ID             string                     `json:"id"`
	Data           *geojson.FeatureCollection `json:"data"`
	WeightProperty string                     `json:"property,omitempty"`
	MaxZoom        int                        `json:"maxzoom"`
	RadiusStops    []RadiusStop               `json:"radiusStops"`
}

const (
	PopulationHeatmapID = "population"
	SportHeatmapID      = "sport"
	PopulationWeight    = "heatness"
	heatmapMaxZoom      = 16
)

func PopulationHeatmap(data *geojson.FeatureCollection) Heatmap {
	return Heatmap{
		ID:             PopulationHeatmapID,
		Data:           data,
		WeightProperty: PopulationWeight,
		MaxZoom:        heatmapMaxZoom,
		RadiusStops: []RadiusStop{
			{8, 8}, {9, 16}, {10, 32}, {11, 64}, {14, 256}, {18, 512},
		},
	}
}

func SportHeatmap(data *geojson.FeatureCollection) Heatmap {
	return Heatmap{
		ID:      SportHeatmapID,
		Data:    data,
		MaxZoom: heatmapMaxZoom,
		RadiusStops: []RadiusStop{
			{8, 2}, {9, 4}, {10, 8}, {11, 16}, {14, 64}, {16, 128}, {18, 512},
		},
	}
}

type MarkerImage struct {
	Source string `json:"source"`
	Anchor string `json:"anchor"`
}

type ClusterColors struct {
	Background string `json:"background"`
	Color      string `json:"color"`
}

type MarkerLayer struct {
	Data       *geojson.FeatureCollection `json:"data"`
	IDProperty string                     `json:"idProperty"`
	Image      MarkerImage                `json:"image"`
	ClassName  string                     `json:"className"`
	Cluster    ClusterColors              `json:"cluster"`
	PopupKind  PopupKind                  `json:"popupKind"`
}

// SportObjectMarkerLayer renders objects as clustered point markers whose
// popups open the object-info panel.
func SportObjectMarkerLayer(objects []model.SportObject) MarkerLayer {
	return MarkerLayer{
		Data:       ObjectsGeoJSON(objects),
		IDProperty: "objectId",
		Image:      MarkerImage{Source: "assets/marker.svg", Anchor: "bottom"},
		ClassName:  "marker",
		Cluster:    ClusterColors{Background: "#193C9D", Color: "#FFFFFF"},
		PopupKind:  ObjectInfoPopup,
	}
}

// ObjectsGeoJSON turns objects into point features carrying the object
// fields as properties.
func ObjectsGeoJSON(objects []model.SportObject) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range objects {
		f := geojson.NewFeature(orb.Point{o.ObjectPoint.Lng, o.ObjectPoint.Lat})
		f.ID = o.ObjectID
		f.Properties["objectId"] = o.ObjectID
		f.Properties["objectName"] = o.ObjectName
		f.Properties["objectAddress"] = o.ObjectAddress
		f.Properties["departmentalOrganizationId"] = o.DepartmentalOrganizationID
		f.Properties["departmentalOrganizationName"] = o.DepartmentalOrganizationName
		f.Properties["availability"] = int(o.Availability)
		f.Properties["objectSumSquare"] = o.ObjectSumSquare
		fc.Append(f)
	}
	return fc
}

type PolygonOverlay struct {
	Data    *geojson.FeatureCollection `json:"data"`
	Color   string                     `json:"color"`
	Opacity float64                    `json:"opacity"`
}

func IntersectionOverlay(data *geojson.FeatureCollection) PolygonOverlay {
	return PolygonOverlay{Data: data, Color: "#A0D89B", Opacity: 0.5}
}

type PopupKind string

const (
	ObjectInfoPopup     PopupKind = "object-info"
	AreaInfoPopup       PopupKind = "area-info"
	QuickAnalyticsPopup PopupKind = "quick-analytics-info"
)

// Popup is a tagged variant: exactly one payload matches Kind.
type Popup struct {
	Kind                PopupKind           `json:"kind"`
	Anchor              model.LatLng        `json:"anchor"`
	AnchorSide          string              `json:"anchorSide"`
	CloseOnOutsideClick bool                `json:"closeOnOutsideClick"`
	AreaInfo            *AreaInfo           `json:"areaInfo,omitempty"`
	QuickAnalytics      *QuickAnalyticsInfo `json:"quickAnalytics,omitempty"`
}

type AreaInfo struct {
	Polygon    []model.LatLng         `json:"polygon"`
	Analytics  model.PolygonAnalytics `json:"analytics"`
	Areas      []model.SportArea      `json:"areas"`
	AreaTypes  []model.SportAreaType  `json:"areaTypes"`
	SportKinds []string               `json:"sportKinds"`
	Saved      bool                   `json:"saved"`
}

type QuickAnalyticsInfo struct {
	Polygon     []model.LatLng             `json:"polygon"`
	Analytics   model.FullPolygonAnalytics `json:"analytics"`
	Mark        float64                    `json:"mark"`
	Recommended bool                       `json:"recommended"`
}

// RecommendedMark is the rounded mark from which an area is recommended.
const RecommendedMark = 5

// RoundMark floors the mark to one decimal.
func RoundMark(mark float64) float64 {
	return math.Floor(mark*10) / 10
}

func newAreaInfo(polygon []model.LatLng, a model.PolygonAnalytics, areas []model.SportArea, saved bool) *AreaInfo {
	return &AreaInfo{
		Polygon:    polygon,
		Analytics:  a,
		Areas:      areas,
		AreaTypes:  model.AreaTypes(areas),
		SportKinds: model.SportKinds(areas),
		Saved:      saved,
	}
}

func newQuickAnalyticsInfo(polygon []model.LatLng, a model.FullPolygonAnalytics) *QuickAnalyticsInfo {
	mark := RoundMark(a.Mark)
	return &QuickAnalyticsInfo{
		Polygon:     polygon,
		Analytics:   a,
		Mark:        mark,
		Recommended: mark >= RecommendedMark,
	}
}

type Padding struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

type DrawMode string

const (
	DrawNone DrawMode = ""
	DrawDraw DrawMode = "draw"
	DrawRead DrawMode = "read"
)
