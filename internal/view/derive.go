// Package view derives the declarative map view (layers, popups, padding)
// from a session's mode, content, selection and filter state.
package view

import (
	"slices"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/geo"
	"github.com/mohammed-shakir/sportmap/internal/mapmode"
)

// Inputs is everything a derivation may depend on. Selection is the
// effective selection: the quick-analytics circle when it applies, else the
// drawn polygon.
type Inputs struct {
	State           mapmode.Snapshot
	Selection       []model.LatLng
	Filter          model.FilterRequest
	DashboardWidth  int
	AwaitingPolygon bool
}

func (in Inputs) HasSelection() bool { return len(in.Selection) >= 3 }

func selectionChanged(prev, curr Inputs) bool {
	return !slices.Equal(prev.Selection, curr.Selection)
}

// HeatmapsDirty is true only when heatmap membership changed; toggling
// unrelated modes must not refetch heatmap data.
func HeatmapsDirty(prev, curr Inputs) bool {
	return prev.State.ModeToggled(mapmode.PopulationHeatmap, curr.State) ||
		prev.State.ModeToggled(mapmode.SportHeatmap, curr.State)
}

func MarkersDirty(prev, curr Inputs) bool {
	return prev.State.ModeToggled(mapmode.Marker, curr.State) ||
		!prev.Filter.Equal(curr.Filter) ||
		selectionChanged(prev, curr)
}

func OverlaysDirty(prev, curr Inputs) bool {
	return prev.State.ModeToggled(mapmode.ObjectIntersection, curr.State) ||
		!prev.Filter.Equal(curr.Filter) ||
		selectionChanged(prev, curr)
}

func PopupsDirty(prev, curr Inputs) bool {
	return selectionChanged(prev, curr) ||
		prev.State.HasContent(mapmode.PolygonDashboard) != curr.State.HasContent(mapmode.PolygonDashboard) ||
		prev.State.ModeToggled(mapmode.PolygonSaving, curr.State) ||
		prev.State.ModeToggled(mapmode.QuickAnalytics, curr.State)
}

type HeatmapPlan struct {
	Population bool
	Sport      bool
}

func (p HeatmapPlan) Empty() bool { return !p.Population && !p.Sport }

func PlanHeatmaps(in Inputs) HeatmapPlan {
	return HeatmapPlan{
		Population: in.State.HasMode(mapmode.PopulationHeatmap),
		Sport:      in.State.HasMode(mapmode.SportHeatmap),
	}
}

type MarkerSource int

const (
	MarkersNone MarkerSource = iota
	MarkersFiltered
	MarkersAll
	MarkersInSelection
)

type MarkerPlan struct {
	Source MarkerSource
	Filter model.FilterRequest
}

// PlanMarkers applies the precedence: a non-empty filter (narrowed by the
// selection), then marker mode, then the selection alone.
func PlanMarkers(in Inputs) MarkerPlan {
	switch {
	case !in.Filter.IsEmpty():
		f := in.Filter
		if in.HasSelection() {
			f = f.WithPolygon(in.Selection)
		}
		return MarkerPlan{Source: MarkersFiltered, Filter: f}
	case in.State.HasMode(mapmode.Marker):
		return MarkerPlan{Source: MarkersAll}
	case in.HasSelection():
		return MarkerPlan{Source: MarkersInSelection, Filter: model.FilterRequest{}.WithPolygon(in.Selection)}
	default:
		return MarkerPlan{Source: MarkersNone}
	}
}

// PlanOverlay returns the intersection request, or false when no overlay
// applies. Intersections are only defined for a single availability tier.
func PlanOverlay(in Inputs) (model.IntersectionRequest, bool) {
	if !in.HasSelection() || !in.State.HasMode(mapmode.ObjectIntersection) {
		return model.IntersectionRequest{}, false
	}
	tier, ok := in.Filter.SingleAvailability()
	if !ok {
		return model.IntersectionRequest{}, false
	}
	return model.IntersectionRequestFrom(in.Filter, in.Selection, tier), true
}

type PopupPlan struct {
	Kind    PopupKind
	Polygon []model.LatLng
	Anchor  model.LatLng
	Saved   bool
}

// PlanPopup yields a popup for the selection unless the dashboard already
// shows it.
func PlanPopup(in Inputs) (PopupPlan, bool) {
	if !in.HasSelection() || in.State.HasContent(mapmode.PolygonDashboard) {
		return PopupPlan{}, false
	}
	anchor, _ := geo.AnchorVertex(in.Selection)
	p := PopupPlan{
		Kind:    AreaInfoPopup,
		Polygon: slices.Clone(in.Selection),
		Anchor:  anchor,
		Saved:   in.State.HasMode(mapmode.PolygonSaving),
	}
	if in.State.HasMode(mapmode.QuickAnalytics) {
		p.Kind = QuickAnalyticsPopup
		p.Saved = false
	}
	return p, true
}

// PolygonSavingPadding keeps the saved-polygon panel clear of the focus.
var PolygonSavingPadding = Padding{Top: 110, Right: 670}

func BoundsPadding(state mapmode.Snapshot, dashboardWidth int) *Padding {
	switch {
	case state.HasContent(mapmode.PolygonSavingContent):
		p := PolygonSavingPadding
		return &p
	case state.HasContent(mapmode.PolygonDashboard):
		return &Padding{Top: 110, Right: dashboardWidth}
	default:
		return nil
	}
}

func PolygonDrawMode(state mapmode.Snapshot, awaitingPolygon bool) DrawMode {
	switch {
	case state.HasMode(mapmode.PolygonDraw):
		if state.HasContent(mapmode.PolygonDashboard) {
			return DrawRead
		}
		return DrawDraw
	case state.HasMode(mapmode.PolygonSaving):
		if awaitingPolygon {
			return DrawDraw
		}
		return DrawRead
	default:
		return DrawNone
	}
}

// Focus is the box the renderer fits the map to, together with
// BoundsPadding.
type Focus struct {
	SouthWest    model.LatLng `json:"southWest"`
	NorthEast    model.LatLng `json:"northEast"`
	Center       model.LatLng `json:"center"`
	RadiusMeters float64      `json:"radiusMeters"`
}

// FocusOn frames the selection; RadiusMeters is the farthest vertex from
// the center.
func FocusOn(in Inputs) *Focus {
	if !in.HasSelection() {
		return nil
	}
	sw, ne, err := geo.Bounds(in.Selection)
	if err != nil {
		return nil
	}
	c, _ := geo.Center(in.Selection)
	f := &Focus{SouthWest: sw, NorthEast: ne, Center: c}
	for _, p := range in.Selection {
		f.RadiusMeters = max(f.RadiusMeters, geo.DistanceMeters(c, p))
	}
	return f
}
