package view

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/sportmap/internal/backend"
	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/core/observability"
	"github.com/mohammed-shakir/sportmap/internal/loading"
	"github.com/mohammed-shakir/sportmap/internal/logger"
	"github.com/mohammed-shakir/sportmap/internal/mapper"
)

type Stream string

const (
	StreamHeatmaps Stream = "heatmaps"
	StreamMarkers  Stream = "markers"
	StreamOverlays Stream = "overlays"
	StreamPopups   Stream = "popups"
)

var streams = []Stream{StreamHeatmaps, StreamMarkers, StreamOverlays, StreamPopups}

// loading indicator raised while a stream fetches; overlays have none
var streamLoading = map[Stream]loading.Key{
	StreamHeatmaps: loading.Heatmap,
	StreamMarkers:  loading.Marker,
	StreamPopups:   loading.Analytics,
}

// View is an immutable snapshot handed to the renderer.
type View struct {
	Heatmaps      []Heatmap            `json:"heatmaps"`
	MarkerLayers  []MarkerLayer        `json:"markerLayers"`
	Overlays      []PolygonOverlay     `json:"overlays"`
	Popups        []Popup              `json:"popups"`
	BoundsPadding *Padding             `json:"boundsPadding"`
	Focus         *Focus               `json:"focus,omitempty"`
	DrawMode      DrawMode             `json:"drawMode,omitempty"`
	Loading       map[loading.Key]bool `json:"loading"`
	Errors        map[Stream]string    `json:"errors,omitempty"`
}

type layers struct {
	heatmaps []Heatmap
	markers  []MarkerLayer
	overlays []PolygonOverlay
	popups   []Popup
}

type streamState struct {
	gen    uint64
	cancel context.CancelFunc
}

// applyFunc installs a fetch result; it runs under the resolver lock.
type applyFunc func(*layers)

type Resolver struct {
	api     backend.API
	agg     mapper.Aggregator
	logger  *slog.Logger
	flags   *loading.Flags
	parent  context.Context
	onApply func(Stream)

	mu     sync.Mutex
	state  map[Stream]*streamState
	layers layers
	errs   map[Stream]string
	inputs Inputs

	wg sync.WaitGroup
}

type Option func(*Resolver)

// WithAggregator folds the population heatmap before it is published.
func WithAggregator(a mapper.Aggregator) Option {
	return func(r *Resolver) { r.agg = a }
}

// WithOnApply registers a hook called after a stream result is installed.
func WithOnApply(fn func(Stream)) Option {
	return func(r *Resolver) { r.onApply = fn }
}

// NewResolver ties fetches to ctx; cancelling it abandons every stream.
func NewResolver(ctx context.Context, api backend.API, flags *loading.Flags, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		api:    api,
		logger: logger,
		flags:  flags,
		parent: ctx,
		state:  make(map[Stream]*streamState, len(streams)),
		errs:   map[Stream]string{},
	}
	for _, s := range streams {
		r.state[s] = &streamState{}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Update recomputes every stream whose inputs changed between prev and curr.
func (r *Resolver) Update(prev, curr Inputs) {
	r.mu.Lock()
	r.inputs = curr
	r.mu.Unlock()

	if HeatmapsDirty(prev, curr) {
		r.launch(StreamHeatmaps, r.heatmapsFetch(PlanHeatmaps(curr)))
	}
	if MarkersDirty(prev, curr) {
		r.launch(StreamMarkers, r.markersFetch(PlanMarkers(curr)))
	}
	if OverlaysDirty(prev, curr) {
		req, ok := PlanOverlay(curr)
		var fetch func(context.Context) (applyFunc, error)
		if ok {
			fetch = r.overlayFetch(req)
		}
		r.launch(StreamOverlays, fetch)
	}
	if PopupsDirty(prev, curr) {
		plan, ok := PlanPopup(curr)
		var fetch func(context.Context) (applyFunc, error)
		if ok {
			fetch = r.popupFetch(plan)
		}
		r.launch(StreamPopups, fetch)
	}
}

// ClearPopups drops the current popup and abandons any popup fetch.
func (r *Resolver) ClearPopups() {
	r.launch(StreamPopups, nil)
}

// Wait blocks until every in-flight fetch has finished.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func (r *Resolver) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return View{
		Heatmaps:      slices.Clone(r.layers.heatmaps),
		MarkerLayers:  slices.Clone(r.layers.markers),
		Overlays:      slices.Clone(r.layers.overlays),
		Popups:        slices.Clone(r.layers.popups),
		BoundsPadding: BoundsPadding(r.inputs.State, r.inputs.DashboardWidth),
		Focus:         FocusOn(r.inputs),
		DrawMode:      PolygonDrawMode(r.inputs.State, r.inputs.AwaitingPolygon),
		Loading:       r.flags.Snapshot(),
		Errors:        maps.Clone(r.errs),
	}
}

// launch supersedes the stream's previous fetch. A nil fetch means the
// plan needs no data and the stream is cleared synchronously.
func (r *Resolver) launch(s Stream, fetch func(context.Context) (applyFunc, error)) {
	r.mu.Lock()
	st := r.state[s]
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.gen++
	gen := st.gen

	if fetch == nil {
		clearStream(&r.layers, s)
		delete(r.errs, s)
		r.setLoading(s, false)
		r.mu.Unlock()
		r.applied(s)
		return
	}

	ctx, cancel := context.WithCancel(logger.WithStream(r.parent, string(s)))
	st.cancel = cancel
	r.setLoading(s, true)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()

		apply, err := fetch(ctx)

		r.mu.Lock()
		if st.gen != gen {
			r.mu.Unlock()
			observability.IncStaleDiscarded(string(s))
			r.logger.DebugContext(ctx, "stale result discarded", "gen", gen)
			return
		}
		st.cancel = nil
		r.setLoading(s, false)
		if err != nil {
			// previous layer stays on screen
			r.errs[s] = err.Error()
			r.mu.Unlock()
			observability.IncFetchFailure(string(s))
			r.logger.WarnContext(ctx, "view fetch failed", "err", err)
			return
		}
		delete(r.errs, s)
		apply(&r.layers)
		r.mu.Unlock()
		r.applied(s)
	}()
}

func (r *Resolver) setLoading(s Stream, v bool) {
	if k, ok := streamLoading[s]; ok {
		r.flags.Set(k, v)
	}
}

func (r *Resolver) applied(s Stream) {
	if r.onApply != nil {
		r.onApply(s)
	}
}

func clearStream(l *layers, s Stream) {
	switch s {
	case StreamHeatmaps:
		l.heatmaps = nil
	case StreamMarkers:
		l.markers = nil
	case StreamOverlays:
		l.overlays = nil
	case StreamPopups:
		l.popups = nil
	}
}

func (r *Resolver) heatmapsFetch(plan HeatmapPlan) func(context.Context) (applyFunc, error) {
	if plan.Empty() {
		return nil
	}
	return func(ctx context.Context) (applyFunc, error) {
		var population, sport *geojson.FeatureCollection
		g, gctx := errgroup.WithContext(ctx)
		if plan.Population {
			g.Go(func() error {
				fc, err := r.api.FetchPopulationDensity(gctx)
				if err != nil {
					return err
				}
				if r.agg != nil {
					if fc, err = r.agg.Aggregate(fc, PopulationWeight); err != nil {
						return err
					}
				}
				population = fc
				return nil
			})
		}
		if plan.Sport {
			g.Go(func() error {
				fc, err := r.api.FetchSportObjectsGeoJSON(gctx)
				sport = fc
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var out []Heatmap
		if population != nil {
			out = append(out, PopulationHeatmap(population))
		}
		if sport != nil {
			out = append(out, SportHeatmap(sport))
		}
		return func(l *layers) { l.heatmaps = out }, nil
	}
}

func (r *Resolver) markersFetch(plan MarkerPlan) func(context.Context) (applyFunc, error) {
	if plan.Source == MarkersNone {
		return nil
	}
	return func(ctx context.Context) (applyFunc, error) {
		objs, err := r.api.FetchObjects(ctx, plan.Filter)
		if err != nil {
			return nil, err
		}
		layer := SportObjectMarkerLayer(objs)
		return func(l *layers) { l.markers = []MarkerLayer{layer} }, nil
	}
}

func (r *Resolver) overlayFetch(req model.IntersectionRequest) func(context.Context) (applyFunc, error) {
	return func(ctx context.Context) (applyFunc, error) {
		fc, err := r.api.FetchIntersections(ctx, req)
		if err != nil {
			return nil, err
		}
		overlay := IntersectionOverlay(fc)
		return func(l *layers) { l.overlays = []PolygonOverlay{overlay} }, nil
	}
}

func (r *Resolver) popupFetch(plan PopupPlan) func(context.Context) (applyFunc, error) {
	req := model.AnalyticsRequestFrom(model.FilterRequest{}, plan.Polygon)
	popup := Popup{
		Kind:       plan.Kind,
		Anchor:     plan.Anchor,
		AnchorSide: "right",
	}

	if plan.Kind == QuickAnalyticsPopup {
		return func(ctx context.Context) (applyFunc, error) {
			full, err := r.api.FetchFullPolygonAnalytics(ctx, req)
			if err != nil {
				return nil, err
			}
			popup.QuickAnalytics = newQuickAnalyticsInfo(plan.Polygon, full)
			return func(l *layers) { l.popups = []Popup{popup} }, nil
		}
	}

	return func(ctx context.Context) (applyFunc, error) {
		var (
			analytics model.PolygonAnalytics
			areas     []model.SportArea
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			analytics, err = r.api.FetchPolygonAnalytics(gctx, req)
			return err
		})
		g.Go(func() error {
			var err error
			areas, err = r.api.FetchFilteredAreas(gctx, model.FilterRequest{}.WithPolygon(plan.Polygon))
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if areas == nil {
			areas = []model.SportArea{}
		}
		popup.AreaInfo = newAreaInfo(plan.Polygon, analytics, areas, plan.Saved)
		return func(l *layers) { l.popups = []Popup{popup} }, nil
	}
}

// AreaInfo returns the payload of the current area-info popup, if any.
func (r *Resolver) AreaInfo() (*AreaInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.layers.popups {
		if p.Kind == AreaInfoPopup && p.AreaInfo != nil {
			return p.AreaInfo, true
		}
	}
	return nil, false
}
