// Package session holds one map session per client: the mode/content
// coordinator, selection and filter state, and the view resolver fed by it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/sportmap/internal/backend"
	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/core/observability"
	"github.com/mohammed-shakir/sportmap/internal/events"
	"github.com/mohammed-shakir/sportmap/internal/geo"
	"github.com/mohammed-shakir/sportmap/internal/loading"
	"github.com/mohammed-shakir/sportmap/internal/logger"
	"github.com/mohammed-shakir/sportmap/internal/mapmode"
	"github.com/mohammed-shakir/sportmap/internal/mapper"
	"github.com/mohammed-shakir/sportmap/internal/polygonstore"
	"github.com/mohammed-shakir/sportmap/internal/view"
)

const (
	MinQuickAnalyticsRadius = 500.0
	MaxQuickAnalyticsRadius = 5000.0
)

type Deps struct {
	API         backend.API
	Store       *polygonstore.Store
	Events      events.Publisher
	Aggregator  mapper.Aggregator
	Logger      *slog.Logger
	CircleSteps int
}

type Dashboard struct {
	Polygon          []model.LatLng             `json:"polygon"`
	Geometry         *geojson.Feature           `json:"geometry"`
	AreaSquareMeters float64                    `json:"areaSquareMeters"`
	Objects          []model.SportObject        `json:"objects"`
	Analytics        model.FullPolygonAnalytics `json:"analytics"`
	Areas            []model.SportArea          `json:"areas"`
	AreaTypes        []model.SportAreaType      `json:"areaTypes"`
	SportKinds       []string                   `json:"sportKinds"`
}

type ObjectInfo struct {
	Object     model.SportObject     `json:"object"`
	Areas      []model.SportArea     `json:"areas"`
	AreaTypes  []model.SportAreaType `json:"areaTypes"`
	SportKinds []string              `json:"sportKinds"`
}

type QuickAnalytics struct {
	Center *model.LatLng `json:"center"`
	Radius *float64      `json:"radius"`
}

// State is the serializable session state returned to the client.
type State struct {
	ID              string              `json:"id"`
	Modes           []mapmode.Mode      `json:"modes"`
	Content         []mapmode.Content   `json:"content"`
	Selection       []model.LatLng      `json:"selection"`
	Filter          model.FilterRequest `json:"filter"`
	QuickAnalytics  QuickAnalytics      `json:"quickAnalytics"`
	DashboardWidth  int                 `json:"dashboardWidth"`
	AwaitingPolygon bool                `json:"awaitingPolygon"`
	Dashboard       *Dashboard          `json:"dashboard,omitempty"`
	ObjectInfo      *ObjectInfo         `json:"objectInfo,omitempty"`
	LoadingShown    bool                `json:"loadingShown"`
}

type Session struct {
	id     string
	deps   Deps
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	flags    *loading.Flags
	resolver *view.Resolver
	lastSeen atomic.Int64

	mu          sync.Mutex
	coord       *mapmode.Coordinator
	unsubscribe func()
	selection   []model.LatLng
	filter      model.FilterRequest
	qaCenter    *model.LatLng
	qaRadius    *float64
	dashWidth   int
	awaiting    bool
	dashboard   *Dashboard
	objectInfo  *ObjectInfo
	last        view.Inputs
	closed      bool
}

func newSession(parent context.Context, id string, deps Deps) *Session {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.CircleSteps < 3 {
		deps.CircleSteps = geo.DefaultCircleSteps
	}
	ctx, cancel := context.WithCancel(logger.WithSessionID(parent, id))
	s := &Session{
		id:     id,
		deps:   deps,
		logger: deps.Logger,
		ctx:    ctx,
		cancel: cancel,
		flags:  loading.New(),
		coord:  mapmode.New(),
	}

	opts := []view.Option{view.WithOnApply(s.onApply)}
	if deps.Aggregator != nil {
		opts = append(opts, view.WithAggregator(deps.Aggregator))
	}
	s.resolver = view.NewResolver(ctx, deps.API, s.flags, deps.Logger, opts...)
	s.unsubscribe = s.coord.Subscribe(s.onChange)
	// cleared once the renderer reports the map ready
	s.flags.Set(loading.Map, true)
	s.touch()
	return s
}

func (s *Session) onApply(st view.Stream) {
	observability.IncViewUpdate(string(st))
	s.logger.DebugContext(s.ctx, "view stream updated", "stream", st)
}

func (s *Session) ID() string { return s.id }

func (s *Session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

func (s *Session) idleSince() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// onChange runs synchronously inside coordinator operations, under s.mu.
func (s *Session) onChange(ch mapmode.Change) {
	for _, m := range ch.Added() {
		s.transition(ch, "mode", string(m), "add")
	}
	for _, m := range ch.Removed() {
		s.transition(ch, "mode", string(m), "remove")
		switch m {
		case mapmode.PolygonDraw:
			s.selection = nil
		case mapmode.PolygonSaving:
			s.selection = nil
			s.awaiting = false
		case mapmode.QuickAnalytics:
			s.qaCenter, s.qaRadius = nil, nil
		}
	}
	for _, x := range ch.AddedContent() {
		s.transition(ch, "content", string(x), "add")
	}
	for _, x := range ch.RemovedContent() {
		s.transition(ch, "content", string(x), "remove")
		switch x {
		case mapmode.PolygonDashboard:
			s.dashboard = nil
		case mapmode.ObjectInfo:
			s.objectInfo = nil
		}
	}
}

func (s *Session) transition(ch mapmode.Change, kind, item, op string) {
	observability.ObserveTransition(kind, item, op)
	s.logger.DebugContext(s.ctx, "map transition", "kind", kind, "item", item, "op", op)

	ev := events.Event{
		Type:      events.TypeTransition,
		SessionID: s.id,
		Kind:      kind,
		Item:      item,
		Op:        op,
	}
	for _, m := range ch.Curr.Modes {
		ev.Modes = append(ev.Modes, string(m))
	}
	for _, x := range ch.Curr.Content {
		ev.Content = append(ev.Content, string(x))
	}
	s.deps.Events.Publish(ev)
}

func (s *Session) effectiveSelection(snap mapmode.Snapshot) []model.LatLng {
	active := snap.HasMode(mapmode.QuickAnalytics)
	if qa := geo.QuickAnalyticsPolygon(active, s.qaCenter, s.qaRadius, s.deps.CircleSteps); qa != nil {
		return qa
	}
	return s.selection
}

func (s *Session) inputs() view.Inputs {
	snap := s.coord.Snapshot()
	return view.Inputs{
		State:           snap,
		Selection:       s.effectiveSelection(snap),
		Filter:          s.filter,
		DashboardWidth:  s.dashWidth,
		AwaitingPolygon: s.awaiting,
	}
}

// refresh must be called with s.mu held after every mutation.
func (s *Session) refresh() {
	curr := s.inputs()
	s.resolver.Update(s.last, curr)
	s.last = curr
}

// mutate is a no-op once the session is closed; the listener is gone and
// the resolver must not start new fetches.
func (s *Session) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.touch()
	fn()
	s.refresh()
}

func (s *Session) AddMode(m mapmode.Mode)    { s.mutate(func() { s.coord.AddMode(m) }) }
func (s *Session) RemoveMode(m mapmode.Mode) { s.mutate(func() { s.coord.RemoveMode(m) }) }

func (s *Session) AddContent(x mapmode.Content)    { s.mutate(func() { s.coord.AddContent(x) }) }
func (s *Session) RemoveContent(x mapmode.Content) { s.mutate(func() { s.coord.RemoveContent(x) }) }
func (s *Session) ClearContent()                   { s.mutate(s.coord.ClearContent) }

func (s *Session) SetSelection(points []model.LatLng) error {
	if err := geo.Validate(points); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	s.mutate(func() { s.selection = slices.Clone(points) })
	return nil
}

func (s *Session) ClearSelection() { s.mutate(func() { s.selection = nil }) }

func (s *Session) SetFilter(f model.FilterRequest) error {
	for _, a := range f.Availabilities {
		if !a.Valid() {
			return fmt.Errorf("%w: %s", model.ErrInvalidInput, a)
		}
	}
	s.mutate(func() { s.filter = f })
	return nil
}

func (s *Session) ClearFilter() { s.mutate(func() { s.filter = model.FilterRequest{} }) }

// SetQuickAnalytics places the analysis circle. The radius is clamped to
// the control bounds.
func (s *Session) SetQuickAnalytics(center model.LatLng, radius float64) error {
	if !center.Finite() || math.IsNaN(radius) {
		return fmt.Errorf("%w: quick-analytics center %v radius %v", model.ErrInvalidInput, center, radius)
	}
	radius = min(max(radius, MinQuickAnalyticsRadius), MaxQuickAnalyticsRadius)
	s.mutate(func() {
		s.qaCenter = &center
		s.qaRadius = &radius
	})
	return nil
}

func (s *Session) SetDashboardWidth(width int) error {
	if width < 0 {
		return fmt.Errorf("%w: dashboard width %d", model.ErrInvalidInput, width)
	}
	s.mutate(func() { s.dashWidth = width })
	return nil
}

// SetAwaitingPolygon switches polygon-saving between drawing a new polygon
// and reading saved ones. Entering the drawing state drops the selection.
func (s *Session) SetAwaitingPolygon(awaiting bool) {
	s.mutate(func() {
		s.awaiting = awaiting
		if awaiting {
			s.selection = nil
		}
	})
}

func (s *Session) SetLoading(k loading.Key, v bool) {
	s.touch()
	s.flags.Set(k, v)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:              s.id,
		Modes:           s.coord.Modes(),
		Content:         s.coord.Contents(),
		Selection:       slices.Clone(s.selection),
		Filter:          s.filter,
		DashboardWidth:  s.dashWidth,
		AwaitingPolygon: s.awaiting,
		Dashboard:       s.dashboard,
		ObjectInfo:      s.objectInfo,
		LoadingShown:    s.flags.IsShown(),
	}
	if s.qaCenter != nil {
		c := *s.qaCenter
		st.QuickAnalytics.Center = &c
	}
	if s.qaRadius != nil {
		r := *s.qaRadius
		st.QuickAnalytics.Radius = &r
	}
	return st
}

func (s *Session) View() view.View {
	s.touch()
	return s.resolver.View()
}

// Wait blocks until in-flight view fetches finish.
func (s *Session) Wait() { s.resolver.Wait() }

// OpenFull promotes the current selection to the polygon dashboard: it
// loads objects, full analytics and areas, then replaces the popup.
func (s *Session) OpenFull(ctx context.Context) error {
	s.mu.Lock()
	sel := slices.Clone(s.effectiveSelection(s.coord.Snapshot()))
	filter := s.filter
	s.mu.Unlock()
	if len(sel) < 3 {
		return fmt.Errorf("%w: open full needs a selection", model.ErrPrecondition)
	}

	defer s.flags.Hold(loading.Analytics)()

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Objects, err = s.deps.API.FetchObjects(gctx, filter.WithPolygon(sel))
		return err
	})
	g.Go(func() error {
		var err error
		d.Analytics, err = s.deps.API.FetchFullPolygonAnalytics(gctx, model.AnalyticsRequestFrom(filter, sel))
		return err
	})
	g.Go(func() error {
		var err error
		d.Areas, err = s.deps.API.FetchFilteredAreas(gctx, filter.WithPolygon(sel))
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("open full: %w", err)
	}
	d.Polygon = sel
	d.Geometry = geo.ToFeature(sel)
	d.AreaSquareMeters = geo.AreaSquareMeters(sel)
	d.AreaTypes = model.AreaTypes(d.Areas)
	d.SportKinds = model.SportKinds(d.Areas)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: session %s closed", model.ErrNotFound, s.id)
	}
	if !slices.Equal(sel, s.effectiveSelection(s.coord.Snapshot())) {
		return fmt.Errorf("%w: selection changed while loading", model.ErrPrecondition)
	}
	s.touch()
	s.resolver.ClearPopups()
	s.coord.AddContent(mapmode.PolygonDashboard)
	s.dashboard = &d
	s.refresh()
	return nil
}

// OpenObjectInfo shows the full info panel for one sport object.
func (s *Session) OpenObjectInfo(ctx context.Context, objectID int64) error {
	defer s.flags.Hold(loading.Data)()

	f := model.FilterRequest{ObjectIDs: []int64{objectID}}
	var (
		objects []model.SportObject
		areas   []model.SportArea
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objects, err = s.deps.API.FetchObjects(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		areas, err = s.deps.API.FetchFilteredAreas(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("object info: %w", err)
	}
	idx := slices.IndexFunc(objects, func(o model.SportObject) bool { return o.ObjectID == objectID })
	if idx < 0 {
		return fmt.Errorf("%w: object %d", model.ErrNotFound, objectID)
	}

	info := &ObjectInfo{
		Object:     objects[idx],
		Areas:      areas,
		AreaTypes:  model.AreaTypes(areas),
		SportKinds: model.SportKinds(areas),
	}
	s.mutate(func() {
		s.coord.AddContent(mapmode.ObjectInfo)
		s.objectInfo = info
	})
	return nil
}

// SavePolygon stores the current selection with the analytics and areas
// shown in its popup.
func (s *Session) SavePolygon(ctx context.Context, name string) ([]model.SavedPolygon, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("%w: no polygon store", model.ErrPrecondition)
	}

	s.mu.Lock()
	sel := slices.Clone(s.effectiveSelection(s.coord.Snapshot()))
	s.mu.Unlock()

	info, ok := s.resolver.AreaInfo()
	if !ok || !slices.Equal(info.Polygon, sel) {
		return nil, fmt.Errorf("%w: polygon analytics not loaded", model.ErrPrecondition)
	}
	analytics := info.Analytics
	rec := model.SavedPolygon{
		Geometry:  sel,
		Name:      name,
		Analytics: &analytics,
		Areas:     slices.Clone(info.Areas),
	}

	defer s.flags.Hold(loading.Download)()
	list, err := s.deps.Store.Save(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.deps.Events.Publish(events.Event{Type: events.TypeSaved, SessionID: s.id, Item: name})
	s.logger.InfoContext(s.ctx, "polygon saved", "name", name, "total", len(list))
	return list, nil
}

func (s *Session) FilterOptions(ctx context.Context) (model.FilterOptions, error) {
	return s.deps.API.FetchFilterOptions(ctx)
}

func (s *Session) PointDensity(ctx context.Context, p model.LatLng) (float64, error) {
	if !p.Finite() {
		return 0, fmt.Errorf("%w: point %v", model.ErrInvalidInput, p)
	}
	return s.deps.API.FetchPointDensity(ctx, p)
}

// Close abandons in-flight fetches and releases the loading gauges.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.unsubscribe()
	s.mu.Unlock()

	s.cancel()
	s.resolver.Wait()
	s.flags.Release()
	s.deps.Events.Publish(events.Event{Type: events.TypeSession, SessionID: s.id, Op: "close"})
}
