package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/events"
	"github.com/mohammed-shakir/sportmap/internal/loading"
	"github.com/mohammed-shakir/sportmap/internal/mapmode"
	"github.com/mohammed-shakir/sportmap/internal/polygonstore"
	"github.com/mohammed-shakir/sportmap/internal/view"
)

var square = []model.LatLng{
	{Lat: 55.70, Lng: 37.50},
	{Lat: 55.70, Lng: 37.60},
	{Lat: 55.80, Lng: 37.60},
	{Lat: 55.80, Lng: 37.50},
}

type stubAPI struct {
	mu      sync.Mutex
	objects []model.FilterRequest
	full    int

	// when set, full analytics calls announce themselves and block for a token
	fullEntered chan struct{}
	fullGate    chan struct{}
}

func (a *stubAPI) FetchObjects(_ context.Context, f model.FilterRequest) ([]model.SportObject, error) {
	a.mu.Lock()
	a.objects = append(a.objects, f)
	a.mu.Unlock()
	return []model.SportObject{{ObjectID: 7, ObjectName: "arena"}}, nil
}

func (a *stubAPI) FetchSportObjectsGeoJSON(context.Context) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func (a *stubAPI) FetchFilteredAreas(context.Context, model.FilterRequest) ([]model.SportArea, error) {
	return []model.SportArea{{ObjectID: 7, SportsAreaType: "hall", SportsAreaName: "A", SportKind: "boxing"}}, nil
}

func (a *stubAPI) FetchPolygonAnalytics(context.Context, model.AnalyticsRequest) (model.PolygonAnalytics, error) {
	return model.PolygonAnalytics{AreasAmount: 1, SportsKinds: []string{"boxing"}}, nil
}

func (a *stubAPI) FetchFullPolygonAnalytics(context.Context, model.AnalyticsRequest) (model.FullPolygonAnalytics, error) {
	if a.fullGate != nil {
		a.fullEntered <- struct{}{}
		<-a.fullGate
	}
	a.mu.Lock()
	a.full++
	a.mu.Unlock()
	return model.FullPolygonAnalytics{Mark: 6.25}, nil
}

func (a *stubAPI) FetchIntersections(context.Context, model.IntersectionRequest) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func (a *stubAPI) FetchPopulationDensity(context.Context) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func (a *stubAPI) FetchFilterOptions(context.Context) (model.FilterOptions, error) {
	return model.FilterOptions{AvailabilityLabels: model.AvailabilityLabels()}, nil
}

func (a *stubAPI) FetchPointDensity(context.Context, model.LatLng) (float64, error) {
	return 321, nil
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recorder) Close() error { return nil }

func (r *recorder) transitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.evs {
		if ev.Type == events.TypeTransition {
			out = append(out, ev.Kind+":"+ev.Item+":"+ev.Op)
		}
	}
	return out
}

type fixture struct {
	mgr   *Manager
	api   *stubAPI
	store *polygonstore.Store
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{api: &stubAPI{}, store: polygonstore.NewMemory(), rec: &recorder{}}
	f.mgr = NewManager(ctx, Deps{
		API:    f.api,
		Store:  f.store,
		Events: f.rec,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, time.Minute)
	t.Cleanup(func() {
		f.mgr.CloseAll()
		cancel()
	})
	return f
}

func TestSession_RemovingDrawClearsSelection(t *testing.T) {
	s := newFixture(t).mgr.Create()
	s.AddMode(mapmode.PolygonDraw)
	if err := s.SetSelection(square); err != nil {
		t.Fatalf("set selection: %v", err)
	}
	// marker is exclusive with polygon-draw
	s.AddMode(mapmode.Marker)
	if st := s.State(); len(st.Selection) != 0 {
		t.Fatalf("selection survived polygon-draw removal: %v", st.Selection)
	}
}

func TestSession_SelectionValidation(t *testing.T) {
	s := newFixture(t).mgr.Create()
	err := s.SetSelection(square[:2])
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSession_FilterPersistsAcrossModes(t *testing.T) {
	s := newFixture(t).mgr.Create()
	f := model.FilterRequest{SportKinds: []string{"tennis"}}
	if err := s.SetFilter(f); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	s.AddMode(mapmode.Marker)
	s.AddMode(mapmode.PolygonSaving)
	s.AddMode(mapmode.QuickAnalytics)
	if got := s.State().Filter; !got.Equal(f) {
		t.Fatalf("filter=%+v want %+v", got, f)
	}

	if err := s.SetFilter(model.FilterRequest{Availabilities: []model.Availability{9}}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected invalid availability to be rejected, got %v", err)
	}
}

func TestSession_QuickAnalyticsCircle(t *testing.T) {
	s := newFixture(t).mgr.Create()
	s.AddMode(mapmode.QuickAnalytics)
	if err := s.SetQuickAnalytics(model.LatLng{Lat: 55.75, Lng: 37.61}, 100); err != nil {
		t.Fatalf("set quick analytics: %v", err)
	}
	st := s.State()
	if st.QuickAnalytics.Radius == nil || *st.QuickAnalytics.Radius != MinQuickAnalyticsRadius {
		t.Fatalf("radius=%v want clamped to %v", st.QuickAnalytics.Radius, MinQuickAnalyticsRadius)
	}
	if !slices.Equal(st.Content, []mapmode.Content{mapmode.QuickAnalyticsContent}) {
		t.Fatalf("content=%v", st.Content)
	}

	s.Wait()
	v := s.View()
	if len(v.Popups) != 1 || v.Popups[0].Kind != view.QuickAnalyticsPopup {
		t.Fatalf("popups=%+v", v.Popups)
	}
	q := v.Popups[0].QuickAnalytics
	if len(q.Polygon) != 32 || q.Mark != 6.2 || !q.Recommended {
		t.Fatalf("quick analytics popup=%+v", q)
	}

	s.RemoveMode(mapmode.QuickAnalytics)
	st = s.State()
	if st.QuickAnalytics.Center != nil || st.QuickAnalytics.Radius != nil {
		t.Fatalf("center/radius must clear with the mode")
	}
	if len(st.Content) != 0 {
		t.Fatalf("content=%v want empty", st.Content)
	}
	s.Wait()
	if len(s.View().Popups) != 0 {
		t.Fatalf("popup must clear with the circle")
	}
}

func TestSession_OpenFull(t *testing.T) {
	f := newFixture(t)
	s := f.mgr.Create()

	if err := s.OpenFull(context.Background()); !errors.Is(err, model.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition without selection, got %v", err)
	}

	s.AddMode(mapmode.PolygonDraw)
	if err := s.SetSelection(square); err != nil {
		t.Fatalf("set selection: %v", err)
	}
	s.AddContent(mapmode.Analysis)
	s.Wait()
	if len(s.View().Popups) != 1 {
		t.Fatalf("expected area-info popup before open full")
	}

	if err := s.OpenFull(context.Background()); err != nil {
		t.Fatalf("open full: %v", err)
	}
	s.Wait()

	st := s.State()
	if !slices.Equal(st.Content, []mapmode.Content{mapmode.Analysis, mapmode.PolygonDashboard}) {
		t.Fatalf("content=%v", st.Content)
	}
	if st.Dashboard == nil || len(st.Dashboard.Objects) != 1 || st.Dashboard.Analytics.Mark != 6.25 {
		t.Fatalf("dashboard=%+v", st.Dashboard)
	}
	if st.Dashboard.Geometry == nil || st.Dashboard.AreaSquareMeters <= 0 {
		t.Fatalf("dashboard geometry=%v area=%v", st.Dashboard.Geometry, st.Dashboard.AreaSquareMeters)
	}
	v := s.View()
	if len(v.Popups) != 0 {
		t.Fatalf("popup must close when the dashboard opens")
	}
	if v.DrawMode != view.DrawRead {
		t.Fatalf("draw mode=%q want read", v.DrawMode)
	}
	if v.BoundsPadding == nil || v.BoundsPadding.Top != 110 {
		t.Fatalf("padding=%+v", v.BoundsPadding)
	}
	if v.Focus == nil {
		t.Fatalf("focus missing for a selected polygon")
	}

	s.RemoveContent(mapmode.PolygonDashboard)
	if s.State().Dashboard != nil {
		t.Fatalf("dashboard data must drop with its content")
	}
}

func TestSession_OpenObjectInfo(t *testing.T) {
	s := newFixture(t).mgr.Create()
	if err := s.OpenObjectInfo(context.Background(), 7); err != nil {
		t.Fatalf("object info: %v", err)
	}
	st := s.State()
	if !slices.Equal(st.Content, []mapmode.Content{mapmode.ObjectInfo}) {
		t.Fatalf("content=%v", st.Content)
	}
	if st.ObjectInfo == nil || st.ObjectInfo.Object.ObjectName != "arena" || len(st.ObjectInfo.AreaTypes) != 1 {
		t.Fatalf("object info=%+v", st.ObjectInfo)
	}
	if err := s.OpenObjectInfo(context.Background(), 99); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_SavePolygon(t *testing.T) {
	f := newFixture(t)
	s := f.mgr.Create()
	ctx := context.Background()

	s.AddMode(mapmode.PolygonSaving)
	if _, err := s.SavePolygon(ctx, "park"); !errors.Is(err, model.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition before a selection, got %v", err)
	}

	s.SetAwaitingPolygon(true)
	if err := s.SetSelection(square); err != nil {
		t.Fatalf("set selection: %v", err)
	}
	s.Wait()

	v := s.View()
	if len(v.Popups) != 1 || !v.Popups[0].AreaInfo.Saved {
		t.Fatalf("expected saved area-info popup, got %+v", v.Popups)
	}
	if v.DrawMode != view.DrawDraw {
		t.Fatalf("draw mode=%q want draw while awaiting", v.DrawMode)
	}

	list, err := s.SavePolygon(ctx, "park")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	want := []model.SavedPolygon{{
		Geometry:  square,
		Name:      "park",
		Analytics: &model.PolygonAnalytics{AreasAmount: 1, SportsKinds: []string{"boxing"}},
		Areas:     []model.SportArea{{ObjectID: 7, SportsAreaType: "hall", SportsAreaName: "A", SportKind: "boxing"}},
	}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("saved list mismatch (-want +got):\n%s", diff)
	}
	stored, err := f.store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(want, stored); diff != "" {
		t.Fatalf("stored list mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.SavePolygon(ctx, ""); !errors.Is(err, model.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for empty name, got %v", err)
	}
}

func TestSession_AwaitingPolygonDropsSelection(t *testing.T) {
	s := newFixture(t).mgr.Create()
	s.AddMode(mapmode.PolygonSaving)
	if err := s.SetSelection(square); err != nil {
		t.Fatalf("set selection: %v", err)
	}
	s.SetAwaitingPolygon(true)
	if st := s.State(); len(st.Selection) != 0 || !st.AwaitingPolygon {
		t.Fatalf("state=%+v", st)
	}
	s.RemoveMode(mapmode.PolygonSaving)
	if s.State().AwaitingPolygon {
		t.Fatalf("leaving polygon-saving must reset awaiting")
	}
}

func TestSession_PublishesTransitions(t *testing.T) {
	f := newFixture(t)
	s := f.mgr.Create()
	s.AddMode(mapmode.Marker)
	s.AddMode(mapmode.PolygonSaving)
	s.RemoveMode(mapmode.Marker) // absent: no-op

	want := []string{
		"mode:marker:add",
		"mode:polygon-saving:add",
		"mode:marker:remove",
		"content:polygon-saving:add",
	}
	if diff := cmp.Diff(want, f.rec.transitions()); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_LoadingAndPointDensity(t *testing.T) {
	s := newFixture(t).mgr.Create()
	if !s.State().LoadingShown {
		t.Fatalf("map loading flag must be raised on start")
	}
	s.SetLoading(loading.Map, false)
	if s.State().LoadingShown {
		t.Fatalf("loading must clear once the map is ready")
	}
	d, err := s.PointDensity(context.Background(), model.LatLng{Lat: 55.7, Lng: 37.6})
	if err != nil || d != 321 {
		t.Fatalf("density=%v err=%v", d, err)
	}
}

func TestSession_OverlappingOpenFullKeepsAnalyticsLoading(t *testing.T) {
	f := newFixture(t)
	s := f.mgr.Create()
	s.SetLoading(loading.Map, false)
	s.AddMode(mapmode.PolygonDraw)
	if err := s.SetSelection(square); err != nil {
		t.Fatalf("set selection: %v", err)
	}
	s.Wait()

	f.api.fullEntered = make(chan struct{}, 2)
	f.api.fullGate = make(chan struct{})
	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- s.OpenFull(context.Background()) }()
	}
	<-f.api.fullEntered
	<-f.api.fullEntered
	if !s.View().Loading[loading.Analytics] {
		t.Fatalf("analytics loading must be raised while open full fetches")
	}

	f.api.fullGate <- struct{}{}
	if err := <-errs; err != nil {
		t.Fatalf("first open full: %v", err)
	}
	if !s.View().Loading[loading.Analytics] {
		t.Fatalf("second open full still loading; flag dropped early")
	}

	f.api.fullGate <- struct{}{}
	if err := <-errs; err != nil {
		t.Fatalf("second open full: %v", err)
	}
	s.Wait()
	if s.View().Loading[loading.Analytics] {
		t.Fatalf("analytics loading must drop after both finish")
	}
}

func TestSession_ClosedSessionIgnoresMutations(t *testing.T) {
	f := newFixture(t)
	s := f.mgr.Create()
	s.AddMode(mapmode.PolygonDraw)
	if err := s.SetSelection(square); err != nil {
		t.Fatalf("set selection: %v", err)
	}
	s.Wait()

	if err := f.mgr.Delete(s.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	f.api.mu.Lock()
	fetches := len(f.api.objects)
	f.api.mu.Unlock()

	// a handler that looked the session up before the delete
	s.AddMode(mapmode.Marker)
	s.Wait()

	st := s.State()
	if !slices.Equal(st.Modes, []mapmode.Mode{mapmode.PolygonDraw}) || len(st.Selection) != 4 {
		t.Fatalf("closed session changed: modes=%v selection=%d", st.Modes, len(st.Selection))
	}
	f.api.mu.Lock()
	after := len(f.api.objects)
	f.api.mu.Unlock()
	if after != fetches {
		t.Fatalf("closed session started %d fetches", after-fetches)
	}
	if err := s.OpenFull(context.Background()); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("open full on closed session err=%v want ErrNotFound", err)
	}
}
