package view

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
)

var errUpstream = errors.New("upstream down")

// fakeAPI records calls. A non-nil gate for an endpoint blocks that call
// until a value is sent; the value is the error to return.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int
	gates map[string]chan error
	fail  map[string]bool

	objects       func(model.FilterRequest) []model.SportObject
	lastIntersect model.IntersectionRequest
	mark          float64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: map[string]int{},
		gates: map[string]chan error{},
		fail:  map[string]bool{},
	}
}

func (f *fakeAPI) gate(name string) chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan error)
	f.gates[name] = ch
	return ch
}

func (f *fakeAPI) ungate(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.gates, name)
}

func (f *fakeAPI) setFail(name string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = v
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) enter(name string) error {
	f.mu.Lock()
	f.calls[name]++
	gate := f.gates[name]
	fail := f.fail[name]
	f.mu.Unlock()

	if gate != nil {
		if err := <-gate; err != nil {
			return err
		}
	}
	if fail {
		return errUpstream
	}
	return nil
}

func pointFC(lng, lat float64, props map[string]any) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	feat := geojson.NewFeature(orb.Point{lng, lat})
	for k, v := range props {
		feat.Properties[k] = v
	}
	fc.Append(feat)
	return fc
}

func (f *fakeAPI) FetchObjects(_ context.Context, req model.FilterRequest) ([]model.SportObject, error) {
	if err := f.enter("objects"); err != nil {
		return nil, err
	}
	if f.objects != nil {
		return f.objects(req), nil
	}
	return []model.SportObject{{ObjectID: 1, ObjectName: "stadium"}}, nil
}

func (f *fakeAPI) FetchSportObjectsGeoJSON(context.Context) (*geojson.FeatureCollection, error) {
	if err := f.enter("sport"); err != nil {
		return nil, err
	}
	return pointFC(37.6, 55.7, nil), nil
}

func (f *fakeAPI) FetchFilteredAreas(context.Context, model.FilterRequest) ([]model.SportArea, error) {
	if err := f.enter("areas"); err != nil {
		return nil, err
	}
	return []model.SportArea{
		{SportsAreaType: "field", SportsAreaName: "north", SportKind: "football"},
		{SportsAreaType: "field", SportsAreaName: "south", SportKind: "football"},
		{SportsAreaType: "pool", SportsAreaName: "main", SportKind: "swimming"},
	}, nil
}

func (f *fakeAPI) FetchPolygonAnalytics(context.Context, model.AnalyticsRequest) (model.PolygonAnalytics, error) {
	if err := f.enter("analytics"); err != nil {
		return model.PolygonAnalytics{}, err
	}
	return model.PolygonAnalytics{AreasAmount: 3, Density: 1200}, nil
}

func (f *fakeAPI) FetchFullPolygonAnalytics(context.Context, model.AnalyticsRequest) (model.FullPolygonAnalytics, error) {
	if err := f.enter("full"); err != nil {
		return model.FullPolygonAnalytics{}, err
	}
	return model.FullPolygonAnalytics{Mark: f.mark}, nil
}

func (f *fakeAPI) FetchIntersections(_ context.Context, req model.IntersectionRequest) (*geojson.FeatureCollection, error) {
	if err := f.enter("intersections"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastIntersect = req
	f.mu.Unlock()
	return geojson.NewFeatureCollection(), nil
}

func (f *fakeAPI) FetchPopulationDensity(context.Context) (*geojson.FeatureCollection, error) {
	if err := f.enter("population"); err != nil {
		return nil, err
	}
	return pointFC(37.6, 55.7, map[string]any{PopulationWeight: 4.0}), nil
}

func (f *fakeAPI) FetchFilterOptions(context.Context) (model.FilterOptions, error) {
	if err := f.enter("options"); err != nil {
		return model.FilterOptions{}, err
	}
	return model.FilterOptions{SportKinds: []string{"football"}, AvailabilityLabels: model.AvailabilityLabels()}, nil
}

func (f *fakeAPI) FetchPointDensity(context.Context, model.LatLng) (float64, error) {
	if err := f.enter("density"); err != nil {
		return 0, err
	}
	return 4200, nil
}
