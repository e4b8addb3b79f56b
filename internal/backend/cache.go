package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/sportmap/internal/cache/keys"
	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/core/observability"
)

// Cached memoizes backend reads for a short TTL. Cached values are shared
// between sessions and must be treated as read-only.
type Cached struct {
	next API
	lru  *expirable.LRU[string, any]
}

// NewCached wraps next; a size <= 0 disables caching.
func NewCached(next API, size int, ttl time.Duration) API {
	if size <= 0 {
		return next
	}
	return &Cached{next: next, lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

var _ API = (*Cached)(nil)

func (c *Cached) Len() int { return c.lru.Len() }

func cached[T any](c *Cached, endpoint string, req any, fetch func() (T, error)) (T, error) {
	var zero T
	var payload []byte
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return zero, fmt.Errorf("cache key for %s: %w", endpoint, err)
		}
		payload = b
	}
	key := keys.Key(endpoint, payload)
	if v, ok := c.lru.Get(key); ok {
		if t, ok := v.(T); ok {
			observability.IncFetchCacheHit()
			return t, nil
		}
	}
	observability.IncFetchCacheMiss()
	v, err := fetch()
	if err != nil {
		return zero, err
	}
	c.lru.Add(key, v)
	return v, nil
}

func (c *Cached) FetchObjects(ctx context.Context, f model.FilterRequest) ([]model.SportObject, error) {
	return cached(c, EndpointFilterObjects, f, func() ([]model.SportObject, error) {
		return c.next.FetchObjects(ctx, f)
	})
}

func (c *Cached) FetchSportObjectsGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	return cached(c, EndpointSportObjectsGeo, nil, func() (*geojson.FeatureCollection, error) {
		return c.next.FetchSportObjectsGeoJSON(ctx)
	})
}

func (c *Cached) FetchFilteredAreas(ctx context.Context, f model.FilterRequest) ([]model.SportArea, error) {
	return cached(c, EndpointFilterAreas, f, func() ([]model.SportArea, error) {
		return c.next.FetchFilteredAreas(ctx, f)
	})
}

func (c *Cached) FetchPolygonAnalytics(ctx context.Context, r model.AnalyticsRequest) (model.PolygonAnalytics, error) {
	return cached(c, EndpointPolygonAnalytics, r, func() (model.PolygonAnalytics, error) {
		return c.next.FetchPolygonAnalytics(ctx, r)
	})
}

func (c *Cached) FetchFullPolygonAnalytics(ctx context.Context, r model.AnalyticsRequest) (model.FullPolygonAnalytics, error) {
	return cached(c, EndpointPolygonDashboard, r, func() (model.FullPolygonAnalytics, error) {
		return c.next.FetchFullPolygonAnalytics(ctx, r)
	})
}

func (c *Cached) FetchIntersections(ctx context.Context, r model.IntersectionRequest) (*geojson.FeatureCollection, error) {
	return cached(c, EndpointIntersections, r, func() (*geojson.FeatureCollection, error) {
		return c.next.FetchIntersections(ctx, r)
	})
}

func (c *Cached) FetchPopulationDensity(ctx context.Context) (*geojson.FeatureCollection, error) {
	return cached(c, EndpointPopulationHeatmap, nil, func() (*geojson.FeatureCollection, error) {
		return c.next.FetchPopulationDensity(ctx)
	})
}

func (c *Cached) FetchFilterOptions(ctx context.Context) (model.FilterOptions, error) {
	return cached(c, "filter-options", nil, func() (model.FilterOptions, error) {
		return c.next.FetchFilterOptions(ctx)
	})
}

func (c *Cached) FetchPointDensity(ctx context.Context, p model.LatLng) (float64, error) {
	return cached(c, EndpointDensity, p, func() (float64, error) {
		return c.next.FetchPointDensity(ctx, p)
	})
}
