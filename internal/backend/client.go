// Package backend talks to the sports analytics backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/core/observability"
	"github.com/mohammed-shakir/sportmap/internal/retry"
)

const (
	EndpointPopulationHeatmap = "/GetGeoJsonDensityHeatmap"
	EndpointSportObjectsGeo   = "/GetGeoJsonSportsObjects"
	EndpointFilterObjects     = "/FilterObjects"
	EndpointFilterAreas       = "/FilterAreas"
	EndpointPolygonAnalytics  = "/PolygonAnalytics"
	EndpointPolygonDashboard  = "/PolygonAnalyticsDashboard"
	EndpointIntersections     = "/ListIntersections"
	EndpointDensity           = "/GetDensity"
	EndpointObjectNames       = "/ListObjectNames"
	EndpointSportKinds        = "/ListSportKinds"
	EndpointSportAreaTypes    = "/ListSportAreaTypes"
	EndpointSportAreaNames    = "/ListSportAreaNames"
	EndpointOrganizationNames = "/ListDepartmentalOrganizationNames"
)

// API is the set of reads the map session needs.
type API interface {
	FetchObjects(ctx context.Context, f model.FilterRequest) ([]model.SportObject, error)
	FetchSportObjectsGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error)
	FetchFilteredAreas(ctx context.Context, f model.FilterRequest) ([]model.SportArea, error)
	FetchPolygonAnalytics(ctx context.Context, r model.AnalyticsRequest) (model.PolygonAnalytics, error)
	FetchFullPolygonAnalytics(ctx context.Context, r model.AnalyticsRequest) (model.FullPolygonAnalytics, error)
	FetchIntersections(ctx context.Context, r model.IntersectionRequest) (*geojson.FeatureCollection, error)
	FetchPopulationDensity(ctx context.Context) (*geojson.FeatureCollection, error)
	FetchFilterOptions(ctx context.Context) (model.FilterOptions, error)
	FetchPointDensity(ctx context.Context, p model.LatLng) (float64, error)
}

type Client struct {
	logger   *slog.Logger
	client   *http.Client
	base     *url.URL
	policy   retry.Policy
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, baseURL string, policy retry.Policy) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q needs scheme and host", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if policy == nil {
		policy = retry.None{}
	}
	return &Client{
		logger:   logger,
		client:   client,
		base:     u,
		policy:   policy,
		startNow: time.Now,
	}, nil
}

var _ API = (*Client)(nil)

type geoJSONDTO struct {
	GeoJSON string `json:"geoJson"`
}

type intersectionsDTO struct {
	Intersections []struct {
		GeoJSON string `json:"geojson"`
	} `json:"intersections"`
}

type densityDTO struct {
	Density float64 `json:"density"`
}

func (c *Client) FetchObjects(ctx context.Context, f model.FilterRequest) ([]model.SportObject, error) {
	var out []model.SportObject
	if err := c.call(ctx, http.MethodPost, EndpointFilterObjects, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchSportObjectsGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	return c.fetchEmbeddedGeoJSON(ctx, EndpointSportObjectsGeo)
}

func (c *Client) FetchPopulationDensity(ctx context.Context) (*geojson.FeatureCollection, error) {
	return c.fetchEmbeddedGeoJSON(ctx, EndpointPopulationHeatmap)
}

func (c *Client) FetchFilteredAreas(ctx context.Context, f model.FilterRequest) ([]model.SportArea, error) {
	var out []model.SportArea
	if err := c.call(ctx, http.MethodPost, EndpointFilterAreas, f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchPolygonAnalytics(ctx context.Context, r model.AnalyticsRequest) (model.PolygonAnalytics, error) {
	var out model.PolygonAnalytics
	err := c.call(ctx, http.MethodPost, EndpointPolygonAnalytics, r, &out)
	return out, err
}

func (c *Client) FetchFullPolygonAnalytics(ctx context.Context, r model.AnalyticsRequest) (model.FullPolygonAnalytics, error) {
	var out model.FullPolygonAnalytics
	err := c.call(ctx, http.MethodPost, EndpointPolygonDashboard, r, &out)
	return out, err
}

// FetchIntersections returns the first intersection collection; the backend
// computes one per requested tier and only a single tier is ever sent.
func (c *Client) FetchIntersections(ctx context.Context, r model.IntersectionRequest) (*geojson.FeatureCollection, error) {
	var dto intersectionsDTO
	if err := c.call(ctx, http.MethodPost, EndpointIntersections, r, &dto); err != nil {
		return nil, err
	}
	if len(dto.Intersections) == 0 {
		return geojson.NewFeatureCollection(), nil
	}
	fc, err := geojson.UnmarshalFeatureCollection([]byte(dto.Intersections[0].GeoJSON))
	if err != nil {
		return nil, fmt.Errorf("decode %s geojson: %w", EndpointIntersections, err)
	}
	return fc, nil
}

func (c *Client) FetchPointDensity(ctx context.Context, p model.LatLng) (float64, error) {
	var dto densityDTO
	if err := c.call(ctx, http.MethodPost, EndpointDensity, struct {
		Point model.LatLng `json:"point"`
	}{p}, &dto); err != nil {
		return 0, err
	}
	return dto.Density, nil
}

// FetchFilterOptions loads every variant list concurrently; the
// availability labels are static.
func (c *Client) FetchFilterOptions(ctx context.Context) (model.FilterOptions, error) {
	out := model.FilterOptions{AvailabilityLabels: model.AvailabilityLabels()}
	g, gctx := errgroup.WithContext(ctx)
	lists := []struct {
		endpoint string
		dst      *[]string
	}{
		{EndpointObjectNames, &out.ObjectNames},
		{EndpointSportKinds, &out.SportKinds},
		{EndpointSportAreaTypes, &out.SportsAreaTypes},
		{EndpointSportAreaNames, &out.SportsAreaNames},
		{EndpointOrganizationNames, &out.OrganizationNames},
	}
	for _, l := range lists {
		g.Go(func() error {
			return c.call(gctx, http.MethodGet, l.endpoint, nil, l.dst)
		})
	}
	if err := g.Wait(); err != nil {
		return model.FilterOptions{}, err
	}
	return out, nil
}

func (c *Client) fetchEmbeddedGeoJSON(ctx context.Context, endpoint string) (*geojson.FeatureCollection, error) {
	var dto geoJSONDTO
	if err := c.call(ctx, http.MethodGet, endpoint, nil, &dto); err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection([]byte(dto.GeoJSON))
	if err != nil {
		return nil, fmt.Errorf("decode %s geojson: %w", endpoint, err)
	}
	return fc, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, body, dst any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
	}
	return c.policy.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, method, endpoint, payload, dst)
	})
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, dst any) error {
	u := *c.base
	u.Path = c.base.Path + endpoint

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.startNow()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency(endpoint, dur.Seconds())
	c.logger.DebugContext(ctx, "backend call", "endpoint", endpoint, "status", resp.StatusCode, "duration", dur.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		err := fmt.Errorf("%s upstream status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			err = fmt.Errorf("%w: %w", err, retry.ErrPermanent)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
