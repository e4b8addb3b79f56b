package polygonstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/sportmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/sportmap/internal/core/model"
)

func newRedisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return New(rc, time.Second), mr
}

func record(name string) model.SavedPolygon {
	return model.SavedPolygon{
		Name: name,
		Geometry: []model.LatLng{
			{Lat: 55.70, Lng: 37.50}, {Lat: 55.80, Lng: 37.50},
			{Lat: 55.80, Lng: 37.70}, {Lat: 55.70, Lng: 37.70},
		},
		Analytics: &model.PolygonAnalytics{
			AreasSquare: 1200.5,
			SportsKinds: []string{"football", "tennis"},
			Density:     3.25,
		},
		Areas: []model.SportArea{{
			ObjectID:       7,
			ObjectName:     "Arena",
			SportsAreaName: "Field 1",
			SportsAreaType: "field",
			SportKind:      "football",
			Availability:   model.AvailabilityDistrict,
			ObjectPoint:    model.LatLng{Lat: 55.75, Lng: 37.6},
		}},
	}
}

func stores(t *testing.T) map[string]*Store {
	rs, _ := newRedisStore(t)
	return map[string]*Store{"memory": NewMemory(), "redis": rs}
}

func TestSave_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Save(ctx, record("first")); err != nil {
				t.Fatalf("save first: %v", err)
			}
			want := record("second")
			if _, err := s.Save(ctx, want); err != nil {
				t.Fatalf("save second: %v", err)
			}

			got, err := s.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len=%d want 2", len(got))
			}
			if diff := cmp.Diff(want, got[len(got)-1]); diff != "" {
				t.Fatalf("last record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDelete_PreservesOrder(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 4; i++ {
				if _, err := s.Save(ctx, record(fmt.Sprintf("p%d", i))); err != nil {
					t.Fatalf("save %d: %v", i, err)
				}
			}
			out, err := s.Delete(ctx, 1)
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			var names []string
			for _, p := range out {
				names = append(names, p.Name)
			}
			if diff := cmp.Diff([]string{"p0", "p2", "p3"}, names); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
			listed, _ := s.List(ctx)
			if diff := cmp.Diff(out, listed); diff != "" {
				t.Fatalf("persisted list differs (-returned +listed):\n%s", diff)
			}
		})
	}
}

func TestDelete_OutOfRange(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	if _, err := s.Delete(ctx, 0); !errors.Is(err, model.ErrPrecondition) {
		t.Fatalf("err=%v want ErrPrecondition", err)
	}
	_, _ = s.Save(ctx, record("only"))
	if _, err := s.Delete(ctx, -1); !errors.Is(err, model.ErrPrecondition) {
		t.Fatalf("err=%v want ErrPrecondition", err)
	}
	if got, _ := s.List(ctx); len(got) != 1 {
		t.Fatalf("failed delete must not change the list, len=%d", len(got))
	}
}

func TestSave_Preconditions(t *testing.T) {
	cases := map[string]func(*model.SavedPolygon){
		"empty name":        func(p *model.SavedPolygon) { p.Name = "  " },
		"two vertices":      func(p *model.SavedPolygon) { p.Geometry = p.Geometry[:2] },
		"missing analytics": func(p *model.SavedPolygon) { p.Analytics = nil },
		"missing areas":     func(p *model.SavedPolygon) { p.Areas = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewMemory()
			p := record("x")
			mutate(&p)
			if _, err := s.Save(context.Background(), p); !errors.Is(err, model.ErrPrecondition) {
				t.Fatalf("err=%v want ErrPrecondition", err)
			}
		})
	}
}

func TestList_EmptyAndFixedKey(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	got, err := s.List(ctx)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty list=%v err=%v", got, err)
	}
	if _, err := s.Save(ctx, record("keyed")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != StorageKey {
		t.Fatalf("keys=%v want [%s]", keys, StorageKey)
	}
}

func TestList_CorruptPayload(t *testing.T) {
	s, mr := newRedisStore(t)
	if err := mr.Set(StorageKey, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.List(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestReplace(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, _ = s.Save(ctx, record("old"))

			out, err := s.Replace(ctx, []model.SavedPolygon{record("a"), record("b")})
			if err != nil {
				t.Fatalf("replace: %v", err)
			}
			if len(out) != 2 || out[0].Name != "a" {
				t.Fatalf("unexpected %v", out)
			}
			listed, err := s.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if diff := cmp.Diff(out, listed); diff != "" {
				t.Fatalf("stored list mismatch (-want +got):\n%s", diff)
			}

			bad := record("bad")
			bad.Analytics = nil
			if _, err := s.Replace(ctx, []model.SavedPolygon{bad}); !errors.Is(err, model.ErrPrecondition) {
				t.Fatalf("err=%v want ErrPrecondition", err)
			}
			cleared, err := s.Replace(ctx, nil)
			if err != nil || cleared == nil || len(cleared) != 0 {
				t.Fatalf("clear=%v err=%v", cleared, err)
			}
		})
	}
}

func TestReplace_EmptyDropsKey(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	if _, err := s.Save(ctx, record("a")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Replace(ctx, []model.SavedPolygon{}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if mr.Exists(StorageKey) {
		t.Fatalf("key %q must be deleted", StorageKey)
	}
	got, err := s.List(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("list after clear=%v err=%v", got, err)
	}
}
