// Package polygonstore persists the ordered list of saved polygons under a
// single key. Every save or delete rewrites the whole list.
package polygonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/core/observability"
)

const StorageKey = "polygon-storage"

// KV is the minimal key-value surface the store needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
}

type Store struct {
	kv        KV
	opTimeout time.Duration

	mu sync.Mutex // serializes writers in this process
}

func New(kv KV, opTimeout time.Duration) *Store {
	return &Store{kv: kv, opTimeout: opTimeout}
}

// NewMemory returns a store backed by process memory.
func NewMemory() *Store {
	return New(&memKV{data: map[string][]byte{}}, 0)
}

func (s *Store) List(ctx context.Context) (out []model.SavedPolygon, err error) {
	defer func() { observability.ObservePolygonStoreOp("list", err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	b, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read saved polygons: %w", err)
	}
	if !ok {
		return []model.SavedPolygon{}, nil
	}
	return decode(b)
}

// Save appends p and returns the new list.
func (s *Store) Save(ctx context.Context, p model.SavedPolygon) (out []model.SavedPolygon, err error) {
	defer func() { observability.ObservePolygonStoreOp("save", err) }()
	if err := Validate(p); err != nil {
		return nil, err
	}
	return s.update(ctx, func(list []model.SavedPolygon) ([]model.SavedPolygon, error) {
		return append(list, p), nil
	})
}

// Delete removes the record at index, keeping the others in order.
func (s *Store) Delete(ctx context.Context, index int) (out []model.SavedPolygon, err error) {
	defer func() { observability.ObservePolygonStoreOp("delete", err) }()
	return s.update(ctx, func(list []model.SavedPolygon) ([]model.SavedPolygon, error) {
		if index < 0 || index >= len(list) {
			return nil, fmt.Errorf("delete index %d of %d: %w", index, len(list), model.ErrPrecondition)
		}
		return append(list[:index:index], list[index+1:]...), nil
	})
}

// Replace overwrites the list, e.g. when a client restores an export. It
// does not depend on the stored value, so it writes without a read. An empty
// list drops the key.
func (s *Store) Replace(ctx context.Context, list []model.SavedPolygon) (out []model.SavedPolygon, err error) {
	defer func() { observability.ObservePolygonStoreOp("replace", err) }()
	for i, p := range list {
		if err := Validate(p); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if len(list) == 0 {
		if err := s.kv.Del(ctx, StorageKey); err != nil {
			return nil, fmt.Errorf("clear saved polygons: %w", err)
		}
		return []model.SavedPolygon{}, nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode saved polygons: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, b, 0); err != nil {
		return nil, fmt.Errorf("write saved polygons: %w", err)
	}
	return list, nil
}

// Validate enforces the save preconditions.
func Validate(p model.SavedPolygon) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("polygon name is empty: %w", model.ErrPrecondition)
	case len(p.Geometry) < 3:
		return fmt.Errorf("polygon has %d vertices: %w", len(p.Geometry), model.ErrPrecondition)
	case p.Analytics == nil:
		return fmt.Errorf("polygon analytics missing: %w", model.ErrPrecondition)
	case p.Areas == nil:
		return fmt.Errorf("polygon areas missing: %w", model.ErrPrecondition)
	}
	return nil
}

func (s *Store) update(ctx context.Context, fn func([]model.SavedPolygon) ([]model.SavedPolygon, error)) ([]model.SavedPolygon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result []model.SavedPolygon
	err := s.kv.Update(ctx, StorageKey, func(old []byte) ([]byte, error) {
		list := []model.SavedPolygon{}
		if old != nil {
			var err error
			if list, err = decode(old); err != nil {
				return nil, err
			}
		}
		next, err := fn(list)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode saved polygons: %w", err)
		}
		result = next
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func decode(b []byte) ([]model.SavedPolygon, error) {
	out := []model.SavedPolygon{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode saved polygons: %w", err)
	}
	return out, nil
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) Update(_ context.Context, key string, fn func([]byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.data[key])
	if err != nil {
		return err
	}
	m.data[key] = next
	return nil
}
