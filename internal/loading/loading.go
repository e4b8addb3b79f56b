// Package loading tracks the advisory loading indicators of a map session.
package loading

import (
	"slices"
	"sync"

	"github.com/mohammed-shakir/sportmap/internal/core/observability"
)

type Key string

const (
	Analytics Key = "analytics"
	Data      Key = "data"
	Download  Key = "download"
	Heatmap   Key = "heatmap"
	Map       Key = "map"
	Marker    Key = "marker"
)

var keys = []Key{Analytics, Data, Download, Heatmap, Map, Marker}

func Keys() []Key { return slices.Clone(keys) }

func ParseKey(s string) (Key, bool) {
	k := Key(s)
	return k, slices.Contains(keys, k)
}

// Flags is safe for concurrent use. A key is raised while it is Set or
// while any Hold on it is outstanding; each raised key contributes one to
// the map_loading gauge.
type Flags struct {
	mu   sync.Mutex
	set  map[Key]bool
	held map[Key]int
}

func New() *Flags {
	return &Flags{set: map[Key]bool{}, held: map[Key]int{}}
}

func (f *Flags) raised(k Key) bool { return f.set[k] || f.held[k] > 0 }

// apply runs change with f.mu held and moves the gauge on a transition.
func (f *Flags) apply(k Key, change func()) {
	was := f.raised(k)
	change()
	switch now := f.raised(k); {
	case now && !was:
		observability.AddLoading(string(k), 1)
	case was && !now:
		observability.AddLoading(string(k), -1)
	}
}

func (f *Flags) Set(k Key, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apply(k, func() { f.set[k] = v })
}

// Hold raises k until the returned func is called. Overlapping holders keep
// the key raised until the last one lets go; Set(k, false) does not lower a
// held key.
func (f *Flags) Hold(k Key) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apply(k, func() { f.held[k]++ })
	return sync.OnceFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apply(k, func() {
			if f.held[k] > 0 {
				f.held[k]--
			}
		})
	})
}

func (f *Flags) Get(k Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raised(k)
}

// IsShown reports whether any indicator is raised.
func (f *Flags) IsShown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.ContainsFunc(keys, f.raised)
}

// Snapshot returns every key with its current value.
func (f *Flags) Snapshot() map[Key]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[Key]bool, len(keys))
	for _, k := range keys {
		out[k] = f.raised(k)
	}
	return out
}

// Release lowers all flags and drops outstanding holds; called when the
// owning session goes away.
func (f *Flags) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.apply(k, func() {
			f.set[k] = false
			f.held[k] = 0
		})
	}
}
