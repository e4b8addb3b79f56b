// Package mapmode keeps the map's interaction modes and side-panel content
// consistent. Every mutation runs the cascade tables below, so conflicting
// interactions never coexist.
package mapmode

import (
	"fmt"
	"slices"
	"strings"
)

type Mode string

const (
	Marker             Mode = "marker"
	PopulationHeatmap  Mode = "population-heatmap"
	SportHeatmap       Mode = "sport-heatmap"
	PolygonDraw        Mode = "polygon-draw"
	PolygonSaving      Mode = "polygon-saving"
	ObjectIntersection Mode = "object-intersection"
	QuickAnalytics     Mode = "quick-analytics"
)

var allModes = []Mode{
	Marker, PopulationHeatmap, SportHeatmap, PolygonDraw,
	PolygonSaving, ObjectIntersection, QuickAnalytics,
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.TrimSpace(s))
	if slices.Contains(allModes, m) {
		return m, nil
	}
	return "", fmt.Errorf("unknown map mode %q", s)
}

type Content string

const (
	ObjectInfo            Content = "object-info"
	Analysis              Content = "analysis"
	PolygonSavingContent  Content = "polygon-saving"
	PolygonDashboard      Content = "polygon-dashboard"
	QuickAnalyticsContent Content = "quick-analytics"
)

var allContent = []Content{
	ObjectInfo, Analysis, PolygonSavingContent, PolygonDashboard, QuickAnalyticsContent,
}

func ParseContent(s string) (Content, error) {
	c := Content(strings.TrimSpace(s))
	if slices.Contains(allContent, c) {
		return c, nil
	}
	return "", fmt.Errorf("unknown map content %q", s)
}

// Snapshot is an immutable copy of the coordinator state.
type Snapshot struct {
	Modes   []Mode    `json:"modes"`
	Content []Content `json:"content"`
}

func (s Snapshot) HasMode(m Mode) bool                 { return slices.Contains(s.Modes, m) }
func (s Snapshot) HasContent(c Content) bool           { return slices.Contains(s.Content, c) }
func (s Snapshot) Equal(o Snapshot) bool               { return slices.Equal(s.Modes, o.Modes) && slices.Equal(s.Content, o.Content) }
func (s Snapshot) ModeToggled(m Mode, o Snapshot) bool { return s.HasMode(m) != o.HasMode(m) }

// Change is delivered to subscribers once per top-level operation.
type Change struct {
	Prev Snapshot
	Curr Snapshot
}

// Added reports modes present in Curr but not in Prev.
func (c Change) Added() []Mode {
	var out []Mode
	for _, m := range c.Curr.Modes {
		if !c.Prev.HasMode(m) {
			out = append(out, m)
		}
	}
	return out
}

// Removed reports modes present in Prev but not in Curr.
func (c Change) Removed() []Mode {
	var out []Mode
	for _, m := range c.Prev.Modes {
		if !c.Curr.HasMode(m) {
			out = append(out, m)
		}
	}
	return out
}

func (c Change) AddedContent() []Content {
	var out []Content
	for _, x := range c.Curr.Content {
		if !c.Prev.HasContent(x) {
			out = append(out, x)
		}
	}
	return out
}

func (c Change) RemovedContent() []Content {
	var out []Content
	for _, x := range c.Prev.Content {
		if !c.Curr.HasContent(x) {
			out = append(out, x)
		}
	}
	return out
}

type Listener func(Change)

// Coordinator is not safe for concurrent use; callers serialize access.
// Cascades may re-enter AddMode/RemoveMode and friends synchronously.
type Coordinator struct {
	modes   []Mode
	content []Content

	depth     int
	before    Snapshot
	listeners map[int]Listener
	nextID    int
}

func New() *Coordinator {
	return &Coordinator{listeners: map[int]Listener{}}
}

// Subscribe registers l and returns a function that removes it.
func (c *Coordinator) Subscribe(l Listener) func() {
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() { delete(c.listeners, id) }
}

func (c *Coordinator) Snapshot() Snapshot {
	return Snapshot{Modes: slices.Clone(c.modes), Content: slices.Clone(c.content)}
}

func (c *Coordinator) Modes() []Mode             { return slices.Clone(c.modes) }
func (c *Coordinator) Contents() []Content       { return slices.Clone(c.content) }
func (c *Coordinator) HasMode(m Mode) bool       { return slices.Contains(c.modes, m) }
func (c *Coordinator) HasContent(x Content) bool { return slices.Contains(c.content, x) }

func (c *Coordinator) AddMode(m Mode) {
	if c.HasMode(m) {
		return
	}
	c.begin()
	defer c.end()

	c.onAddMode(m)
	c.modes = append(c.modes, m)
}

func (c *Coordinator) RemoveMode(m Mode) {
	if !c.HasMode(m) {
		return
	}
	c.begin()
	defer c.end()

	c.modes = slices.DeleteFunc(c.modes, func(x Mode) bool { return x == m })
	c.onRemoveMode(m)
}

// AddContent of a mode-owned item adds its mode, which brings the content.
func (c *Coordinator) AddContent(x Content) {
	if c.HasContent(x) {
		return
	}
	c.begin()
	defer c.end()

	if m, ok := pairedMode(x); ok && !c.HasMode(m) {
		c.AddMode(m)
		return
	}
	c.onAddContent(x)
	c.content = append(c.content, x)
}

func (c *Coordinator) RemoveContent(x Content) {
	if !c.HasContent(x) {
		return
	}
	c.begin()
	defer c.end()

	c.content = slices.DeleteFunc(c.content, func(y Content) bool { return y == x })
	c.releaseModes([]Content{x})
}

func (c *Coordinator) ClearContent() {
	if len(c.content) == 0 {
		return
	}
	c.begin()
	defer c.end()

	dropped := c.content
	c.content = nil
	c.releaseModes(dropped)
}

// setContent replaces the content with exactly x.
func (c *Coordinator) setContent(x Content) {
	c.begin()
	defer c.end()

	dropped := slices.DeleteFunc(c.content, func(y Content) bool { return y == x })
	c.content = []Content{x}
	c.releaseModes(dropped)
}

// releaseModes removes the modes owning dropped content. The mode removal
// cascade finds its content already gone, so the recursion stops there.
func (c *Coordinator) releaseModes(dropped []Content) {
	for _, y := range dropped {
		if m, ok := pairedMode(y); ok {
			c.RemoveMode(m)
		}
	}
}

func pairedMode(x Content) (Mode, bool) {
	switch x {
	case PolygonSavingContent:
		return PolygonSaving, true
	case QuickAnalyticsContent:
		return QuickAnalytics, true
	}
	return "", false
}

// add mode cascade
func (c *Coordinator) onAddMode(m Mode) {
	switch m {
	case PolygonSaving:
		c.RemoveMode(Marker)
		c.RemoveMode(PolygonDraw)
		c.RemoveMode(QuickAnalytics)
		c.setContent(PolygonSavingContent)
	case Marker:
		c.RemoveMode(PolygonSaving)
		c.RemoveMode(PolygonDraw)
		c.RemoveMode(QuickAnalytics)
	case PolygonDraw:
		c.RemoveMode(PolygonSaving)
		c.RemoveMode(Marker)
		c.RemoveMode(QuickAnalytics)
	case QuickAnalytics:
		c.RemoveMode(PolygonSaving)
		c.RemoveMode(PolygonDraw)
		c.RemoveMode(Marker)
		c.setContent(QuickAnalyticsContent)
	}
}

// remove mode cascade
func (c *Coordinator) onRemoveMode(m Mode) {
	switch m {
	case PolygonSaving:
		c.RemoveContent(PolygonSavingContent)
	case QuickAnalytics:
		c.RemoveContent(QuickAnalyticsContent)
	}
}

// add content cascade
func (c *Coordinator) onAddContent(x Content) {
	switch x {
	case ObjectInfo, PolygonSavingContent, QuickAnalyticsContent:
		c.ClearContent()
	case PolygonDashboard:
		// scoped to the one conflicting item; siblings stay
		c.RemoveContent(ObjectInfo)
	}
}

func (c *Coordinator) begin() {
	if c.depth == 0 {
		c.before = c.Snapshot()
	}
	c.depth++
}

func (c *Coordinator) end() {
	c.depth--
	if c.depth > 0 {
		return
	}
	ch := Change{Prev: c.before, Curr: c.Snapshot()}
	if ch.Prev.Equal(ch.Curr) {
		return
	}
	for _, id := range c.listenerIDs() {
		if l, ok := c.listeners[id]; ok {
			l(ch)
		}
	}
}

// listeners run in subscription order
func (c *Coordinator) listenerIDs() []int {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
