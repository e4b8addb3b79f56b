// Package router maps the session HTTP API onto the session manager and
// the saved-polygon store.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/loading"
	"github.com/mohammed-shakir/sportmap/internal/mapmode"
	"github.com/mohammed-shakir/sportmap/internal/polygonstore"
	"github.com/mohammed-shakir/sportmap/internal/session"
	"github.com/mohammed-shakir/sportmap/internal/view"
)

const maxBody = 1 << 20

type Handlers struct {
	logger   *slog.Logger
	sessions *session.Manager
	polygons *polygonstore.Store
}

func New(logger *slog.Logger, sessions *session.Manager, polygons *polygonstore.Store) *Handlers {
	return &Handlers{logger: logger, sessions: sessions, polygons: polygons}
}

// Routes mounts the session and polygon endpoints on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/sessions", h.createSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.deleteSession)

		r.Put("/modes/{mode}", h.withMode((*session.Session).AddMode))
		r.Delete("/modes/{mode}", h.withMode((*session.Session).RemoveMode))
		r.Put("/content/{content}", h.withContent((*session.Session).AddContent))
		r.Delete("/content/{content}", h.withContent((*session.Session).RemoveContent))
		r.Delete("/content", h.mutate(func(s *session.Session, _ *http.Request) error {
			s.ClearContent()
			return nil
		}))

		r.Put("/selection", h.mutate(putSelection))
		r.Delete("/selection", h.mutate(func(s *session.Session, _ *http.Request) error {
			s.ClearSelection()
			return nil
		}))
		r.Put("/filter", h.mutate(putFilter))
		r.Delete("/filter", h.mutate(func(s *session.Session, _ *http.Request) error {
			s.ClearFilter()
			return nil
		}))
		r.Put("/quick-analytics", h.mutate(putQuickAnalytics))
		r.Put("/dashboard-width", h.mutate(putDashboardWidth))
		r.Put("/awaiting-polygon", h.mutate(putAwaiting))
		r.Put("/loading/{key}", h.mutate(putLoading))

		r.Post("/open-full", h.mutate(func(s *session.Session, r *http.Request) error {
			return s.OpenFull(r.Context())
		}))
		r.Post("/objects/{objectID}/open-full", h.mutate(openObject))
		r.Post("/polygons", h.savePolygon)

		r.Get("/view", h.getView)
		r.Get("/filter-options", h.filterOptions)
		r.Get("/point-density", h.pointDensity)
	})

	r.Get("/polygons", h.listPolygons)
	r.Put("/polygons", h.replacePolygons)
	r.Delete("/polygons/{index}", h.deletePolygon)
}

type sessionResponse struct {
	State session.State `json:"state"`
	View  view.View     `json:"view"`
}

func snapshot(s *session.Session) sessionResponse {
	return sessionResponse{State: s.State(), View: s.View()}
}

func (h *Handlers) createSession(w http.ResponseWriter, _ *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
		sessionResponse
	}{ID: s.ID(), sessionResponse: snapshot(s)})
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, snapshot(s))
	}
}

func (h *Handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getView(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.View())
	}
}

// mutate resolves the session, applies fn and answers with the new state.
func (h *Handlers) mutate(fn func(*session.Session, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}
		if err := fn(s, r); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot(s))
	}
}

func (h *Handlers) withMode(op func(*session.Session, mapmode.Mode)) http.HandlerFunc {
	return h.mutate(func(s *session.Session, r *http.Request) error {
		m, err := mapmode.ParseMode(chi.URLParam(r, "mode"))
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		op(s, m)
		return nil
	})
}

func (h *Handlers) withContent(op func(*session.Session, mapmode.Content)) http.HandlerFunc {
	return h.mutate(func(s *session.Session, r *http.Request) error {
		c, err := mapmode.ParseContent(chi.URLParam(r, "content"))
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		op(s, c)
		return nil
	})
}

func putSelection(s *session.Session, r *http.Request) error {
	var body model.PolygonPoints
	if err := decode(r, &body); err != nil {
		return err
	}
	return s.SetSelection(body.Points)
}

func putFilter(s *session.Session, r *http.Request) error {
	var body model.FilterRequest
	if err := decode(r, &body); err != nil {
		return err
	}
	return s.SetFilter(body)
}

func putQuickAnalytics(s *session.Session, r *http.Request) error {
	var body struct {
		Center *model.LatLng `json:"center"`
		Radius *float64      `json:"radius"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	if body.Center == nil || body.Radius == nil {
		return fmt.Errorf("%w: center and radius are required", model.ErrInvalidInput)
	}
	return s.SetQuickAnalytics(*body.Center, *body.Radius)
}

func putDashboardWidth(s *session.Session, r *http.Request) error {
	var body struct {
		Width int `json:"width"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	return s.SetDashboardWidth(body.Width)
}

func putAwaiting(s *session.Session, r *http.Request) error {
	var body struct {
		Awaiting bool `json:"awaiting"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	s.SetAwaitingPolygon(body.Awaiting)
	return nil
}

func putLoading(s *session.Session, r *http.Request) error {
	k, ok := loading.ParseKey(chi.URLParam(r, "key"))
	if !ok {
		return fmt.Errorf("%w: unknown loading key %q (want one of %v)", model.ErrInvalidInput, chi.URLParam(r, "key"), loading.Keys())
	}
	var body struct {
		Value bool `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	s.SetLoading(k, body.Value)
	return nil
}

func openObject(s *session.Session, r *http.Request) error {
	id, err := strconv.ParseInt(chi.URLParam(r, "objectID"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: object id: %w", model.ErrInvalidInput, err)
	}
	return s.OpenObjectInfo(r.Context(), id)
}

func (h *Handlers) savePolygon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := s.SavePolygon(r.Context(), body.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (h *Handlers) filterOptions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	opts, err := s.FilterOptions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handlers) pointDensity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := parsePoint(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := s.PointDensity(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Point   model.LatLng `json:"point"`
		Density float64      `json:"density"`
	}{p, d})
}

func (h *Handlers) listPolygons(w http.ResponseWriter, r *http.Request) {
	list, err := h.polygons.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) replacePolygons(w http.ResponseWriter, r *http.Request) {
	var body []model.SavedPolygon
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := h.polygons.Replace(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) deletePolygon(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: index: %w", model.ErrInvalidInput, err))
		return
	}
	list, err := h.polygons.Delete(r.Context(), idx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func parsePoint(r *http.Request) (model.LatLng, error) {
	q := r.URL.Query()
	lat, err := parseFloat(q.Get("lat"))
	if err != nil {
		return model.LatLng{}, fmt.Errorf("%w: lat: %w", model.ErrInvalidInput, err)
	}
	lng, err := parseFloat(q.Get("lng"))
	if err != nil {
		return model.LatLng{}, fmt.Errorf("%w: lng: %w", model.ErrInvalidInput, err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.LatLng{}, fmt.Errorf("%w: point out of range", model.ErrInvalidInput)
	}
	return model.LatLng{Lat: lat, Lng: lng}, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: body: %w", model.ErrInvalidInput, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPrecondition):
		return http.StatusConflict
	default:
		// backend or store failure
		return http.StatusBadGateway
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.WarnContext(r.Context(), "request failed", "err", err, "path", r.URL.Path)
	}
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
