package grading

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"domain-trust-grader/logging"
)

// maxRequestBody bounds POST /grades, which may carry a rendered page.
const maxRequestBody = 5 << 20

// States reported to collaborators alongside a report.
const (
	StateFresh       = "fresh"
	StateStale       = "stale"
	StateUnavailable = "unavailable"
)

// GradeRequest is the body of POST /grades.
type GradeRequest struct {
	Target  string `json:"target"`
	HTML    string `json:"html,omitempty"`
	Trigger string `json:"trigger,omitempty"`
}

// CachedResponse is the body of GET /grades/{domain}.
type CachedResponse struct {
	State       string       `json:"state"`
	Report      *GradeReport `json:"report,omitempty"`
	ExpiresHint *time.Time   `json:"expires_hint,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Handler exposes a Grader over HTTP.
type Handler struct {
	grader *Grader
	logger *slog.Logger
}

// NewHandler creates the HTTP surface of g.
func NewHandler(g *Grader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{grader: g, logger: logger}
}

// Router returns the routes of the service.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Post("/grades", h.postGrade)
	r.Get("/grades/{domain}", h.getGrade)
	r.Get("/healthz", h.healthz)

	return r
}

// postGrade handles POST /grades
func (h *Handler) postGrade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, CachedResponse{State: StateUnavailable, Error: "invalid request body"})
		return
	}

	trigger, err := ParseTrigger(req.Trigger)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, CachedResponse{State: StateUnavailable, Error: err.Error()})
		return
	}

	report, err := h.grader.Grade(r.Context(), Request{Target: req.Target, HTML: req.HTML, Trigger: trigger})
	switch {
	case errors.Is(err, ErrInvalidInput):
		respondJSON(w, http.StatusBadRequest, CachedResponse{State: StateUnavailable, Error: err.Error()})
		return
	case err != nil:
		// The client went away; nobody reads this.
		h.logger.Debug("grading abandoned", "request_id", middleware.GetReqID(r.Context()), logging.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// getGrade handles GET /grades/{domain}
func (h *Handler) getGrade(w http.ResponseWriter, r *http.Request) {
	entry, err := h.grader.Cached(r.Context(), chi.URLParam(r, "domain"))
	switch {
	case errors.Is(err, ErrInvalidInput):
		respondJSON(w, http.StatusBadRequest, CachedResponse{State: StateUnavailable, Error: err.Error()})
		return
	case errors.Is(err, ErrUnavailable):
		respondJSON(w, http.StatusNotFound, CachedResponse{State: StateUnavailable})
		return
	case err != nil:
		h.logger.Error("cache read failed", "request_id", middleware.GetReqID(r.Context()), logging.Error(err))
		respondJSON(w, http.StatusInternalServerError, CachedResponse{State: StateUnavailable, Error: "cache unavailable"})
		return
	}

	state := StateFresh
	if !h.grader.IsFresh(entry) {
		state = StateStale
	}
	respondJSON(w, http.StatusOK, CachedResponse{State: state, Report: &entry.Report, ExpiresHint: &entry.ExpiresHint})
}

// healthz handles GET /healthz
func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logging.Duration(time.Since(start)),
		)
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
