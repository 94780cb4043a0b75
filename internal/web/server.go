// Package web is the HTTP and websocket transport of the view layer. Every
// mutating route maps to one app entry point and answers with JSON.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/finedu/internal/app"
	"github.com/p-n-ai/finedu/internal/catalog"
	"github.com/p-n-ai/finedu/internal/generator"
	"github.com/p-n-ai/finedu/internal/platform/metrics"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds dependencies for the server.
type Config struct {
	App     *app.App
	Ready   HealthChecker    // optional, checked by /readyz
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger
}

// Server routes requests to the app.
type Server struct {
	app     *app.App
	ready   HealthChecker
	metrics *metrics.Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates the server and registers its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:     cfg.App,
		ready:   cfg.Ready,
		metrics: cfg.Metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /ws", s.handleStream)

	s.mux.HandleFunc("POST /api/courses/{id}/select", s.handleSelectCourse)
	s.mux.HandleFunc("POST /api/navigation/back", s.handleBack)
	s.mux.HandleFunc("POST /api/quiz/start", s.handleStartQuiz)
	s.mux.HandleFunc("POST /api/quiz/complete", s.handleCompleteQuiz)
	s.mux.HandleFunc("POST /api/goals", s.handleAddGoal)
	s.mux.HandleFunc("POST /api/goals/{id}/toggle", s.handleToggleGoal)
	s.mux.HandleFunc("POST /api/courses", s.handleRequestCourse)
	s.mux.HandleFunc("POST /api/avatar/generate", s.handleGenerateAvatar)
	s.mux.HandleFunc("PUT /api/avatar", s.handleSaveAvatar)
	s.mux.HandleFunc("GET /api/avatar", s.handleAvatar)
	s.mux.HandleFunc("PUT /api/theme", s.handleChangeTheme)
	s.mux.HandleFunc("GET /api/points/export.xlsx", s.handleExport)
}

// Handler returns the routes wrapped in request id, logging and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		_, route := s.mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, rec.status, elapsed)
		}
		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"request_id", id,
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrade reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps app, catalog and generator errors to status codes. The body
// carries the message shown to the user.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", w.Header().Get(RequestIDHeader),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func errorStatus(err error) (int, string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Msg
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, app.ErrInvalidScore),
		errors.Is(err, app.ErrEmptyText),
		errors.Is(err, app.ErrInvalidAvatar),
		errors.Is(err, catalog.ErrEmptyTopic):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, catalog.ErrDuplicateTopic):
		return http.StatusConflict, catalog.DuplicateNotice
	case catalog.IsGenerationError(err):
		return http.StatusBadGateway, app.UserMessage(err)
	case errors.Is(err, generator.ErrNoImage),
		errors.Is(err, generator.ErrInvalidCourse):
		return http.StatusBadGateway, app.UserMessage(err)
	case errors.Is(err, app.ErrAvatarUnavailable),
		errors.Is(err, generator.ErrUnavailable),
		errors.Is(err, catalog.ErrStopped):
		return http.StatusServiceUnavailable, app.UserMessage(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
