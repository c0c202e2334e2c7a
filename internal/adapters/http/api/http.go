// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/formcheck/internal/adapters/mq/queue"
	service "github.com/okian/formcheck/internal/app"
	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	CreateSession(ctx context.Context, exercise string) (types.SessionInfo, error)
	SetExercise(ctx context.Context, id, exercise string) (types.SessionInfo, error)
	Session(ctx context.Context, id string) (types.SessionInfo, error)
	Sessions(ctx context.Context) []types.SessionInfo
	Reset(ctx context.Context, id string) (types.SessionInfo, error)
	CloseSession(ctx context.Context, id string) error

	// AnalyzeFrame analyzes a frame before responding; SubmitFrame queues it.
	AnalyzeFrame(ctx context.Context, id string, f pose.Frame) (model.ExerciseAnalysis, error)
	SubmitFrame(ctx context.Context, id string, f pose.Frame) error

	History(ctx context.Context, id string, limit int) ([]model.ExerciseAnalysis, error)
	Summary(ctx context.Context, id string) (analysis.Summary, error)

	Exercises(ctx context.Context) []types.ExerciseInfo
	Exercise(ctx context.Context, name string) (types.ExerciseInfo, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	exerciseHandler *ExerciseHandler
	sessionHandler  *SessionHandler
	frameHandler    *FrameHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		exerciseHandler: NewExerciseHandler(deps),
		sessionHandler:  NewSessionHandler(deps),
		frameHandler:    NewFrameHandler(deps),
	}
}

// Register attaches all HTTP routes to r. Route names double as the
// endpoint label of the request metrics.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.Use(MetricsMiddleware)

	r.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet).Name("stats")

	r.HandleFunc("/exercises", s.exerciseHandler.HandleList).Methods(http.MethodGet).Name("exercises")
	r.HandleFunc("/exercises/{name}", s.exerciseHandler.HandleGet).Methods(http.MethodGet).Name("exercise")

	r.HandleFunc("/sessions", s.sessionHandler.HandleCreate).Methods(http.MethodPost).Name("create-session")
	r.HandleFunc("/sessions", s.sessionHandler.HandleList).Methods(http.MethodGet).Name("list-sessions")
	r.HandleFunc("/sessions/{id}", s.sessionHandler.HandleGet).Methods(http.MethodGet).Name("get-session")
	r.HandleFunc("/sessions/{id}", s.sessionHandler.HandleClose).Methods(http.MethodDelete).Name("close-session")
	r.HandleFunc("/sessions/{id}/exercise", s.sessionHandler.HandleSetExercise).Methods(http.MethodPut).Name("set-exercise")
	r.HandleFunc("/sessions/{id}/reset", s.sessionHandler.HandleReset).Methods(http.MethodPost).Name("reset-session")
	r.HandleFunc("/sessions/{id}/history", s.sessionHandler.HandleHistory).Methods(http.MethodGet).Name("history")
	r.HandleFunc("/sessions/{id}/summary", s.sessionHandler.HandleSummary).Methods(http.MethodGet).Name("summary")

	r.HandleFunc("/sessions/{id}/frames", s.frameHandler.HandleAnalyze).Methods(http.MethodPost).Name("analyze-frame")
	r.HandleFunc("/sessions/{id}/stream", s.frameHandler.HandleSubmit).Methods(http.MethodPost).Name("submit-frame")
}

// Handler returns a router with every API route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps service errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, analysis.ErrUnsupportedExercise):
		writeError(w, http.StatusUnprocessableEntity, "unsupported_exercise", err)
	case errors.Is(err, analysis.ErrExerciseNotSet):
		writeError(w, http.StatusConflict, "exercise_not_set", err)
	case errors.Is(err, analysis.ErrNotInitialized), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_initialized", err)
	case errors.Is(err, analysis.ErrPoseUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "pose_unavailable", err)
	case errors.Is(err, service.ErrDuplicateFrame):
		writeError(w, http.StatusConflict, "duplicate_frame", err)
	case errors.Is(err, service.ErrTooManySessions):
		writeError(w, http.StatusTooManyRequests, "too_many_sessions", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, queue.ErrClosed):
		writeError(w, http.StatusGone, "session_closed", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "canceled", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
