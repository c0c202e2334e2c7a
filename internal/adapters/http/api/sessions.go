package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/types"
)

// maxBodyBytes bounds JSON request bodies, images included.
const maxBodyBytes = 8 << 20

// SessionDependencies defines the session lifecycle operations.
type SessionDependencies interface {
	CreateSession(ctx context.Context, exercise string) (types.SessionInfo, error)
	SetExercise(ctx context.Context, id, exercise string) (types.SessionInfo, error)
	Session(ctx context.Context, id string) (types.SessionInfo, error)
	Sessions(ctx context.Context) []types.SessionInfo
	Reset(ctx context.Context, id string) (types.SessionInfo, error)
	CloseSession(ctx context.Context, id string) error
	History(ctx context.Context, id string, limit int) ([]model.ExerciseAnalysis, error)
	Summary(ctx context.Context, id string) (analysis.Summary, error)
}

// SessionHandler handles session requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// exerciseRequest is the body of POST /sessions and PUT /sessions/{id}/exercise.
type exerciseRequest struct {
	Exercise string `json:"exercise"`
}

type sessionListResponse struct {
	Sessions []types.SessionInfo `json:"sessions"`
}

type historyResponse struct {
	SessionID string                   `json:"session_id"`
	Count     int                      `json:"count"`
	Analyses  []model.ExerciseAnalysis `json:"analyses"`
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is
// when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// HandleCreate handles POST /sessions. The exercise is optional.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var req exerciseRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	info, err := h.deps.CreateSession(r.Context(), strings.TrimSpace(req.Exercise))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

// HandleList handles GET /sessions.
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: h.deps.Sessions(r.Context())})
}

// HandleGet handles GET /sessions/{id}.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Session(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleClose handles DELETE /sessions/{id}.
func (h *SessionHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CloseSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetExercise handles PUT /sessions/{id}/exercise.
func (h *SessionHandler) HandleSetExercise(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_exercise"
	var req exerciseRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Exercise) == "" {
		writeDomainError(w, WrapKind(op, ErrBadRequest, errors.New("missing exercise")))
		return
	}
	info, err := h.deps.SetExercise(r.Context(), mux.Vars(r)["id"], req.Exercise)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleReset handles POST /sessions/{id}/reset.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleHistory handles GET /sessions/{id}/history?limit=N.
func (h *SessionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.history"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeDomainError(w, WrapKind(op, ErrBadRequest, errors.New("invalid limit; must be a non-negative integer")))
			return
		}
		limit = n
	}
	id := mux.Vars(r)["id"]
	hist, err := h.deps.History(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Count: len(hist), Analyses: hist})
}

// HandleSummary handles GET /sessions/{id}/summary.
func (h *SessionHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
