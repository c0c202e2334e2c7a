package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/types"
)

// ExerciseDependencies defines the catalog lookups.
type ExerciseDependencies interface {
	Exercises(ctx context.Context) []types.ExerciseInfo
	Exercise(ctx context.Context, name string) (types.ExerciseInfo, error)
}

// ExerciseHandler serves the exercise catalog.
type ExerciseHandler struct {
	deps ExerciseDependencies
}

// NewExerciseHandler creates a new exercise handler.
func NewExerciseHandler(deps ExerciseDependencies) *ExerciseHandler {
	return &ExerciseHandler{deps: deps}
}

type exerciseListResponse struct {
	Exercises []types.ExerciseInfo `json:"exercises"`
}

// HandleList handles GET /exercises.
func (h *ExerciseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, exerciseListResponse{Exercises: h.deps.Exercises(r.Context())})
}

// HandleGet handles GET /exercises/{name}. Aliases resolve to the canonical
// exercise.
func (h *ExerciseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Exercise(r.Context(), mux.Vars(r)["name"])
	if errors.Is(err, analysis.ErrUnsupportedExercise) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
