package analysis

import "github.com/okian/formcheck/internal/domain/model"

// History stores the analyses produced by one engine, oldest first.
type History interface {
	Append(a model.ExerciseAnalysis)
	List() []model.ExerciseAnalysis
	Len() int
	Clear()
}

// sliceHistory keeps every analysis in memory. Engines use it unless a
// bounded store is supplied.
type sliceHistory struct {
	items []model.ExerciseAnalysis
}

func (h *sliceHistory) Append(a model.ExerciseAnalysis) { h.items = append(h.items, a) }

func (h *sliceHistory) List() []model.ExerciseAnalysis {
	out := make([]model.ExerciseAnalysis, len(h.items))
	for i, a := range h.items {
		out[i] = a.Clone()
	}
	return out
}

func (h *sliceHistory) Len() int { return len(h.items) }

func (h *sliceHistory) Clear() { h.items = nil }
