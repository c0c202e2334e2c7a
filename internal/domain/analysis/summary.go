package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/formcheck/internal/domain/model"
)

const topBodyParts = 3

// BodyPartCount is how often a body part drew corrective feedback.
type BodyPartCount struct {
	BodyPart string `json:"body_part"`
	Count    int    `json:"count"`
}

// Summary aggregates the session history.
type Summary struct {
	Exercise    string          `json:"exercise"`
	Frames      int             `json:"frames"`
	Reps        int             `json:"reps"`
	MeanScore   float64         `json:"mean_score"`
	MinScore    float64         `json:"min_score"`
	MaxScore    float64         `json:"max_score"`
	StdDevScore float64         `json:"stddev_score"`
	TopIssues   []BodyPartCount `json:"top_issues"`
}

// AverageFormScore returns the arithmetic mean of the history's form scores,
// or 0 when the history is empty.
func (e *Engine) AverageFormScore() float64 {
	return meanScore(e.History())
}

// Summary reports score statistics and the most frequently corrected body
// parts for the current history.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	hist := e.history.List()
	s := Summary{Frames: len(hist), TopIssues: []BodyPartCount{}}
	if e.template != nil {
		s.Exercise = e.template.Name
	}
	if e.tracker != nil {
		s.Reps = e.tracker.RepCount()
	}
	e.mu.Unlock()

	if len(hist) == 0 {
		return s
	}

	scores := scoresOf(hist)
	s.MeanScore = stat.Mean(scores, nil)
	s.MinScore = floats.Min(scores)
	s.MaxScore = floats.Max(scores)
	if len(scores) > 1 {
		s.StdDevScore = stat.StdDev(scores, nil)
	}
	s.TopIssues = topIssues(hist, topBodyParts)
	return s
}

func meanScore(hist []model.ExerciseAnalysis) float64 {
	if len(hist) == 0 {
		return 0
	}
	return stat.Mean(scoresOf(hist), nil)
}

func scoresOf(hist []model.ExerciseAnalysis) []float64 {
	scores := make([]float64, len(hist))
	for i, a := range hist {
		scores[i] = a.FormScore
	}
	return scores
}

func topIssues(hist []model.ExerciseAnalysis, n int) []BodyPartCount {
	counts := make(map[string]int)
	for _, a := range hist {
		for _, f := range a.Feedback {
			if f.Kind == model.KindSuccess {
				continue
			}
			counts[f.BodyPart]++
		}
	}
	out := make([]BodyPartCount, 0, len(counts))
	for part, c := range counts {
		out = append(out, BodyPartCount{BodyPart: part, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].BodyPart < out[j].BodyPart
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
