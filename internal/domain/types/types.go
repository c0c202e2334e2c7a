// Package types contains the view types shared by the service and the API.
package types

import (
	"time"

	"github.com/okian/formcheck/internal/domain/exercise"
)

// SessionInfo describes an open analysis session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Exercise  string    `json:"exercise,omitempty"`
	Phase     string    `json:"phase"`
	RepCount  int       `json:"rep_count"`
	Frames    int       `json:"frames"`
	Queued    int       `json:"queued"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// AngleInfo is the public view of an angle range.
type AngleInfo struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Optimal float64 `json:"optimal"`
	AtDepth bool    `json:"at_depth"`
}

// ExerciseInfo is the public view of an exercise template.
type ExerciseInfo struct {
	Name           string              `json:"name"`
	DisplayName    string              `json:"display_name"`
	Angles         []AngleInfo         `json:"angles"`
	Checks         []string            `json:"checks"`
	CriticalPoints []string            `json:"critical_points"`
	CommonMistakes []string            `json:"common_mistakes"`
	Checklists     map[string][]string `json:"checklists"`
}

// NewExerciseInfo builds the public view of t.
func NewExerciseInfo(t exercise.Template) ExerciseInfo { //nolint:gocritic // templates are read-only values
	info := ExerciseInfo{
		Name:           t.Name,
		DisplayName:    t.DisplayName,
		Angles:         make([]AngleInfo, 0, len(t.Angles)),
		Checks:         make([]string, 0, len(t.Checks)),
		CriticalPoints: t.CriticalPoints,
		CommonMistakes: t.CommonMistakes,
		Checklists: map[string][]string{
			"preparation": t.Preparation,
			"execution":   t.Execution,
			"recovery":    t.Recovery,
		},
	}
	for _, r := range t.Angles {
		info.Angles = append(info.Angles, AngleInfo{
			Name:    r.Name,
			Min:     r.Min,
			Max:     r.Max,
			Optimal: r.Optimal,
			AtDepth: r.Scope == exercise.ScopeBottom,
		})
	}
	for _, c := range t.Checks {
		info.Checks = append(info.Checks, c.Name)
	}
	return info
}
