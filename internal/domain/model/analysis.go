// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"slices"
	"time"
)

// Phase is where in a repetition's movement cycle a frame falls.
type Phase int

// Phases of a repetition, in cycle order.
const (
	PhasePreparation Phase = iota
	PhaseExecution
	PhaseRecovery
)

var phaseNames = [...]string{"preparation", "execution", "recovery"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(phaseNames) {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	i, err := parseEnum(string(b), phaseNames[:])
	if err != nil {
		return fmt.Errorf("phase: %w", err)
	}
	*p = Phase(i)
	return nil
}

// Severity grades a feedback item.
type Severity int

// Severities from least to most urgent.
const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

var severityNames = [...]string{"low", "medium", "high"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// Lower returns the next lower severity; low stays low.
func (s Severity) Lower() Severity {
	if s <= SeverityLow {
		return SeverityLow
	}
	return s - 1
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(severityNames) {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	i, err := parseEnum(string(b), severityNames[:])
	if err != nil {
		return fmt.Errorf("severity: %w", err)
	}
	*s = Severity(i)
	return nil
}

// Kind classifies a feedback item.
type Kind int

// Feedback kinds.
const (
	KindError Kind = iota
	KindWarning
	KindSuccess
)

var kindNames = [...]string{"error", "warning", "success"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	i, err := parseEnum(string(b), kindNames[:])
	if err != nil {
		return fmt.Errorf("kind: %w", err)
	}
	*k = Kind(i)
	return nil
}

func parseEnum(s string, names []string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown value %q", s)
}

// FormFeedback is one observation about a body part.
type FormFeedback struct {
	BodyPart   string   `json:"body_part"`
	Severity   Severity `json:"severity"`
	Kind       Kind     `json:"kind"`
	Message    string   `json:"message"`
	Correction string   `json:"correction,omitempty"`
}

// ExerciseAnalysis is the result of analyzing one frame. It is not mutated
// after creation.
type ExerciseAnalysis struct {
	ID              string         `json:"id"`
	FrameID         string         `json:"frame_id,omitempty"`
	Exercise        string         `json:"exercise"`
	FormScore       float64        `json:"form_score"`
	Phase           Phase          `json:"phase"`
	RepCount        int            `json:"rep_count"`
	RepCompleted    bool           `json:"rep_completed"`
	Feedback        []FormFeedback `json:"feedback"`
	Recommendations []string       `json:"recommendations"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Clone returns a copy that shares no slices with a.
func (a ExerciseAnalysis) Clone() ExerciseAnalysis {
	a.Feedback = slices.Clone(a.Feedback)
	a.Recommendations = slices.Clone(a.Recommendations)
	return a
}
