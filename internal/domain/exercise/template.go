// Package exercise holds the read-only catalog of supported exercises and
// their biomechanical reference templates.
package exercise

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
)

// Scope decides on which frames an angle range is evaluated.
type Scope int

const (
	// ScopeEveryFrame ranges are posture invariants checked on each frame.
	ScopeEveryFrame Scope = iota
	// ScopeBottom ranges describe the deepest point of a rep and are checked
	// once per rep, against the deepest pose, when the movement turns.
	ScopeBottom
)

// AngleRange is the expected included angle at the middle joint of a triple.
type AngleRange struct {
	Name     string
	BodyPart string
	Joints   [3]pose.Joint
	Min      float64
	Max      float64
	Optimal  float64
	Scope    Scope
}

// StructuralCheck is a named form rule that is not a plain angle range.
type StructuralCheck struct {
	Name       string
	BodyPart   string
	Joints     []pose.Joint
	Penalty    float64
	Severity   model.Severity
	Message    string
	Correction string
	// Evaluate reports whether the rule is violated and the confidence of the
	// joints it actually relied on.
	Evaluate func(kp *pose.Keypoints) (violated bool, confidence float64)
}

// Signal selects what the phase tracker follows.
type Signal int

const (
	// SignalJointHeight follows the mean vertical position of Joints.
	SignalJointHeight Signal = iota
	// SignalJointAngle follows the mean included angle of Triples.
	SignalJointAngle
)

// Movement is the exercise-specific signature used for phase detection.
type Movement struct {
	Signal  Signal
	Joints  []pose.Joint
	Triples [][3]pose.Joint
	// NoiseThreshold is the smallest frame-to-frame change treated as motion,
	// in signal units (normalized height or degrees).
	NoiseThreshold float64
	// MinRangeOfMotion is the smallest excursion that completes a rep.
	MinRangeOfMotion float64
}

// Template is the static reference for one exercise.
type Template struct {
	Name           string
	DisplayName    string
	Aliases        []string
	Angles         []AngleRange
	Checks         []StructuralCheck
	CriticalPoints []string
	CommonMistakes []string
	Preparation    []string
	Execution      []string
	Recovery       []string
	Movement       Movement
}

// Joints returns every joint the template reads, in joint order.
func (t *Template) Joints() []pose.Joint {
	used := make(map[pose.Joint]struct{})
	for _, r := range t.Angles {
		for _, j := range r.Joints {
			used[j] = struct{}{}
		}
	}
	for _, c := range t.Checks {
		for _, j := range c.Joints {
			used[j] = struct{}{}
		}
	}
	for _, j := range t.Movement.Joints {
		used[j] = struct{}{}
	}
	for _, tr := range t.Movement.Triples {
		for _, j := range tr {
			used[j] = struct{}{}
		}
	}
	out := make([]pose.Joint, 0, len(used))
	for j := range used {
		out = append(out, j)
	}
	slices.Sort(out)
	return out
}

// Checklist returns the phase checklist for p.
func (t *Template) Checklist(p model.Phase) []string {
	switch p {
	case model.PhaseExecution:
		return t.Execution
	case model.PhaseRecovery:
		return t.Recovery
	default:
		return t.Preparation
	}
}

// Registry looks templates up by name. It is read-only after construction.
type Registry struct {
	byName map[string]*Template
	names  []string
}

// NewRegistry builds a registry from templates. Aliases resolve to the same
// template, and an alias that normalizes to a key of its own template is
// ignored. A name claimed by two templates panics since the catalog is
// compiled in.
func NewRegistry(templates ...Template) *Registry {
	r := &Registry{byName: make(map[string]*Template, len(templates))}
	for i := range templates {
		t := &templates[i]
		for _, key := range append([]string{t.Name}, t.Aliases...) {
			k := normalize(key)
			if prev, dup := r.byName[k]; dup {
				if prev == t {
					continue
				}
				panic(fmt.Sprintf("exercise: duplicate template name %q", key))
			}
			r.byName[k] = t
		}
		r.names = append(r.names, t.Name)
	}
	slices.Sort(r.names)
	return r
}

// Lookup returns the template registered under name.
func (r *Registry) Lookup(name string) (Template, error) {
	t, ok := r.byName[normalize(name)]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnsupportedExercise, name)
	}
	return *t, nil
}

// Supported returns the canonical exercise names in sorted order.
func (r *Registry) Supported() []string {
	return slices.Clone(r.names)
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(n)
}

var defaultRegistry = NewRegistry(catalog()...) //nolint:gochecknoglobals // compiled-in catalog

// Default returns the registry of built-in exercises.
func Default() *Registry { return defaultRegistry }

// Lookup resolves name in the default registry.
func Lookup(name string) (Template, error) { return defaultRegistry.Lookup(name) }

// Supported lists the default registry's exercises.
func Supported() []string { return defaultRegistry.Supported() }
