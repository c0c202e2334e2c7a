// Package scoring turns a pose into a 0-100 form score with itemized
// feedback, by comparing it against an exercise template.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/formcheck/internal/domain/exercise"
	"github.com/okian/formcheck/internal/domain/geometry"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
)

// Default scoring configuration constants.
const (
	defaultOutOfRangePenalty  = 15
	defaultDeviationPenalty   = 5
	defaultOptimalTolerance   = 10
	defaultReliableConfidence = 0.5
	maxScoreValue             = 100
)

// Option applies a configuration option to the FormScorer.
type Option func(*FormScorer)

// WithPenalties sets the score deductions for an out-of-range angle and for
// an in-range angle too far from optimal. Negative values are ignored.
func WithPenalties(outOfRange, deviation float64) Option {
	return func(s *FormScorer) {
		if outOfRange >= 0 {
			s.outOfRange = outOfRange
		}
		if deviation >= 0 {
			s.deviation = deviation
		}
	}
}

// WithOptimalTolerance sets how many degrees an angle may stray from optimal
// before a warning is raised.
func WithOptimalTolerance(deg float64) Option {
	return func(s *FormScorer) {
		if deg >= 0 {
			s.tolerance = deg
		}
	}
}

// WithReliableConfidence sets the joint confidence at or above which checks
// apply their full penalty.
func WithReliableConfidence(c float64) Option {
	return func(s *FormScorer) {
		if c > 0 && c <= 1 {
			s.reliable = c
		}
	}
}

// Input is the pose to score.
type Input struct {
	Template exercise.Template
	// Current is the pose of this frame; every-frame ranges and structural
	// checks read it.
	Current *pose.Keypoints
	// Bottom is the deepest pose of the rep that just turned. Bottom-scoped
	// ranges are only evaluated when it is set.
	Bottom *pose.Keypoints
}

// Result is the scored frame.
type Result struct {
	Score           float64
	Feedback        []model.FormFeedback
	Recommendations []string
}

// FormScorer is stateless after construction and safe for concurrent use.
type FormScorer struct {
	outOfRange float64
	deviation  float64
	tolerance  float64
	reliable   float64
}

// NewFormScorer creates a scorer with the default penalties.
func NewFormScorer(opts ...Option) *FormScorer {
	s := &FormScorer{
		outOfRange: defaultOutOfRangePenalty,
		deviation:  defaultDeviationPenalty,
		tolerance:  defaultOptimalTolerance,
		reliable:   defaultReliableConfidence,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates angle ranges in declaration order, then structural checks
// in declaration order, and clamps the result to [0,100].
func (s *FormScorer) Score(in Input) Result {
	score := float64(maxScoreValue)
	var fb []model.FormFeedback

	for _, r := range in.Template.Angles {
		kp := in.Current
		if r.Scope == exercise.ScopeBottom {
			kp = in.Bottom
		}
		if kp == nil {
			continue
		}
		item, penalty, ok := s.angle(kp, r)
		if !ok {
			continue
		}
		score -= penalty
		fb = append(fb, item)
	}

	if in.Current != nil {
		for _, c := range in.Template.Checks {
			violated, conf := c.Evaluate(in.Current)
			if !violated {
				continue
			}
			penalty, sev := s.attenuate(c.Penalty, c.Severity, conf)
			score -= penalty
			fb = append(fb, model.FormFeedback{
				BodyPart:   c.BodyPart,
				Severity:   sev,
				Kind:       kindFor(sev),
				Message:    c.Message,
				Correction: c.Correction,
			})
		}
	}

	score = math.Max(0, math.Min(maxScoreValue, score))

	if len(fb) == 0 {
		return Result{
			Score: score,
			Feedback: []model.FormFeedback{{
				BodyPart: "overall",
				Severity: model.SeverityLow,
				Kind:     model.KindSuccess,
				Message:  fmt.Sprintf("Great %s form, keep it up", in.Template.Name),
			}},
			Recommendations: []string{},
		}
	}
	return Result{Score: score, Feedback: fb, Recommendations: recommendations(fb, in.Template.CriticalPoints)}
}

func (s *FormScorer) angle(kp *pose.Keypoints, r exercise.AngleRange) (model.FormFeedback, float64, bool) {
	deg := geometry.JointAngle(kp, r.Joints)
	conf := kp.MinConfidence(r.Joints[:]...)

	switch {
	case deg < r.Min || deg > r.Max:
		penalty, sev := s.attenuate(s.outOfRange, model.SeverityHigh, conf)
		return model.FormFeedback{
			BodyPart:   r.BodyPart,
			Severity:   sev,
			Kind:       model.KindError,
			Message:    fmt.Sprintf("%s angle %.0f° is outside the safe range %.0f°-%.0f°", r.Name, deg, r.Min, r.Max),
			Correction: correction(r, deg),
		}, penalty, true
	case math.Abs(deg-r.Optimal) > s.tolerance:
		penalty, sev := s.attenuate(s.deviation, model.SeverityMedium, conf)
		return model.FormFeedback{
			BodyPart:   r.BodyPart,
			Severity:   sev,
			Kind:       model.KindWarning,
			Message:    fmt.Sprintf("%s angle %.0f° is off the optimal %.0f°", r.Name, deg, r.Optimal),
			Correction: correction(r, deg),
		}, penalty, true
	}
	return model.FormFeedback{}, 0, false
}

// attenuate scales a penalty down and lowers its severity when the joints
// behind the check are poorly detected.
func (s *FormScorer) attenuate(penalty float64, sev model.Severity, conf float64) (float64, model.Severity) {
	if conf >= s.reliable {
		return penalty, sev
	}
	return penalty * math.Max(0, conf) / s.reliable, sev.Lower()
}

func kindFor(sev model.Severity) model.Kind {
	if sev == model.SeverityLow {
		return model.KindWarning
	}
	return model.KindError
}

func correction(r exercise.AngleRange, deg float64) string {
	if deg < r.Optimal {
		return fmt.Sprintf("Open your %s more, aim for about %.0f°", humanize(r.BodyPart), r.Optimal)
	}
	return fmt.Sprintf("Bend your %s more, aim for about %.0f°", humanize(r.BodyPart), r.Optimal)
}

func humanize(part string) string { return strings.ReplaceAll(part, "_", " ") }

func recommendations(fb []model.FormFeedback, critical []string) []string {
	seen := make(map[string]struct{}, len(fb)+len(critical))
	out := make([]string, 0, len(fb)+len(critical))
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, f := range fb {
		add(f.Correction)
	}
	for _, c := range critical {
		add(c)
	}
	return out
}
