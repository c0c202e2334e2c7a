package analysis

import (
	"time"

	"github.com/okian/formcheck/internal/domain/exercise"
	"github.com/okian/formcheck/internal/domain/scoring"
	"github.com/okian/formcheck/pkg/logger"
)

// MovementTuning overrides the rep-counting thresholds of one exercise.
// Zero values keep the template's defaults.
type MovementTuning struct {
	NoiseThreshold   float64
	MinRangeOfMotion float64
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRegistry sets the exercise registry.
func WithRegistry(r *exercise.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithScorer sets the form scorer.
func WithScorer(s *scoring.FormScorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithHistory sets the analysis history store.
func WithHistory(h History) Option {
	return func(e *Engine) {
		if h != nil {
			e.history = h
		}
	}
}

// WithPoseTimeout bounds each pose detection call.
func WithPoseTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.poseTimeout = d
		}
	}
}

// WithMinPoseConfidence sets the mean joint confidence below which a pose is
// rejected as unavailable.
func WithMinPoseConfidence(c float64) Option {
	return func(e *Engine) {
		if c >= 0 && c <= 1 {
			e.minConfidence = c
		}
	}
}

// WithMovementTuning sets per-exercise rep-counting overrides. Keys are
// exercise names or aliases.
func WithMovementTuning(m map[string]MovementTuning) Option {
	return func(e *Engine) {
		e.tuning = make(map[string]MovementTuning, len(m))
		for name, t := range m {
			e.tuning[name] = t
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now for analysis timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
