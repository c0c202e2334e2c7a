// Package analysis is the single-session facade that turns camera frames
// into form analyses: pose acquisition, scoring, phase tracking and history.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/formcheck/internal/domain/exercise"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/phase"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/internal/domain/scoring"
	"github.com/okian/formcheck/pkg/logger"
	"github.com/okian/formcheck/pkg/metrics"
)

// Default engine configuration constants.
const (
	defaultPoseTimeout   = 250 * time.Millisecond
	defaultMinConfidence = 0.3
)

// Engine analyzes the frames of one exercise session. Operations are
// serialized so at most one analysis runs at a time.
type Engine struct {
	mu sync.Mutex

	detector      pose.Detector
	registry      *exercise.Registry
	scorer        *scoring.FormScorer
	history       History
	poseTimeout   time.Duration
	minConfidence float64
	tuning        map[string]MovementTuning
	logger        logger.Logger
	now           func() time.Time

	initialized bool
	template    *exercise.Template
	joints      []pose.Joint
	tracker     *phase.Tracker
}

// NewEngine creates an uninitialized engine reading poses from detector.
func NewEngine(detector pose.Detector, opts ...Option) *Engine {
	e := &Engine{
		detector:      detector,
		registry:      exercise.Default(),
		scorer:        scoring.NewFormScorer(),
		history:       &sliceHistory{},
		poseTimeout:   defaultPoseTimeout,
		minConfidence: defaultMinConfidence,
		logger:        logger.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("analysis")
	return e
}

// Initialize prepares the pose detector. Calling it again is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if e.detector == nil {
		return fmt.Errorf("initialize: %w", ErrPoseUnavailable)
	}
	if l, ok := e.detector.(pose.Loader); ok {
		if err := l.Load(ctx); err != nil {
			metrics.RecordErrorByComponent("analysis", "detector_load")
			return fmt.Errorf("load pose detector: %w", err)
		}
	}
	e.initialized = true
	e.logger.Debug(ctx, "engine initialized")
	return nil
}

// SetExerciseType selects the exercise to analyze. On success the rep count,
// last pose and history are cleared, even when name is already selected. An
// unsupported name leaves the engine unchanged.
func (e *Engine) SetExerciseType(name string) error {
	tmpl, err := e.registry.Lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.template = &tmpl
	e.joints = tmpl.Joints()
	e.tracker = phase.NewTracker(tmpl.Movement, e.trackerOptions(tmpl.Name)...)
	e.history.Clear()
	e.logger.Debug(context.Background(), "exercise selected", logger.String("exercise", tmpl.Name))
	return nil
}

func (e *Engine) trackerOptions(name string) []phase.Option {
	for key, t := range e.tuning {
		tmpl, err := e.registry.Lookup(key)
		if err != nil || tmpl.Name != name {
			continue
		}
		return []phase.Option{
			phase.WithNoiseThreshold(t.NoiseThreshold),
			phase.WithMinRangeOfMotion(t.MinRangeOfMotion),
		}
	}
	return nil
}

// AnalyzeFrame runs the pipeline for one frame: pose acquisition, phase and
// rep update, then scoring against the bottom pose when a rep turns. On
// success exactly one analysis is appended to the history; on failure the
// session state is untouched.
func (e *Engine) AnalyzeFrame(ctx context.Context, frame pose.Frame) (model.ExerciseAnalysis, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		metrics.RecordAnalysisRejected("not_initialized")
		return model.ExerciseAnalysis{}, ErrNotInitialized
	}
	if e.template == nil {
		metrics.RecordAnalysisRejected("exercise_not_set")
		return model.ExerciseAnalysis{}, ErrExerciseNotSet
	}

	start := time.Now()
	kp, err := e.detect(ctx, frame)
	if err != nil {
		if errors.Is(err, ErrPoseUnavailable) {
			metrics.RecordPoseUnavailable()
		}
		e.logger.Debug(ctx, "frame rejected", logger.String("frame_id", frame.ID), logger.Error(err))
		return model.ExerciseAnalysis{}, err
	}

	if c := kp.MeanConfidence(e.joints...); c < e.minConfidence {
		metrics.RecordPoseUnavailable()
		return model.ExerciseAnalysis{}, fmt.Errorf("%w: mean joint confidence %.2f below %.2f", ErrPoseUnavailable, c, e.minConfidence)
	}

	step := e.tracker.Update(&kp)
	scored := e.scorer.Score(scoring.Input{Template: *e.template, Current: &kp, Bottom: step.Bottom})

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	a := model.ExerciseAnalysis{
		ID:              uuid.NewString(),
		FrameID:         frame.ID,
		Exercise:        e.template.Name,
		FormScore:       scored.Score,
		Phase:           step.Phase,
		RepCount:        step.RepCount,
		RepCompleted:    step.RepCompleted,
		Feedback:        scored.Feedback,
		Recommendations: scored.Recommendations,
		Timestamp:       ts,
	}
	e.history.Append(a)

	metrics.RecordFrameAnalyzed(a.Exercise, a.FormScore)
	metrics.RecordAnalysisLatency(float64(time.Since(start).Microseconds()) / 1000)
	for _, f := range a.Feedback {
		metrics.RecordFeedback(f.Kind.String(), f.Severity.String())
	}
	if a.RepCompleted {
		metrics.RecordRepCompleted(a.Exercise)
		e.logger.Debug(ctx, "rep completed",
			logger.String("exercise", a.Exercise),
			logger.Int("reps", a.RepCount),
		)
	}
	return a.Clone(), nil
}

// detect calls the detector under the pose timeout. Any detector failure,
// including the timeout, means the pose is unavailable; only cancellation of
// the caller's context is reported as such.
func (e *Engine) detect(ctx context.Context, frame pose.Frame) (pose.Keypoints, error) {
	dctx, cancel := context.WithTimeout(ctx, e.poseTimeout)
	defer cancel()

	start := time.Now()
	kp, err := e.detector.Detect(dctx, frame)
	metrics.RecordPoseDetectionLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err == nil {
		return kp, nil
	}

	switch {
	case ctx.Err() != nil:
		return pose.Keypoints{}, fmt.Errorf("detect pose: %w", ctx.Err())
	case errors.Is(err, ErrPoseUnavailable):
		return pose.Keypoints{}, err
	case errors.Is(err, context.DeadlineExceeded):
		return pose.Keypoints{}, fmt.Errorf("%w: detection exceeded %s", ErrPoseUnavailable, e.poseTimeout)
	default:
		return pose.Keypoints{}, fmt.Errorf("%w: %w", ErrPoseUnavailable, err)
	}
}

// History returns a copy of the analyses in arrival order.
func (e *Engine) History() []model.ExerciseAnalysis {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.List()
}

// Reset clears the rep count, last pose and history. The selected exercise
// is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tracker != nil {
		e.tracker.Reset()
	}
	e.history.Clear()
}

// SupportedExercises lists the exercises this engine accepts.
func (e *Engine) SupportedExercises() []string {
	return e.registry.Supported()
}

// Exercise returns the selected exercise name, or "" when none is set.
func (e *Engine) Exercise() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.template == nil {
		return ""
	}
	return e.template.Name
}

// Template returns the selected exercise template.
func (e *Engine) Template() (exercise.Template, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.template == nil {
		return exercise.Template{}, false
	}
	return *e.template, true
}

// RepCount returns the completed reps since the last switch or reset.
func (e *Engine) RepCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tracker == nil {
		return 0
	}
	return e.tracker.RepCount()
}

// Phase returns the current movement phase.
func (e *Engine) Phase() model.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tracker == nil {
		return model.PhasePreparation
	}
	return e.tracker.Phase()
}

// Initialized reports whether Initialize has succeeded.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}
