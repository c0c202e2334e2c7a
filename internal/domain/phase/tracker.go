// Package phase follows a movement signal frame by frame, classifies the
// exercise phase and counts completed repetitions.
package phase

import (
	"math"

	"github.com/okian/formcheck/internal/domain/exercise"
	"github.com/okian/formcheck/internal/domain/geometry"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
)

const defaultReturnRatio = 0.7

// Option configures a Tracker.
type Option func(*Tracker)

// WithNoiseThreshold overrides the movement's noise threshold.
func WithNoiseThreshold(v float64) Option {
	return func(t *Tracker) {
		if v > 0 {
			t.noise = v
		}
	}
}

// WithMinRangeOfMotion overrides the movement's minimum range of motion.
func WithMinRangeOfMotion(v float64) Option {
	return func(t *Tracker) {
		if v > 0 {
			t.minROM = v
		}
	}
}

// WithReturnRatio sets the fraction of the range the body must come back
// through before a rep counts.
func WithReturnRatio(v float64) Option {
	return func(t *Tracker) {
		if v > 0 && v <= 1 {
			t.returnRatio = v
		}
	}
}

// Result is the outcome of one Update.
type Result struct {
	Phase        model.Phase
	RepCompleted bool
	RepCount     int
	// Bottom is the deepest pose of the current rep. It is set only on the
	// frame where the movement turns from execution into recovery.
	Bottom *pose.Keypoints
}

// Tracker is a per-session state machine. It is not safe for concurrent use.
type Tracker struct {
	movement    exercise.Movement
	noise       float64
	minROM      float64
	returnRatio float64

	state    model.Phase
	hasLast  bool
	last     float64
	baseline float64
	peak     float64
	peakPose pose.Keypoints
	reps     int
}

// NewTracker creates a tracker in preparation with no reps.
func NewTracker(m exercise.Movement, opts ...Option) *Tracker {
	t := &Tracker{
		movement:    m,
		noise:       m.NoiseThreshold,
		minROM:      m.MinRangeOfMotion,
		returnRatio: defaultReturnRatio,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Phase returns the current phase.
func (t *Tracker) Phase() model.Phase { return t.state }

// RepCount returns the number of completed reps.
func (t *Tracker) RepCount() int { return t.reps }

// Reset returns the tracker to its initial state.
func (t *Tracker) Reset() {
	t.state = model.PhasePreparation
	t.hasLast = false
	t.last, t.baseline, t.peak = 0, 0, 0
	t.peakPose = pose.Keypoints{}
	t.reps = 0
}

// Depth is the tracked signal for kp, oriented so larger means further into
// the movement.
func (t *Tracker) Depth(kp *pose.Keypoints) float64 {
	switch t.movement.Signal {
	case exercise.SignalJointAngle:
		if len(t.movement.Triples) == 0 {
			return 0
		}
		var sum float64
		for _, tr := range t.movement.Triples {
			sum += geometry.JointAngle(kp, tr)
		}
		// A closing joint angle means going deeper.
		return -sum / float64(len(t.movement.Triples))
	default:
		if len(t.movement.Joints) == 0 {
			return 0
		}
		var sum float64
		for _, j := range t.movement.Joints {
			sum += kp.Get(j).Y
		}
		return sum / float64(len(t.movement.Joints))
	}
}

// Update feeds one pose through the state machine. The first pose only sets
// the baseline. At most one rep is completed per call.
func (t *Tracker) Update(kp *pose.Keypoints) Result {
	d := t.Depth(kp)
	if !t.hasLast {
		t.hasLast = true
		t.last = d
		return t.result(false, nil)
	}

	delta := d - t.last
	var (
		completed bool
		bottom    *pose.Keypoints
	)

	switch t.state {
	case model.PhasePreparation:
		if delta >= t.noise {
			t.descend(d, kp)
		}
	case model.PhaseExecution:
		if d > t.peak {
			t.peak = d
			t.peakPose = *kp
		}
		if delta <= -t.noise {
			t.state = model.PhaseRecovery
			b := t.peakPose
			bottom = &b
		}
	case model.PhaseRecovery:
		if delta <= -t.noise {
			break
		}
		rom := t.peak - t.baseline
		// The highest point of the return is the previous frame when the
		// body has already turned back down.
		top := math.Min(d, t.last)
		if rom >= t.minROM && t.peak-top >= rom*t.returnRatio {
			t.reps++
			completed = true
			if delta >= t.noise {
				t.descend(d, kp)
			} else {
				t.state = model.PhasePreparation
			}
			break
		}
		if delta >= t.noise {
			// Went back down before returning far enough: same rep.
			t.state = model.PhaseExecution
			if d > t.peak {
				t.peak = d
				t.peakPose = *kp
			}
		} else {
			t.state = model.PhasePreparation
		}
	}

	t.last = d
	return t.result(completed, bottom)
}

// descend starts a new execution from the previous frame's depth.
func (t *Tracker) descend(d float64, kp *pose.Keypoints) {
	t.state = model.PhaseExecution
	t.baseline = t.last
	t.peak = d
	t.peakPose = *kp
}

func (t *Tracker) result(completed bool, bottom *pose.Keypoints) Result {
	return Result{Phase: t.state, RepCompleted: completed, RepCount: t.reps, Bottom: bottom}
}
