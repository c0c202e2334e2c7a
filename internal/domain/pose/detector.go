package pose

import (
	"context"
	"fmt"
)

// Detector turns a frame into keypoints. Implementations return an error
// wrapping ErrPoseUnavailable when no usable person is found.
type Detector interface {
	Detect(ctx context.Context, frame Frame) (Keypoints, error)
}

// Loader is implemented by detectors that must prepare a model before use.
type Loader interface {
	Load(ctx context.Context) error
}

// PassthroughDetector returns landmarks that arrived with the frame.
type PassthroughDetector struct{}

// NewPassthroughDetector creates a detector for pre-computed keypoints.
func NewPassthroughDetector() *PassthroughDetector { return &PassthroughDetector{} }

// Detect returns frame.Keypoints, or ErrPoseUnavailable when there are none.
func (PassthroughDetector) Detect(ctx context.Context, frame Frame) (Keypoints, error) {
	if err := ctx.Err(); err != nil {
		return Keypoints{}, fmt.Errorf("%w: %w", ErrPoseUnavailable, err)
	}
	if frame.Keypoints == nil {
		return Keypoints{}, fmt.Errorf("%w: frame carries no keypoints", ErrPoseUnavailable)
	}
	return *frame.Keypoints, nil
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, frame Frame) (Keypoints, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, frame Frame) (Keypoints, error) {
	return f(ctx, frame)
}
