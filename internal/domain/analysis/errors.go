package analysis

import (
	"errors"

	"github.com/okian/formcheck/internal/domain/exercise"
	"github.com/okian/formcheck/internal/domain/pose"
)

// Sentinel kinds returned by Engine.
var (
	ErrNotInitialized = errors.New("analysis engine not initialized")
	ErrExerciseNotSet = errors.New("exercise type not set")

	ErrUnsupportedExercise = exercise.ErrUnsupportedExercise
	ErrPoseUnavailable     = pose.ErrPoseUnavailable
)
