package exercise

import "errors"

// ErrUnsupportedExercise is returned for names absent from the registry.
var ErrUnsupportedExercise = errors.New("unsupported exercise")
