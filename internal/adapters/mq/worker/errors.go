package worker

import "errors"

// ErrDuplicate is returned when a frame ID was already submitted.
var ErrDuplicate = errors.New("duplicate frame")
