package pose

import "errors"

// ErrPoseUnavailable reports that no usable pose could be acquired for a frame.
var ErrPoseUnavailable = errors.New("pose unavailable")
