package service

import (
	"errors"

	"github.com/okian/formcheck/internal/adapters/mq/worker"
)

// Sentinel kinds for session errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrNotStarted      = errors.New("service not started")
	ErrDuplicateFrame  = worker.ErrDuplicate
)
