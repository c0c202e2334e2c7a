package worker

import (
	"github.com/okian/formcheck/pkg/logger"
)

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithHandler receives every processed frame, in queue order.
func WithHandler(h Handler) Option {
	return func(w *Worker) {
		if h != nil {
			w.handler = h
		}
	}
}
