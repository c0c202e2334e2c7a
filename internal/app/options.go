package service

import (
	"time"

	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDetector sets the pose detector shared by every session.
func WithDetector(d pose.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithEngineOptions adds options applied to every session's engine.
func WithEngineOptions(opts ...analysis.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithHistoryLimit caps the analyses kept per session. 0 keeps all.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.historyLimit = n
		}
	}
}

// WithMaxSessions caps concurrently open sessions.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithSessionTTL closes sessions idle for longer than ttl. Zero disables
// expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithJanitorInterval sets how often idle sessions are looked for.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.janitorInterval = d
		}
	}
}

// WithQueueSize sets the per-session frame queue bound.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many frame IDs each session remembers.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for session bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
