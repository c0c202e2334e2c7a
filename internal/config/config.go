// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and FORMCHECK_ env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"time"
)

// Movement tunes the rep-counting thresholds of one exercise.
type Movement struct {
	// NoiseThreshold is the smallest frame-to-frame change treated as movement.
	NoiseThreshold float64 `koanf:"noise_threshold"`
	// MinRangeOfMotion is the smallest excursion that counts as a rep.
	MinRangeOfMotion float64 `koanf:"min_range_of_motion"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, also writes logs to this file, rotated at
	// LogMaxSizeMB megabytes.
	LogFile      string `koanf:"log_file"`
	LogMaxSizeMB int    `koanf:"log_max_size_mb"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Detector selects the pose acquisition adapter: "passthrough" or "http".
	Detector string `koanf:"detector"`

	// DetectorURL is the base URL of the pose-estimation service for the http detector.
	DetectorURL string `koanf:"detector_url"`

	// PoseTimeoutMS bounds a single pose detection call.
	PoseTimeoutMS int `koanf:"pose_timeout_ms"`

	// MinPoseConfidence rejects poses whose mean joint confidence is lower.
	MinPoseConfidence float64 `koanf:"min_pose_confidence"`

	// ReliableJointConfidence is the confidence below which feedback is attenuated.
	ReliableJointConfidence float64 `koanf:"reliable_joint_confidence"`

	// OutOfRangePenalty and DeviationPenalty are the form score deductions.
	OutOfRangePenalty float64 `koanf:"out_of_range_penalty"`
	DeviationPenalty  float64 `koanf:"deviation_penalty"`

	// OptimalTolerance is the allowed deviation from the optimal angle, in degrees.
	OptimalTolerance float64 `koanf:"optimal_tolerance"`

	// HistoryLimit caps analyses kept per session; 0 keeps everything.
	HistoryLimit int `koanf:"history_limit"`

	// MaxSessions caps concurrently open sessions.
	MaxSessions int `koanf:"max_sessions"`

	// SessionTTLSeconds closes sessions idle for longer.
	SessionTTLSeconds int `koanf:"session_ttl_s"`

	// FrameQueueSize bounds the frame pump queue.
	FrameQueueSize int `koanf:"frame_queue_size"`

	// DedupeSize bounds the per-session seen frame ID set.
	DedupeSize int `koanf:"dedupe_size"`

	// Movement overrides rep-counting thresholds per exercise name.
	Movement map[string]Movement `koanf:"movement"`
}

// New creates a Config populated with defaults. Context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogMaxSizeMB:            50,
		Addr:                    ":9080",
		Detector:                "passthrough",
		PoseTimeoutMS:           250,
		MinPoseConfidence:       0.3,
		ReliableJointConfidence: 0.5,
		OutOfRangePenalty:       15,
		DeviationPenalty:        5,
		OptimalTolerance:        10,
		HistoryLimit:            10_000,
		MaxSessions:             64,
		SessionTTLSeconds:       900,
		FrameQueueSize:          256,
		DedupeSize:              4096,
		Movement:                map[string]Movement{},
	}
}

// PoseTimeout returns PoseTimeoutMS as a duration.
func (c *Config) PoseTimeout() time.Duration {
	return time.Duration(c.PoseTimeoutMS) * time.Millisecond
}

// SessionTTL returns SessionTTLSeconds as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
