package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "FORMCHECK_"
	envFileVar = "FORMCHECK_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if FORMCHECK_CONFIG is set
//  3. env (prefix FORMCHECK_)
//
// Nested keys such as the movement map are only settable from the file.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FORMCHECK_POSE_TIMEOUT_MS -> pose_timeout_ms; underscores are kept to
	// match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Detector != "passthrough" && c.Detector != "http":
		return fmt.Errorf("%w: unknown detector %q", ErrInvalidConfig, c.Detector)
	case c.Detector == "http" && strings.TrimSpace(c.DetectorURL) == "":
		return fmt.Errorf("%w: detector_url is required for the http detector", ErrInvalidConfig)
	case c.LogMaxSizeMB < 0:
		return fmt.Errorf("%w: log_max_size_mb must not be negative", ErrInvalidConfig)
	case c.PoseTimeoutMS <= 0:
		return fmt.Errorf("%w: pose_timeout_ms must be positive", ErrInvalidConfig)
	case c.MinPoseConfidence < 0 || c.MinPoseConfidence > 1:
		return fmt.Errorf("%w: min_pose_confidence must be within [0,1]", ErrInvalidConfig)
	case c.ReliableJointConfidence < 0 || c.ReliableJointConfidence > 1:
		return fmt.Errorf("%w: reliable_joint_confidence must be within [0,1]", ErrInvalidConfig)
	case c.OutOfRangePenalty < 0 || c.DeviationPenalty < 0:
		return fmt.Errorf("%w: penalties must not be negative", ErrInvalidConfig)
	case c.HistoryLimit < 0:
		return fmt.Errorf("%w: history_limit must not be negative", ErrInvalidConfig)
	case c.MaxSessions <= 0:
		return fmt.Errorf("%w: max_sessions must be positive", ErrInvalidConfig)
	}
	for name, m := range c.Movement {
		if m.NoiseThreshold < 0 || m.MinRangeOfMotion < 0 {
			return fmt.Errorf("%w: movement %q thresholds must not be negative", ErrInvalidConfig, name)
		}
	}
	return nil
}
