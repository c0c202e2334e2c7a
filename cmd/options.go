package main

import (
	"github.com/okian/formcheck/internal/adapters/detector"
	app "github.com/okian/formcheck/internal/app"
	"github.com/okian/formcheck/internal/config"
	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/internal/domain/scoring"
	"github.com/okian/formcheck/pkg/logger"
)

// Detector names accepted in configuration.
const (
	detectorPassthrough = "passthrough"
	detectorHTTP        = "http"
)

// newDetector builds the configured pose detector.
func newDetector(cfg *config.Config, log logger.Logger) pose.Detector {
	if cfg.Detector == detectorHTTP {
		return detector.NewHTTPDetector(cfg.DetectorURL, detector.WithLogger(log))
	}
	return pose.NewPassthroughDetector()
}

// engineOptions maps configuration onto the per-session engine.
func engineOptions(cfg *config.Config) []analysis.Option {
	tuning := make(map[string]analysis.MovementTuning, len(cfg.Movement))
	for name, m := range cfg.Movement {
		tuning[name] = analysis.MovementTuning{
			NoiseThreshold:   m.NoiseThreshold,
			MinRangeOfMotion: m.MinRangeOfMotion,
		}
	}
	scorer := scoring.NewFormScorer(
		scoring.WithPenalties(cfg.OutOfRangePenalty, cfg.DeviationPenalty),
		scoring.WithOptimalTolerance(cfg.OptimalTolerance),
		scoring.WithReliableConfidence(cfg.ReliableJointConfidence),
	)
	return []analysis.Option{
		analysis.WithScorer(scorer),
		analysis.WithPoseTimeout(cfg.PoseTimeout()),
		analysis.WithMinPoseConfidence(cfg.MinPoseConfidence),
		analysis.WithMovementTuning(tuning),
	}
}

// serviceOptions maps configuration onto the session service.
func serviceOptions(cfg *config.Config, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log),
		app.WithDetector(newDetector(cfg, log)),
		app.WithEngineOptions(engineOptions(cfg)...),
		app.WithHistoryLimit(cfg.HistoryLimit),
		app.WithMaxSessions(cfg.MaxSessions),
		app.WithSessionTTL(cfg.SessionTTL()),
		app.WithQueueSize(cfg.FrameQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
	}
}
