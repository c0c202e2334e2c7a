package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	service "github.com/okian/formcheck/internal/app"
	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/types"
	"github.com/okian/formcheck/pkg/logger"
)

// Settling constants for asynchronous replays.
const (
	settlePoll    = 20 * time.Millisecond
	settleTimeout = 30 * time.Second
)

// Run replays a clip and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	clip, err := clipFor(config)
	if err != nil {
		return nil, err
	}
	if config.Exercise != "" {
		clip.Exercise = config.Exercise
	}
	if config.Output != "" {
		if err := SaveClip(config.Output, clip); err != nil {
			logger.Get().Warn(ctx, "failed to save clip", logger.Error(err))
		}
	}

	var t target = newLocalTarget()
	if config.BaseURL != "" {
		t = &remoteTarget{client: newHTTPClient(config.BaseURL, config.Timeout)}
	}
	return replay(ctx, config, clip, t)
}

func clipFor(config *Config) (Clip, error) {
	if config.File != "" {
		return LoadClip(config.File)
	}
	reps := config.Reps
	if reps <= 0 {
		reps = 1
	}
	return SyntheticSquat(reps), nil
}

func replay(ctx context.Context, config *Config, clip Clip, t target) (*Stats, error) { //nolint:gocritic // clip is read once
	log := logger.Get()
	stats := &Stats{StartTime: time.Now()}

	frames, err := clip.frames(stats.StartTime)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "starting replay",
		logger.String("exercise", clip.Exercise),
		logger.Int("frames", len(frames)),
		logger.Bool("async", config.Async),
		logger.String("target", targetName(config)),
	)

	if err := t.open(ctx, clip.Exercise); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := t.close(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "failed to close session", logger.Error(err))
		}
	}()

	for _, f := range frames {
		stats.Frames++
		if config.Async {
			count(stats, t.submit(ctx, f))
			continue
		}
		a, err := t.analyze(ctx, f)
		if count(stats, err) {
			stats.Reps = a.RepCount
			if config.Verbose {
				log.Info(ctx, "frame analyzed",
					logger.String("frame", a.FrameID),
					logger.Float64("score", a.FormScore),
					logger.String("phase", a.Phase.String()),
					logger.Int("reps", a.RepCount),
					logger.Int("feedback", len(a.Feedback)),
				)
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if config.Async {
		info, err := settle(ctx, t)
		if err != nil {
			return nil, err
		}
		stats.Analyzed = info.Frames
		stats.Reps = info.RepCount
	}

	sum, err := t.summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch summary: %w", err)
	}
	stats.Summary = sum
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	return stats, nil
}

// count records one frame outcome and reports whether it succeeded.
func count(stats *Stats, err error) bool {
	switch {
	case err == nil:
		stats.Analyzed++
		return true
	case errors.Is(err, errUnavailable), errors.Is(err, analysis.ErrPoseUnavailable):
		stats.Unavailable++
	case errors.Is(err, errDuplicate), errors.Is(err, service.ErrDuplicateFrame):
		stats.Duplicates++
	default:
		stats.Failed++
		logger.Get().Warn(context.Background(), "frame failed", logger.Error(err))
	}
	return false
}

// settle waits until the session's queue is empty and its history stops
// growing.
func settle(ctx context.Context, t target) (types.SessionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()

	prev := -1
	for {
		info, err := t.info(ctx)
		if err != nil {
			return types.SessionInfo{}, err
		}
		if info.Queued == 0 && info.Frames == prev {
			return info, nil
		}
		prev = info.Frames
		select {
		case <-ctx.Done():
			return types.SessionInfo{}, fmt.Errorf("waiting for queued frames: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func targetName(config *Config) string {
	if config.BaseURL == "" {
		return "in-process"
	}
	return config.BaseURL
}
