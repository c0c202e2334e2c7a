// Package worker drains a session's frame queue into its analysis engine.
// Exactly one worker serves a queue, so frames are analyzed in arrival order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/formcheck/internal/adapters/mq/queue"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/pkg/logger"
	"github.com/okian/formcheck/pkg/metrics"
)

// Analyzer turns one frame into an analysis.
type Analyzer interface {
	AnalyzeFrame(ctx context.Context, frame pose.Frame) (model.ExerciseAnalysis, error)
}

// Queue defines how workers receive frames.
type Queue interface {
	Dequeue(ctx context.Context) (pose.Frame, error)
}

// Result is the outcome of one frame.
type Result struct {
	Frame    pose.Frame
	Analysis model.ExerciseAnalysis
	Err      error
}

// Handler is called with each Result from the worker goroutine.
type Handler func(ctx context.Context, r Result)

// Worker processes frames from a single queue.
type Worker struct {
	queue    Queue
	analyzer Analyzer
	handler  Handler
	name     string

	processed atomic.Int64
	failed    atomic.Int64

	started atomic.Bool
	done    chan struct{}

	logger logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Queue, a Analyzer, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		analyzer: a,
		handler:  func(context.Context, Result) {},
		name:     "worker",
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Start runs the worker loop in a new goroutine. Later calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.Run(ctx)
}

// Run processes frames until the queue is closed and drained or ctx is done.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		f, err := w.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && ctx.Err() == nil {
				w.logger.Error(ctx, "dequeue failed", logger.Error(err))
			}
			return
		}
		w.handler(ctx, w.process(ctx, f))
	}
}

func (w *Worker) process(ctx context.Context, f pose.Frame) Result { //nolint:gocritic // frames are values on the queue
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	a, err := w.analyzer.AnalyzeFrame(ctx, f)
	if err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", errorType(err))
		w.logger.Debug(ctx, "frame not analyzed",
			logger.String("frame_id", f.ID),
			logger.Error(err),
		)
		return Result{Frame: f, Err: fmt.Errorf("analyze frame %s: %w", f.ID, err)}
	}
	w.processed.Add(1)
	return Result{Frame: f, Analysis: a}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, pose.ErrPoseUnavailable):
		return "pose_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "analysis_error"
	}
}

// Done is closed when the worker loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Processed returns the number of successfully analyzed frames.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of frames whose analysis failed.
func (w *Worker) Failed() int64 { return w.failed.Load() }

// Wait blocks until the worker exits or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
