package worker

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/okian/formcheck/internal/adapters/mq/queue"
	"github.com/okian/formcheck/internal/domain/dedupe"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/pkg/metrics"
)

// Pump is the asynchronous frame path of one session: dedupe, a bounded
// queue and a single worker.
type Pump struct {
	queue   *queue.InMemoryQueue
	deduper dedupe.Deduper
	worker  *Worker
}

// NewPump wires a queue of the given capacity to a worker over a. The
// deduper may be shared with a synchronous path of the same session.
func NewPump(a Analyzer, deduper dedupe.Deduper, capacity int, opts ...Option) *Pump {
	q := queue.NewInMemoryQueue(queue.WithCapacity(capacity))
	return &Pump{
		queue:   q,
		deduper: deduper,
		worker:  NewWorker(q, a, opts...),
	}
}

// Start launches the worker.
func (p *Pump) Start(ctx context.Context) { p.worker.Start(ctx) }

// Submit queues a frame. A frame ID already seen fails with ErrDuplicate; a
// frame that cannot be queued is forgotten so it can be re-sent.
func (p *Pump) Submit(ctx context.Context, f pose.Frame) error { //nolint:gocritic // frames are values on the queue
	if f.ID != "" && p.deduper.SeenAndRecord(ctx, f.ID) {
		metrics.RecordFrameDuplicate()
		return fmt.Errorf("submit frame %s: %w", f.ID, ErrDuplicate)
	}
	if err := p.queue.Enqueue(ctx, f); err != nil {
		if f.ID != "" {
			p.deduper.Unrecord(ctx, f.ID)
		}
		return err
	}
	return nil
}

// Discard drops the frames still waiting and forgets their IDs. It returns
// how many were dropped. A frame the worker already holds is still analyzed.
func (p *Pump) Discard(ctx context.Context) int {
	dropped := p.queue.Drain()
	for _, f := range dropped {
		if f.ID != "" {
			p.deduper.Unrecord(ctx, f.ID)
		}
	}
	return len(dropped)
}

// Len returns the number of frames waiting.
func (p *Pump) Len() int { return p.queue.Len() }

// Cap returns the queue bound.
func (p *Pump) Cap() int { return p.queue.Cap() }

// Worker exposes the pump's worker for its counters.
func (p *Pump) Worker() *Worker { return p.worker }

// Close stops accepting frames and waits until queued frames are analyzed or
// ctx is done.
func (p *Pump) Close(ctx context.Context) error {
	var err error
	if cerr := p.queue.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("close frame queue: %w", cerr))
	}
	if p.worker.started.Load() {
		err = multierr.Append(err, p.worker.Wait(ctx))
	}
	return err
}
