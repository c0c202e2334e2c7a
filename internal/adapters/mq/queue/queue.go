// Package queue is the bounded FIFO of camera frames waiting for analysis.
// Enqueue never blocks so a slow analysis sheds load instead of stalling the
// caller.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/pkg/metrics"
)

const defaultCapacity = 256

// Queue provides non-blocking enqueue and blocking, ordered dequeue.
type Queue interface {
	// Enqueue adds a frame. It fails with ErrFull or ErrClosed.
	Enqueue(ctx context.Context, f pose.Frame) error

	// Dequeue blocks until a frame is available. After Close it drains the
	// remaining frames and then returns ErrClosed.
	Dequeue(ctx context.Context) (pose.Frame, error)

	Len() int
	Cap() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	frames   chan pose.Frame
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.frames = make(chan pose.Frame, q.capacity)
	return q
}

// Enqueue adds a frame to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, f pose.Frame) error { //nolint:gocritic // frames are copied into the channel anyway
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return fmt.Errorf("enqueue frame %s: %w", f.ID, err)
	}

	select {
	case q.frames <- f:
		metrics.RecordQueueEnqueue()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return fmt.Errorf("enqueue frame %s: %w", f.ID, ErrFull)
	}
}

// Dequeue returns the oldest frame.
func (q *InMemoryQueue) Dequeue(ctx context.Context) (pose.Frame, error) {
	select {
	case f, ok := <-q.frames:
		if !ok {
			return pose.Frame{}, ErrClosed
		}
		metrics.RecordQueueDequeue()
		return f, nil
	case <-ctx.Done():
		return pose.Frame{}, ctx.Err()
	}
}

// Drain removes every frame currently queued without blocking and returns
// them oldest first. A frame already taken by a consumer is not affected.
func (q *InMemoryQueue) Drain() []pose.Frame {
	var out []pose.Frame
	for {
		select {
		case f, ok := <-q.frames:
			if !ok {
				return out
			}
			metrics.RecordQueueDequeue()
			out = append(out, f)
		default:
			return out
		}
	}
}

// Len returns the number of queued frames.
func (q *InMemoryQueue) Len() int { return len(q.frames) }

// Cap returns the queue bound.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting frames. Queued frames can still be dequeued.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.frames)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
