// Package repository holds in-memory stores for session analyses.
package repository

import (
	"sync"
	"sync/atomic"

	"github.com/okian/formcheck/internal/domain/model"
)

// HistoryStore keeps the most recent analyses of one session in a ring.
// With a limit <= 0 it keeps everything.
type HistoryStore struct {
	mu      sync.RWMutex
	limit   int
	items   []model.ExerciseAnalysis
	start   int // index of the oldest item once the ring is full
	evicted atomic.Int64
}

// NewHistoryStore creates a store with configuration options.
func NewHistoryStore(opts ...Option) *HistoryStore {
	s := &HistoryStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a to the store, evicting the oldest analysis when full.
func (s *HistoryStore) Append(a model.ExerciseAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit <= 0 || len(s.items) < s.limit {
		s.items = append(s.items, a)
		return
	}
	s.items[s.start] = a
	s.start = (s.start + 1) % s.limit
	s.evicted.Add(1)
}

// List returns a deep copy of the analyses, oldest first.
func (s *HistoryStore) List() []model.ExerciseAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tail(len(s.items))
}

// Recent returns up to n of the newest analyses, oldest first.
func (s *HistoryStore) Recent(n int) []model.ExerciseAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tail(n)
}

func (s *HistoryStore) tail(n int) []model.ExerciseAnalysis {
	size := len(s.items)
	if n > size {
		n = size
	}
	if n <= 0 {
		return []model.ExerciseAnalysis{}
	}
	out := make([]model.ExerciseAnalysis, n)
	first := size - n
	for i := 0; i < n; i++ {
		out[i] = s.items[(s.start+first+i)%size].Clone()
	}
	return out
}

// Len returns the number of stored analyses.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes every analysis.
func (s *HistoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.start = 0
}

// Evicted returns how many analyses were dropped to respect the limit.
func (s *HistoryStore) Evicted() int64 { return s.evicted.Load() }

// Limit returns the configured bound.
func (s *HistoryStore) Limit() int { return s.limit }
