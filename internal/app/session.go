package service

import (
	"sync/atomic"
	"time"

	"github.com/okian/formcheck/internal/adapters/mq/worker"
	"github.com/okian/formcheck/internal/adapters/repository"
	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/dedupe"
	"github.com/okian/formcheck/internal/domain/types"
)

// session is one client's analysis context. The engine serializes frames
// arriving on the synchronous path and from the pump.
type session struct {
	id       string
	engine   *analysis.Engine
	history  *repository.HistoryStore
	deduper  dedupe.Deduper
	pump     *worker.Pump
	created  time.Time
	lastSeen atomic.Int64
}

func (s *session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

func (s *session) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

func (s *session) info() types.SessionInfo {
	return types.SessionInfo{
		ID:        s.id,
		Exercise:  s.engine.Exercise(),
		Phase:     s.engine.Phase().String(),
		RepCount:  s.engine.RepCount(),
		Frames:    s.history.Len(),
		Queued:    s.pump.Len(),
		CreatedAt: s.created,
		LastSeen:  time.Unix(0, s.lastSeen.Load()).UTC(),
	}
}
