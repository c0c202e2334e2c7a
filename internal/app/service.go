// Package service manages analysis sessions. Each session owns an engine, a
// bounded history, a frame deduper and an asynchronous frame pump; all share
// one pose detector.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/formcheck/internal/adapters/mq/worker"
	"github.com/okian/formcheck/internal/adapters/repository"
	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/dedupe"
	"github.com/okian/formcheck/internal/domain/exercise"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/internal/domain/types"
	"github.com/okian/formcheck/pkg/logger"
	"github.com/okian/formcheck/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultHistoryLimit    = 1000
	defaultMaxSessions     = 64
	defaultSessionTTL      = 15 * time.Minute
	defaultJanitorInterval = 30 * time.Second
	defaultQueueSize       = 64
	defaultDedupeSize      = 4096
	closeTimeout           = 5 * time.Second
)

// Session close reasons reported to metrics.
const (
	closeReasonClient   = "client"
	closeReasonExpired  = "expired"
	closeReasonShutdown = "shutdown"
)

// Service implements the API dependencies for form analysis sessions.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	detector   pose.Detector
	engineOpts []analysis.Option

	historyLimit    int
	maxSessions     int
	ttl             time.Duration
	janitorInterval time.Duration
	queueSize       int
	dedupeSize      int
	now             func() time.Time

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a new Service with default configuration. Frames are
// expected to carry keypoints unless WithDetector is given.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:        make(map[string]*session),
		detector:        pose.NewPassthroughDetector(),
		historyLimit:    defaultHistoryLimit,
		maxSessions:     defaultMaxSessions,
		ttl:             defaultSessionTTL,
		janitorInterval: defaultJanitorInterval,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start prepares the detector and launches the idle-session janitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.Named("service")

	// The detector is loaded once here; engines get a view without Load.
	if l, ok := s.detector.(pose.Loader); ok {
		if err := l.Load(ctx); err != nil {
			return fmt.Errorf("start service: %w", err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if s.ttl > 0 {
		s.wg.Add(1)
		go s.janitor()
	}

	s.started = true
	metrics.UpdateQueueCapacity(s.queueSize)
	s.logger.Info(ctx, "form analysis service started",
		logger.Int("maxSessions", s.maxSessions),
		logger.Int("historyLimit", s.historyLimit),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("sessionTTL", s.ttl),
	)
	return nil
}

// Stop closes every session, draining queued frames, and then stops the
// janitor. Session workers run under the service context, so it is cancelled
// only after the drain.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	open := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	var g errgroup.Group
	for _, sess := range open {
		sess := sess
		g.Go(func() error {
			s.closeSession(sess, closeReasonShutdown)
			return nil
		})
	}
	_ = g.Wait()

	s.cancel()
	s.wg.Wait()
	metrics.UpdateActiveSessions(0)
	s.logger.Info(context.Background(), "form analysis service stopped", logger.Int("closedSessions", len(open)))
}

// CreateSession opens a session. When name is non-empty the exercise is
// selected immediately.
func (s *Service) CreateSession(ctx context.Context, name string) (types.SessionInfo, error) {
	if name != "" {
		if _, err := exercise.Lookup(name); err != nil {
			return types.SessionInfo{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return types.SessionInfo{}, ErrNotStarted
	}
	if len(s.sessions) >= s.maxSessions {
		return types.SessionInfo{}, fmt.Errorf("%w: limit %d", ErrTooManySessions, s.maxSessions)
	}

	sess, err := s.newSession(ctx)
	if err != nil {
		return types.SessionInfo{}, err
	}
	if name != "" {
		if err := sess.engine.SetExerciseType(name); err != nil {
			return types.SessionInfo{}, err
		}
	}
	sess.pump.Start(s.ctx)
	s.sessions[sess.id] = sess

	metrics.RecordSessionOpened()
	metrics.UpdateActiveSessions(len(s.sessions))
	s.logger.Info(ctx, "session opened", logger.String("session", sess.id), logger.String("exercise", name))
	return sess.info(), nil
}

func (s *Service) newSession(ctx context.Context) (*session, error) {
	id := uuid.NewString()
	history := repository.NewHistoryStore(repository.WithLimit(s.historyLimit))
	opts := append([]analysis.Option{}, s.engineOpts...)
	opts = append(opts,
		analysis.WithHistory(history),
		analysis.WithLogger(s.logger.Named(id)),
	)
	engine := analysis.NewEngine(pose.DetectorFunc(s.detector.Detect), opts...)
	if err := engine.Initialize(ctx); err != nil {
		return nil, err
	}

	deduper := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	sess := &session{
		id:      id,
		engine:  engine,
		history: history,
		deduper: deduper,
		created: s.now(),
	}
	sess.pump = worker.NewPump(engine, deduper, s.queueSize,
		worker.WithName("pump-"+id),
		worker.WithLogger(s.logger),
		worker.WithHandler(func(ctx context.Context, r worker.Result) {
			if r.Err != nil {
				// Same as the sync path: a failed frame may be re-sent.
				if r.Frame.ID != "" {
					sess.deduper.Unrecord(ctx, r.Frame.ID)
				}
				return
			}
			sess.touch(s.now())
		}),
	)
	sess.touch(sess.created)
	return sess, nil
}

func (s *Service) get(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// SetExercise selects the session's exercise, clearing its reps, history and
// remembered frame IDs. Frames still queued for the previous exercise are
// dropped. An unsupported name leaves the session unchanged.
func (s *Service) SetExercise(ctx context.Context, id, name string) (types.SessionInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return types.SessionInfo{}, err
	}
	if _, err := exercise.Lookup(name); err != nil {
		return types.SessionInfo{}, err
	}
	if n := sess.pump.Discard(ctx); n > 0 {
		for i := 0; i < n; i++ {
			metrics.RecordAnalysisRejected("exercise_switch")
		}
		s.logger.Debug(ctx, "queued frames dropped on exercise switch",
			logger.String("session", id),
			logger.Int("frames", n),
		)
	}
	if err := sess.engine.SetExerciseType(name); err != nil {
		return types.SessionInfo{}, err
	}
	sess.deduper.Reset(ctx)
	sess.touch(s.now())
	return sess.info(), nil
}

// AnalyzeFrame analyzes one frame synchronously. A frame ID already seen by
// the session fails with ErrDuplicateFrame; a frame that fails analysis is
// forgotten so it can be re-sent.
func (s *Service) AnalyzeFrame(ctx context.Context, id string, f pose.Frame) (model.ExerciseAnalysis, error) { //nolint:gocritic // frames are values
	sess, err := s.get(id)
	if err != nil {
		return model.ExerciseAnalysis{}, err
	}
	if f.ID != "" && sess.deduper.SeenAndRecord(ctx, f.ID) {
		metrics.RecordFrameDuplicate()
		return model.ExerciseAnalysis{}, fmt.Errorf("analyze frame %s: %w", f.ID, ErrDuplicateFrame)
	}

	a, err := sess.engine.AnalyzeFrame(ctx, f)
	if err != nil {
		if f.ID != "" {
			sess.deduper.Unrecord(ctx, f.ID)
		}
		if !errors.Is(err, analysis.ErrPoseUnavailable) {
			metrics.RecordErrorByComponent("service", "analyze")
		}
		return model.ExerciseAnalysis{}, err
	}
	sess.touch(s.now())
	return a, nil
}

// SubmitFrame queues a frame for asynchronous analysis. Results land in the
// session history.
func (s *Service) SubmitFrame(ctx context.Context, id string, f pose.Frame) error { //nolint:gocritic // frames are values
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	if _, ok := sess.engine.Template(); !ok {
		return analysis.ErrExerciseNotSet
	}
	if err := sess.pump.Submit(ctx, f); err != nil {
		return err
	}
	sess.touch(s.now())
	return nil
}

// History returns the session's analyses in arrival order. A positive limit
// keeps only the most recent ones.
func (s *Service) History(_ context.Context, id string, limit int) ([]model.ExerciseAnalysis, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		return sess.history.Recent(limit), nil
	}
	return sess.history.List(), nil
}

// Summary aggregates the session's history.
func (s *Service) Summary(_ context.Context, id string) (analysis.Summary, error) {
	sess, err := s.get(id)
	if err != nil {
		return analysis.Summary{}, err
	}
	return sess.engine.Summary(), nil
}

// Reset clears the session's reps, history and remembered frame IDs.
func (s *Service) Reset(ctx context.Context, id string) (types.SessionInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return types.SessionInfo{}, err
	}
	sess.engine.Reset()
	sess.deduper.Reset(ctx)
	sess.touch(s.now())
	return sess.info(), nil
}

// Session returns the state of one session.
func (s *Service) Session(_ context.Context, id string) (types.SessionInfo, error) {
	sess, err := s.get(id)
	if err != nil {
		return types.SessionInfo{}, err
	}
	return sess.info(), nil
}

// Sessions lists open sessions, oldest first.
func (s *Service) Sessions(_ context.Context) []types.SessionInfo {
	s.mu.RLock()
	out := make([]types.SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CloseSession drains and removes a session.
func (s *Service) CloseSession(_ context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.closeSession(sess, closeReasonClient)
	metrics.UpdateActiveSessions(n)
	return nil
}

func (s *Service) closeSession(sess *session, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := sess.pump.Close(ctx); err != nil {
		s.logger.Warn(ctx, "session pump did not drain",
			logger.String("session", sess.id),
			logger.Error(err),
		)
	}
	metrics.RecordSessionClosed(reason)
	s.logger.Info(ctx, "session closed",
		logger.String("session", sess.id),
		logger.String("reason", reason),
		logger.Int("frames", sess.history.Len()),
	)
}

// Exercises returns the public view of every supported exercise, sorted by
// name.
func (s *Service) Exercises(_ context.Context) []types.ExerciseInfo {
	names := exercise.Supported()
	out := make([]types.ExerciseInfo, 0, len(names))
	for _, name := range names {
		tmpl, err := exercise.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, types.NewExerciseInfo(tmpl))
	}
	return out
}

// Exercise returns the public view of one exercise.
func (s *Service) Exercise(_ context.Context, name string) (types.ExerciseInfo, error) {
	tmpl, err := exercise.Lookup(name)
	if err != nil {
		return types.ExerciseInfo{}, err
	}
	return types.NewExerciseInfo(tmpl), nil
}

// janitor closes sessions idle for longer than the TTL.
func (s *Service) janitor() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.expire()
		}
	}
}

// expire closes idle sessions and returns how many were closed.
func (s *Service) expire() int {
	now := s.now()

	s.mu.Lock()
	var stale []*session
	for id, sess := range s.sessions {
		if sess.idle(now) > s.ttl {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range stale {
		s.closeSession(sess, closeReasonExpired)
	}
	if len(stale) > 0 {
		metrics.UpdateActiveSessions(n)
	}
	return len(stale)
}

// GetStats returns service statistics and refreshes the session gauges.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var frames, queued, reps int
	var processed, failed int64
	for _, sess := range s.sessions {
		frames += sess.history.Len()
		queued += sess.pump.Len()
		reps += sess.engine.RepCount()
		processed += sess.pump.Worker().Processed()
		failed += sess.pump.Worker().Failed()
	}

	capacity := s.queueSize * len(s.sessions)
	utilization := 0.0
	if capacity > 0 {
		utilization = float64(queued) / float64(capacity) * 100
	}

	metrics.UpdateActiveSessions(len(s.sessions))
	metrics.UpdateHistorySize(frames)
	metrics.UpdateQueueSize(queued)
	metrics.UpdateQueueCapacity(capacity)
	metrics.UpdateQueueUtilization(utilization)

	return map[string]interface{}{
		"started":           s.started,
		"sessions":          len(s.sessions),
		"max_sessions":      s.maxSessions,
		"frames":            frames,
		"reps":              reps,
		"queued":            queued,
		"queue_capacity":    capacity,
		"queue_utilization": utilization,
		"async_processed":   processed,
		"async_failed":      failed,
		"history_limit":     s.historyLimit,
		"exercises":         exercise.Supported(),
	}
}

// IsStarted reports whether the service accepts sessions.
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
