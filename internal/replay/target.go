package replay

import (
	"context"

	service "github.com/okian/formcheck/internal/app"
	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/internal/domain/types"
	"github.com/okian/formcheck/pkg/logger"
)

// target is where a clip is replayed: a remote service or an in-process one.
type target interface {
	open(ctx context.Context, exercise string) error
	analyze(ctx context.Context, f pose.Frame) (model.ExerciseAnalysis, error)
	submit(ctx context.Context, f pose.Frame) error
	info(ctx context.Context) (types.SessionInfo, error)
	summary(ctx context.Context) (analysis.Summary, error)
	close(ctx context.Context) error
}

type remoteTarget struct {
	client *HTTPClient
	id     string
}

func (t *remoteTarget) open(ctx context.Context, exercise string) error {
	if err := t.client.waitHealthy(ctx); err != nil {
		return err
	}
	info, err := t.client.createSession(ctx, exercise)
	if err != nil {
		return err
	}
	t.id = info.ID
	return nil
}

func (t *remoteTarget) analyze(ctx context.Context, f pose.Frame) (model.ExerciseAnalysis, error) { //nolint:gocritic // frames are values
	return t.client.analyze(ctx, t.id, f)
}

func (t *remoteTarget) submit(ctx context.Context, f pose.Frame) error { //nolint:gocritic // frames are values
	return t.client.submit(ctx, t.id, f)
}

func (t *remoteTarget) info(ctx context.Context) (types.SessionInfo, error) {
	return t.client.session(ctx, t.id)
}

func (t *remoteTarget) summary(ctx context.Context) (analysis.Summary, error) {
	return t.client.summary(ctx, t.id)
}

func (t *remoteTarget) close(ctx context.Context) error {
	return t.client.closeSession(ctx, t.id)
}

// localTarget runs the session service in-process.
type localTarget struct {
	svc *service.Service
	id  string
}

func newLocalTarget() *localTarget {
	return &localTarget{svc: service.New(service.WithLogger(logger.Get()), service.WithSessionTTL(0))}
}

func (t *localTarget) open(ctx context.Context, exercise string) error {
	if err := t.svc.Start(ctx); err != nil {
		return err
	}
	info, err := t.svc.CreateSession(ctx, exercise)
	if err != nil {
		t.svc.Stop()
		return err
	}
	t.id = info.ID
	return nil
}

func (t *localTarget) analyze(ctx context.Context, f pose.Frame) (model.ExerciseAnalysis, error) { //nolint:gocritic // frames are values
	return t.svc.AnalyzeFrame(ctx, t.id, f)
}

func (t *localTarget) submit(ctx context.Context, f pose.Frame) error { //nolint:gocritic // frames are values
	return t.svc.SubmitFrame(ctx, t.id, f)
}

func (t *localTarget) info(ctx context.Context) (types.SessionInfo, error) {
	return t.svc.Session(ctx, t.id)
}

func (t *localTarget) summary(ctx context.Context) (analysis.Summary, error) {
	return t.svc.Summary(ctx, t.id)
}

func (t *localTarget) close(ctx context.Context) error {
	defer t.svc.Stop()
	return t.svc.CloseSession(ctx, t.id)
}
