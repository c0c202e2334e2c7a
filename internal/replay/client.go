package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/internal/domain/types"
)

// Health probe constants.
const (
	healthRetries        = 5
	healthInitialBackoff = 200 * time.Millisecond
)

// Frame outcomes reported by the service.
var (
	errUnavailable = errors.New("pose unavailable")
	errDuplicate   = errors.New("duplicate frame")
)

// HTTPClient talks to the formcheck API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, e.Message)
}

// do sends body as JSON and decodes a 2xx response into out. Error bodies
// become *apiError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		e := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(e)
		return e
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// waitHealthy polls /healthz with exponential backoff.
func (c *HTTPClient) waitHealthy(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = healthInitialBackoff
	return backoff.Retry(func() error {
		return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	}, backoff.WithContext(backoff.WithMaxRetries(b, healthRetries), ctx))
}

func (c *HTTPClient) createSession(ctx context.Context, exercise string) (types.SessionInfo, error) {
	var info types.SessionInfo
	err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"exercise": exercise}, &info)
	return info, err
}

func (c *HTTPClient) session(ctx context.Context, id string) (types.SessionInfo, error) {
	var info types.SessionInfo
	err := c.do(ctx, http.MethodGet, "/sessions/"+id, nil, &info)
	return info, err
}

func (c *HTTPClient) closeSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

func (c *HTTPClient) summary(ctx context.Context, id string) (analysis.Summary, error) {
	var s analysis.Summary
	err := c.do(ctx, http.MethodGet, "/sessions/"+id+"/summary", nil, &s)
	return s, err
}

type frameBody struct {
	FrameID   string                        `json:"frame_id,omitempty"`
	Seq       int64                         `json:"seq"`
	TS        string                        `json:"ts,omitempty"`
	Keypoints map[string]pose.JointPosition `json:"keypoints"`
}

func toBody(f pose.Frame) frameBody { //nolint:gocritic // frames are values
	b := frameBody{FrameID: f.ID, Seq: f.Seq, Keypoints: f.Keypoints.Map()}
	if !f.Timestamp.IsZero() {
		b.TS = f.Timestamp.Format(time.RFC3339Nano)
	}
	return b
}

// classify maps frame endpoint errors to replay outcomes.
func classify(err error) error {
	var ae *apiError
	if !errors.As(err, &ae) {
		return err
	}
	switch ae.Code {
	case "pose_unavailable":
		return fmt.Errorf("%w: %w", errUnavailable, err)
	case "duplicate_frame":
		return fmt.Errorf("%w: %w", errDuplicate, err)
	}
	return err
}

func (c *HTTPClient) analyze(ctx context.Context, id string, f pose.Frame) (model.ExerciseAnalysis, error) { //nolint:gocritic // frames are values
	var a model.ExerciseAnalysis
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/frames", toBody(f), &a); err != nil {
		return model.ExerciseAnalysis{}, classify(err)
	}
	return a, nil
}

func (c *HTTPClient) submit(ctx context.Context, id string, f pose.Frame) error { //nolint:gocritic // frames are values
	return classify(c.do(ctx, http.MethodPost, "/sessions/"+id+"/stream", toBody(f), nil))
}
