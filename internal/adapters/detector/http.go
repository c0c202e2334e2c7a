// Package detector contains pose.Detector implementations backed by external
// pose-estimation services.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/pkg/logger"
	"github.com/okian/formcheck/pkg/metrics"
)

// Default HTTP detector configuration constants.
const (
	defaultLoadRetries    = 5
	defaultInitialBackoff = 200 * time.Millisecond
	maxResponseBytes      = 1 << 20

	detectPath = "/v1/detect"
	healthPath = "/healthz"
)

// ErrDetectorUnhealthy is returned by Load when the service never reports
// healthy.
var ErrDetectorUnhealthy = errors.New("pose detector unhealthy")

// Option applies a configuration option to the HTTPDetector.
type Option func(*HTTPDetector)

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(d *HTTPDetector) {
		if c != nil {
			d.client = c
		}
	}
}

// WithLoadRetries sets how many times the health probe is retried.
func WithLoadRetries(n uint64) Option {
	return func(d *HTTPDetector) { d.loadRetries = n }
}

// WithInitialBackoff sets the first delay between health probes.
func WithInitialBackoff(b time.Duration) Option {
	return func(d *HTTPDetector) {
		if b > 0 {
			d.initialBackoff = b
		}
	}
}

// WithLogger sets a custom logger for the detector.
func WithLogger(l logger.Logger) Option {
	return func(d *HTTPDetector) {
		if l != nil {
			d.logger = l
		}
	}
}

// HTTPDetector posts frame images to a pose-estimation service.
//
// Request:  POST {base}/v1/detect  {"frame_id","width","height","image"(base64)}
// Response: 200 {"keypoints": {"left_knee": {"x","y","confidence"}, ...}}
//
// A 404 or 422 response, or an empty keypoint map, means no person was found.
type HTTPDetector struct {
	baseURL        string
	client         *http.Client
	loadRetries    uint64
	initialBackoff time.Duration
	logger         logger.Logger
}

// NewHTTPDetector creates a detector for the service at baseURL.
func NewHTTPDetector(baseURL string, opts ...Option) *HTTPDetector {
	d := &HTTPDetector{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         &http.Client{},
		loadRetries:    defaultLoadRetries,
		initialBackoff: defaultInitialBackoff,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("detector")
	return d
}

type detectRequest struct {
	FrameID string `json:"frame_id,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Image   []byte `json:"image"`
}

type detectResponse struct {
	Keypoints map[string]pose.JointPosition `json:"keypoints"`
}

// Load probes the service health endpoint with exponential backoff until it
// answers 2xx, the retries run out or ctx is done.
func (d *HTTPDetector) Load(ctx context.Context) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.initialBackoff
	b := backoff.WithContext(backoff.WithMaxRetries(eb, d.loadRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+healthPath, http.NoBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Warn(ctx, "pose service not reachable", logger.Int("attempt", attempt), logger.Error(err))
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			d.logger.Warn(ctx, "pose service not ready", logger.Int("attempt", attempt), logger.Int("status", resp.StatusCode))
			return fmt.Errorf("health status %d", resp.StatusCode)
		}
		return nil
	}, b)
	if err != nil {
		metrics.RecordErrorByComponent("detector", "unhealthy")
		return fmt.Errorf("%w: %w", ErrDetectorUnhealthy, err)
	}
	d.logger.Info(ctx, "pose service ready", logger.String("url", d.baseURL), logger.Int("attempts", attempt))
	return nil
}

// Detect returns the frame's own keypoints when present, otherwise asks the
// service.
func (d *HTTPDetector) Detect(ctx context.Context, frame pose.Frame) (pose.Keypoints, error) {
	if frame.Keypoints != nil {
		return *frame.Keypoints, nil
	}
	if len(frame.Image) == 0 {
		return pose.Keypoints{}, fmt.Errorf("%w: frame has neither image nor keypoints", pose.ErrPoseUnavailable)
	}

	body, err := json.Marshal(detectRequest{FrameID: frame.ID, Width: frame.Width, Height: frame.Height, Image: frame.Image})
	if err != nil {
		return pose.Keypoints{}, fmt.Errorf("encode detect request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+detectPath, bytes.NewReader(body))
	if err != nil {
		return pose.Keypoints{}, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("detector", "transport")
		return pose.Keypoints{}, fmt.Errorf("detect request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusUnprocessableEntity:
		return pose.Keypoints{}, fmt.Errorf("%w: service found no person (status %d)", pose.ErrPoseUnavailable, resp.StatusCode)
	case resp.StatusCode/100 != 2:
		metrics.RecordErrorByComponent("detector", "status")
		return pose.Keypoints{}, fmt.Errorf("detect request: unexpected status %d", resp.StatusCode)
	}

	var out detectResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		metrics.RecordErrorByComponent("detector", "decode")
		return pose.Keypoints{}, fmt.Errorf("decode detect response: %w", err)
	}
	if len(out.Keypoints) == 0 {
		return pose.Keypoints{}, fmt.Errorf("%w: service returned no keypoints", pose.ErrPoseUnavailable)
	}
	kp, err := pose.FromMap(out.Keypoints)
	if err != nil {
		return pose.Keypoints{}, fmt.Errorf("decode detect response: %w", err)
	}
	return kp, nil
}
