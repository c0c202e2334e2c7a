package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/formcheck/internal/adapters/mq/queue"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
)

// FrameDependencies defines the two frame paths.
type FrameDependencies interface {
	AnalyzeFrame(ctx context.Context, id string, f pose.Frame) (model.ExerciseAnalysis, error)
	SubmitFrame(ctx context.Context, id string, f pose.Frame) error
}

// FrameHandler handles frame requests.
type FrameHandler struct {
	deps FrameDependencies
}

// NewFrameHandler creates a new frame handler.
func NewFrameHandler(deps FrameDependencies) *FrameHandler {
	return &FrameHandler{deps: deps}
}

// frameRequest is the body of the frame endpoints. A frame carries either
// pre-computed keypoints or an encoded image for the pose detector.
type frameRequest struct {
	FrameID   string                        `json:"frame_id"`
	Seq       int64                         `json:"seq"`
	TS        string                        `json:"ts"`
	Width     int                           `json:"width"`
	Height    int                           `json:"height"`
	Image     []byte                        `json:"image,omitempty"`
	Keypoints map[string]pose.JointPosition `json:"keypoints,omitempty"`
}

func (f frameRequest) toFrame() (pose.Frame, error) { //nolint:gocritic // decoded once per request
	out := pose.Frame{
		ID:     f.FrameID,
		Seq:    f.Seq,
		Image:  f.Image,
		Width:  f.Width,
		Height: f.Height,
	}
	if len(f.Image) == 0 && len(f.Keypoints) == 0 {
		return pose.Frame{}, errors.New("frame needs image or keypoints")
	}
	if f.TS != "" {
		ts, err := time.Parse(time.RFC3339Nano, f.TS)
		if err != nil {
			return pose.Frame{}, errors.New("invalid ts; must be RFC3339")
		}
		out.Timestamp = ts
	}
	if len(f.Keypoints) > 0 {
		kp, err := pose.FromMap(f.Keypoints)
		if err != nil {
			return pose.Frame{}, fmt.Errorf("invalid keypoints: %w", err)
		}
		out.Keypoints = &kp
	}
	return out, nil
}

type ackResponse struct {
	Status  string `json:"status"`
	FrameID string `json:"frame_id,omitempty"`
}

func (h *FrameHandler) decode(op string, r *http.Request) (pose.Frame, error) {
	var req frameRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return pose.Frame{}, WrapKind(op, ErrBadRequest, err)
	}
	f, err := req.toFrame()
	if err != nil {
		return pose.Frame{}, WrapKind(op, ErrBadRequest, err)
	}
	return f, nil
}

// HandleAnalyze handles POST /sessions/{id}/frames and responds with the
// frame's analysis.
func (h *FrameHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	f, err := h.decode("api.analyze_frame", r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	a, err := h.deps.AnalyzeFrame(r.Context(), mux.Vars(r)["id"], f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleSubmit handles POST /sessions/{id}/stream. The frame is queued and
// its analysis lands in the session history.
func (h *FrameHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	f, err := h.decode("api.submit_frame", r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.SubmitFrame(r.Context(), mux.Vars(r)["id"], f); err != nil {
		if errors.Is(err, queue.ErrFull) {
			err = WrapKind("api.submit_frame", ErrBackpressure, err)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", FrameID: f.ID})
}
