package replay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/formcheck/internal/domain/pose"
)

// File permission constants.
const (
	clipFilePermission = 0o600
)

// Synthetic clip shape. Each step moves the hips further than the default
// squat noise threshold so every frame registers as movement.
const (
	defaultFPS       = 30
	standingHipY     = 0.5
	squatDepth       = 0.2
	stepsPerHalfRep  = 4
	leadingStillness = 2
)

// LoadClip reads a YAML clip from path.
func LoadClip(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("read clip: %w", err)
	}
	var c Clip
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Clip{}, fmt.Errorf("parse clip %s: %w", path, err)
	}
	if len(c.Frames) == 0 {
		return Clip{}, fmt.Errorf("clip %s has no frames", path)
	}
	return c, nil
}

// SaveClip writes c to path as YAML.
func SaveClip(path string, c Clip) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode clip: %w", err)
	}
	if err := os.WriteFile(path, data, clipFilePermission); err != nil {
		return fmt.Errorf("write clip: %w", err)
	}
	return nil
}

// SyntheticSquat generates a frontal squat clip: two still frames, then per
// rep a descent, an ascent and one still frame at the top.
func SyntheticSquat(reps int) Clip {
	c := Clip{Exercise: "squat", FPS: defaultFPS}
	add := func(y float64) {
		kp := standing(y)
		c.Frames = append(c.Frames, ClipFrame{
			ID:        fmt.Sprintf("frame-%04d", len(c.Frames)),
			Keypoints: kp.Map(),
		})
	}

	for i := 0; i < leadingStillness; i++ {
		add(standingHipY)
	}
	step := squatDepth / stepsPerHalfRep
	for r := 0; r < reps; r++ {
		for i := 1; i <= stepsPerHalfRep; i++ {
			add(standingHipY + step*float64(i))
		}
		for i := stepsPerHalfRep - 1; i >= 0; i-- {
			add(standingHipY + step*float64(i))
		}
		add(standingHipY)
	}
	return c
}

// standing returns a frontal pose with the hips at hipY and the upper body
// following them.
func standing(hipY float64) *pose.Keypoints {
	var kp pose.Keypoints
	set := func(j pose.Joint, x, y float64) {
		kp.Set(j, pose.JointPosition{X: x, Y: y, Confidence: 0.9})
	}
	off := hipY - standingHipY
	set(pose.Nose, 0.5, 0.10+off)
	set(pose.LeftEye, 0.48, 0.08+off)
	set(pose.RightEye, 0.52, 0.08+off)
	set(pose.LeftEar, 0.46, 0.09+off)
	set(pose.RightEar, 0.54, 0.09+off)
	set(pose.LeftShoulder, 0.40, 0.25+off)
	set(pose.RightShoulder, 0.60, 0.25+off)
	set(pose.LeftElbow, 0.38, 0.38+off)
	set(pose.RightElbow, 0.62, 0.38+off)
	set(pose.LeftWrist, 0.38, 0.50+off)
	set(pose.RightWrist, 0.62, 0.50+off)
	set(pose.LeftHip, 0.42, hipY)
	set(pose.RightHip, 0.58, hipY)
	set(pose.LeftKnee, 0.40, 0.70)
	set(pose.RightKnee, 0.60, 0.70)
	set(pose.LeftAnkle, 0.40, 0.90)
	set(pose.RightAnkle, 0.60, 0.90)
	return &kp
}

// frames converts the clip to engine frames, stamping them at the clip's
// frame rate from start.
func (c *Clip) frames(start time.Time) ([]pose.Frame, error) {
	fps := c.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	interval := time.Duration(float64(time.Second) / fps)

	out := make([]pose.Frame, 0, len(c.Frames))
	for i, f := range c.Frames {
		kp, err := pose.FromMap(f.Keypoints)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out = append(out, pose.Frame{
			ID:        f.ID,
			Seq:       int64(i),
			Timestamp: start.Add(time.Duration(i) * interval),
			Keypoints: &kp,
		})
	}
	return out, nil
}
