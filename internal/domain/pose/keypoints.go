// Package pose defines body keypoints and the pose acquisition contract.
package pose

import (
	"fmt"
	"strings"
	"time"
)

// Joint names one anatomical landmark. The order follows the COCO keypoint
// layout used by most 2D pose models.
type Joint int

// Joints tracked per frame.
const (
	Nose Joint = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	JointCount int = iota
)

var jointNames = [JointCount]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// String returns the snake_case joint name.
func (j Joint) String() string {
	if j < 0 || int(j) >= JointCount {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Valid reports whether j is one of the tracked joints.
func (j Joint) Valid() bool { return j >= 0 && int(j) < JointCount }

// ParseJoint resolves a joint name such as "left_knee" or "leftKnee".
func ParseJoint(name string) (Joint, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "", "_", "", " ", "").Replace(n)
	for i, candidate := range jointNames {
		if strings.ReplaceAll(candidate, "_", "") == n {
			return Joint(i), nil
		}
	}
	return 0, fmt.Errorf("unknown joint %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (j Joint) MarshalText() ([]byte, error) {
	if !j.Valid() {
		return nil, fmt.Errorf("invalid joint %d", int(j))
	}
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *Joint) UnmarshalText(b []byte) error {
	parsed, err := ParseJoint(string(b))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// JointPosition is a 2D landmark in normalized image coordinates (0..1,
// Y grows downward) with the detector's confidence in [0,1].
type JointPosition struct {
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Keypoints holds one position per Joint for a single frame.
type Keypoints [JointCount]JointPosition

// Get returns the position of j.
func (k *Keypoints) Get(j Joint) JointPosition { return k[j] }

// Set stores the position of j.
func (k *Keypoints) Set(j Joint, p JointPosition) { k[j] = p }

// MinConfidence returns the lowest confidence among joints. With no joints
// given it returns 1.
func (k *Keypoints) MinConfidence(joints ...Joint) float64 {
	lowest := 1.0
	for _, j := range joints {
		if c := k[j].Confidence; c < lowest {
			lowest = c
		}
	}
	return lowest
}

// MeanConfidence returns the average confidence of the given joints, or of
// every joint when none are given.
func (k *Keypoints) MeanConfidence(joints ...Joint) float64 {
	if len(joints) == 0 {
		var sum float64
		for _, p := range k {
			sum += p.Confidence
		}
		return sum / float64(JointCount)
	}
	var sum float64
	for _, j := range joints {
		sum += k[j].Confidence
	}
	return sum / float64(len(joints))
}

// Map converts the keypoints to a name-keyed map, the wire shape used by
// pose services and replay files.
func (k *Keypoints) Map() map[string]JointPosition {
	out := make(map[string]JointPosition, JointCount)
	for i, p := range k {
		out[Joint(i).String()] = p
	}
	return out
}

// FromMap builds Keypoints from a name-keyed map. Missing joints keep a zero
// position with zero confidence.
func FromMap(m map[string]JointPosition) (Keypoints, error) {
	var kp Keypoints
	for name, p := range m {
		j, err := ParseJoint(name)
		if err != nil {
			return Keypoints{}, err
		}
		kp[j] = p
	}
	return kp, nil
}

// Frame is one captured video frame handed to the analysis engine.
type Frame struct {
	// ID identifies the frame for deduplication; optional.
	ID string
	// Seq is the capture sequence number.
	Seq int64
	// Timestamp is the capture time.
	Timestamp time.Time
	// Image holds encoded image bytes for detectors that run a model.
	Image []byte
	// Width and Height are the source image dimensions in pixels.
	Width  int
	Height int
	// Keypoints carries landmarks already produced on the capture device.
	Keypoints *Keypoints
}
