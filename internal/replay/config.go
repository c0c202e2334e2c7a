package replay

import (
	"time"

	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/pose"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL  string        // Base URL of the service; empty analyzes in-process
	File     string        // Clip file to replay; empty generates a synthetic squat clip
	Exercise string        // Overrides the clip's exercise when set
	Reps     int           // Reps in a synthetic clip
	Async    bool          // Queue frames instead of analyzing them one by one
	Timeout  time.Duration // HTTP request timeout
	Output   string        // Writes the replayed clip here when set
	Verbose  bool          // Log every analysis
}

// Clip is a recorded or generated sequence of poses.
type Clip struct {
	Exercise string      `yaml:"exercise"`
	FPS      float64     `yaml:"fps,omitempty"`
	Frames   []ClipFrame `yaml:"frames"`
}

// ClipFrame is one pose of a clip in wire form.
type ClipFrame struct {
	ID        string                        `yaml:"id,omitempty"`
	Keypoints map[string]pose.JointPosition `yaml:"keypoints"`
}

// Stats holds replay statistics.
type Stats struct {
	Frames      int
	Analyzed    int
	Unavailable int
	Duplicates  int
	Failed      int
	Reps        int
	Summary     analysis.Summary
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
