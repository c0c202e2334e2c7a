package replay

import "os"

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	os.Stdout.WriteString(`formcheck replay
================

Replays a pose clip through the form analysis pipeline and reports scores,
reps and the most corrected body parts.

Usage:
  go run ./cmd/replay [options]

Options:
  -url string
        Base URL of a running service; empty analyzes in-process
  -file string
        YAML clip to replay; empty generates a synthetic squat clip
  -exercise string
        Overrides the clip's exercise
  -reps int
        Reps in the synthetic clip (default 3)
  -async
        Queue frames through /stream instead of /frames
  -timeout duration
        HTTP request timeout (default 10s)
  -output string
        Write the replayed clip to this YAML file
  -verbose
        Log every analysis
  -help
        Show this help message

Clip format:
  exercise: squat
  fps: 30
  frames:
    - id: frame-0000
      keypoints:
        left_hip: {x: 0.42, y: 0.5, confidence: 0.9}
        ...
`)
}
