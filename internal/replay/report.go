package replay

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// PrintReport writes a human-readable summary of stats to w.
func PrintReport(w io.Writer, stats *Stats) {
	var b strings.Builder
	b.WriteString("\nReplay results\n==============\n")
	fmt.Fprintf(&b, "Exercise:      %s\n", stats.Summary.Exercise)
	fmt.Fprintf(&b, "Frames:        %d\n", stats.Frames)
	fmt.Fprintf(&b, "Analyzed:      %d\n", stats.Analyzed)
	fmt.Fprintf(&b, "No pose:       %d\n", stats.Unavailable)
	fmt.Fprintf(&b, "Duplicates:    %d\n", stats.Duplicates)
	fmt.Fprintf(&b, "Failed:        %d\n", stats.Failed)
	fmt.Fprintf(&b, "Reps:          %d\n", stats.Reps)
	fmt.Fprintf(&b, "Form score:    mean %.1f  min %.1f  max %.1f  sd %.1f\n",
		stats.Summary.MeanScore, stats.Summary.MinScore, stats.Summary.MaxScore, stats.Summary.StdDevScore)
	if len(stats.Summary.TopIssues) > 0 {
		b.WriteString("Top issues:\n")
		for _, is := range stats.Summary.TopIssues {
			fmt.Fprintf(&b, "  - %s (%d)\n", is.BodyPart, is.Count)
		}
	}
	fmt.Fprintf(&b, "Duration:      %s\n", stats.Duration.Round(time.Millisecond))
	_, _ = io.WriteString(w, b.String())
}
