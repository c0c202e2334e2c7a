package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/formcheck/internal/replay"
	"github.com/okian/formcheck/pkg/logger"
)

// Default configuration constants.
const (
	defaultReps    = 3
	defaultTimeout = 10 * time.Second
	replayTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "", "Base URL of a running service; empty analyzes in-process")
		file     = flag.String("file", "", "YAML clip to replay; empty generates a synthetic squat clip")
		exercise = flag.String("exercise", "", "Overrides the clip's exercise")
		reps     = flag.Int("reps", defaultReps, "Reps in the synthetic clip")
		async    = flag.Bool("async", false, "Queue frames instead of analyzing them one by one")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output   = flag.String("output", "", "Write the replayed clip to this YAML file")
		verbose  = flag.Bool("verbose", false, "Log every analysis")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, replayTimeout)
	defer cancel()

	stats, err := replay.Run(ctx, &replay.Config{
		BaseURL:  *baseURL,
		File:     *file,
		Exercise: *exercise,
		Reps:     *reps,
		Async:    *async,
		Timeout:  *timeout,
		Output:   *output,
		Verbose:  *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "replay failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
	replay.PrintReport(os.Stdout, stats)
}
