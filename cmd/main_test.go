package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/formcheck/internal/adapters/detector"
	app "github.com/okian/formcheck/internal/app"
	"github.com/okian/formcheck/internal/config"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestConfigLoading(t *testing.T) {
	t.Setenv("FORMCHECK_ADDR", ":8080")
	t.Setenv("FORMCHECK_FRAME_QUEUE_SIZE", "32")
	t.Setenv("FORMCHECK_MAX_SESSIONS", "4")

	convey.Convey("Given FORMCHECK_ environment variables", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then they override the defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 32)
			convey.So(cfg.MaxSessions, convey.ShouldEqual, 4)
			convey.So(cfg.Detector, convey.ShouldEqual, detectorPassthrough)
		})
	})
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("FORMCHECK_DETECTOR", "magic")

	convey.Convey("Given an unknown detector in the environment", t, func() {
		err := run(context.Background())

		convey.Convey("Then run fails before serving", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestNewDetector(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then frames are expected to carry keypoints", func() {
			_, ok := newDetector(cfg, logger.Nop()).(*pose.PassthroughDetector)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("And the http detector is used when configured", func() {
			cfg.Detector = detectorHTTP
			cfg.DetectorURL = "http://pose.local"
			_, ok := newDetector(cfg, logger.Nop()).(*detector.HTTPDetector)
			convey.So(ok, convey.ShouldBeTrue)
		})
	})
}

func TestServiceWiring(t *testing.T) {
	convey.Convey("Given a service built from configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.MaxSessions = 1
		cfg.Movement = map[string]config.Movement{
			"push-up": {NoiseThreshold: 1, MinRangeOfMotion: 20},
		}
		svc := app.New(serviceOptions(cfg, logger.Nop())...)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("Then the configured session limit applies", func() {
			_, err := svc.CreateSession(ctx, "pushup")
			convey.So(err, convey.ShouldBeNil)
			_, err = svc.CreateSession(ctx, "squat")
			convey.So(errors.Is(err, app.ErrTooManySessions), convey.ShouldBeTrue)
		})

		convey.Convey("And the router serves the API and its reference", func() {
			srv := httptest.NewServer(newRouter(ctx, svc))
			defer srv.Close()

			for _, path := range []string{"/exercises", "/openapi.yaml", "/api-docs", "/stats", "/healthz"} {
				resp, err := srv.Client().Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("When their context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			svc := app.New()

			convey.Convey("Then both return", func() {
				convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
				convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When system metrics are sampled directly", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
