package replay

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/formcheck/internal/adapters/http/api"
	service "github.com/okian/formcheck/internal/app"
	"github.com/okian/formcheck/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		panic(err)
	}
}

func TestSyntheticSquat(t *testing.T) {
	Convey("Given a synthetic clip of two squats", t, func() {
		c := SyntheticSquat(2)

		Convey("Then it has the lead-in plus nine frames per rep", func() {
			So(c.Exercise, ShouldEqual, "squat")
			So(c.Frames, ShouldHaveLength, leadingStillness+2*(2*stepsPerHalfRep+1))
		})

		Convey("And every frame has a unique ID and a full pose", func() {
			seen := map[string]bool{}
			for _, f := range c.Frames {
				So(seen[f.ID], ShouldBeFalse)
				seen[f.ID] = true
				So(f.Keypoints, ShouldHaveLength, 17)
			}
		})

		Convey("And frames are stamped at the clip's frame rate", func() {
			start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			frames, err := c.frames(start)
			So(err, ShouldBeNil)
			So(frames[1].Timestamp.Sub(frames[0].Timestamp), ShouldEqual, time.Second/defaultFPS)
			So(frames[3].Seq, ShouldEqual, 3)
		})
	})
}

func TestClipFiles(t *testing.T) {
	Convey("Given a clip saved to disk", t, func() {
		path := filepath.Join(t.TempDir(), "clip.yaml")
		So(SaveClip(path, SyntheticSquat(1)), ShouldBeNil)

		Convey("Then it loads back with the same frames", func() {
			c, err := LoadClip(path)
			So(err, ShouldBeNil)
			So(c.Exercise, ShouldEqual, "squat")
			So(c.Frames, ShouldHaveLength, leadingStillness+2*stepsPerHalfRep+1)
			So(c.Frames[0].Keypoints["left_hip"].Y, ShouldAlmostEqual, standingHipY)
		})
	})

	Convey("Given a clip without frames", t, func() {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		So(os.WriteFile(path, []byte("exercise: squat\nframes: []\n"), 0o600), ShouldBeNil)

		Convey("Then loading it fails", func() {
			_, err := LoadClip(path)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a clip naming an unknown joint", t, func() {
		c := Clip{Exercise: "squat", Frames: []ClipFrame{{ID: "x", Keypoints: SyntheticSquat(1).Frames[0].Keypoints}}}
		c.Frames[0].Keypoints["tail"] = c.Frames[0].Keypoints["nose"]

		Convey("Then converting it to frames fails", func() {
			_, err := c.frames(time.Now())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRunInProcess(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-process replay of three synthetic squats", t, func() {
		cfg := &Config{Reps: 3}

		Convey("When frames are analyzed one by one", func() {
			stats, err := Run(ctx, cfg)

			Convey("Then every rep is counted and every frame analyzed", func() {
				So(err, ShouldBeNil)
				So(stats.Reps, ShouldEqual, 3)
				So(stats.Analyzed, ShouldEqual, stats.Frames)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Summary.Frames, ShouldEqual, stats.Frames)
				So(stats.Summary.Reps, ShouldEqual, 3)
			})
		})

		Convey("When frames are queued", func() {
			cfg.Async = true
			stats, err := Run(ctx, cfg)

			Convey("Then the same reps are counted once the queue drains", func() {
				So(err, ShouldBeNil)
				So(stats.Reps, ShouldEqual, 3)
				So(stats.Analyzed, ShouldEqual, stats.Frames)
			})
		})
	})

	Convey("Given a replay with an unsupported exercise", t, func() {
		_, err := Run(ctx, &Config{Reps: 1, Exercise: "burpee"})

		Convey("Then no session can be opened", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a replay that writes its clip", t, func() {
		out := filepath.Join(t.TempDir(), "out.yaml")
		_, err := Run(ctx, &Config{Reps: 1, Output: out})
		So(err, ShouldBeNil)

		Convey("Then the clip can be replayed from the file", func() {
			stats, err := Run(ctx, &Config{File: out})
			So(err, ShouldBeNil)
			So(stats.Reps, ShouldEqual, 1)
		})
	})
}

func TestRunRemote(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running API", t, func() {
		svc := service.New(service.WithLogger(logger.Get()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		srv := httptest.NewServer(api.NewServer(svc).Handler(ctx))
		defer srv.Close()

		Convey("When a clip with a repeated frame is replayed over HTTP", func() {
			clip := SyntheticSquat(2)
			clip.Frames = append(clip.Frames, clip.Frames[0])
			tgt := &remoteTarget{client: newHTTPClient(srv.URL, 5*time.Second)}
			stats, err := replay(ctx, &Config{BaseURL: srv.URL}, clip, tgt)

			Convey("Then reps are counted and the repeat is reported as a duplicate", func() {
				So(err, ShouldBeNil)
				So(stats.Reps, ShouldEqual, 2)
				So(stats.Duplicates, ShouldEqual, 1)
				So(stats.Analyzed, ShouldEqual, stats.Frames-1)
				So(stats.Summary.Exercise, ShouldEqual, "squat")
			})

			Convey("And the session is closed afterwards", func() {
				So(svc.Sessions(ctx), ShouldBeEmpty)
			})

			Convey("And the report shows the outcome", func() {
				var buf bytes.Buffer
				PrintReport(&buf, stats)
				So(buf.String(), ShouldContainSubstring, "Reps:          2")
				So(buf.String(), ShouldContainSubstring, "Duplicates:    1")
			})
		})

		Convey("When frames are streamed over HTTP", func() {
			stats, err := Run(ctx, &Config{BaseURL: srv.URL, Reps: 2, Async: true, Timeout: 5 * time.Second})

			Convey("Then the reps are counted after the queue drains", func() {
				So(err, ShouldBeNil)
				So(stats.Reps, ShouldEqual, 2)
			})
		})
	})
}
