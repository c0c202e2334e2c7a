package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/formcheck/internal/app"
	"github.com/okian/formcheck/internal/domain/analysis"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// standing returns a frontal pose with the hips at hipY.
func standing(hipY float64) *pose.Keypoints {
	var kp pose.Keypoints
	set := func(j pose.Joint, x, y float64) {
		kp.Set(j, pose.JointPosition{X: x, Y: y, Confidence: 0.9})
	}
	off := hipY - 0.5
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

var squatCycle = []float64{0.5, 0.5, 0.55, 0.62, 0.70, 0.63, 0.55, 0.5, 0.5}

func frame(i int, hipY float64) pose.Frame {
	return pose.Frame{ID: fmt.Sprintf("f-%d", i), Seq: int64(i), Keypoints: standing(hipY)}
}

func started(opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is created but not started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.IsStarted(), ShouldBeFalse)
		})

		Convey("And sessions cannot be opened before Start", func() {
			_, err := svc.CreateSession(context.Background(), "squat")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithQueueSize(8),
			service.WithDedupeSize(16),
			service.WithHistoryLimit(4),
			service.WithMaxSessions(2),
			service.WithSessionTTL(0),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := started()

		Convey("Then it should be marked as started", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["sessions"], ShouldEqual, 0)
			svc.Stop()
		})

		Convey("When stopping the service with an open session", func() {
			_, err := svc.CreateSession(context.Background(), "squat")
			So(err, ShouldBeNil)
			svc.Stop()

			Convey("Then it is stopped and the session is gone", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
				So(stats["sessions"], ShouldEqual, 0)
			})

			Convey("And stopping again is a no-op", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})

	Convey("Given a session with frames still queued", t, func() {
		ctx := context.Background()
		det := &slowDetector{delay: 20 * time.Millisecond}
		svc := started(service.WithDetector(det))
		info, err := svc.CreateSession(ctx, "squat")
		So(err, ShouldBeNil)
		for i := 0; i < 5; i++ {
			So(svc.SubmitFrame(ctx, info.ID, frame(i, 0.5)), ShouldBeNil)
		}

		Convey("When the service stops", func() {
			svc.Stop()

			Convey("Then every queued frame is analyzed first", func() {
				So(det.calls.Load(), ShouldEqual, 5)
			})
		})
	})

	Convey("Given a detector that fails to load", t, func() {
		svc := service.New(service.WithDetector(&failingLoader{}))

		Convey("Then Start reports the failure", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
			So(svc.IsStarted(), ShouldBeFalse)
		})
	})
}

type failingLoader struct{ pose.PassthroughDetector }

// slowDetector counts frames it detected after a fixed delay.
type slowDetector struct {
	pose.PassthroughDetector
	delay time.Duration
	calls atomic.Int64
}

func (d *slowDetector) Detect(ctx context.Context, f pose.Frame) (pose.Keypoints, error) { //nolint:gocritic // frames are values
	time.Sleep(d.delay)
	d.calls.Add(1)
	return d.PassthroughDetector.Detect(ctx, f)
}

// gatedDetector holds the first frame until release is closed.
type gatedDetector struct {
	pose.PassthroughDetector
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedDetector() *gatedDetector {
	return &gatedDetector{entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *gatedDetector) Detect(ctx context.Context, f pose.Frame) (pose.Keypoints, error) { //nolint:gocritic // frames are values
	d.once.Do(func() {
		close(d.entered)
		<-d.release
	})
	return d.PassthroughDetector.Detect(ctx, f)
}

func (failingLoader) Load(context.Context) error { return errors.New("model missing") }

func TestService_Sessions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service limited to two sessions", t, func() {
		svc := started(service.WithMaxSessions(2))
		defer svc.Stop()

		Convey("When a session is opened with an exercise", func() {
			info, err := svc.CreateSession(ctx, "Push-Up")
			So(err, ShouldBeNil)

			Convey("Then the exercise is resolved to its canonical name", func() {
				So(info.ID, ShouldNotBeEmpty)
				So(info.Exercise, ShouldEqual, "pushup")
				So(info.Phase, ShouldEqual, "preparation")
				So(info.RepCount, ShouldEqual, 0)
			})

			Convey("And it can be looked up and listed", func() {
				got, err := svc.Session(ctx, info.ID)
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, info.ID)
				So(svc.Sessions(ctx), ShouldHaveLength, 1)
			})
		})

		Convey("When a session is opened without an exercise", func() {
			info, err := svc.CreateSession(ctx, "")
			So(err, ShouldBeNil)
			So(info.Exercise, ShouldBeEmpty)

			Convey("Then frames are rejected until one is selected", func() {
				_, err := svc.AnalyzeFrame(ctx, info.ID, frame(0, 0.5))
				So(errors.Is(err, analysis.ErrExerciseNotSet), ShouldBeTrue)

				err = svc.SubmitFrame(ctx, info.ID, frame(1, 0.5))
				So(errors.Is(err, analysis.ErrExerciseNotSet), ShouldBeTrue)
			})

			Convey("And the same frame is accepted once the exercise is set", func() {
				_, err := svc.AnalyzeFrame(ctx, info.ID, frame(0, 0.5))
				So(err, ShouldNotBeNil)

				got, err := svc.SetExercise(ctx, info.ID, "squat")
				So(err, ShouldBeNil)
				So(got.Exercise, ShouldEqual, "squat")

				_, err = svc.AnalyzeFrame(ctx, info.ID, frame(0, 0.5))
				So(err, ShouldBeNil)
			})
		})

		Convey("When an unsupported exercise is requested", func() {
			_, err := svc.CreateSession(ctx, "burpee")

			Convey("Then it fails and no session is opened", func() {
				So(errors.Is(err, analysis.ErrUnsupportedExercise), ShouldBeTrue)
				So(svc.Sessions(ctx), ShouldBeEmpty)
			})
		})

		Convey("When the session limit is reached", func() {
			_, err := svc.CreateSession(ctx, "squat")
			So(err, ShouldBeNil)
			_, err = svc.CreateSession(ctx, "lunge")
			So(err, ShouldBeNil)
			_, err = svc.CreateSession(ctx, "deadlift")

			Convey("Then further sessions are refused", func() {
				So(errors.Is(err, service.ErrTooManySessions), ShouldBeTrue)
			})
		})

		Convey("When a session is closed", func() {
			info, err := svc.CreateSession(ctx, "squat")
			So(err, ShouldBeNil)
			So(svc.CloseSession(ctx, info.ID), ShouldBeNil)

			Convey("Then it can no longer be used", func() {
				_, err := svc.Session(ctx, info.ID)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				_, err = svc.AnalyzeFrame(ctx, info.ID, frame(0, 0.5))
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				So(errors.Is(svc.CloseSession(ctx, info.ID), service.ErrSessionNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_AnalyzeFrame(t *testing.T) {
	ctx := context.Background()

	Convey("Given a squat session", t, func() {
		svc := started()
		defer svc.Stop()
		info, err := svc.CreateSession(ctx, "squat")
		So(err, ShouldBeNil)

		Convey("When one full squat is streamed synchronously", func() {
			var reps int
			for i, y := range squatCycle {
				a, err := svc.AnalyzeFrame(ctx, info.ID, frame(i, y))
				So(err, ShouldBeNil)
				So(a.FormScore, ShouldBeBetweenOrEqual, 0, 100)
				reps = a.RepCount
			}

			Convey("Then one rep is counted and every frame is in the history", func() {
				So(reps, ShouldEqual, 1)
				hist, err := svc.History(ctx, info.ID, 0)
				So(err, ShouldBeNil)
				So(hist, ShouldHaveLength, len(squatCycle))
				So(hist[0].FrameID, ShouldEqual, "f-0")

				recent, err := svc.History(ctx, info.ID, 2)
				So(err, ShouldBeNil)
				So(recent, ShouldHaveLength, 2)
				So(recent[1].FrameID, ShouldEqual, fmt.Sprintf("f-%d", len(squatCycle)-1))
			})

			Convey("And the summary reflects the session", func() {
				sum, err := svc.Summary(ctx, info.ID)
				So(err, ShouldBeNil)
				So(sum.Exercise, ShouldEqual, "squat")
				So(sum.Frames, ShouldEqual, len(squatCycle))
				So(sum.Reps, ShouldEqual, 1)
			})

			Convey("And a reset clears reps, history and seen frame IDs", func() {
				got, err := svc.Reset(ctx, info.ID)
				So(err, ShouldBeNil)
				So(got.RepCount, ShouldEqual, 0)
				So(got.Frames, ShouldEqual, 0)

				_, err = svc.AnalyzeFrame(ctx, info.ID, frame(0, 0.5))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the same frame ID is sent twice", func() {
			_, err := svc.AnalyzeFrame(ctx, info.ID, frame(0, 0.5))
			So(err, ShouldBeNil)
			_, err = svc.AnalyzeFrame(ctx, info.ID, frame(0, 0.5))

			Convey("Then the second is rejected as a duplicate", func() {
				So(errors.Is(err, service.ErrDuplicateFrame), ShouldBeTrue)
				hist, _ := svc.History(ctx, info.ID, 0)
				So(hist, ShouldHaveLength, 1)
			})
		})

		Convey("When a frame has no pose", func() {
			f := pose.Frame{ID: "empty"}
			_, err := svc.AnalyzeFrame(ctx, info.ID, f)
			So(errors.Is(err, analysis.ErrPoseUnavailable), ShouldBeTrue)

			Convey("Then its ID is forgotten and it may be re-sent", func() {
				f.Keypoints = standing(0.5)
				_, err := svc.AnalyzeFrame(ctx, info.ID, f)
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("Given a session with a small history limit", t, func() {
		svc := started(service.WithHistoryLimit(3))
		defer svc.Stop()
		info, err := svc.CreateSession(ctx, "squat")
		So(err, ShouldBeNil)

		Convey("When more frames than the limit are analyzed", func() {
			for i := 0; i < 5; i++ {
				_, err := svc.AnalyzeFrame(ctx, info.ID, frame(i, 0.5))
				So(err, ShouldBeNil)
			}

			Convey("Then only the most recent are kept", func() {
				hist, _ := svc.History(ctx, info.ID, 0)
				So(hist, ShouldHaveLength, 3)
				So(hist[0].FrameID, ShouldEqual, "f-2")
			})
		})
	})
}

func TestService_SubmitFrame(t *testing.T) {
	ctx := context.Background()

	Convey("Given a squat session", t, func() {
		svc := started()
		defer svc.Stop()
		info, err := svc.CreateSession(ctx, "squat")
		So(err, ShouldBeNil)

		Convey("When one full squat is submitted asynchronously", func() {
			for i, y := range squatCycle {
				So(svc.SubmitFrame(ctx, info.ID, frame(i, y)), ShouldBeNil)
			}

			Convey("Then the worker analyzes every frame in order", func() {
				deadline := time.Now().Add(5 * time.Second)
				var got int
				for time.Now().Before(deadline) {
					s, err := svc.Session(ctx, info.ID)
					So(err, ShouldBeNil)
					if got = s.Frames; got == len(squatCycle) {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(got, ShouldEqual, len(squatCycle))

				hist, _ := svc.History(ctx, info.ID, 0)
				for i, a := range hist {
					So(a.FrameID, ShouldEqual, fmt.Sprintf("f-%d", i))
				}
				So(hist[len(hist)-1].RepCount, ShouldEqual, 1)
			})
		})

		Convey("When a frame ID is submitted twice", func() {
			So(svc.SubmitFrame(ctx, info.ID, frame(0, 0.5)), ShouldBeNil)
			err := svc.SubmitFrame(ctx, info.ID, frame(0, 0.5))

			Convey("Then the second is rejected as a duplicate", func() {
				So(errors.Is(err, service.ErrDuplicateFrame), ShouldBeTrue)
			})
		})

		Convey("When a streamed frame has no pose", func() {
			So(svc.SubmitFrame(ctx, info.ID, pose.Frame{ID: "x"}), ShouldBeNil)

			Convey("Then it can be re-sent once the worker rejects it", func() {
				retry := pose.Frame{ID: "x", Keypoints: standing(0.5)}
				var err error
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					if _, err = svc.AnalyzeFrame(ctx, info.ID, retry); !errors.Is(err, service.ErrDuplicateFrame) {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(err, ShouldBeNil)
				So(svc.GetStats()["async_failed"], ShouldEqual, int64(1))
			})
		})
	})

	Convey("Given frames queued behind a busy worker", t, func() {
		det := newGatedDetector()
		svc := started(service.WithDetector(det))
		defer svc.Stop()
		info, err := svc.CreateSession(ctx, "squat")
		So(err, ShouldBeNil)
		for i := 0; i < 4; i++ {
			So(svc.SubmitFrame(ctx, info.ID, frame(i, 0.5)), ShouldBeNil)
		}
		<-det.entered

		Convey("When the exercise is switched", func() {
			go func() {
				time.Sleep(20 * time.Millisecond)
				close(det.release)
			}()
			switched, err := svc.SetExercise(ctx, info.ID, "lunge")
			So(err, ShouldBeNil)
			So(switched.Exercise, ShouldEqual, "lunge")

			Convey("Then frames queued for the old exercise are dropped", func() {
				var done int64
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					stats := svc.GetStats()
					done = stats["async_processed"].(int64) + stats["async_failed"].(int64)
					if done == 1 {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				time.Sleep(50 * time.Millisecond)

				stats := svc.GetStats()
				So(stats["queued"], ShouldEqual, 0)
				So(stats["async_processed"].(int64)+stats["async_failed"].(int64), ShouldEqual, int64(1))
				hist, err := svc.History(ctx, info.ID, 0)
				So(err, ShouldBeNil)
				So(hist, ShouldBeEmpty)
				So(svc.SubmitFrame(ctx, info.ID, frame(1, 0.5)), ShouldBeNil)
			})
		})
	})
}

type atomicDuration struct{ v atomic.Int64 }

func (d *atomicDuration) Load() time.Duration   { return time.Duration(d.v.Load()) }
func (d *atomicDuration) Store(x time.Duration) { d.v.Store(int64(x)) }

func TestService_Expiry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service whose sessions expire after a minute", t, func() {
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		var offset atomicDuration
		svc := started(
			service.WithSessionTTL(time.Minute),
			service.WithJanitorInterval(5*time.Millisecond),
			service.WithClock(func() time.Time { return base.Add(offset.Load()) }),
		)
		defer svc.Stop()

		info, err := svc.CreateSession(ctx, "squat")
		So(err, ShouldBeNil)

		Convey("When less than the TTL passes", func() {
			offset.Store(30 * time.Second)
			time.Sleep(30 * time.Millisecond)

			Convey("Then the session is still open", func() {
				_, err := svc.Session(ctx, info.ID)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the session is idle longer than the TTL", func() {
			offset.Store(2 * time.Minute)

			Convey("Then the janitor closes it", func() {
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					if len(svc.Sessions(ctx)) == 0 {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				_, err := svc.Session(ctx, info.ID)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Exercises(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service", t, func() {
		svc := service.New()

		Convey("Then every catalog exercise is described", func() {
			list := svc.Exercises(ctx)
			So(list, ShouldHaveLength, 4)
			So(list[0].Name, ShouldEqual, "deadlift")

			ex, err := svc.Exercise(ctx, "press-up")
			So(err, ShouldBeNil)
			So(ex.Name, ShouldEqual, "pushup")
			So(ex.Checklists, ShouldContainKey, "execution")
		})

		Convey("And an unknown exercise is reported", func() {
			_, err := svc.Exercise(ctx, "burpee")
			So(errors.Is(err, analysis.ErrUnsupportedExercise), ShouldBeTrue)
		})
	})
}
