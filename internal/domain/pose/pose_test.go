package pose_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/formcheck/internal/domain/pose"
	. "github.com/smartystreets/goconvey/convey"
)

func TestJointNames(t *testing.T) {
	Convey("Given the joint enumeration", t, func() {
		Convey("Then every joint has a unique name that parses back", func() {
			seen := map[string]bool{}
			for i := 0; i < pose.JointCount; i++ {
				j := pose.Joint(i)
				So(seen[j.String()], ShouldBeFalse)
				seen[j.String()] = true
				parsed, err := pose.ParseJoint(j.String())
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, j)
			}
			So(len(seen), ShouldEqual, 17)
		})

		Convey("Then camelCase and dashed spellings are accepted", func() {
			j, err := pose.ParseJoint("leftKnee")
			So(err, ShouldBeNil)
			So(j, ShouldEqual, pose.LeftKnee)
			j, err = pose.ParseJoint("Right-Ankle")
			So(err, ShouldBeNil)
			So(j, ShouldEqual, pose.RightAnkle)
		})

		Convey("Then unknown names and out of range values are rejected", func() {
			_, err := pose.ParseJoint("tail")
			So(err, ShouldNotBeNil)
			So(pose.Joint(42).Valid(), ShouldBeFalse)
			So(pose.Joint(42).String(), ShouldEqual, "joint(42)")
		})
	})
}

func TestKeypoints(t *testing.T) {
	Convey("Given keypoints with mixed confidence", t, func() {
		var kp pose.Keypoints
		for i := range kp {
			kp[i] = pose.JointPosition{X: 0.5, Y: 0.5, Confidence: 1}
		}
		kp.Set(pose.LeftKnee, pose.JointPosition{X: 0.4, Y: 0.7, Confidence: 0.2})

		Convey("Then min and mean confidence are computed over the requested joints", func() {
			So(kp.MinConfidence(pose.LeftHip, pose.LeftKnee), ShouldEqual, 0.2)
			So(kp.MinConfidence(), ShouldEqual, 1)
			So(kp.MeanConfidence(pose.LeftHip, pose.LeftKnee), ShouldAlmostEqual, 0.6)
			So(kp.MeanConfidence(), ShouldAlmostEqual, (16+0.2)/17.0)
		})

		Convey("Then the map form round-trips through JSON", func() {
			raw, err := json.Marshal(kp.Map())
			So(err, ShouldBeNil)
			var m map[string]pose.JointPosition
			So(json.Unmarshal(raw, &m), ShouldBeNil)
			back, err := pose.FromMap(m)
			So(err, ShouldBeNil)
			So(back, ShouldResemble, kp)
		})

		Convey("Then FromMap rejects unknown joints", func() {
			_, err := pose.FromMap(map[string]pose.JointPosition{"tail": {}})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPassthroughDetector(t *testing.T) {
	Convey("Given a passthrough detector", t, func() {
		d := pose.NewPassthroughDetector()
		ctx := context.Background()

		Convey("When the frame carries keypoints", func() {
			var kp pose.Keypoints
			kp.Set(pose.Nose, pose.JointPosition{X: 0.5, Y: 0.1, Confidence: 0.9})
			got, err := d.Detect(ctx, pose.Frame{Keypoints: &kp})

			Convey("Then they are returned unchanged", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, kp)
			})
		})

		Convey("When the frame has no keypoints", func() {
			_, err := d.Detect(ctx, pose.Frame{Image: []byte{0xff}})

			Convey("Then the pose is unavailable", func() {
				So(errors.Is(err, pose.ErrPoseUnavailable), ShouldBeTrue)
			})
		})

		Convey("When the context is already done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := d.Detect(cctx, pose.Frame{Keypoints: &pose.Keypoints{}})

			Convey("Then the pose is unavailable", func() {
				So(errors.Is(err, pose.ErrPoseUnavailable), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
