package scoring_test

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/formcheck/internal/domain/exercise"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
	"github.com/okian/formcheck/internal/domain/scoring"
)

func dir(deg, length float64) (float64, float64) {
	r := deg * math.Pi / 180
	return length * math.Cos(r), length * math.Sin(r)
}

// sidePose builds a profile squat pose with the given knee and hip angles on
// both legs. The far side overlaps the near side exactly.
func sidePose(kneeDeg, hipDeg float64) pose.Keypoints {
	var kp pose.Keypoints
	for i := range kp {
		kp[i].Confidence = 1
	}
	knee := pose.JointPosition{X: 0.55, Y: 0.7, Confidence: 1}
	dx, dy := dir(90, 0.2)
	ankle := pose.JointPosition{X: knee.X + dx, Y: knee.Y + dy, Confidence: 1}
	thigh := 90 + kneeDeg
	dx, dy = dir(thigh, 0.2)
	hip := pose.JointPosition{X: knee.X + dx, Y: knee.Y + dy, Confidence: 1}
	dx, dy = dir(thigh-180-hipDeg, 0.3)
	shoulder := pose.JointPosition{X: hip.X + dx, Y: hip.Y + dy, Confidence: 1}

	for _, j := range []pose.Joint{pose.LeftKnee, pose.RightKnee} {
		kp.Set(j, knee)
	}
	for _, j := range []pose.Joint{pose.LeftAnkle, pose.RightAnkle} {
		kp.Set(j, ankle)
	}
	for _, j := range []pose.Joint{pose.LeftHip, pose.RightHip} {
		kp.Set(j, hip)
	}
	for _, j := range []pose.Joint{pose.LeftShoulder, pose.RightShoulder, pose.Nose} {
		kp.Set(j, shoulder)
	}
	return kp
}

// bendLeftKnee moves the left ankle so the left knee angle becomes deg,
// leaving every other angle untouched.
func bendLeftKnee(kp pose.Keypoints, deg, conf float64) pose.Keypoints {
	knee := kp.Get(pose.LeftKnee)
	dx, dy := dir(175-deg, 0.2)
	kp.Set(pose.LeftAnkle, pose.JointPosition{X: knee.X + dx, Y: knee.Y + dy, Confidence: conf})
	return kp
}

func squat() exercise.Template {
	t, err := exercise.Lookup("squat")
	So(err, ShouldBeNil)
	return t
}

func TestFormScorer_Score(t *testing.T) {
	Convey("Given a default form scorer and the squat template", t, func() {
		scorer := scoring.NewFormScorer()
		tmpl := squat()

		Convey("When every tracked angle sits exactly at optimal", func() {
			kp := sidePose(85, 80)
			res := scorer.Score(scoring.Input{Template: tmpl, Current: &kp, Bottom: &kp})

			Convey("Then the score is 100 with a single success item", func() {
				So(res.Score, ShouldEqual, 100)
				So(res.Feedback, ShouldHaveLength, 1)
				So(res.Feedback[0].Kind, ShouldEqual, model.KindSuccess)
				So(res.Recommendations, ShouldBeEmpty)
			})
		})

		Convey("When exactly one angle is out of range", func() {
			kp := bendLeftKnee(sidePose(85, 80), 130, 1)
			res := scorer.Score(scoring.Input{Template: tmpl, Current: &kp, Bottom: &kp})

			Convey("Then the score drops by exactly the out-of-range penalty", func() {
				So(res.Score, ShouldAlmostEqual, 85)
				So(res.Feedback, ShouldHaveLength, 1)
				So(res.Feedback[0].BodyPart, ShouldEqual, "left_knee")
				So(res.Feedback[0].Kind, ShouldEqual, model.KindError)
				So(res.Feedback[0].Severity, ShouldEqual, model.SeverityHigh)
			})

			Convey("And recommendations lead with the correction then the critical points", func() {
				So(res.Recommendations[0], ShouldEqual, res.Feedback[0].Correction)
				So(res.Recommendations[1:], ShouldResemble, tmpl.CriticalPoints)
			})
		})

		Convey("When an angle is in range but far from optimal", func() {
			kp := bendLeftKnee(sidePose(85, 80), 100, 1)
			res := scorer.Score(scoring.Input{Template: tmpl, Current: &kp, Bottom: &kp})

			Convey("Then a medium warning costs the deviation penalty", func() {
				So(res.Score, ShouldAlmostEqual, 95)
				So(res.Feedback, ShouldHaveLength, 1)
				So(res.Feedback[0].Kind, ShouldEqual, model.KindWarning)
				So(res.Feedback[0].Severity, ShouldEqual, model.SeverityMedium)
			})
		})

		Convey("When the bent joint is poorly detected", func() {
			kp := bendLeftKnee(sidePose(85, 80), 130, 0.25)
			res := scorer.Score(scoring.Input{Template: tmpl, Current: &kp, Bottom: &kp})

			Convey("Then the penalty is scaled and the severity lowered", func() {
				So(res.Score, ShouldAlmostEqual, 92.5)
				So(res.Feedback[0].Severity, ShouldEqual, model.SeverityMedium)
				So(res.Feedback[0].Kind, ShouldEqual, model.KindError)
			})
		})

		Convey("When no bottom pose is given", func() {
			kp := bendLeftKnee(sidePose(85, 80), 130, 1)
			res := scorer.Score(scoring.Input{Template: tmpl, Current: &kp})

			Convey("Then bottom-scoped ranges are skipped", func() {
				So(res.Score, ShouldEqual, 100)
				So(res.Feedback[0].Kind, ShouldEqual, model.KindSuccess)
			})
		})
	})
}

func TestFormScorer_OrderingAndClamping(t *testing.T) {
	Convey("Given a template with two ranges and an always-failing check", t, func() {
		tmpl := exercise.Template{
			Name: "test",
			Angles: []exercise.AngleRange{
				{Name: "left_knee", BodyPart: "left_knee", Joints: [3]pose.Joint{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}, Min: 10, Max: 20, Optimal: 15},
				{Name: "right_knee", BodyPart: "right_knee", Joints: [3]pose.Joint{pose.RightHip, pose.RightKnee, pose.RightAnkle}, Min: 10, Max: 20, Optimal: 15},
			},
			Checks: []exercise.StructuralCheck{{
				Name:       "always",
				BodyPart:   "torso",
				Penalty:    7,
				Severity:   model.SeverityMedium,
				Message:    "always wrong",
				Correction: "Keep your knees soft",
				Evaluate:   func(*pose.Keypoints) (bool, float64) { return true, 1 },
			}},
			CriticalPoints: []string{"Keep your knees soft", "Breathe"},
		}
		kp := sidePose(85, 80)

		Convey("When scoring with default penalties", func() {
			res := scoring.NewFormScorer().Score(scoring.Input{Template: tmpl, Current: &kp})

			Convey("Then feedback follows declaration order with checks last", func() {
				So(res.Feedback, ShouldHaveLength, 3)
				So(res.Feedback[0].BodyPart, ShouldEqual, "left_knee")
				So(res.Feedback[1].BodyPart, ShouldEqual, "right_knee")
				So(res.Feedback[2].BodyPart, ShouldEqual, "torso")
				So(res.Score, ShouldAlmostEqual, 100-15-15-7)
			})

			Convey("And recommendations are deduplicated", func() {
				count := 0
				for _, r := range res.Recommendations {
					if r == "Keep your knees soft" {
						count++
					}
				}
				So(count, ShouldEqual, 1)
				So(res.Recommendations[len(res.Recommendations)-1], ShouldEqual, "Breathe")
			})
		})

		Convey("When penalties exceed the score", func() {
			res := scoring.NewFormScorer(scoring.WithPenalties(60, 5)).Score(scoring.Input{Template: tmpl, Current: &kp})

			Convey("Then the score is clamped to zero", func() {
				So(res.Score, ShouldEqual, 0)
			})
		})
	})
}

func TestFormScorer_Options(t *testing.T) {
	Convey("Given custom options", t, func() {
		tmpl := squat()
		kp := bendLeftKnee(sidePose(85, 80), 100, 1)

		Convey("A wider tolerance should accept the deviation", func() {
			res := scoring.NewFormScorer(scoring.WithOptimalTolerance(20)).Score(scoring.Input{Template: tmpl, Current: &kp, Bottom: &kp})
			So(res.Score, ShouldEqual, 100)
		})

		Convey("Invalid option values should keep the defaults", func() {
			res := scoring.NewFormScorer(
				scoring.WithPenalties(-1, -1),
				scoring.WithOptimalTolerance(-5),
				scoring.WithReliableConfidence(2),
			).Score(scoring.Input{Template: tmpl, Current: &kp, Bottom: &kp})
			So(res.Score, ShouldAlmostEqual, 95)
		})

		Convey("A lower reliable threshold should apply full penalties", func() {
			low := bendLeftKnee(sidePose(85, 80), 130, 0.25)
			res := scoring.NewFormScorer(scoring.WithReliableConfidence(0.2)).Score(scoring.Input{Template: tmpl, Current: &low, Bottom: &low})
			So(res.Score, ShouldAlmostEqual, 85)
			So(res.Feedback[0].Severity, ShouldEqual, model.SeverityHigh)
		})
	})
}
