package exercise

import (
	"math"

	"github.com/okian/formcheck/internal/domain/geometry"
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
)

// side is one half of the body as seen by the camera.
type side struct {
	shoulder, elbow, wrist, hip, knee, ankle pose.Joint
}

var (
	leftSide  = side{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}
	rightSide = side{pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip, pose.RightKnee, pose.RightAnkle}
)

func (s side) joints() []pose.Joint {
	return []pose.Joint{s.shoulder, s.elbow, s.wrist, s.hip, s.knee, s.ankle}
}

// visibleSide picks the side the detector is more confident about. In a
// profile view the far side is usually occluded.
func visibleSide(kp *pose.Keypoints) side {
	if kp.MeanConfidence(rightSide.joints()...) > kp.MeanConfidence(leftSide.joints()...) {
		return rightSide
	}
	return leftSide
}

func bothSides(joints ...func(side) pose.Joint) []pose.Joint {
	out := make([]pose.Joint, 0, 2*len(joints))
	for _, s := range []side{leftSide, rightSide} {
		for _, j := range joints {
			out = append(out, j(s))
		}
	}
	return out
}

func shoulderOf(s side) pose.Joint { return s.shoulder }
func wristOf(s side) pose.Joint    { return s.wrist }
func hipOf(s side) pose.Joint      { return s.hip }
func kneeOf(s side) pose.Joint     { return s.knee }
func ankleOf(s side) pose.Joint    { return s.ankle }

func mid(kp *pose.Keypoints, a, b pose.Joint) pose.JointPosition {
	return geometry.Midpoint(kp.Get(a), kp.Get(b))
}

// frontal reports whether the subject faces the camera, judged by how wide
// the shoulders appear relative to the torso.
func frontal(kp *pose.Keypoints) bool {
	torso := geometry.Distance(mid(kp, pose.LeftShoulder, pose.RightShoulder), mid(kp, pose.LeftHip, pose.RightHip))
	if torso == 0 {
		return false
	}
	return geometry.Distance(kp.Get(pose.LeftShoulder), kp.Get(pose.RightShoulder)) >= 0.5*torso
}

// kneeValgus flags knees collapsing inward relative to the feet. Only a
// frontal view shows it.
func kneeValgus(penalty float64) StructuralCheck {
	joints := bothSides(kneeOf, ankleOf)
	return StructuralCheck{
		Name:       "knee_valgus",
		BodyPart:   "knees",
		Joints:     joints,
		Penalty:    penalty,
		Severity:   model.SeverityHigh,
		Message:    "Knees are caving inward",
		Correction: "Push your knees out in line with your toes",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			conf := kp.MinConfidence(joints...)
			if !frontal(kp) {
				return false, conf
			}
			ankles := math.Abs(kp.Get(pose.LeftAnkle).X - kp.Get(pose.RightAnkle).X)
			if ankles < 0.05 {
				return false, conf
			}
			knees := math.Abs(kp.Get(pose.LeftKnee).X - kp.Get(pose.RightKnee).X)
			return knees < 0.8*ankles, conf
		},
	}
}

// torsoLean flags a trunk tilted further than maxDeg from vertical.
func torsoLean(maxDeg, penalty float64, severity model.Severity) StructuralCheck {
	joints := bothSides(shoulderOf, hipOf)
	return StructuralCheck{
		Name:       "torso_lean",
		BodyPart:   "torso",
		Joints:     joints,
		Penalty:    penalty,
		Severity:   severity,
		Message:    "Torso is leaning too far forward",
		Correction: "Keep your chest up and your back more upright",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			hips := mid(kp, pose.LeftHip, pose.RightHip)
			shoulders := mid(kp, pose.LeftShoulder, pose.RightShoulder)
			return geometry.VerticalTilt(hips, shoulders) > maxDeg, kp.MinConfidence(joints...)
		},
	}
}

// shouldersLevel flags one shoulder sitting noticeably higher than the other.
func shouldersLevel(penalty float64) StructuralCheck {
	joints := bothSides(shoulderOf, hipOf)
	return StructuralCheck{
		Name:       "shoulders_level",
		BodyPart:   "shoulders",
		Joints:     joints,
		Penalty:    penalty,
		Severity:   model.SeverityLow,
		Message:    "Shoulders are uneven",
		Correction: "Keep both shoulders level and square",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			conf := kp.MinConfidence(joints...)
			torso := geometry.Distance(mid(kp, pose.LeftShoulder, pose.RightShoulder), mid(kp, pose.LeftHip, pose.RightHip))
			if torso == 0 {
				return false, conf
			}
			dy := math.Abs(kp.Get(pose.LeftShoulder).Y - kp.Get(pose.RightShoulder).Y)
			return dy > 0.15*torso, conf
		},
	}
}

// hipLine measures how far the hip sits off the shoulder-ankle line, as a
// fraction of that line's length. Positive means sagging.
func hipLine(kp *pose.Keypoints) (float64, float64) {
	s := visibleSide(kp)
	sh, hip, ank := kp.Get(s.shoulder), kp.Get(s.hip), kp.Get(s.ankle)
	conf := kp.MinConfidence(s.shoulder, s.hip, s.ankle)
	length := geometry.Distance(sh, ank)
	if length == 0 {
		return 0, conf
	}
	return geometry.PointLineDistance(hip, sh, ank) / length, conf
}

func hipSag(penalty float64) StructuralCheck {
	return StructuralCheck{
		Name:       "hip_sag",
		BodyPart:   "hips",
		Joints:     bothSides(shoulderOf, hipOf, ankleOf),
		Penalty:    penalty,
		Severity:   model.SeverityHigh,
		Message:    "Hips are sagging below the body line",
		Correction: "Brace your core and squeeze your glutes to keep a straight line",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			off, conf := hipLine(kp)
			return off > 0.05, conf
		},
	}
}

func hipPike(penalty float64) StructuralCheck {
	return StructuralCheck{
		Name:       "hip_pike",
		BodyPart:   "hips",
		Joints:     bothSides(shoulderOf, hipOf, ankleOf),
		Penalty:    penalty,
		Severity:   model.SeverityMedium,
		Message:    "Hips are piked above the body line",
		Correction: "Lower your hips until shoulders, hips and ankles line up",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			off, conf := hipLine(kp)
			return off < -0.08, conf
		},
	}
}

// kneePastToes flags the front shin tipping forward so the knee travels far
// beyond the ankle. The front leg is the one with the more bent knee.
func kneePastToes(penalty float64) StructuralCheck {
	return StructuralCheck{
		Name:       "knee_past_toes",
		BodyPart:   "front_knee",
		Joints:     bothSides(hipOf, kneeOf, ankleOf),
		Penalty:    penalty,
		Severity:   model.SeverityMedium,
		Message:    "Front knee is travelling past the toes",
		Correction: "Step further forward and keep the front shin vertical",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			front := leftSide
			if geometry.JointAngle(kp, [3]pose.Joint{pose.RightHip, pose.RightKnee, pose.RightAnkle}) <
				geometry.JointAngle(kp, [3]pose.Joint{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}) {
				front = rightSide
			}
			knee, ankle := kp.Get(front.knee), kp.Get(front.ankle)
			conf := kp.MinConfidence(front.knee, front.ankle)
			shin := geometry.Distance(knee, ankle)
			if shin == 0 {
				return false, conf
			}
			return math.Abs(knee.X-ankle.X) > 0.5*shin, conf
		},
	}
}

// barDrift flags the hands drifting away from the legs during a hinge.
func barDrift(penalty float64) StructuralCheck {
	return StructuralCheck{
		Name:       "bar_drift",
		BodyPart:   "arms",
		Joints:     bothSides(wristOf, kneeOf, ankleOf),
		Penalty:    penalty,
		Severity:   model.SeverityMedium,
		Message:    "Hands are drifting away from the legs",
		Correction: "Keep the bar close and drag it along your thighs and shins",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			s := visibleSide(kp)
			wrist, knee, ankle := kp.Get(s.wrist), kp.Get(s.knee), kp.Get(s.ankle)
			conf := kp.MinConfidence(s.wrist, s.knee, s.ankle)
			shin := geometry.Distance(knee, ankle)
			if shin == 0 {
				return false, conf
			}
			return math.Abs(wrist.X-knee.X) > 0.6*shin, conf
		},
	}
}

// roundedBack flags the head dropping well below the line of the back
// during a hinge, a visible proxy for spinal flexion in 2D.
func roundedBack(penalty float64) StructuralCheck {
	joints := []pose.Joint{pose.Nose, pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip}
	return StructuralCheck{
		Name:       "rounded_back",
		BodyPart:   "back",
		Joints:     joints,
		Penalty:    penalty,
		Severity:   model.SeverityHigh,
		Message:    "Back is rounding",
		Correction: "Keep a neutral spine: chest proud and eyes a few metres ahead",
		Evaluate: func(kp *pose.Keypoints) (bool, float64) {
			hips := mid(kp, pose.LeftHip, pose.RightHip)
			shoulders := mid(kp, pose.LeftShoulder, pose.RightShoulder)
			nose := kp.Get(pose.Nose)
			back := geometry.Distance(hips, shoulders)
			if back == 0 {
				return false, kp.MinConfidence(joints...)
			}
			return geometry.PointLineDistance(nose, hips, shoulders)/back > 0.25, kp.MinConfidence(joints...)
		},
	}
}
