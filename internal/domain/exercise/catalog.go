package exercise

import (
	"github.com/okian/formcheck/internal/domain/model"
	"github.com/okian/formcheck/internal/domain/pose"
)

var (
	leftKnee   = [3]pose.Joint{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}
	rightKnee  = [3]pose.Joint{pose.RightHip, pose.RightKnee, pose.RightAnkle}
	leftHip    = [3]pose.Joint{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee}
	rightHip   = [3]pose.Joint{pose.RightShoulder, pose.RightHip, pose.RightKnee}
	leftElbow  = [3]pose.Joint{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist}
	rightElbow = [3]pose.Joint{pose.RightShoulder, pose.RightElbow, pose.RightWrist}
)

func catalog() []Template {
	return []Template{squat(), pushup(), lunge(), deadlift()}
}

func squat() Template {
	return Template{
		Name:        "squat",
		DisplayName: "Squat",
		Angles: []AngleRange{
			{Name: "left_knee", BodyPart: "left_knee", Joints: leftKnee, Min: 60, Max: 110, Optimal: 85, Scope: ScopeBottom},
			{Name: "right_knee", BodyPart: "right_knee", Joints: rightKnee, Min: 60, Max: 110, Optimal: 85, Scope: ScopeBottom},
			{Name: "left_hip", BodyPart: "left_hip", Joints: leftHip, Min: 50, Max: 110, Optimal: 80, Scope: ScopeBottom},
			{Name: "right_hip", BodyPart: "right_hip", Joints: rightHip, Min: 50, Max: 110, Optimal: 80, Scope: ScopeBottom},
		},
		Checks: []StructuralCheck{
			kneeValgus(10),
			torsoLean(55, 8, model.SeverityMedium),
			shouldersLevel(4),
		},
		CriticalPoints: []string{
			"Keep your weight over the mid-foot",
			"Reach at least parallel depth",
		},
		CommonMistakes: []string{
			"Knees caving inward",
			"Heels lifting off the floor",
			"Excessive forward lean",
		},
		Preparation: []string{"Feet shoulder-width apart", "Toes slightly turned out", "Brace your core"},
		Execution:   []string{"Sit back and down", "Knees track over toes", "Chest stays up"},
		Recovery:    []string{"Drive through the heels", "Extend hips and knees together", "Stand tall at the top"},
		Movement: Movement{
			Signal:           SignalJointHeight,
			Joints:           []pose.Joint{pose.LeftHip, pose.RightHip},
			NoiseThreshold:   0.01,
			MinRangeOfMotion: 0.1,
		},
	}
}

func pushup() Template {
	return Template{
		Name:        "pushup",
		DisplayName: "Push-up",
		Aliases:     []string{"press-up"},
		Angles: []AngleRange{
			{Name: "left_elbow", BodyPart: "left_elbow", Joints: leftElbow, Min: 60, Max: 110, Optimal: 90, Scope: ScopeBottom},
			{Name: "right_elbow", BodyPart: "right_elbow", Joints: rightElbow, Min: 60, Max: 110, Optimal: 90, Scope: ScopeBottom},
		},
		Checks: []StructuralCheck{
			hipSag(12),
			hipPike(6),
		},
		CriticalPoints: []string{
			"Hold a straight line from head to heels",
			"Lower until the elbows reach 90 degrees",
		},
		CommonMistakes: []string{
			"Sagging hips",
			"Flared elbows",
			"Partial range of motion",
		},
		Preparation: []string{"Hands under shoulders", "Body in a straight plank", "Core braced"},
		Execution:   []string{"Lower with control", "Elbows at about 45 degrees from the torso", "Chest approaches the floor"},
		Recovery:    []string{"Press the floor away", "Keep the body rigid", "Lock out without shrugging"},
		Movement: Movement{
			Signal:           SignalJointAngle,
			Triples:          [][3]pose.Joint{leftElbow, rightElbow},
			NoiseThreshold:   2,
			MinRangeOfMotion: 40,
		},
	}
}

func lunge() Template {
	return Template{
		Name:        "lunge",
		DisplayName: "Lunge",
		Angles: []AngleRange{
			{Name: "left_knee", BodyPart: "left_knee", Joints: leftKnee, Min: 70, Max: 120, Optimal: 90, Scope: ScopeBottom},
			{Name: "right_knee", BodyPart: "right_knee", Joints: rightKnee, Min: 70, Max: 120, Optimal: 90, Scope: ScopeBottom},
		},
		Checks: []StructuralCheck{
			torsoLean(30, 8, model.SeverityMedium),
			kneePastToes(8),
			shouldersLevel(4),
		},
		CriticalPoints: []string{
			"Keep the torso upright",
			"Front knee stacked over the ankle",
		},
		CommonMistakes: []string{
			"Front knee drifting past the toes",
			"Leaning forward",
			"Stance too narrow",
		},
		Preparation: []string{"Stand tall", "Hands on hips or at your sides", "Step into a long stance"},
		Execution:   []string{"Drop the back knee toward the floor", "Front shin stays vertical", "Torso stays upright"},
		Recovery:    []string{"Push through the front heel", "Return to standing", "Keep the hips square"},
		Movement: Movement{
			Signal:           SignalJointHeight,
			Joints:           []pose.Joint{pose.LeftHip, pose.RightHip},
			NoiseThreshold:   0.01,
			MinRangeOfMotion: 0.08,
		},
	}
}

func deadlift() Template {
	return Template{
		Name:        "deadlift",
		DisplayName: "Deadlift",
		Angles: []AngleRange{
			{Name: "left_hip", BodyPart: "left_hip", Joints: leftHip, Min: 45, Max: 110, Optimal: 75, Scope: ScopeBottom},
			{Name: "right_hip", BodyPart: "right_hip", Joints: rightHip, Min: 45, Max: 110, Optimal: 75, Scope: ScopeBottom},
			{Name: "left_knee", BodyPart: "left_knee", Joints: leftKnee, Min: 110, Max: 170, Optimal: 140, Scope: ScopeBottom},
			{Name: "right_knee", BodyPart: "right_knee", Joints: rightKnee, Min: 110, Max: 170, Optimal: 140, Scope: ScopeBottom},
		},
		Checks: []StructuralCheck{
			roundedBack(15),
			barDrift(8),
			shouldersLevel(4),
		},
		CriticalPoints: []string{
			"Hinge at the hips, not the lower back",
			"Keep the bar close to the body",
		},
		CommonMistakes: []string{
			"Rounding the back",
			"Bar drifting forward",
			"Squatting the weight up",
		},
		Preparation: []string{"Bar over mid-foot", "Grip just outside the knees", "Flat back and tight lats"},
		Execution:   []string{"Push the hips back", "Bar slides down the thighs", "Soft knees"},
		Recovery:    []string{"Drive the hips forward", "Squeeze the glutes at lockout", "Do not lean back"},
		Movement: Movement{
			Signal:           SignalJointHeight,
			Joints:           []pose.Joint{pose.LeftShoulder, pose.RightShoulder},
			NoiseThreshold:   0.01,
			MinRangeOfMotion: 0.12,
		},
	}
}
