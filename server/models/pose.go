package models

import "formcoach/server/geometry"

type Joint string

const (
	JointNose          Joint = "nose"
	JointLeftEye       Joint = "left_eye"
	JointRightEye      Joint = "right_eye"
	JointLeftEar       Joint = "left_ear"
	JointRightEar      Joint = "right_ear"
	JointLeftShoulder  Joint = "left_shoulder"
	JointRightShoulder Joint = "right_shoulder"
	JointLeftElbow     Joint = "left_elbow"
	JointRightElbow    Joint = "right_elbow"
	JointLeftWrist     Joint = "left_wrist"
	JointRightWrist    Joint = "right_wrist"
	JointLeftHip       Joint = "left_hip"
	JointRightHip      Joint = "right_hip"
	JointLeftKnee      Joint = "left_knee"
	JointRightKnee     Joint = "right_knee"
	JointLeftAnkle     Joint = "left_ankle"
	JointRightAnkle    Joint = "right_ankle"
)

type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (k Keypoint) Point() geometry.Point {
	return geometry.Point{X: k.X, Y: k.Y}
}

// PoseFrame is one time sample of detected keypoints. Coordinates are pixels
// with the origin at the lower left and y increasing upward, as delivered by
// the pose estimation service. A joint counts as detected iff it has an
// entry in Keypoints.
type PoseFrame struct {
	Timestamp int64              `json:"timestamp,omitempty"`
	Keypoints map[Joint]Keypoint `json:"keypoints"`
}

func (f PoseFrame) Keypoint(j Joint) (Keypoint, bool) {
	kp, ok := f.Keypoints[j]
	return kp, ok
}

func (f PoseFrame) Point(j Joint) (geometry.Point, bool) {
	kp, ok := f.Keypoints[j]
	if !ok {
		return geometry.Point{}, false
	}
	return kp.Point(), true
}

// Mid returns the midpoint of two joints, if both were detected.
func (f PoseFrame) Mid(a, b Joint) (geometry.Point, bool) {
	pa, ok := f.Point(a)
	if !ok {
		return geometry.Point{}, false
	}
	pb, ok := f.Point(b)
	if !ok {
		return geometry.Point{}, false
	}
	return geometry.Midpoint(pa, pb), true
}

// CenterOfMass approximates the body's center of mass as the hip midpoint.
// Absent unless both hips were detected.
func (f PoseFrame) CenterOfMass() (geometry.Point, bool) {
	return f.Mid(JointLeftHip, JointRightHip)
}

type ExerciseType string

const (
	ExerciseSquat         ExerciseType = "squat"
	ExerciseDeadlift      ExerciseType = "deadlift"
	ExerciseBenchPress    ExerciseType = "bench_press"
	ExerciseShoulderPress ExerciseType = "shoulder_press"
	ExercisePullUp        ExerciseType = "pull_up"
)

type UserFitnessLevel string

const (
	LevelBeginner     UserFitnessLevel = "beginner"
	LevelIntermediate UserFitnessLevel = "intermediate"
	LevelAdvanced     UserFitnessLevel = "advanced"
)

func (l UserFitnessLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}
