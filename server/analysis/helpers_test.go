package analysis_test

import (
	"math"

	"formcoach/server/models"
)

type joints map[models.Joint]models.Keypoint

func at(x, y float64) models.Keypoint {
	return models.Keypoint{X: x, Y: y, Confidence: 0.95}
}

func frameOf(kps joints) models.PoseFrame {
	return models.PoseFrame{Keypoints: kps}
}

// hipsAt builds a frame whose only joints are the two hips, placed so the
// hip midpoint lands exactly on (x, y).
func hipsAt(x, y float64) models.PoseFrame {
	return frameOf(joints{
		models.JointLeftHip:  at(x-40, y),
		models.JointRightHip: at(x+40, y),
	})
}

// sineHipFrames returns one hip-midpoint sample per step of n full vertical
// oscillations, period samples per cycle.
func sineHipFrames(cycles, period int) []models.PoseFrame {
	frames := make([]models.PoseFrame, 0, cycles*period+1)
	for i := 0; i <= cycles*period; i++ {
		y := 500 + 100*math.Sin(2*math.Pi*float64(i)/float64(period))
		frames = append(frames, hipsAt(320, y))
	}
	return frames
}

// squatFrame builds a full-body side-on frame. kneeOffset shifts both knees
// laterally from their ankles, hipY sets the hip midpoint height and leanX
// shifts the shoulder midpoint horizontally off the hips.
func squatFrame(kneeOffset, hipY, leanX float64) models.PoseFrame {
	const (
		centerX   = 320.0
		ankleY    = 50.0
		kneeY     = 350.0
		shoulderY = 700.0
	)
	return frameOf(joints{
		models.JointLeftShoulder:  at(centerX+leanX-70, shoulderY),
		models.JointRightShoulder: at(centerX+leanX+70, shoulderY),
		models.JointLeftHip:       at(centerX-40, hipY),
		models.JointRightHip:      at(centerX+40, hipY),
		models.JointLeftKnee:      at(centerX-60+kneeOffset, kneeY),
		models.JointRightKnee:     at(centerX+60-kneeOffset, kneeY),
		models.JointLeftAnkle:     at(centerX-60, ankleY),
		models.JointRightAnkle:    at(centerX+60, ankleY),
	})
}
