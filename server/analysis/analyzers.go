// Package analysis scores exercise form from 2-D pose keypoint sequences.
// Each criterion analyzer maps a sequence to a score in [0,1] plus the
// indices of frames it considers problematic. Frames missing a keypoint a
// criterion needs are skipped, not failed.
package analysis

import (
	"math"

	"formcoach/server/geometry"
	"formcoach/server/models"
)

const (
	kneeTrackingTolerance = 50.0 // px of lateral knee drift from the ankle
	barPathTolerance      = 30.0 // px of horizontal wrist drift from mid-foot
	spinalLeanTolerance   = 0.5  // rad of torso lean from vertical

	tempoSpreadDivisor = 10.0 // px/frame velocity spread that zeroes the score
	tempoMinSamples    = 4

	shoulderDriftGain = 2.0 // penalty multiplier on relative width drift

	standingRatio = 1.05 // hip/knee height ratio above which depth is shallow
	parallelRatio = 0.98 // ratio above which the hips are only near parallel

	depthShallowScore  = 0.5
	depthParallelScore = 0.7

	hipBelowKneeScore = 0.8
	hipAboveKneeScore = 0.5

	frameFlagThreshold = 0.6
	neutralScore       = 0.5
)

// clampedLinear maps a deviation to a score that falls linearly from 1 to 0
// as the deviation approaches and passes the tolerance.
func clampedLinear(deviation, tolerance float64) float64 {
	return math.Max(0, 1-deviation/tolerance)
}

// AnalyzeKneeTracking scores how well the knees track over the ankles
// instead of caving inward. A frame needs both knees and both ankles; the
// frame sub-score averages the two sides.
func AnalyzeKneeTracking(frames []models.PoseFrame) (models.FormScore, []int) {
	var sum float64
	var eligible int
	var flagged []int
	for i, f := range frames {
		leftKnee, ok1 := f.Point(models.JointLeftKnee)
		leftAnkle, ok2 := f.Point(models.JointLeftAnkle)
		rightKnee, ok3 := f.Point(models.JointRightKnee)
		rightAnkle, ok4 := f.Point(models.JointRightAnkle)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		left := clampedLinear(math.Abs(leftKnee.X-leftAnkle.X), kneeTrackingTolerance)
		right := clampedLinear(math.Abs(rightKnee.X-rightAnkle.X), kneeTrackingTolerance)
		sub := (left + right) / 2
		if sub < frameFlagThreshold {
			flagged = append(flagged, i)
		}
		sum += sub
		eligible++
	}
	if eligible == 0 {
		return 0, nil
	}
	return models.FormScore(sum / float64(eligible)), flagged
}

// AnalyzeSquatDepth tracks how low the hips travel relative to the knees.
// The worst frame governs: the score is a running minimum of a step function
// on the hip/knee height ratio, so a set that never breaks parallel cannot
// score above 0.7 and one that stays near standing is pinned at 0.5.
func AnalyzeSquatDepth(frames []models.PoseFrame) (models.FormScore, []int) {
	score := 1.0
	var eligible int
	var flagged []int
	for i, f := range frames {
		hip, ok1 := f.Mid(models.JointLeftHip, models.JointRightHip)
		knee, ok2 := f.Mid(models.JointLeftKnee, models.JointRightKnee)
		if !ok1 || !ok2 {
			continue
		}
		eligible++
		ratio := hip.Y / knee.Y
		switch {
		case ratio > standingRatio:
			score = math.Min(score, depthShallowScore)
			flagged = append(flagged, i)
		case ratio > parallelRatio:
			score = math.Min(score, depthParallelScore)
		}
	}
	if eligible == 0 {
		return 0, nil
	}
	return models.FormScore(score), flagged
}

// AnalyzeSpinalAlignment scores torso lean, measured shoulder midpoint to
// hip midpoint against vertical.
func AnalyzeSpinalAlignment(frames []models.PoseFrame) (models.FormScore, []int) {
	var sum float64
	var eligible int
	var flagged []int
	for i, f := range frames {
		shoulder, ok1 := f.Mid(models.JointLeftShoulder, models.JointRightShoulder)
		hip, ok2 := f.Mid(models.JointLeftHip, models.JointRightHip)
		if !ok1 || !ok2 {
			continue
		}
		lean := math.Abs(geometry.AngleFromVertical(shoulder, hip))
		sub := clampedLinear(lean, spinalLeanTolerance)
		if sub < frameFlagThreshold {
			flagged = append(flagged, i)
		}
		sum += sub
		eligible++
	}
	if eligible == 0 {
		return 0, nil
	}
	return models.FormScore(sum / float64(eligible)), flagged
}

// AnalyzeTempo scores movement consistency from the spread of frame-to-frame
// center-of-mass velocities. Sequences too short to judge get a neutral
// score. Tempo never flags individual frames.
func AnalyzeTempo(frames []models.PoseFrame) (models.FormScore, []int) {
	trace := comTrace(frames)
	if len(trace) < tempoMinSamples {
		return neutralScore, nil
	}
	velocities := make([]float64, 0, len(trace)-1)
	for i := 1; i < len(trace); i++ {
		velocities = append(velocities, geometry.Distance(trace[i-1], trace[i]))
	}
	return models.FormScore(math.Max(0, 1-stddev(velocities)/tempoSpreadDivisor)), nil
}

// AnalyzeBarPath scores how vertical the bar travels, using the wrist
// midpoint as the bar proxy and the ankle midpoint as the reference line.
func AnalyzeBarPath(frames []models.PoseFrame) (models.FormScore, []int) {
	var sum float64
	var eligible int
	var flagged []int
	for i, f := range frames {
		wrist, ok1 := f.Mid(models.JointLeftWrist, models.JointRightWrist)
		ankle, ok2 := f.Mid(models.JointLeftAnkle, models.JointRightAnkle)
		if !ok1 || !ok2 {
			continue
		}
		sub := clampedLinear(math.Abs(wrist.X-ankle.X), barPathTolerance)
		if sub < frameFlagThreshold {
			flagged = append(flagged, i)
		}
		sum += sub
		eligible++
	}
	if eligible == 0 {
		return 0, nil
	}
	return models.FormScore(sum / float64(eligible)), flagged
}

// AnalyzeHipHinge checks per frame whether the hip midpoint sits below the
// knee midpoint, rewarding a deep hinge. It never flags frames.
func AnalyzeHipHinge(frames []models.PoseFrame) (models.FormScore, []int) {
	var sum float64
	var eligible int
	for _, f := range frames {
		hip, ok1 := f.Mid(models.JointLeftHip, models.JointRightHip)
		knee, ok2 := f.Mid(models.JointLeftKnee, models.JointRightKnee)
		if !ok1 || !ok2 {
			continue
		}
		if hip.Y < knee.Y {
			sum += hipBelowKneeScore
		} else {
			sum += hipAboveKneeScore
		}
		eligible++
	}
	if eligible == 0 {
		return 0, nil
	}
	return models.FormScore(sum / float64(eligible)), nil
}

// AnalyzeShoulderStability measures how much the shoulder width wanders from
// its first observed value. It never flags frames.
func AnalyzeShoulderStability(frames []models.PoseFrame) (models.FormScore, []int) {
	baseline := -1.0
	var sum float64
	var eligible int
	for _, f := range frames {
		left, ok1 := f.Point(models.JointLeftShoulder)
		right, ok2 := f.Point(models.JointRightShoulder)
		if !ok1 || !ok2 {
			continue
		}
		width := geometry.Distance(left, right)
		if baseline < 0 {
			if width == 0 {
				return 0, nil
			}
			baseline = width
			sum++
			eligible++
			continue
		}
		drift := math.Abs(width-baseline) / baseline
		sum += math.Max(0, 1-drift*shoulderDriftGain)
		eligible++
	}
	if eligible == 0 {
		return 0, nil
	}
	return models.FormScore(sum / float64(eligible)), nil
}

func comTrace(frames []models.PoseFrame) []geometry.Point {
	var trace []geometry.Point
	for _, f := range frames {
		if com, ok := f.CenterOfMass(); ok {
			trace = append(trace, com)
		}
	}
	return trace
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
