package analysis

import "formcoach/server/models"

const repMinSamples = 11

// CountReps estimates completed repetitions from vertical center-of-mass
// travel. A rep needs both a peak and a valley, so the count is the smaller
// of the two totals. Extrema are strict: a flat plateau at a turnaround
// breaks the comparison and that turnaround goes uncounted. Traces shorter
// than repMinSamples count zero.
func CountReps(frames []models.PoseFrame) int {
	trace := comTrace(frames)
	if len(trace) < repMinSamples {
		return 0
	}
	var peaks, valleys int
	for i := 1; i < len(trace)-1; i++ {
		prev, cur, next := trace[i-1].Y, trace[i].Y, trace[i+1].Y
		switch {
		case cur > prev && cur > next:
			peaks++
		case cur < prev && cur < next:
			valleys++
		}
	}
	return min(peaks, valleys)
}
