package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"formcoach/server/analysis"
	"formcoach/server/models"
)

func TestCountReps(t *testing.T) {
	t.Run("counts full sinusoidal cycles", func(t *testing.T) {
		for _, cycles := range []int{1, 2, 3, 5} {
			assert.Equal(t, cycles, analysis.CountReps(sineHipFrames(cycles, 12)), "cycles=%d", cycles)
		}
	})

	t.Run("short traces count zero", func(t *testing.T) {
		frames := make([]models.PoseFrame, 0, 10)
		for i := 0; i < 10; i++ {
			y := 500.0
			if i%2 == 1 {
				y = 400
			}
			frames = append(frames, hipsAt(320, y))
		}
		assert.Zero(t, analysis.CountReps(frames))
	})

	t.Run("frames without hips do not extend the trace", func(t *testing.T) {
		frames := sineHipFrames(2, 4) // 9 hip samples, below the minimum
		for i := 0; i < 10; i++ {
			frames = append(frames, frameOf(joints{}))
		}
		assert.Zero(t, analysis.CountReps(frames))
	})

	t.Run("monotonic descent has no reps", func(t *testing.T) {
		var frames []models.PoseFrame
		for y := 600.0; y >= 300; y -= 20 {
			frames = append(frames, hipsAt(320, y))
		}
		assert.Zero(t, analysis.CountReps(frames))
	})

	t.Run("flat turnarounds go uncounted", func(t *testing.T) {
		// two visible oscillations, but every peak and valley is a plateau
		ys := []float64{500, 550, 550, 500, 450, 450, 500, 550, 550, 500, 450, 450, 500}
		frames := make([]models.PoseFrame, 0, len(ys))
		for _, y := range ys {
			frames = append(frames, hipsAt(320, y))
		}
		assert.Zero(t, analysis.CountReps(frames))
	})

	t.Run("count is the lesser of peaks and valleys", func(t *testing.T) {
		// rises to a single peak mid-set: one peak, no valleys
		ys := []float64{100, 150, 200, 250, 300, 350, 300, 250, 200, 150, 100, 50}
		frames := make([]models.PoseFrame, 0, len(ys))
		for _, y := range ys {
			frames = append(frames, hipsAt(320, y))
		}
		assert.Zero(t, analysis.CountReps(frames))
	})
}
