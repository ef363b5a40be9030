package processor_test

import (
	"testing"
	"time"

	"formcoach/server/models"
	"formcoach/server/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisQueueProcessesItems(t *testing.T) {
	queue := processor.NewAnalysisQueue(4, 2, func(item *processor.QueueItem) {
		item.ResultChan <- &processor.AnalysisOutcome{
			Analysis: models.FormAnalysisResult{Exercise: item.Request.Exercise},
		}
	})
	t.Cleanup(func() { require.NoError(t, queue.Shutdown(time.Second)) })

	resultChan := make(chan *processor.AnalysisOutcome, 1)
	ok := queue.Enqueue(&processor.QueueItem{
		Request:    &models.AnalyzeRequest{Exercise: models.ExerciseSquat},
		ResultChan: resultChan,
	})
	require.True(t, ok)

	select {
	case outcome := <-resultChan:
		require.NoError(t, outcome.Error)
		assert.Equal(t, models.ExerciseSquat, outcome.Analysis.Exercise)
	case <-time.After(time.Second):
		t.Fatal("no outcome within a second")
	}
}

func TestAnalysisQueueFull(t *testing.T) {
	started := make(chan struct{}, 4)
	gate := make(chan struct{})
	queue := processor.NewAnalysisQueue(1, 1, func(item *processor.QueueItem) {
		started <- struct{}{}
		<-gate
	})
	t.Cleanup(func() {
		close(gate)
		require.NoError(t, queue.Shutdown(time.Second))
	})

	item := func() *processor.QueueItem {
		return &processor.QueueItem{
			Request:    &models.AnalyzeRequest{Exercise: models.ExerciseSquat},
			ResultChan: make(chan *processor.AnalysisOutcome, 1),
		}
	}

	// First item occupies the only worker, second fills the buffer.
	require.True(t, queue.Enqueue(item()))
	<-started
	require.True(t, queue.Enqueue(item()))
	assert.False(t, queue.Enqueue(item()))

	assert.Equal(t, 1, queue.Size())
	stats := queue.GetQueueStats()
	assert.Equal(t, 1, stats.CurrentSize)
	assert.Equal(t, 1, stats.MaxCapacity)
	assert.Equal(t, 1, stats.ActiveWorkers)
	assert.True(t, stats.IsRunning)
	assert.InDelta(t, 100.0, stats.UtilizationPercent, 1e-9)
}

func TestAnalysisQueueShutdown(t *testing.T) {
	queue := processor.NewAnalysisQueue(2, 1, func(item *processor.QueueItem) {
		item.ResultChan <- &processor.AnalysisOutcome{}
	})

	require.NoError(t, queue.Shutdown(time.Second))
	assert.False(t, queue.IsRunning())

	resultChan := make(chan *processor.AnalysisOutcome, 1)
	assert.False(t, queue.Enqueue(&processor.QueueItem{ResultChan: resultChan}))

	// A second shutdown is a no-op.
	require.NoError(t, queue.Shutdown(time.Second))
}

func TestAnalysisQueueDrain(t *testing.T) {
	queue := processor.NewAnalysisQueue(4, 0, nil)
	t.Cleanup(func() { require.NoError(t, queue.Shutdown(time.Second)) })

	channels := make([]chan *processor.AnalysisOutcome, 3)
	for i := range channels {
		channels[i] = make(chan *processor.AnalysisOutcome, 1)
		require.True(t, queue.Enqueue(&processor.QueueItem{ResultChan: channels[i]}))
	}
	require.Equal(t, 3, queue.Size())

	assert.Equal(t, 3, queue.DrainQueue())
	for _, ch := range channels {
		outcome := <-ch
		require.Error(t, outcome.Error)
		assert.Contains(t, outcome.Error.Error(), "queue shutting down")
	}
	assert.Equal(t, 0, queue.Size())
}

func TestAnalysisQueueWorkerPanic(t *testing.T) {
	queue := processor.NewAnalysisQueue(2, 1, func(item *processor.QueueItem) {
		panic("scoring exploded")
	})
	t.Cleanup(func() { require.NoError(t, queue.Shutdown(time.Second)) })

	resultChan := make(chan *processor.AnalysisOutcome, 1)
	require.True(t, queue.Enqueue(&processor.QueueItem{ResultChan: resultChan}))

	select {
	case outcome := <-resultChan:
		require.Error(t, outcome.Error)
		assert.Contains(t, outcome.Error.Error(), "worker panic")
		assert.Contains(t, outcome.Error.Error(), "scoring exploded")
	case <-time.After(time.Second):
		t.Fatal("no outcome within a second")
	}
}
