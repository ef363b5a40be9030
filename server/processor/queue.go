package processor

import (
	"fmt"
	"sync"
	"time"

	"formcoach/server/models"
)

type AnalysisQueue struct {
	items      chan *QueueItem
	workers    int
	workerFunc func(*QueueItem)
	wg         sync.WaitGroup
	shutdown   chan struct{}
	isRunning  bool
	mutex      sync.RWMutex
}

type QueueItem struct {
	Request    *models.AnalyzeRequest
	ResultChan chan *AnalysisOutcome
}

type AnalysisOutcome struct {
	Analysis models.FormAnalysisResult
	Feedback models.FormFeedback
	Error    error
}

func NewAnalysisQueue(queueSize, workers int, workerFunc func(*QueueItem)) *AnalysisQueue {
	queue := &AnalysisQueue{
		items:      make(chan *QueueItem, queueSize),
		workers:    workers,
		workerFunc: workerFunc,
		shutdown:   make(chan struct{}),
		isRunning:  true,
	}

	for i := 0; i < workers; i++ {
		queue.wg.Add(1)
		go queue.worker(i)
	}

	return queue
}

func (aq *AnalysisQueue) worker(id int) {
	defer aq.wg.Done()

	for {
		select {
		case item := <-aq.items:
			if item != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							select {
							case item.ResultChan <- &AnalysisOutcome{
								Error: fmt.Errorf("worker panic: %v", r),
							}:
							default:
							}
						}
					}()

					aq.workerFunc(item)
				}()
			}
		case <-aq.shutdown:
			return
		}
	}
}

func (aq *AnalysisQueue) Enqueue(item *QueueItem) bool {
	aq.mutex.RLock()
	if !aq.isRunning {
		aq.mutex.RUnlock()
		return false
	}
	aq.mutex.RUnlock()

	select {
	case aq.items <- item:
		return true
	default:
		return false
	}
}

func (aq *AnalysisQueue) Size() int {
	return len(aq.items)
}

func (aq *AnalysisQueue) Capacity() int {
	return cap(aq.items)
}

func (aq *AnalysisQueue) IsRunning() bool {
	aq.mutex.RLock()
	defer aq.mutex.RUnlock()
	return aq.isRunning
}

func (aq *AnalysisQueue) Workers() int {
	return aq.workers
}

func (aq *AnalysisQueue) Shutdown(timeout time.Duration) error {
	aq.mutex.Lock()
	if !aq.isRunning {
		aq.mutex.Unlock()
		return nil
	}
	aq.isRunning = false
	aq.mutex.Unlock()

	close(aq.shutdown)

	done := make(chan struct{})
	go func() {
		aq.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// DrainQueue fails every queued item so no caller is left waiting on a
// result channel after shutdown.
func (aq *AnalysisQueue) DrainQueue() int {
	drained := 0

	for {
		select {
		case item := <-aq.items:
			if item != nil {
				select {
				case item.ResultChan <- &AnalysisOutcome{
					Error: fmt.Errorf("analysis cancelled, queue shutting down"),
				}:
				default:
				}
				drained++
			}
		default:
			return drained
		}
	}
}

func (aq *AnalysisQueue) GetQueueStats() QueueStats {
	aq.mutex.RLock()
	defer aq.mutex.RUnlock()

	return QueueStats{
		CurrentSize:        aq.Size(),
		MaxCapacity:        aq.Capacity(),
		ActiveWorkers:      aq.workers,
		IsRunning:          aq.isRunning,
		UtilizationPercent: float64(aq.Size()) / float64(aq.Capacity()) * 100,
	}
}

type QueueStats struct {
	CurrentSize        int     `json:"current_size"`
	MaxCapacity        int     `json:"max_capacity"`
	ActiveWorkers      int     `json:"active_workers"`
	IsRunning          bool    `json:"is_running"`
	UtilizationPercent float64 `json:"utilization_percent"`
}
