package processor

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"formcoach/server/analysis"
	"formcoach/server/cache"
	"formcoach/server/config"
	"formcoach/server/feedback"
	"formcoach/server/metrics"
	"formcoach/server/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull       = errors.New("analysis queue full")
	ErrAnalysisTimeout = errors.New("analysis timed out")
	ErrJobNotFound     = errors.New("job not found")
)

const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// SetProcessor runs submitted sets through the scoring engine on a
// bounded worker queue, records the resulting sessions, and tracks
// asynchronous video analysis jobs.
type SetProcessor struct {
	estimator  PoseEstimator
	logger     *zap.Logger
	queue      *AnalysisQueue
	stats      processorStats
	cfg        *config.AnalysisConfig
	mutex      sync.RWMutex
	jobTracker map[string]*VideoJob
	sessions   *SessionStore
	cache      cache.Cache
	metrics    *metrics.Manager
	ctx        context.Context
	cancel     context.CancelFunc
}

// PoseEstimator extracts keypoint frames from an uploaded video.
type PoseEstimator interface {
	EstimatePoses(request *models.VideoAnalyzeRequest) ([]models.PoseFrame, error)
}

type processorStats struct {
	totalAnalyses  int64
	totalErrors    int64
	cacheHits      int64
	cacheMisses    int64
	averageLatency float64
}

type VideoJob struct {
	ID        string                     `json:"id"`
	Exercise  models.ExerciseType        `json:"exercise"`
	Status    string                     `json:"status"`
	Progress  float64                    `json:"progress"`
	StartTime time.Time                  `json:"start_time"`
	SessionID string                     `json:"session_id,omitempty"`
	Analysis  *models.FormAnalysisResult `json:"analysis,omitempty"`
	Feedback  *models.FormFeedback       `json:"feedback,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// cachedOutcome is the cacheable part of an analysis. Session IDs are
// minted per request and never cached.
type cachedOutcome struct {
	Analysis models.FormAnalysisResult `json:"analysis"`
	Feedback models.FormFeedback       `json:"feedback"`
}

func NewSetProcessor(
	estimator PoseEstimator,
	resultCache cache.Cache,
	cfg *config.AnalysisConfig,
	metricsManager *metrics.Manager,
	logger *zap.Logger,
) *SetProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	sp := &SetProcessor{
		estimator:  estimator,
		logger:     logger,
		cfg:        cfg,
		jobTracker: make(map[string]*VideoJob),
		sessions:   NewSessionStore(cfg.SessionHistory),
		cache:      resultCache,
		metrics:    metricsManager,
		ctx:        ctx,
		cancel:     cancel,
	}

	sp.queue = NewAnalysisQueue(cfg.QueueSize, cfg.Workers, sp.processSet)

	return sp
}

// AnalyzeSet scores one set of pose frames and records a session for it.
// Identical sets are served from the result cache.
func (sp *SetProcessor) AnalyzeSet(request *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	startTime := time.Now()

	cacheKey := sp.resultCacheKey(request)

	if sp.cache != nil && cacheKey != "" {
		var cached cachedOutcome
		if err := sp.cache.Get(sp.ctx, cacheKey, &cached); err == nil {
			sp.logger.Debug("Analysis cache hit", zap.String("key", cacheKey))
			sp.metrics.CounterCacheHits.Inc()
			sp.noteCacheHit()

			session := sp.storeSession(request.ClientID, request.UserLevel, cached.Analysis, cached.Feedback)
			return &models.AnalyzeResponse{
				SessionID:      session.ID,
				Analysis:       cached.Analysis,
				Feedback:       cached.Feedback,
				CacheHit:       true,
				ProcessingTime: elapsedMillis(startTime),
			}, nil
		}
		sp.metrics.CounterCacheMisses.Inc()
		sp.noteCacheMiss()
	}

	resultChan := make(chan *AnalysisOutcome, 1)

	queueItem := &QueueItem{
		Request:    request,
		ResultChan: resultChan,
	}

	if !sp.queue.Enqueue(queueItem) {
		sp.noteFailure()
		return nil, ErrQueueFull
	}
	sp.metrics.GaugeQueueDepth.Set(float64(sp.queue.Size()))

	select {
	case outcome := <-resultChan:
		if outcome.Error != nil {
			sp.noteFailure()
			sp.metrics.CounterAnalysisErrors.Inc()
			sp.metrics.CounterAnalyses.WithLabelValues(string(request.Exercise), "error").Inc()
			return nil, outcome.Error
		}

		latency := time.Since(startTime)
		sp.noteSuccess(latency)
		sp.metrics.HistAnalysisDuration.Observe(latency.Seconds())
		sp.metrics.CounterAnalyses.WithLabelValues(string(request.Exercise), "ok").Inc()

		// Written before returning so an identical set submitted right
		// after this response is a guaranteed hit.
		if sp.cache != nil && cacheKey != "" {
			stored := cachedOutcome{Analysis: outcome.Analysis, Feedback: outcome.Feedback}
			if err := sp.cache.SetWithTTL(sp.ctx, cacheKey, stored, sp.cfg.ResultCacheTTL); err != nil {
				sp.logger.Warn("Failed to cache analysis result", zap.Error(err))
			}
		}

		session := sp.storeSession(request.ClientID, request.UserLevel, outcome.Analysis, outcome.Feedback)

		return &models.AnalyzeResponse{
			SessionID:      session.ID,
			Analysis:       outcome.Analysis,
			Feedback:       outcome.Feedback,
			ProcessingTime: elapsedMillis(startTime),
		}, nil

	case <-time.After(sp.cfg.ProcessingTimeout):
		sp.noteFailure()
		return nil, ErrAnalysisTimeout
	}
}

func (sp *SetProcessor) processSet(item *QueueItem) {
	defer func() {
		if r := recover(); r != nil {
			sp.logger.Error("Set analysis panic", zap.Any("panic", r))
			item.ResultChan <- &AnalysisOutcome{
				Error: fmt.Errorf("analysis failed: %v", r),
			}
		}
	}()

	result, err := analysis.Evaluate(item.Request.Frames, item.Request.Exercise)
	if err != nil {
		sp.logger.Warn("Set analysis rejected",
			zap.String("exercise", string(item.Request.Exercise)),
			zap.Error(err))
		item.ResultChan <- &AnalysisOutcome{Error: err}
		return
	}

	item.ResultChan <- &AnalysisOutcome{
		Analysis: result,
		Feedback: feedback.Generate(result, item.Request.UserLevel),
	}
}

// SubmitVideoJob starts asynchronous analysis of an uploaded video and
// returns the job ID to poll.
func (sp *SetProcessor) SubmitVideoJob(request *models.VideoAnalyzeRequest) string {
	job := &VideoJob{
		ID:        uuid.NewString(),
		Exercise:  request.Exercise,
		Status:    JobStatusProcessing,
		StartTime: time.Now(),
	}

	sp.mutex.Lock()
	sp.jobTracker[job.ID] = job
	sp.mutex.Unlock()

	sp.metrics.GaugeActiveJobs.Inc()
	go sp.processVideo(job, request)

	return job.ID
}

func (sp *SetProcessor) processVideo(job *VideoJob, request *models.VideoAnalyzeRequest) {
	defer sp.metrics.GaugeActiveJobs.Dec()
	defer func() {
		if r := recover(); r != nil {
			sp.logger.Error("Video processing panic",
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
			sp.failJob(job, fmt.Sprintf("video processing failed: %v", r))
		}
	}()

	sp.logger.Info("Video processing started",
		zap.String("job_id", job.ID),
		zap.String("exercise", string(request.Exercise)))

	frames, err := sp.estimator.EstimatePoses(request)
	if err != nil {
		sp.logger.Error("Pose estimation failed", zap.String("job_id", job.ID), zap.Error(err))
		sp.failJob(job, err.Error())
		return
	}
	sp.setProgress(job, 50)

	response, err := sp.AnalyzeSet(&models.AnalyzeRequest{
		Exercise:  request.Exercise,
		UserLevel: request.UserLevel,
		ClientID:  request.ClientID,
		Frames:    frames,
	})
	if err != nil {
		sp.failJob(job, err.Error())
		return
	}

	sp.mutex.Lock()
	job.Status = JobStatusCompleted
	job.Progress = 100
	job.SessionID = response.SessionID
	job.Analysis = &response.Analysis
	job.Feedback = &response.Feedback
	sp.mutex.Unlock()

	sp.logger.Info("Video processing finished",
		zap.String("job_id", job.ID),
		zap.String("session_id", response.SessionID))
}

// GetJobStatus returns a snapshot of the job, safe to serialize while
// the worker keeps updating the original.
func (sp *SetProcessor) GetJobStatus(jobID string) (*VideoJob, error) {
	sp.mutex.RLock()
	defer sp.mutex.RUnlock()

	job, exists := sp.jobTracker[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}

	jobCopy := *job
	return &jobCopy, nil
}

func (sp *SetProcessor) GetSession(id string) (*models.Session, bool) {
	return sp.sessions.Get(id)
}

func (sp *SetProcessor) RecentSessions(limit int) []*models.Session {
	return sp.sessions.Recent(limit)
}

func (sp *SetProcessor) GetStats() *models.ProcessingStats {
	sp.mutex.RLock()
	defer sp.mutex.RUnlock()

	activeJobs := 0
	for _, job := range sp.jobTracker {
		if job.Status == JobStatusProcessing {
			activeJobs++
		}
	}

	return &models.ProcessingStats{
		TotalAnalyses:  sp.stats.totalAnalyses,
		TotalErrors:    sp.stats.totalErrors,
		CacheHits:      sp.stats.cacheHits,
		CacheMisses:    sp.stats.cacheMisses,
		AverageLatency: sp.stats.averageLatency,
		QueueSize:      sp.queue.Size(),
		ActiveJobs:     activeJobs,
		StoredSessions: sp.sessions.Len(),
	}
}

func (sp *SetProcessor) GetQueueStats() QueueStats {
	return sp.queue.GetQueueStats()
}

func (sp *SetProcessor) GetCacheStats() (*cache.CacheStats, error) {
	if sp.cache == nil {
		return nil, fmt.Errorf("cache not initialized")
	}
	return sp.cache.GetStats(sp.ctx)
}

func (sp *SetProcessor) PurgeCache() error {
	if sp.cache == nil {
		return fmt.Errorf("cache not initialized")
	}
	return sp.cache.Purge(sp.ctx)
}

// resultCacheKey hashes the submitted frames so identical sets share a
// cache entry. The user level shapes the coaching text, so it is part
// of the key.
func (sp *SetProcessor) resultCacheKey(request *models.AnalyzeRequest) string {
	frameData, err := json.Marshal(request.Frames)
	if err != nil {
		return ""
	}
	frameHash := fmt.Sprintf("%x", md5.Sum(frameData))
	return cache.GenerateCacheKey("analysis", string(request.Exercise), string(request.UserLevel), frameHash)
}

func (sp *SetProcessor) storeSession(
	clientID string,
	level models.UserFitnessLevel,
	result models.FormAnalysisResult,
	formFeedback models.FormFeedback,
) *models.Session {
	session := &models.Session{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Exercise:  result.Exercise,
		Level:     level,
		Analysis:  result,
		Feedback:  formFeedback,
		CreatedAt: time.Now(),
	}
	sp.sessions.Add(session)
	return session
}

func (sp *SetProcessor) setProgress(job *VideoJob, progress float64) {
	sp.mutex.Lock()
	job.Progress = progress
	sp.mutex.Unlock()
}

func (sp *SetProcessor) failJob(job *VideoJob, message string) {
	sp.mutex.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	sp.mutex.Unlock()
}

func (sp *SetProcessor) noteCacheHit() {
	sp.mutex.Lock()
	sp.stats.cacheHits++
	sp.stats.totalAnalyses++
	sp.mutex.Unlock()
}

func (sp *SetProcessor) noteCacheMiss() {
	sp.mutex.Lock()
	sp.stats.cacheMisses++
	sp.mutex.Unlock()
}

func (sp *SetProcessor) noteFailure() {
	sp.mutex.Lock()
	sp.stats.totalErrors++
	sp.mutex.Unlock()
}

func (sp *SetProcessor) noteSuccess(latency time.Duration) {
	sp.mutex.Lock()
	defer sp.mutex.Unlock()

	sp.stats.totalAnalyses++

	current := float64(latency.Microseconds()) / 1000.0
	if sp.stats.averageLatency == 0 {
		sp.stats.averageLatency = current
	} else {
		const alpha = 0.1
		sp.stats.averageLatency = alpha*current + (1-alpha)*sp.stats.averageLatency
	}
}

func elapsedMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// Shutdown stops the workers, fails whatever is still queued, and
// closes the result cache.
func (sp *SetProcessor) Shutdown() error {
	sp.logger.Info("Shutting down analysis processor...")

	sp.cancel()

	if err := sp.queue.Shutdown(30 * time.Second); err != nil {
		sp.logger.Error("Failed to shutdown analysis queue", zap.Error(err))
		return err
	}
	sp.queue.DrainQueue()

	if sp.cache != nil {
		if err := sp.cache.Close(); err != nil {
			sp.logger.Error("Failed to close cache", zap.Error(err))
			return err
		}
	}

	sp.logger.Info("Analysis processor shutdown complete")
	return nil
}
