package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"formcoach/server/analysis"
	"formcoach/server/models"
	"formcoach/server/processor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EstimatorStatus is the part of the pose estimation client the HTTP
// surface needs.
type EstimatorStatus interface {
	HealthCheck() error
	GetModelInfo() (map[string]interface{}, error)
}

type AnalysisHandler struct {
	processor  *processor.SetProcessor
	estimator  EstimatorStatus
	logger     *zap.Logger
	stats      *SystemStats
	statsMutex sync.Mutex
	startTime  time.Time
}

type SystemStats struct {
	TotalRequests  int64     `json:"total_requests"`
	ProcessedOK    int64     `json:"processed_ok"`
	ProcessedError int64     `json:"processed_error"`
	AvgProcessTime float64   `json:"avg_process_time_ms"`
	LastUpdated    time.Time `json:"last_updated"`
}

func NewAnalysisHandler(setProcessor *processor.SetProcessor, estimator EstimatorStatus, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		processor: setProcessor,
		estimator: estimator,
		logger:    logger,
		stats: &SystemStats{
			LastUpdated: time.Now(),
		},
		startTime: time.Now(),
	}
}

// ProcessSet scores a completed set of pose frames and returns the
// analysis together with coaching feedback.
func (h *AnalysisHandler) ProcessSet(c *gin.Context) {
	startTime := time.Now()
	h.countRequest()

	var request models.AnalyzeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Error("Invalid request format", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		h.countError()
		return
	}

	if request.Exercise == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exercise is required"})
		h.countError()
		return
	}

	level, ok := h.resolveLevel(c, request.UserLevel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown user level: " + string(request.UserLevel)})
		h.countError()
		return
	}
	request.UserLevel = level

	if request.ClientID == "" {
		request.ClientID = c.ClientIP()
	}

	response, err := h.processor.AnalyzeSet(&request)
	if err != nil {
		h.countError()
		h.analysisError(c, err)
		return
	}

	h.countSuccess(time.Since(startTime))
	c.JSON(http.StatusOK, response)
}

// SubmitVideo accepts an encoded exercise video and starts an
// asynchronous analysis job for it.
func (h *AnalysisHandler) SubmitVideo(c *gin.Context) {
	h.countRequest()

	var request models.VideoAnalyzeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Error("Invalid request format", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		h.countError()
		return
	}

	if request.Exercise == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exercise is required"})
		h.countError()
		return
	}

	if request.VideoData == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_data is required"})
		h.countError()
		return
	}
	if _, err := base64.StdEncoding.DecodeString(request.VideoData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_data must be base64 encoded"})
		h.countError()
		return
	}

	level, ok := h.resolveLevel(c, request.UserLevel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown user level: " + string(request.UserLevel)})
		h.countError()
		return
	}
	request.UserLevel = level

	if request.ClientID == "" {
		request.ClientID = c.ClientIP()
	}

	jobID := h.processor.SubmitVideoJob(&request)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"status":  processor.JobStatusProcessing,
		"message": "Video accepted, analysis started",
	})
}

func (h *AnalysisHandler) GetVideoJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.processor.GetJobStatus(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *AnalysisHandler) GetSession(c *gin.Context) {
	session, ok := h.processor.GetSession(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *AnalysisHandler) ListSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	sessions := h.processor.RecentSessions(limit)
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *AnalysisHandler) GetStats(c *gin.Context) {
	h.statsMutex.Lock()
	h.stats.LastUpdated = time.Now()
	statsCopy := *h.stats
	h.statsMutex.Unlock()

	var successRate, errorRate float64
	if statsCopy.TotalRequests > 0 {
		successRate = float64(statsCopy.ProcessedOK) / float64(statsCopy.TotalRequests) * 100
		errorRate = float64(statsCopy.ProcessedError) / float64(statsCopy.TotalRequests) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"system":    statsCopy,
		"processor": h.processor.GetStats(),
		"metrics": gin.H{
			"success_rate":   successRate,
			"error_rate":     errorRate,
			"uptime_seconds": time.Since(h.startTime).Seconds(),
		},
	})
}

// Health reports service liveness. Losing the pose estimation service
// degrades video uploads but keypoint submissions still work, so it is
// reported separately instead of failing the check.
func (h *AnalysisHandler) Health(c *gin.Context) {
	estimatorStatus := "ok"
	if err := h.estimator.HealthCheck(); err != nil {
		estimatorStatus = "unreachable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "formcoach",
		"estimator": estimatorStatus,
	})
}

func (h *AnalysisHandler) analysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, analysis.ErrNoPoseData), errors.Is(err, analysis.ErrUnsupportedExercise):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, processor.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server busy, try again later"})
	case errors.Is(err, processor.ErrAnalysisTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Analysis timed out, try again later"})
	default:
		h.logger.Error("Set analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed"})
	}
}

// resolveLevel falls back to the level from the auth token, then to
// beginner, which gets the most conservative coaching.
func (h *AnalysisHandler) resolveLevel(c *gin.Context, requested models.UserFitnessLevel) (models.UserFitnessLevel, bool) {
	if requested != "" {
		if !requested.Valid() {
			return "", false
		}
		return requested, true
	}

	if fromToken := c.GetString("user_level"); fromToken != "" {
		if level := models.UserFitnessLevel(fromToken); level.Valid() {
			return level, true
		}
	}

	return models.LevelBeginner, true
}

func (h *AnalysisHandler) countRequest() {
	h.statsMutex.Lock()
	h.stats.TotalRequests++
	h.statsMutex.Unlock()
}

func (h *AnalysisHandler) countError() {
	h.statsMutex.Lock()
	h.stats.ProcessedError++
	h.statsMutex.Unlock()
}

func (h *AnalysisHandler) countSuccess(duration time.Duration) {
	h.statsMutex.Lock()
	defer h.statsMutex.Unlock()

	h.stats.ProcessedOK++

	current := float64(duration.Microseconds()) / 1000.0
	if h.stats.AvgProcessTime == 0 {
		h.stats.AvgProcessTime = current
	} else {
		alpha := 0.1
		h.stats.AvgProcessTime = alpha*current + (1-alpha)*h.stats.AvgProcessTime
	}
}
