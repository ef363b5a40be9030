package handlers

import (
	"net/http"

	"formcoach/server/processor"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LimiterStats is the rate limiter view exposed on the admin surface.
type LimiterStats interface {
	GetGlobalStats() map[string]interface{}
}

// AdminHandler serves the operator endpoints. Routes using it must sit
// behind the admin role check.
type AdminHandler struct {
	processor *processor.SetProcessor
	estimator EstimatorStatus
	limiter   LimiterStats
	logger    *zap.Logger
}

func NewAdminHandler(setProcessor *processor.SetProcessor, estimator EstimatorStatus, limiter LimiterStats, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		processor: setProcessor,
		estimator: estimator,
		limiter:   limiter,
		logger:    logger,
	}
}

// GetStats aggregates the internals the public stats endpoint leaves
// out: queue depth, cache backend state, rate limiter buckets and the
// estimator model version.
func (h *AdminHandler) GetStats(c *gin.Context) {
	response := gin.H{
		"processor":    h.processor.GetStats(),
		"queue":        h.processor.GetQueueStats(),
		"rate_limiter": h.limiter.GetGlobalStats(),
	}

	cacheStats, err := h.processor.GetCacheStats()
	if err != nil {
		h.logger.Warn("Failed to collect cache stats", zap.Error(err))
	} else {
		response["cache"] = cacheStats
	}

	// Best effort, the estimator may be down.
	if modelInfo, err := h.estimator.GetModelInfo(); err == nil {
		response["estimator_model"] = modelInfo
	}

	c.JSON(http.StatusOK, response)
}

// PurgeCache drops all cached analysis results.
func (h *AdminHandler) PurgeCache(c *gin.Context) {
	if err := h.processor.PurgeCache(); err != nil {
		h.logger.Error("Cache purge failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge cache"})
		return
	}

	h.logger.Info("Cache purged", zap.String("requested_by", c.GetString("username")))
	c.JSON(http.StatusOK, gin.H{"status": "purged"})
}
