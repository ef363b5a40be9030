// Package estimator talks to the external pose estimation service that
// turns raw exercise video into per-frame joint keypoints.
package estimator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"formcoach/server/config"
	"formcoach/server/models"

	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     *config.EstimatorConfig
	stopCh     chan struct{}
}

type EstimateRequest struct {
	VideoData string                 `json:"video_data"`
	Config    map[string]interface{} `json:"config,omitempty"`
}

type EstimateResponse struct {
	Frames         []FramePoses `json:"frames"`
	ProcessingTime float64      `json:"processing_time"`
	ModelVersion   string       `json:"model_version"`
}

type FramePoses struct {
	Timestamp int64          `json:"timestamp"`
	Keypoints []PoseKeypoint `json:"keypoints"`
}

type PoseKeypoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
	Visible    bool    `json:"visible"`
}

func NewClient(cfg *config.EstimatorConfig, logger *zap.Logger) (*Client, error) {
	client := &Client{
		baseURL: cfg.BaseURL,
		logger:  logger,
		config:  cfg,
		stopCh:  make(chan struct{}),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
	}

	if err := client.HealthCheck(); err != nil {
		logger.Warn("Pose estimation service not available at startup", zap.Error(err))
	}

	go client.startHealthChecker()

	return client, nil
}

// EstimatePoses submits an encoded video to the estimation service and
// returns the keypoint frames it detected, retrying transient failures.
func (c *Client) EstimatePoses(request *models.VideoAnalyzeRequest) ([]models.PoseFrame, error) {
	estimateRequest := &EstimateRequest{
		VideoData: request.VideoData,
		Config: map[string]interface{}{
			"client_id": request.ClientID,
			"exercise":  string(request.Exercise),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying pose estimation request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			time.Sleep(c.config.RetryDelay * time.Duration(attempt))
		}

		frames, err := c.executeEstimateRequest(estimateRequest)
		if err == nil {
			return frames, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("pose estimation failed after %d attempts: %w",
		c.config.MaxRetries, lastErr)
}

func (c *Client) executeEstimateRequest(request *EstimateRequest) ([]models.PoseFrame, error) {
	requestData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/estimate", c.baseURL)
	httpRequest, err := http.NewRequest("POST", url, bytes.NewBuffer(requestData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", "formcoach/1.0")

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("pose estimation service error (status %d): %s",
			response.StatusCode, string(bodyBytes))
	}

	var estimateResponse EstimateResponse
	if err := json.NewDecoder(response.Body).Decode(&estimateResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return c.convertResponse(&estimateResponse), nil
}

// convertResponse keeps only keypoints the model both saw and is
// confident about, so downstream scoring never reads guessed joints.
func (c *Client) convertResponse(response *EstimateResponse) []models.PoseFrame {
	frames := make([]models.PoseFrame, 0, len(response.Frames))
	for _, framePoses := range response.Frames {
		frame := models.PoseFrame{
			Timestamp: framePoses.Timestamp,
			Keypoints: make(map[models.Joint]models.Keypoint),
		}
		for _, keypoint := range framePoses.Keypoints {
			if keypoint.Visible && keypoint.Confidence > c.config.MinConfidence {
				frame.Keypoints[models.Joint(keypoint.Name)] = models.Keypoint{
					X:          keypoint.X,
					Y:          keypoint.Y,
					Confidence: keypoint.Confidence,
				}
			}
		}
		frames = append(frames, frame)
	}
	return frames
}

func (c *Client) HealthCheck() error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	response, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("pose estimation service unhealthy (status %d)", response.StatusCode)
	}

	return nil
}

func (c *Client) GetModelInfo() (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/models/info", c.baseURL)

	response, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model info request failed (status %d)", response.StatusCode)
	}

	var modelInfo map[string]interface{}
	if err := json.NewDecoder(response.Body).Decode(&modelInfo); err != nil {
		return nil, fmt.Errorf("failed to decode model info: %w", err)
	}

	return modelInfo, nil
}

func (c *Client) startHealthChecker() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.HealthCheck(); err != nil {
				c.logger.Error("Pose estimation service health check failed", zap.Error(err))
			} else {
				c.logger.Debug("Pose estimation service health check passed")
			}
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the background health checker.
func (c *Client) Close() {
	close(c.stopCh)
	c.httpClient.CloseIdleConnections()
}
