package estimator_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"formcoach/server/config"
	"formcoach/server/estimator"
	"formcoach/server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper"),
	)
}

func newClient(t *testing.T, baseURL string, maxRetries int) *estimator.Client {
	t.Helper()
	cfg := &config.EstimatorConfig{
		BaseURL:             baseURL,
		Timeout:             5 * time.Second,
		MaxRetries:          maxRetries,
		RetryDelay:          time.Millisecond,
		HealthCheckInterval: time.Hour,
		MinConfidence:       0.5,
	}
	client, err := estimator.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestEstimatePoses(t *testing.T) {
	var gotRequest estimator.EstimateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/estimate":
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
			response := estimator.EstimateResponse{
				Frames: []estimator.FramePoses{
					{
						Timestamp: 0,
						Keypoints: []estimator.PoseKeypoint{
							{Name: "left_hip", X: 280, Y: 400, Confidence: 0.91, Visible: true},
							{Name: "right_hip", X: 360, Y: 404, Confidence: 0.88, Visible: true},
							{Name: "left_knee", X: 270, Y: 250, Confidence: 0.3, Visible: true},
							{Name: "right_knee", X: 370, Y: 252, Confidence: 0.9, Visible: false},
						},
					},
					{
						Timestamp: 33,
						Keypoints: []estimator.PoseKeypoint{
							{Name: "left_hip", X: 281, Y: 390, Confidence: 0.9, Visible: true},
						},
					},
				},
				ProcessingTime: 12.5,
				ModelVersion:   "pose-v2",
			}
			require.NoError(t, json.NewEncoder(w).Encode(response))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := newClient(t, server.URL, 0)
	frames, err := client.EstimatePoses(&models.VideoAnalyzeRequest{
		Exercise:  models.ExerciseSquat,
		UserLevel: models.LevelBeginner,
		ClientID:  "client-7",
		VideoData: "ZmFrZS12aWRlbw==",
	})
	require.NoError(t, err)

	assert.Equal(t, "ZmFrZS12aWRlbw==", gotRequest.VideoData)
	assert.Equal(t, "client-7", gotRequest.Config["client_id"])
	assert.Equal(t, "squat", gotRequest.Config["exercise"])

	require.Len(t, frames, 2)

	// Low confidence and invisible keypoints never reach the engine.
	first := frames[0]
	assert.Equal(t, int64(0), first.Timestamp)
	require.Len(t, first.Keypoints, 2)
	assert.Contains(t, first.Keypoints, models.JointLeftHip)
	assert.Contains(t, first.Keypoints, models.JointRightHip)
	assert.NotContains(t, first.Keypoints, models.JointLeftKnee)
	assert.NotContains(t, first.Keypoints, models.JointRightKnee)
	assert.InDelta(t, 280.0, first.Keypoints[models.JointLeftHip].X, 1e-9)

	second := frames[1]
	assert.Equal(t, int64(33), second.Timestamp)
	assert.Len(t, second.Keypoints, 1)
}

func TestEstimatePosesRetries(t *testing.T) {
	var estimateCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/estimate":
			if estimateCalls.Add(1) < 3 {
				http.Error(w, "model loading", http.StatusServiceUnavailable)
				return
			}
			response := estimator.EstimateResponse{
				Frames: []estimator.FramePoses{{Timestamp: 0}},
			}
			require.NoError(t, json.NewEncoder(w).Encode(response))
		}
	}))
	t.Cleanup(server.Close)

	client := newClient(t, server.URL, 3)
	frames, err := client.EstimatePoses(&models.VideoAnalyzeRequest{
		Exercise:  models.ExerciseDeadlift,
		VideoData: "dmlkZW8=",
	})
	require.NoError(t, err)
	assert.Len(t, frames, 1)
	assert.Equal(t, int64(3), estimateCalls.Load())
}

func TestEstimatePosesGivesUp(t *testing.T) {
	var estimateCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/estimate":
			estimateCalls.Add(1)
			http.Error(w, "no gpu", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	client := newClient(t, server.URL, 2)
	frames, err := client.EstimatePoses(&models.VideoAnalyzeRequest{VideoData: "dmlkZW8="})
	require.Error(t, err)
	assert.Nil(t, frames)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "no gpu")
	assert.Equal(t, int64(3), estimateCalls.Load())
}

func TestHealthCheck(t *testing.T) {
	healthy := atomic.Bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" && healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	// NewClient tolerates an unhealthy service at startup.
	client := newClient(t, server.URL, 0)
	require.Error(t, client.HealthCheck())

	healthy.Store(true)
	require.NoError(t, client.HealthCheck())
}

func TestGetModelInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/models/info":
			require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
				"model_version": "pose-v2",
				"keypoints":     17,
			}))
		}
	}))
	t.Cleanup(server.Close)

	client := newClient(t, server.URL, 0)
	info, err := client.GetModelInfo()
	require.NoError(t, err)
	assert.Equal(t, "pose-v2", info["model_version"])
	assert.EqualValues(t, 17, info["keypoints"])
}
