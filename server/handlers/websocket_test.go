package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"formcoach/server/models"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWebSocket(t *testing.T, stack *testStack) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(stack.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var message serverMessage
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestWebSocketSetAnalysis(t *testing.T) {
	stack := newStack(t, &stubEstimator{})
	conn := dialWebSocket(t, stack)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":       "set",
		"exercise":   models.ExerciseSquat,
		"user_level": models.LevelBeginner,
		"frames":     squatFrames(350),
	}))

	message := readMessage(t, conn)
	require.Equal(t, "analysis", message.Type)

	var response models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(message.Data, &response))
	assert.NotEmpty(t, response.SessionID)
	assert.Equal(t, models.ExerciseSquat, response.Analysis.Exercise)
	assert.InDelta(t, 0.925, float64(response.Analysis.OverallScore), 1e-9)
	assert.NotEmpty(t, response.Feedback.MainFeedback)
}

func TestWebSocketPing(t *testing.T) {
	stack := newStack(t, &stubEstimator{})
	conn := dialWebSocket(t, stack)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ping"}))

	message := readMessage(t, conn)
	assert.Equal(t, "pong", message.Type)
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	stack := newStack(t, &stubEstimator{})
	conn := dialWebSocket(t, stack)

	t.Run("unknown message type", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "selfie"}))

		message := readMessage(t, conn)
		require.Equal(t, "error", message.Type)
		assert.Contains(t, string(message.Data), "Unknown message type")
	})

	t.Run("set without exercise", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type":   "set",
			"frames": squatFrames(350),
		}))

		message := readMessage(t, conn)
		require.Equal(t, "error", message.Type)
		assert.Contains(t, string(message.Data), "exercise is required")
	})

	t.Run("set with unsupported exercise", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type":     "set",
			"exercise": "yoga",
			"frames":   squatFrames(350),
		}))

		message := readMessage(t, conn)
		require.Equal(t, "error", message.Type)
		assert.Contains(t, string(message.Data), "unsupported exercise")
	})
}

func TestWebSocketConnectionGauge(t *testing.T) {
	stack := newStack(t, &stubEstimator{})
	conn := dialWebSocket(t, stack)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(stack.metrics.GaugeWSConnections) == 1.0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(stack.metrics.GaugeWSConnections) == 0.0
	}, time.Second, 5*time.Millisecond)
}
