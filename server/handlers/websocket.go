package handlers

import (
	"net/http"
	"sync"
	"time"

	"formcoach/server/metrics"
	"formcoach/server/models"
	"formcoach/server/processor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxSetMessageSize = 1024 * 1024
	readDeadline      = 60 * time.Second
	pingInterval      = 54 * time.Second
	writeDeadline     = 10 * time.Second
)

type WebSocketHandler struct {
	processor *processor.SetProcessor
	metrics   *metrics.Manager
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

// ClientMessage is one inbound websocket message. A "set" message
// carries every frame of a completed set, a "ping" keeps the
// connection alive between sets.
type ClientMessage struct {
	Type      string                  `json:"type"`
	Exercise  models.ExerciseType     `json:"exercise,omitempty"`
	UserLevel models.UserFitnessLevel `json:"user_level,omitempty"`
	Frames    []models.PoseFrame      `json:"frames,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsClient wraps a connection so replies from analysis goroutines and
// pings from the keepalive goroutine never interleave a write.
type wsClient struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
}

func NewWebSocketHandler(setProcessor *processor.SetProcessor, metricsManager *metrics.Manager, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		processor: setProcessor,
		metrics:   metricsManager,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}
	defer conn.Close()

	clientIP := c.ClientIP()
	h.logger.Info("WebSocket client connected", zap.String("client_ip", clientIP))

	h.metrics.GaugeWSConnections.Inc()
	defer func() {
		h.metrics.GaugeWSConnections.Dec()
		h.logger.Info("WebSocket client disconnected", zap.String("client_ip", clientIP))
	}()

	client := &wsClient{conn: conn}

	conn.SetReadLimit(maxSetMessageSize)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	go h.pingRoutine(client, done)

	for {
		var message ClientMessage
		err := conn.ReadJSON(&message)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("Websocket error: ", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		h.handleMessage(client, &message)
	}
}

func (h *WebSocketHandler) handleMessage(client *wsClient, message *ClientMessage) {
	switch message.Type {
	case "set":
		h.processSet(client, message)
	case "ping":
		h.sendMessage(client, "pong", map[string]any{"timestamp": time.Now().Unix()})
	default:
		h.logger.Warn("Unknown message type received", zap.String("type", message.Type))
		h.sendError(client, "Unknown message type: "+message.Type)
	}
}

func (h *WebSocketHandler) processSet(client *wsClient, message *ClientMessage) {
	if message.Exercise == "" {
		h.sendError(client, "exercise is required")
		return
	}

	level := message.UserLevel
	if level == "" {
		level = models.LevelBeginner
	} else if !level.Valid() {
		h.sendError(client, "unknown user level: "+string(level))
		return
	}

	request := &models.AnalyzeRequest{
		Exercise:  message.Exercise,
		UserLevel: level,
		ClientID:  h.getClientID(client.conn),
		Frames:    message.Frames,
	}

	// Scoring can wait on the analysis queue, so it must not block the
	// read loop or the client's pong replies stop getting through.
	go func() {
		response, err := h.processor.AnalyzeSet(request)
		if err != nil {
			h.logger.Error("Set analysis failed",
				zap.String("exercise", string(message.Exercise)),
				zap.Error(err))
			h.sendError(client, err.Error())
			return
		}

		h.sendMessage(client, "analysis", response)
	}()
}

func (h *WebSocketHandler) sendMessage(client *wsClient, messageType string, data interface{}) {
	message := ServerMessage{
		Type: messageType,
		Data: data,
	}

	client.writeMutex.Lock()
	defer client.writeMutex.Unlock()

	client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := client.conn.WriteJSON(message); err != nil {
		h.logger.Error("Failed to send WebSocket message", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(client *wsClient, errorMsg string) {
	h.sendMessage(client, "error", map[string]interface{}{
		"message":   errorMsg,
		"timestamp": time.Now().Unix(),
	})
}

func (h *WebSocketHandler) pingRoutine(client *wsClient, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			client.writeMutex.Lock()
			err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline))
			client.writeMutex.Unlock()
			if err != nil {
				h.logger.Error("Failed to send ping", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) getClientID(conn *websocket.Conn) string {
	return conn.RemoteAddr().String()
}
