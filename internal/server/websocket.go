package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement is left to the deployment proxy.
		return true
	},
}

// WebSocketDetectRequest is a detection request sent over WebSocket. Image
// is the raw encoded file (base64 in JSON).
type WebSocketDetectRequest struct {
	Type  string `json:"type"`
	Image []byte `json:"image,omitempty"`
}

// WebSocketDetectResponse is a server message: per-crop progress while the
// run is in flight, then the fused result.
type WebSocketDetectResponse struct {
	Type       string      `json:"type"`
	Status     string      `json:"status"` // "processing", "completed", "error"
	Progress   float64     `json:"progress,omitempty"`
	CropsDone  int         `json:"crops_done,omitempty"`
	CropsTotal int         `json:"crops_total,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
}

// wsConn serializes writes; the pipeline's progress callback fires from
// multiple worker goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

// detectWebSocketHandler upgrades the connection and serves detection
// requests with streamed progress.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(&wsConn{conn: conn})
}

func (s *Server) handleWebSocketConnection(c *wsConn) {
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// keepalive pings
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(c, data)
		}
	}
}

func (s *Server) handleWebSocketMessage(c *wsConn, data []byte) {
	var req WebSocketDetectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(c, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Type != "detect" {
		s.sendWebSocketError(c, "Unsupported request type: "+req.Type)
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)
	_ = c.writeJSON(WebSocketDetectResponse{
		Type:      "detect_response",
		Status:    "processing",
		RequestID: requestID,
	})
	s.processWebSocketDetect(c, req, requestID)
}

func (s *Server) processWebSocketDetect(c *wsConn, req WebSocketDetectRequest, requestID string) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(c, "No image data provided")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(c, fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	if s.pipeline == nil {
		s.sendWebSocketError(c, "Detection pipeline not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
	defer cancel()

	progress := func(done, total int) {
		_ = c.writeJSON(WebSocketDetectResponse{
			Type:       "detect_response",
			Status:     "processing",
			Progress:   float64(done) / float64(total),
			CropsDone:  done,
			CropsTotal: total,
			RequestID:  requestID,
		})
	}

	res, err := s.pipeline.RunWithProgress(ctx, img, progress)
	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(c, fmt.Sprintf("Detection failed: %v", err))
		return
	}
	observeRun("websocket", res.Len(), res.Crops, res.FailedCrops, res.ProcessingTime.Seconds())

	_ = c.writeJSON(WebSocketDetectResponse{
		Type:      "detect_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    res.ToStruct(),
		RequestID: requestID,
	})
}

func (s *Server) sendWebSocketError(c *wsConn, message string) {
	if err := c.writeJSON(WebSocketDetectResponse{
		Type:   "error",
		Status: "error",
		Error:  message,
	}); err != nil {
		slog.Error("Failed to send WebSocket error message", "error", err)
	}
}
