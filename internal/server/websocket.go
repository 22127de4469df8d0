package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/figprep/figprep/internal/document"
	"github.com/figprep/figprep/internal/pipeline"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketParseRequest represents a parse request via WebSocket. The PDF
// bytes travel base64-encoded inside the JSON frame.
type WebSocketParseRequest struct {
	Filename     string `json:"filename,omitempty"`
	PDF          []byte `json:"pdf"`
	Page         int    `json:"page,omitempty"`
	From         int    `json:"from,omitempty"`
	To           int    `json:"to,omitempty"`
	ShowRotation bool   `json:"show_rotation,omitempty"`
}

// WebSocketParseResponse represents a parse response via WebSocket.
type WebSocketParseResponse struct {
	Type      string      `json:"type"`
	Status    string      `json:"status"` // "processing", "completed", "error"
	Stage     string      `json:"stage,omitempty"`
	Progress  float64     `json:"progress,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsConn serializes writes to a WebSocket connection; progress updates
// arrive from multiple pipeline workers.
type wsConn struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (c *wsConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// parseWebSocketHandler handles WebSocket connections for streaming parse
// requests with progress updates.
func (s *Server) parseWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	safe := &wsConn{conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, safe, data)
		}
	}
}

// handleWebSocketMessage runs one parse request and streams its progress.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn *wsConn, data []byte) {
	var req WebSocketParseRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if len(req.PDF) == 0 {
		s.sendWebSocketError(conn, "", "No PDF data provided")
		return
	}

	rng, err := wsPageRange(req)
	if err != nil {
		s.sendWebSocketError(conn, "", err.Error())
		return
	}

	// Generate a request ID for tracking
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	s.sendWebSocketResponse(conn, WebSocketParseResponse{
		Type:      "parse_response",
		Status:    "processing",
		Progress:  0.0,
		RequestID: requestID,
	})

	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	res, err := s.pipeline.Process(ctx, pipeline.Request{
		Filename: req.Filename,
		Data:     req.PDF,
		Pages:    rng,
		Progress: &wsProgress{server: s, conn: conn, requestID: requestID},
	})
	if err != nil {
		parseRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, document.ErrorKind(err), err.Error())
		return
	}
	parseRequestsTotal.WithLabelValues("websocket", "success").Inc()
	parseDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())

	response := s.buildParseResponse(ctx, res, req.ShowRotation)

	s.sendWebSocketResponse(conn, WebSocketParseResponse{
		Type:      "parse_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    response,
		RequestID: requestID,
	})
}

// wsPageRange builds the page selection from the request fields. A single
// page wins over an open from/to pair.
func wsPageRange(req WebSocketParseRequest) (document.PageRange, error) {
	if req.Page != 0 {
		if req.Page < 1 {
			return document.PageRange{}, fmt.Errorf("invalid page: %d", req.Page)
		}
		return document.Single(req.Page), nil
	}
	if req.From < 0 || req.To < 0 {
		return document.PageRange{}, fmt.Errorf("invalid page range: %d..%d", req.From, req.To)
	}
	return document.PageRange{From: req.From, To: req.To}, nil
}

// wsProgress streams pipeline progress to the client as pages complete.
type wsProgress struct {
	server    *Server
	conn      *wsConn
	requestID string
}

func (p *wsProgress) OnStart(totalPages int) {}

func (p *wsProgress) OnStage(stage string) {
	p.server.sendWebSocketResponse(p.conn, WebSocketParseResponse{
		Type:      "parse_response",
		Status:    "processing",
		Stage:     stage,
		RequestID: p.requestID,
	})
}

func (p *wsProgress) OnPage(done, total int) {
	if total == 0 {
		return
	}
	p.server.sendWebSocketResponse(p.conn, WebSocketParseResponse{
		Type:      "parse_response",
		Status:    "processing",
		Progress:  float64(done) / float64(total),
		RequestID: p.requestID,
	})
}

func (p *wsProgress) OnComplete() {}

func (p *wsProgress) OnError(page int, err error) {
	slog.Debug("page degraded", "page", page, "error", err)
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn *wsConn, response WebSocketParseResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn *wsConn, errorKind, message string) {
	s.sendWebSocketResponse(conn, WebSocketParseResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorKind: errorKind,
	})
}
