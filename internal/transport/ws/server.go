// Package ws serves the chat protocol over websocket connections.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/docsagent/internal/config"
	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
	"github.com/xiaot623/docsagent/internal/logx"
)

// TurnHandler runs one chat turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg      config.WSConfig
	turns    TurnHandler
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg config.WSConfig, turns TurnHandler) *Server {
	return &Server{
		cfg:   cfg,
		turns: turns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// connection is one client socket. Writes go through send so only
// writePump touches the socket for writing.
type connection struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	turns  sync.WaitGroup
}

func (c *connection) close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logx.Warn().Err(err).Msg("failed to upgrade websocket")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		id:     "ws_" + uuid.NewString()[:8],
		ws:     ws,
		send:   make(chan []byte, 16),
		ctx:    ctx,
		cancel: cancel,
	}
	ws.SetReadLimit(s.cfg.MaxMessageSize)
	logx.Debug().Str("connection_id", conn.id).Msg("websocket connected")

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *connection) {
	defer func() {
		conn.close()
		conn.turns.Wait()
		close(conn.send)
		logx.Debug().Str("connection_id", conn.id).Msg("websocket disconnected")
	}()

	conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logx.Warn().Err(err).Str("connection_id", conn.id).Msg("websocket read failed")
			}
			return
		}
		conn.ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.handleMessage(conn, message)
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings.
func (s *Server) writePump(conn *connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				logx.Warn().Err(err).Str("connection_id", conn.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeChat:
		s.handleChat(conn, data)
	default:
		s.sendError(conn, base.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleChat runs the turn off the read loop so pongs keep flowing while
// an agent works.
func (s *Server) handleChat(conn *connection, data []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid chat message")
		return
	}

	conn.turns.Add(1)
	go func() {
		defer conn.turns.Done()

		resp, err := s.turns.HandleTurn(conn.ctx, domain.TurnRequest{
			ConversationID: msg.ConversationID,
			Message:        msg.Message,
			Feedback:       msg.Feedback,
		})
		if resp == nil {
			code := ErrorCodeTurnFailed
			if errx.StatusOf(err) == http.StatusBadRequest {
				code = ErrorCodeInvalidInput
			}
			message := "turn failed"
			if err != nil {
				message = err.Error()
			}
			s.sendError(conn, msg.RequestID, code, message)
			return
		}
		s.send(conn, AnswerMessage{
			BaseMessage:  BaseMessage{Type: TypeAnswer, Ts: time.Now().UnixMilli(), RequestID: msg.RequestID},
			TurnResponse: *resp,
		})
	}()
}

func (s *Server) sendError(conn *connection, requestID, code, message string) {
	s.send(conn, ErrorMessage{
		BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli(), RequestID: requestID},
		Code:        code,
		Message:     message,
	})
}

func (s *Server) send(conn *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logx.Error().Err(err).Msg("failed to marshal websocket message")
		return
	}
	select {
	case conn.send <- data:
	case <-conn.ctx.Done():
	}
}
