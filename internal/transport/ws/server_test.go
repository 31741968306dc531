package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/docsagent/internal/config"
	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
)

type turnFunc func(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)

func (f turnFunc) HandleTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	return f(ctx, req)
}

func dial(t *testing.T, turns TurnHandler) *websocket.Conn {
	t.Helper()
	srv := NewServer(config.WSConfig{
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		PingInterval:   500 * time.Millisecond,
		MaxMessageSize: 4096,
	}, turns)

	e := echo.New()
	e.GET("/ws", srv.HandleWebSocket)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestChatReturnsAnswer(t *testing.T) {
	conn := dial(t, turnFunc(func(_ context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
		return &domain.TurnResponse{
			Answer:         "echo: " + req.Message,
			ConversationID: "conv-1",
			ActiveAgent:    "triage_agent",
			StateSaved:     true,
		}, nil
	}))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeChat, "message": "hello", "request_id": "r1"}))

	var got AnswerMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeAnswer, got.Type)
	assert.Equal(t, "r1", got.RequestID)
	assert.Equal(t, "echo: hello", got.Answer)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.True(t, got.StateSaved)
}

func TestChatFailedTurnIsAnAnswerWithError(t *testing.T) {
	conn := dial(t, turnFunc(func(context.Context, domain.TurnRequest) (*domain.TurnResponse, error) {
		return &domain.TurnResponse{ConversationID: "conv-2", HasError: true, ErrorMessage: "agent run failed"},
			errx.Runner(errors.New("boom"))
	}))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeChat, "message": "hello"}))

	var got AnswerMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeAnswer, got.Type)
	assert.True(t, got.HasError)
	assert.Equal(t, "conv-2", got.ConversationID)
}

func TestChatInputError(t *testing.T) {
	conn := dial(t, turnFunc(func(context.Context, domain.TurnRequest) (*domain.TurnResponse, error) {
		return nil, errx.InvalidInput(errors.New("message is required"))
	}))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeChat}))

	var got ErrorMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeError, got.Type)
	assert.Equal(t, ErrorCodeInvalidInput, got.Code)
}

func TestUnknownMessageType(t *testing.T) {
	conn := dial(t, turnFunc(func(context.Context, domain.TurnRequest) (*domain.TurnResponse, error) {
		t.Error("turn handler must not run")
		return nil, nil
	}))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)))
	var got ErrorMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, ErrorCodeInvalidMessage, got.Code)
	assert.Contains(t, got.Message, "hello")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, ErrorCodeInvalidMessage, got.Code)
}
