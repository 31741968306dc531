// Package rpc exposes the docs agent to internal clients over JSON-RPC.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/logx"
	"github.com/xiaot623/docsagent/internal/service"
)

// ServiceName is the JSON-RPC service prefix, e.g. "DocsAgent.HandleTurn".
const ServiceName = "DocsAgent"

// Server exposes internal RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the service. callTimeout
// bounds each call since net/rpc carries no request context.
func NewServer(svc *service.Service, callTimeout time.Duration) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc, callTimeout: callTimeout}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds the server to addr without accepting connections yet.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("rpc server is not listening")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			logx.Warn().Err(err).Msg("rpc accept failed")
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the RPC methods.
type Handler struct {
	service     *service.Service
	callTimeout time.Duration
}

// ConversationRequest identifies a conversation.
type ConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

// AgentsResponse lists the configured agents.
type AgentsResponse struct {
	Agents []domain.AgentDefinition `json:"agents"`
}

func (h *Handler) context() (context.Context, context.CancelFunc) {
	if h.callTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), h.callTimeout)
}

// HandleTurn runs one chat turn. Failed turns that produced a response
// are returned as replies with HasError set.
func (h *Handler) HandleTurn(req *domain.TurnRequest, resp *domain.TurnResponse) error {
	if req == nil {
		return errors.New("turn request is required")
	}

	ctx, cancel := h.context()
	defer cancel()

	result, err := h.service.HandleTurn(ctx, *req)
	if result == nil {
		if err == nil {
			err = errors.New("turn produced no response")
		}
		return err
	}
	if resp != nil {
		*resp = *result
	}
	return nil
}

// GetConversation returns the stored state of a conversation.
func (h *Handler) GetConversation(req *ConversationRequest, resp *domain.ConversationState) error {
	if req == nil {
		return errors.New("conversation request is required")
	}

	ctx, cancel := h.context()
	defer cancel()

	state, err := h.service.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return err
	}
	if resp != nil {
		*resp = *state
	}
	return nil
}

// ListAgents lists the configured agents.
func (h *Handler) ListAgents(_ *struct{}, resp *AgentsResponse) error {
	if resp != nil {
		resp.Agents = h.service.ListAgents()
	}
	return nil
}
