package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/docsagent/internal/adapter/agentclient"
	"github.com/xiaot623/docsagent/internal/adapter/llm"
	natsadapter "github.com/xiaot623/docsagent/internal/adapter/nats"
	"github.com/xiaot623/docsagent/internal/agents"
	"github.com/xiaot623/docsagent/internal/config"
	"github.com/xiaot623/docsagent/internal/logx"
	"github.com/xiaot623/docsagent/internal/policy"
	"github.com/xiaot623/docsagent/internal/repository"
	"github.com/xiaot623/docsagent/internal/runner"
	"github.com/xiaot623/docsagent/internal/service"
	"github.com/xiaot623/docsagent/internal/telemetry"
	"github.com/xiaot623/docsagent/internal/tools"
	handler "github.com/xiaot623/docsagent/internal/transport/http"
	"github.com/xiaot623/docsagent/internal/transport/rpc"
	"github.com/xiaot623/docsagent/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logx.Init(logx.Options{Production: cfg.Production() && !cfg.Debug, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal().Err(err).Msg("docs agent stopped with error")
	}
	logx.Info().Msg("docs agent stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logx.Info().
		Int("http_port", cfg.HTTPPort).
		Str("store", cfg.Store.Backend).
		Str("runner", cfg.Runner.Mode).
		Msg("starting docs agent")

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logx.Warn().Err(err).Msg("failed to flush telemetry")
		}
	}()
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// Agents
	reg, err := loadAgents(cfg.AgentsFile)
	if err != nil {
		return err
	}

	// Initialize store
	store, err := repository.Open(ctx, cfg.Store, reg.DefaultAgentID())
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer store.Close()

	agentRunner, err := newRunner(ctx, cfg, reg)
	if err != nil {
		return err
	}

	opts := service.Options{
		AgentTimeout:       cfg.AgentTimeout,
		SerializeTurns:     cfg.SerializeTurns,
		MaxConcurrentTurns: cfg.MaxConcurrentTurns,
		Metrics:            metrics,
	}
	if cfg.NATSURL != "" {
		pub, err := natsadapter.Connect(ctx, cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer pub.Close()
		opts.Publisher = pub
	}

	svc := service.New(store, reg, agentRunner, opts)
	server := handler.NewServer(svc, ws.NewServer(cfg.WS, svc))

	var rpcServer *rpc.Server
	if cfg.RPCAddr != "" {
		rpcServer, err = rpc.NewServer(svc, cfg.AgentTimeout+30*time.Second)
		if err != nil {
			return err
		}
		if err := rpcServer.Listen(cfg.RPCAddr); err != nil {
			return fmt.Errorf("rpc: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logx.Info().Str("addr", addr).Msg("http server listening")
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if rpcServer != nil {
		g.Go(func() error {
			logx.Info().Str("addr", cfg.RPCAddr).Msg("rpc server listening")
			return rpcServer.Serve()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logx.Info().Msg("shutting down docs agent")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if rpcServer != nil {
			if err := rpcServer.Shutdown(shutdownCtx); err != nil {
				logx.Warn().Err(err).Msg("failed to shut down rpc server")
			}
		}
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func loadAgents(path string) (*agents.Registry, error) {
	if path == "" {
		return agents.Default()
	}
	reg, err := agents.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agents: %w", err)
	}
	return reg, nil
}

func newRunner(ctx context.Context, cfg *config.Config, reg *agents.Registry) (service.Runner, error) {
	if cfg.Runner.Mode == "remote" {
		return agentclient.NewClient(cfg.Runner.Endpoint, reg), nil
	}

	policyEngine, err := policy.NewDefaultEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return runner.NewLocal(reg, llm.NewFactory(cfg.LLM), tools.NewBuiltinRegistry(cfg.Tools), runner.Options{
		MaxSteps:    cfg.Runner.MaxSteps,
		ToolTimeout: cfg.ToolTimeout,
		Policy:      policyEngine,
	}), nil
}
