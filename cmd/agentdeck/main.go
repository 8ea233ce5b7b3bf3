// Command agentdeck runs the local daemon behind the AgentDeck desktop UI:
// it supervises coding-agent processes, brokers their permission requests,
// keeps the collaborator store, and streams everything to UI clients over
// WebSocket.
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentdeck/agentdeck/internal/common/config"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/common/tracing"
	"github.com/agentdeck/agentdeck/internal/gateway"
	"github.com/agentdeck/agentdeck/internal/permission"
	"github.com/agentdeck/agentdeck/internal/session/service"
	"github.com/agentdeck/agentdeck/internal/supervisor"
	suphandlers "github.com/agentdeck/agentdeck/internal/supervisor/handlers"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentdeck: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	log.Info("starting agentdeck daemon",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("database_driver", cfg.Database.Driver))

	// 3. Tracing (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set)
	_ = tracing.Tracer("agentdeck")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Event bus (in-memory unless NATS is configured)
	eventBus, busCleanup, err := provideEventBus(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := busCleanup(); err != nil {
			log.Warn("event bus close failed", zap.Error(err))
		}
	}()

	// 5. Collaborator store
	storage, err := provideStorage(cfg, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	sessions := service.NewService(storage.Repo, eventBus.Bus, log)

	// 6. WebSocket hub
	hub := gateway.NewHub(log)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// 7. Permission broker. The headless escape hatch only makes sense on the
	// in-memory bus: with NATS an approver may be attached to another process.
	headless := cfg.Permission.AutoAllowHeadless && eventBus.Memory != nil
	broker := permission.New(eventBus.Bus, log, permission.Options{
		Timeout: cfg.Permission.Timeout(),
		AutoAllow: func() bool {
			return headless && hub.ClientCount() == 0
		},
	})
	if err := broker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start permission broker: %w", err)
	}
	defer broker.Stop()

	// 8. Agent supervisor
	sup, err := supervisor.New(cfg.Agent, eventBus.Bus, log)
	if err != nil {
		return fmt.Errorf("failed to initialize supervisor: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sup.Shutdown(ctx)
	}()

	// 9. Bus consumers: claude_session_id recorder and the WebSocket bridge
	recorder := suphandlers.NewRecorder(eventBus.Bus, sessions, log)
	if err := recorder.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session recorder: %w", err)
	}
	defer recorder.Stop()

	bridge := gateway.NewBridge(eventBus.Bus, hub, log)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("failed to start websocket bridge: %w", err)
	}
	defer bridge.Stop()

	// 10. Transcript store (read-only view of the agent's own session logs)
	transcripts, err := transcript.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize transcript store: %w", err)
	}

	// 11. HTTP server
	router := buildRouter(routerDeps{
		log:         log,
		sessions:    sessions,
		supervisor:  sup,
		broker:      broker,
		transcripts: transcripts,
		hub:         hub,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("agentdeck daemon listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down agentdeck daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("agentdeck daemon stopped")
	return nil
}
