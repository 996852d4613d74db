package main

import (
	"context"
	"errors"
	"fmt"
	"group-chat/auth"
	"group-chat/infrastructure/grpc/server"
	"group-chat/infrastructure/storage"
	"group-chat/infrastructure/websocket"
	"group-chat/internal"
	"group-chat/moderation"
	"group-chat/runtime"
	"group-chat/runtime/workers"
	"group-chat/services"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gateway terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every defer runs before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env is fine, the environment may be set by the service manager.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB) and search index (Bluge)
	db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	users := storage.NewUserRepository(db, logger)
	groups, err := storage.NewGroupRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = groups.Close() }()
	index := storage.NewMessageIndex(blugeWriter, logger)

	// 3. Moderation
	censored, err := runtime.NewCensoredLoader(runtime.CensoredFolder).LoadAll("censored")
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to load censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to build moderator: %w", err)
	}
	logger.Info("Censored words loaded", "words", len(censored.Words), "languages", censored.Languages)

	// 4. Registry & Gateway
	registry := runtime.NewRegistry(logger, groups)
	if err := registry.Initialize(ctx); err != nil {
		return exitRuntime, fmt.Errorf("registry initialization failed: %w", err)
	}
	policy := auth.NewPolicy(elevatedRoles(config.ElevatedRoles))
	gateway := services.NewGateway(logger, registry, users, groups, index, moderator, policy,
		config.DeliveryTimeout, config.SearchLimit)

	// 5. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(logger, registry, config.MetricInterval))
	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()

	errChan := make(chan error, 3)

	// 6. Admin gRPC plane
	adminAddress := fmt.Sprintf("%s:%d", config.Host, config.AdminPort)
	adminListener, err := net.Listen("tcp", adminAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", adminAddress, err)
	}
	admin := server.NewAdminServer(logger)
	go func() {
		logger.Info("Starting admin gRPC server", "address", adminAddress)
		if err := admin.Serve(adminListener); err != nil {
			errChan <- err
		}
	}()

	// 7. Debug inspector
	var debugServer *http.Server
	if config.DebugPort > 0 {
		debugServer = internal.NewDebugServer(db, config.DebugPort, "/inspect", func() map[string]any {
			stats := registry.Stats()
			return map[string]any{
				"groups":      stats.Groups,
				"connections": stats.Connections,
				"bindings":    stats.Bindings,
			}
		}, logger)
		go func() {
			logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("debug server error: %w", err)
			}
		}()
	}

	// 8. WebSocket gateway
	wsConfig := websocket.DefaultConfig()
	wsConfig.BufferSize = config.ConnectionBufferSize
	wsConfig.MaxMessageSize = int64(config.MaxContentLength)
	wsConfig.AllowedOrigins = config.AllowedOrigins
	wsConfig.DeliveryTimeout = config.DeliveryTimeout
	identity := auth.NewIdentityResolver(auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration))
	wsServer := websocket.NewServer(logger, gateway, identity, wsConfig)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           wsServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting WebSocket gateway", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()
	admin.SetServing(true)

	// 9. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 10. Graceful shutdown: stop accepting, close sessions, then stop the background work.
	logger.Info("Shutting down gracefully...")
	admin.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket gateway shutdown incomplete", "error", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket handlers still running", "error", err)
	}
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	admin.GracefulStop()
	sup.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}
