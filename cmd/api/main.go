package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/receipted/receipted-backend/internal/api"
	"github.com/receipted/receipted-backend/internal/domain/analyzer"
	"github.com/receipted/receipted-backend/internal/domain/matcher"
	"github.com/receipted/receipted-backend/internal/infrastructure/config"
	"github.com/receipted/receipted-backend/internal/infrastructure/logging"
	"github.com/receipted/receipted-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
	)
	flag.Parse()

	cfg := config.LoadOrEnv(*configFile)

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	engine := matcher.NewEngine(store, cfg.MatcherConfig(), logger)
	patternAnalyzer := analyzer.NewAnalyzer(store, cfg.AnalyzerConfig(), logger)
	recorder := analyzer.NewRecorder(store, logger)

	serverConfig := api.DefaultConfig()
	if cfg.Server.Port > 0 {
		serverConfig.Port = cfg.Server.Port
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		serverConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	server := api.NewServer(serverConfig, engine, patternAnalyzer, recorder, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
