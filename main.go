package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonesrussell/viewtrace/internal/api"
	"github.com/jonesrussell/viewtrace/internal/config"
	"github.com/jonesrussell/viewtrace/internal/engine"
	"github.com/jonesrussell/viewtrace/internal/handler"
	"github.com/jonesrussell/viewtrace/internal/logger"
	"github.com/jonesrussell/viewtrace/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Initialize logger
	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	return runAgent(cfg, log)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := config.Path("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// runAgent wires the pipeline together and runs the HTTP server until
// shutdown.
func runAgent(cfg *config.Config, log logger.Logger) int {
	// Select a persistence backend; a nil backend degrades to no-op.
	backend := storage.Select(cfg.Service.DataDir, log)
	store := storage.NewManager(backend, log, storage.ManagerOptions{
		WriteDebounce: cfg.Persistence.WriteDebounce,
		BatchSize:     cfg.Persistence.BatchSize,
		BatchTimeout:  cfg.Persistence.BatchTimeout,
		FlushTimeout:  cfg.Persistence.FlushTimeout,
		MaxDataAge:    cfg.Retention.MaxDataAge,
		MaxSessions:   cfg.Retention.MaxSessions,
	})
	store.Start()
	defer store.Stop()

	// Engine owns the live session and the background loops.
	eng := engine.New(cfg, log, store)
	eng.Start()
	defer eng.Close()

	server := api.NewServer(cfg, log, api.Handlers{
		Events:   handler.NewEventHandler(eng, log),
		Sessions: handler.NewSessionHandler(eng, store, log),
		Live:     handler.NewLiveHandler(eng, log),
		Health:   handler.NewHealthHandler(cfg.Service.Version, eng, store),
	})

	log.Info("Viewtrace agent starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("session_id", eng.SessionID()),
	)

	if err := server.RunWithGracefulShutdown(context.Background()); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Viewtrace agent exited cleanly")
	return 0
}
