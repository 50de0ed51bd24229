package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"

	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/config"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	logging.InitGlobalLogger()
	defer logging.MustSync()

	logging.Info("Starting edge gateway",
		logging.Int("cpus", runtime.NumCPU()),
		logging.String("version", Version),
	)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	if err := app.Start(); err != nil {
		logging.Error("Server failed to start", err)
		app.Close(context.Background())
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutting down...")
	case runErr = <-app.Server.Errors():
		logging.Error("Listener failed, shutting down", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.Close(shutdownCtx); err != nil {
		logging.Warn("Error during shutdown", logging.Err(err))
	}

	logging.Info("Server exited")
	return runErr
}
