package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg_forwarder/internal/app"
	"tg_forwarder/internal/config"
	"tg_forwarder/internal/logger"
)

func main() {
	// 初始化logger
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrConfiguration) {
			logger.L().Errorf("Configuration error: %v", err)
			os.Exit(1)
		}
		logger.L().Fatalf("Failed to load configuration: %v", err)
	}
	// .env 中的 LOG_LEVEL / LOG_FORMAT 在 Load 之后才可见
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.L().Fatalf("Failed to initialize application: %v", err)
	}

	logger.L().Infof("Starting Telegram forwarder: %s -> %s", cfg.Telegram.SourceChannel, cfg.Telegram.TargetChannel)
	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Close(shutdownCtx); err != nil {
		logger.L().Errorf("Shutdown error: %v", err)
	}

	if runErr != nil {
		logger.L().Errorf("Forwarder stopped: %v", runErr)
		os.Exit(1)
	}
	logger.L().Info("Forwarder stopped")
}
