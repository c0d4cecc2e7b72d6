package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"medvision/config"
	"medvision/internal/api/rest"
	"medvision/internal/api/telegram"
	"medvision/internal/container"
	"medvision/internal/infrastructure/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("medvision: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Debug: cfg.Debug})
	if err != nil {
		return err
	}

	// Собираем сервисы приложения
	appContainer, err := container.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		if err := appContainer.Close(); err != nil {
			logger.WithError(err).Warn("close container")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := rest.NewServer(rest.Options{
		MaxImageSize:   cfg.MaxImageSize,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		RequestTimeout: cfg.RequestTimeout,
	}, appContainer.DetectionService, appContainer.Health, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Listen(cfg.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.UserService, appContainer.DetectionService, appContainer.Users, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("create bot: %w", err)
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	} else {
		logger.Info("TELEGRAM_TOKEN is not set, telegram bot disabled")
	}

	return g.Wait()
}
