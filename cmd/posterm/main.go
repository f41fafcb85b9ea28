package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avryx-pos/avryx-pos/internal/app"
	"github.com/avryx-pos/avryx-pos/internal/catalog"
	"github.com/avryx-pos/avryx-pos/internal/checkout"
	"github.com/avryx-pos/avryx-pos/internal/platform/backend"
	"github.com/avryx-pos/avryx-pos/internal/platform/cache"
	"github.com/avryx-pos/avryx-pos/internal/register"
	"github.com/avryx-pos/avryx-pos/internal/scanner"
	"github.com/avryx-pos/avryx-pos/internal/toast"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	api := backend.New(backend.Config{
		BaseURL: cfg.BackendURL,
		Token:   cfg.BackendToken,
		Timeout: cfg.BackendTimeout,
	}, logger)
	api.OnUnauthorized(func() {
		logger.Warn("backend rejected credentials; the terminal needs to be re-paired")
	})

	// Scan history is diagnostics only; the terminal runs fine without redis.
	var history *scanner.HistoryStore
	if cfg.RedisAddr != "" {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, scan history disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			history = scanner.NewHistoryStore(redisClient, cfg.ScanHistorySize)
		}
	}

	toasts := toast.NewBus(cfg.ToastTTL)
	defer toasts.Close()

	adapter := scanner.New(scanner.Config{
		Interval:       cfg.ScanInterval,
		DebounceWindow: cfg.ScanDebounce,
		Formats:        cfg.ScanFormats,
	}, logger)

	session := register.NewSession(register.Deps{
		Logger:   logger,
		Scanner:  adapter,
		Catalog:  catalog.NewService(api, logger),
		Checkout: checkout.NewOrchestrator(api),
		Toasts:   toasts,
		History:  history,
		NewSource: func() scanner.FrameSource {
			return scanner.NewMJPEGSource(cfg.CameraStreamURL)
		},
	})
	defer session.Close()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		RegisterHandler: register.NewHandler(logger, session, toasts),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting terminal facade", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
