package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/config"
	"github.com/stemsi/provpass/internal/content"
	"github.com/stemsi/provpass/internal/database"
	"github.com/stemsi/provpass/internal/handler"
	"github.com/stemsi/provpass/internal/logger"
	"github.com/stemsi/provpass/internal/router"
	"github.com/stemsi/provpass/internal/service"
	"github.com/stemsi/provpass/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("addr", cfg.Addr()).
		Str("mode", cfg.GinMode).
		Str("store", string(cfg.StoreDriver)).
		Str("log_level", cfg.LogLevel).
		Msg("Starting provpass")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Session Store ────────────────────────────────────────────
	// SQL stores are migrated before use.
	store, err := database.NewSessionStore(ctx, cfg, logger.Component(log, "database"))
	if err != nil {
		log.Fatal().Err(err).Msg("Session storage unavailable")
	}
	defer store.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	practiceService := service.NewPracticeService(store, content.NewHPProvider(), log, service.Options{
		ExamDuration:    cfg.ExamDuration,
		CheckpointEvery: cfg.CheckpointEvery,
	})

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(practiceService, log),
		Pass:    handler.NewPassHandler(practiceService, log),
		WS:      handler.NewWSHandler(log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(practiceService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Checkpoint and close live sessions before the store goes away.
	practiceService.Shutdown(shutdownCtx)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
