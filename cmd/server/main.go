// Command server starts the Meridian banking admission API.
//
// Usage:
//
//	go run ./cmd/server [flags]
//
// Flags:
//
//	-port  HTTP port to listen on (overrides the PORT env var)
//
// All other settings come from the environment (or a .env file):
// STEP_UP_THRESHOLD, OTP_LENGTH, LOG_LEVEL, LOG_FORMAT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meridian/banking-api/internal/admission"
	"meridian/banking-api/internal/api"
	"meridian/banking-api/internal/config"
	"meridian/banking-api/internal/otp"
	"meridian/banking-api/internal/risk"
	"meridian/banking-api/internal/session"
)

func main() {
	portFlag := flag.String("port", "", "HTTP port (overrides PORT env var)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	slog.SetDefault(newLogger(cfg))

	// ── Wire dependencies ─────────────────────────────────────────────────────
	sessions := session.NewManager()
	classifier := risk.NewRuleBased()
	challenger := otp.NewSender(cfg.OTPLength)
	controller := admission.New(classifier, challenger, cfg.StepUpThreshold)
	handler := api.NewHandler(controller)
	router := api.NewRouter(handler, sessions)

	// ── Start HTTP server ─────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server listening",
			"port", cfg.Port,
			"step_up_threshold", cfg.StepUpThreshold.String(),
			"otp_length", cfg.OTPLength,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// newLogger builds the process logger from config: text or JSON handler at
// the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
