package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"predmarket/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 4. Market data feed
	feedErr := make(chan error, 1)
	if bootstrap.Feed != nil {
		go func() {
			feedErr <- bootstrap.Feed.Start(ctx)
		}()
	}

	slog.InfoContext(ctx, "✨ Prediction market core fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-feedErr:
		if err != nil {
			slog.Error("Feed server failed", slog.Any("error", err))
		}
	}

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
