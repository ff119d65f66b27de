package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/trial-screener/internal/app"
	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/server"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := common.LoadConfig()
	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("screenerd.init_failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var store *server.Store
	if a.Runs != nil {
		store = server.NewStore(a.Runs, logger)
	}
	svc := server.NewScreeningService(a.Controller, store, logger)
	if err := server.Serve(ctx, cfg.Server.GRPCAddr, svc, logger); err != nil {
		a.Close()
		os.Exit(1)
	}
	logger.Info("screenerd.stopped")
}
