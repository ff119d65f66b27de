package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/trial-screener/internal/app"
	"github.com/joseph-ayodele/trial-screener/internal/common"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := common.LoadConfig()
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "screener",
		Short:         "Check patient cases against clinical-trial eligibility criteria",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		shellCmd(cfg, logger),
		runCmd(cfg, logger),
		exportCmd(cfg, logger),
		serveCmd(cfg, logger),
		remoteCmd(cfg),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
