package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/trial-screener/internal/app"
	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := common.LoadConfig()
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if len(os.Args) < 2 || len(os.Args) > 4 {
		logger.Error("usage", "cmd", "runocr <pdf> [first] [last]")
		os.Exit(2)
	}
	var pages *extract.PageRange
	if len(os.Args) >= 3 {
		first, err := strconv.Atoi(os.Args[2])
		if err != nil {
			logger.Error("invalid first page", "arg", os.Args[2], "error", err)
			os.Exit(2)
		}
		last := first
		if len(os.Args) == 4 {
			if last, err = strconv.Atoi(os.Args[3]); err != nil {
				logger.Error("invalid last page", "arg", os.Args[3], "error", err)
				os.Exit(2)
			}
		}
		pages = &extract.PageRange{Start: first, End: last}
	}

	res := app.NewLoader(cfg.OCR, logger).Load(context.Background(), os.Args[1], pages)
	if !res.Success {
		logger.Error("conversion failed", "message", res.Message)
		os.Exit(1)
	}
	logger.Info("conversion OK",
		"method", res.Method,
		"pages", res.Pages,
		"filtered", res.Filtered,
		"chars", len([]rune(res.Text)),
		"duration_ms", res.Duration.Milliseconds(),
	)
	fmt.Println(res.Text)
}
