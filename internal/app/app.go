// Package app wires configuration into a ready screening session.
package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/extract"
	"github.com/joseph-ayodele/trial-screener/internal/llm/openai"
	"github.com/joseph-ayodele/trial-screener/internal/ocr"
	"github.com/joseph-ayodele/trial-screener/internal/repository"
	"github.com/joseph-ayodele/trial-screener/internal/screening"
)

// App holds the long-lived pieces shared by the binaries.
type App struct {
	Config     *common.Config
	Loader     *extract.Loader
	Controller *screening.Controller
	DB         *repository.DB // nil when STORE_DSN is empty
	Runs       repository.RunRepository
	logger     *slog.Logger
}

// NewLogger builds the text handler used by every binary.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewLoader builds the document loader from the OCR settings.
func NewLoader(cfg common.OCRConfig, logger *slog.Logger) *extract.Loader {
	engine := ocr.NewExtractor(ocr.Config{
		Pdftotext:        cfg.Pdftotext,
		Pdftoppm:         cfg.Pdftoppm,
		Tesseract:        cfg.Tesseract,
		TesseractLang:    cfg.Lang,
		TessdataDir:      cfg.TessdataDir,
		DPI:              cfg.DPI,
		PSM:              cfg.PSM,
		ForceFullPageOCR: cfg.ForceFullPageOCR,
		TableStructure:   cfg.TableStructure,
	}, logger)
	return extract.NewLoader(engine, logger, extract.WithTimeout(cfg.Timeout))
}

// New validates cfg and assembles loader, model client, controller and,
// when configured, the run store.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...screening.Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loader := NewLoader(cfg.OCR, logger)
	client := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	a := &App{
		Config:     cfg,
		Loader:     loader,
		Controller: screening.NewController(loader, client, screening.NewConfig(cfg), logger, opts...),
		logger:     logger,
	}
	if cfg.Store.DSN == "" {
		logger.Info("store.disabled")
		return a, nil
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.Store.DSN,
		MaxConns:    cfg.Store.MaxConns,
		DialTimeout: 3 * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Runs = repository.NewRunRepository(db, logger)
	return a, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close(a.logger)
	}
}
