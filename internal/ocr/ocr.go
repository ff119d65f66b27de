package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/trial-screener/constants"
)

const (
	MethodPDFText = "pdf-text"
	MethodPDFOCR  = "pdf-ocr"
)

// ErrNoText is returned when conversion succeeded but recognized nothing.
var ErrNoText = errors.New("no text recognized")

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "chi_sim+eng"
	TessdataDir   string // model directory (ARTIFACTS_PATH)
	DPI           int    // rasterization DPI, default 300
	PSM           int    // 6 = assume a uniform block of text

	// ForceFullPageOCR rasterizes every page even when a text layer exists.
	ForceFullPageOCR bool
	// TableStructure exports column-aligned blocks as markdown tables.
	TableStructure bool
}

type ExtractionResult struct {
	Text     string
	Pages    int    // pages converted
	Method   string // MethodPDFText | MethodPDFOCR
	Language string
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return NewExtractorWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewExtractorWithRunner lets tests swap the external commands.
func NewExtractorWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "chi_sim+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// ExtractPDF converts pages first..last (1-based, inclusive) of a PDF into
// markdown-like text. first == 0 means from the first page, last == 0 means
// through the last page.
func (e *Extractor) ExtractPDF(ctx context.Context, path string, first, last int) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	if !constants.IsAllowedExt(ext) {
		e.logger.Error("ocr.unsupported_extension", "path", path, "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	e.logger.Debug("ocr.extract.start", "path", path, "first", first, "last", last, "force_ocr", e.cfg.ForceFullPageOCR)

	var warns []string
	if !e.cfg.ForceFullPageOCR {
		pages, w, err := e.pdfToText(ctx, path, first, last)
		warns = append(warns, w...)
		if err == nil {
			if txt := e.assemble(pages); txt != "" {
				return e.finish(ExtractionResult{Text: txt, Pages: len(pages), Method: MethodPDFText, Warnings: warns}, start, path), nil
			}
			warns = append(warns, "text layer empty, falling back to ocr")
		} else {
			warns = append(warns, "pdftotext failed: "+err.Error())
		}
		e.logger.Info("ocr.text_layer_fallback", "path", path, "error", err)
	}

	pages, w, err := e.pdfToOCR(ctx, path, first, last)
	warns = append(warns, w...)
	if err != nil {
		return ExtractionResult{Method: MethodPDFOCR, Warnings: warns, Duration: time.Since(start)}, err
	}
	txt := e.assemble(pages)
	if txt == "" {
		return ExtractionResult{Method: MethodPDFOCR, Pages: len(pages), Warnings: warns, Duration: time.Since(start)}, ErrNoText
	}
	return e.finish(ExtractionResult{Text: txt, Pages: len(pages), Method: MethodPDFOCR, Warnings: warns}, start, path), nil
}

// assemble exports each page and separates pages with a blank line.
func (e *Extractor) assemble(pages []string) string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		if e.cfg.TableStructure {
			p = TablesToMarkdown(p)
		}
		if p = Normalize(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func (e *Extractor) finish(res ExtractionResult, start time.Time, path string) ExtractionResult {
	res.Language = e.cfg.TesseractLang
	res.Duration = time.Since(start)
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len([]rune(res.Text)),
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}
