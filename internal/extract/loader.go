package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/trial-screener/constants"
	"github.com/joseph-ayodele/trial-screener/internal/ocr"
)

// Engine is the conversion backend; *ocr.Extractor satisfies it.
type Engine interface {
	ExtractPDF(ctx context.Context, path string, first, last int) (ocr.ExtractionResult, error)
}

type Loader struct {
	engine     Engine
	countPages func(path string) (int, error)
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Loader)

// WithTimeout bounds a single conversion. Zero leaves it to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithPageCounter replaces the PDF page counter.
func WithPageCounter(fn func(path string) (int, error)) Option {
	return func(l *Loader) { l.countPages = fn }
}

func NewLoader(engine Engine, logger *slog.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{engine: engine, countPages: ocr.CountPages, logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

// PageCount reports how many pages the document has, for page selection.
func (l *Loader) PageCount(path string) (int, error) {
	return l.countPages(path)
}

func (l *Loader) Load(ctx context.Context, path string, pages *PageRange) ExtractedText {
	start := time.Now()
	log := l.logger.With("path", path, "filtered", pages != nil)
	log.Info("extract.load.start")

	fail := func(reason string) ExtractedText {
		log.Warn("extract.load.failed", "reason", reason, "elapsed_ms", time.Since(start).Milliseconds())
		return ExtractedText{Success: false, Message: reason, Duration: time.Since(start)}
	}

	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fail("file not found: " + path)
		}
		return fail(err.Error())
	}
	if st.IsDir() {
		return fail(path + " is a directory")
	}
	if !constants.IsAllowedExt(filepath.Ext(path)) {
		return fail("only PDF documents are supported")
	}

	total, err := l.countPages(path)
	if err != nil {
		return fail(err.Error())
	}
	first, last := 0, 0
	if pages != nil {
		if err := pages.Validate(total); err != nil {
			return fail(err.Error())
		}
		first, last = pages.Start, pages.End
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	res, err := l.engine.ExtractPDF(ctx, path, first, last)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail("document conversion timed out")
		}
		return fail(err.Error())
	}

	msg := fmt.Sprintf("converted %d of %d pages", res.Pages, total)
	if pages != nil {
		msg = fmt.Sprintf("converted pages %s of %d", pages, total)
	}
	log.Info("extract.load.ok",
		"method", res.Method,
		"pages", res.Pages,
		"total_pages", total,
		"chars", len([]rune(res.Text)),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ExtractedText{
		Success:  true,
		Text:     res.Text,
		Message:  msg,
		Filtered: pages != nil,
		Method:   res.Method,
		Pages:    res.Pages,
		Duration: time.Since(start),
	}
}
