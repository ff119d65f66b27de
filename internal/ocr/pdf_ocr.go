package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

func pageArgs(first, last int) []string {
	var args []string
	if first > 0 {
		args = append(args, "-f", strconv.Itoa(first))
	}
	if last > 0 {
		args = append(args, "-l", strconv.Itoa(last))
	}
	return args
}

func (e *Extractor) pdfToText(ctx context.Context, path string, first, last int) ([]string, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix [-f N -l M] <path> -
	args := append([]string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, pageArgs(first, last)...)
	args = append(args, path, "-")
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, args...)
	if err != nil {
		return nil, []string{string(errb)}, err
	}
	// form feed separates pages
	pages := strings.Split(strings.TrimRight(string(out), "\f\n"), "\f")
	return pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string, first, last int) ([]string, []string, error) {
	tmpDir, err := os.MkdirTemp("", "ts-pp-*")
	if err != nil {
		return nil, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("ocr.tmpdir_cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 [-f N -l M] -png <in.pdf> <tmp/page>
	args := append([]string{"-r", strconv.Itoa(e.cfg.DPI)}, pageArgs(first, last)...)
	args = append(args, "-png", path, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return nil, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// prefix-1.png, prefix-2.png, ... zero padded to the same width
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	pages := make([]string, 0, len(matches))
	var warns []string
	for _, img := range matches {
		if err := ctx.Err(); err != nil {
			return nil, warns, err
		}
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		pages = append(pages, txt)
	}
	if len(pages) == 0 {
		return nil, warns, fmt.Errorf("ocr failed on all %d pages", len(matches))
	}
	return pages, warns, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang> --psm N -c preserve_interword_spaces=1
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang, "--psm", strconv.Itoa(e.cfg.PSM), "-c", "preserve_interword_spaces=1"}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract %s: %w", filepath.Base(path), err)
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil, nil
}
