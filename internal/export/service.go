package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/trial-screener/internal/llm"
	"github.com/joseph-ayodele/trial-screener/internal/repository"
)

// Excel rejects cells longer than 32767 characters.
const maxCellChars = 32000

const SheetName = "Screenings"

// Headers of the exported sheet, in column order.
var Headers = []string{
	"Saved At",
	"Result",
	"Criteria Document",
	"Pages",
	"Case Document",
	"Truncation",
	"Verdict",
	"Criteria",
	"Case",
	"Model",
	"Run ID",
}

// Service produces XLSX bytes from saved runs.
type Service struct {
	runs   repository.RunRepository
	logger *slog.Logger
}

func NewService(runs repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

// ExportRunsXLSX returns a workbook with one row per saved run, newest
// first. limit <= 0 exports every run.
func (s *Service) ExportRunsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()
	if index, _ := f.GetSheetIndex(SheetName); index == -1 {
		if _, err := f.NewSheet(SheetName); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(activeIndex)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for n, r := range runs {
		row := n + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		result := "FAILED"
		if r.Success {
			result = "OK"
		}
		pages := r.CriteriaPages
		if pages == "" {
			pages = "all"
		}
		write(1, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		write(2, result)
		write(3, r.CriteriaPath)
		write(4, pages)
		write(5, r.CasePath)
		write(6, r.Notices)
		write(7, cell(r.Verdict))
		write(8, cell(r.Criteria))
		write(9, cell(r.Case))
		write(10, r.Model)
		write(11, r.ID.String())
	}

	_ = f.SetColWidth(SheetName, "A", "A", 20) // saved at
	_ = f.SetColWidth(SheetName, "B", "B", 10) // result
	_ = f.SetColWidth(SheetName, "C", "E", 28) // sources
	_ = f.SetColWidth(SheetName, "F", "F", 36) // truncation
	_ = f.SetColWidth(SheetName, "G", "I", 60) // texts
	_ = f.SetColWidth(SheetName, "J", "K", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(runs),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func cell(text string) string {
	out, _, _ := llm.Truncate(text, maxCellChars)
	return out
}
