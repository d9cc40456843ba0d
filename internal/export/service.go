package export

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"costbreakdown/internal/entity"
)

// Service produces XLSX bytes summarizing batch outcomes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BatchSummaryXLSX returns a workbook with one row per processed document:
// what came in, what happened to it, and where the completed workbook went.
func (s *Service) BatchSummaryXLSX(results []entity.DocumentResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Summary"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Source File",
		"Status",
		"Extract Method",
		"Line Items",
		"Total Amount",
		"Output File",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, filepath.Base(r.SourcePath))
		write(2, string(r.Status))
		write(3, r.Method)
		write(4, r.ItemCount)

		total, _ := r.Total.Float64()
		write(5, total)

		if r.OutputPath != "" {
			write(6, filepath.Base(r.OutputPath))
		}
		write(7, truncate(r.Error, 140))

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 32) // source
	_ = f.SetColWidth(sheet, "B", "B", 14) // status
	_ = f.SetColWidth(sheet, "C", "C", 14) // method
	_ = f.SetColWidth(sheet, "D", "E", 12) // counts & totals
	_ = f.SetColWidth(sheet, "F", "F", 44) // output
	_ = f.SetColWidth(sheet, "G", "G", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.summary.ok",
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
