package populate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"costbreakdown/internal/entity"
)

const (
	// exactHeader is matched case-sensitively anywhere in a cell.
	exactHeader = "Line Item"

	// Header detection scans a fixed top-left window of the sheet.
	headerScanRows   = 10
	headerScanCols   = 10
	fallbackScanCols = 5

	// emptyRowScanWindow extends the insertion scan past the last occupied
	// row, so sparse templates with gaps still get a deterministic slot.
	emptyRowScanWindow = 20

	// amountColumn is intentionally fixed to column B regardless of template
	// layout. The company template family keeps amounts in the second column;
	// a template with amounts elsewhere will be populated incorrectly.
	amountColumn = 2
)

// Result reports where a population run landed in the workbook.
type Result struct {
	DescriptionColumn int
	HeaderRow         int // 0 when no header matched
	InsertRow         int
	ItemsWritten      int
	Detection         string // "exact" | "fallback" | "default" | "none"
}

// Populator writes line items into copies of the company breakdown template.
type Populator struct {
	logger *slog.Logger
}

// NewPopulator builds a populator.
func NewPopulator(logger *slog.Logger) *Populator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Populator{logger: logger}
}

// Populate copies the template to outputPath, locates the line-item region,
// and writes the items in order. The template itself is never modified. On
// any failure after the copy the partial output file is removed.
//
// With zero items the output is a byte-identical copy of the template: the
// workbook is never re-encoded, so every style, formula, and merge survives.
func (p *Populator) Populate(templatePath, outputPath string, items []entity.LineItem) (Result, error) {
	start := time.Now()

	if err := copyFile(templatePath, outputPath); err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		p.logger.Info("populate.noop", "template", templatePath, "output", outputPath)
		return Result{Detection: "none"}, nil
	}

	f, err := excelize.OpenFile(outputPath)
	if err != nil {
		_ = os.Remove(outputPath)
		return Result{}, fmt.Errorf("open template copy: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			p.logger.Warn("populate.close_error", "output", outputPath, "error", cerr)
		}
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	descCol, headerRow, detection := findHeader(f, sheet)
	insertRow := findInsertRow(f, sheet, descCol, headerRow)

	for i, item := range items {
		row := insertRow + i
		descCell, _ := excelize.CoordinatesToCellName(descCol, row)
		if err := f.SetCellValue(sheet, descCell, item.Description); err != nil {
			_ = os.Remove(outputPath)
			return Result{}, fmt.Errorf("write description at %s: %w", descCell, err)
		}
		amtCell, _ := excelize.CoordinatesToCellName(amountColumn, row)
		amt, _ := item.Amount.Float64()
		if err := f.SetCellValue(sheet, amtCell, amt); err != nil {
			_ = os.Remove(outputPath)
			return Result{}, fmt.Errorf("write amount at %s: %w", amtCell, err)
		}
	}

	if err := f.Save(); err != nil {
		_ = os.Remove(outputPath)
		return Result{}, fmt.Errorf("save output: %w", err)
	}

	res := Result{
		DescriptionColumn: descCol,
		HeaderRow:         headerRow,
		InsertRow:         insertRow,
		ItemsWritten:      len(items),
		Detection:         detection,
	}
	p.logger.Info("populate.ok",
		"output", outputPath,
		"sheet", sheet,
		"desc_col", descCol,
		"header_row", headerRow,
		"insert_row", insertRow,
		"items", len(items),
		"detection", detection,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// findHeader locates the description column. First pass: exact, case-sensitive
// substring "Line Item" over a 10x10 window, row-major. Second pass: a 10x5
// window, case-insensitive, any cell containing both "line" and "item".
// No match leaves the description column at 1 with no header row.
func findHeader(f *excelize.File, sheet string) (col, row int, detection string) {
	for r := 1; r <= headerScanRows; r++ {
		for c := 1; c <= headerScanCols; c++ {
			if strings.Contains(cellValue(f, sheet, c, r), exactHeader) {
				return c, r, "exact"
			}
		}
	}
	for r := 1; r <= headerScanRows; r++ {
		for c := 1; c <= fallbackScanCols; c++ {
			v := strings.ToLower(cellValue(f, sheet, c, r))
			if strings.Contains(v, "line") && strings.Contains(v, "item") {
				return c, r, "fallback"
			}
		}
	}
	return 1, 0, "default"
}

// findInsertRow scans down the description column for the first empty or
// whitespace-only cell, starting just under the header (row 2 without one).
// The scan is bounded at maxRow+emptyRowScanWindow; a fully occupied column
// falls through to maxRow+1.
func findInsertRow(f *excelize.File, sheet string, descCol, headerRow int) int {
	startRow := 2
	if headerRow > 0 {
		startRow = headerRow + 1
	}

	maxRow := 0
	if rows, err := f.GetRows(sheet); err == nil {
		maxRow = len(rows)
	}

	for r := startRow; r < maxRow+emptyRowScanWindow; r++ {
		if strings.TrimSpace(cellValue(f, sheet, descCol, r)) == "" {
			return r
		}
	}
	return maxRow + 1
}

func cellValue(f *excelize.File, sheet string, col, row int) string {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ""
	}
	v, err := f.GetCellValue(sheet, cell)
	if err != nil {
		return ""
	}
	return v
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy template: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
