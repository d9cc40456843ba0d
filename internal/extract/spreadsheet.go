package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"costbreakdown/constants"
)

// extractSpreadsheet dumps every sheet as tab-separated text so the
// structuring stage sees the same cell values an estimator would.
func (e *Extractor) extractSpreadsheet(path string) (Result, error) {
	res := Result{SourceType: constants.SPREADSHEET, Method: "sheet-dump"}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return res, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("extract.sheet.close_error", "path", path, "error", cerr)
		}
	}()

	var b strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return res, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		b.WriteString("Sheet: " + sheet + "\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	res.Text = b.String()
	res.Pages = len(sheets)
	return res, nil
}
