package extract

import (
	"context"
	"fmt"
	"strings"

	"costbreakdown/constants"
)

// extractImage runs tesseract over a photographed or scanned estimate.
func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	res := Result{SourceType: constants.IMAGE, Method: "image-ocr", Pages: 1}

	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return res, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}

	res.Text = strings.TrimSpace(string(out))
	return res, nil
}
