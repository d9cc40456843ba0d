package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFProvider is one PDF text extraction capability. Providers are tried in
// declaration order and the first available one handles the document; an
// extraction error from that provider is final, not a reason to try the next.
type PDFProvider interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, path string) (text string, pages int, err error)
}

// popplerProvider shells out to poppler's pdftotext, which preserves the
// visual layout of estimate tables far better than in-process readers.
type popplerProvider struct {
	bin    string
	runner Runner
}

func (p *popplerProvider) Name() string { return "pdftotext" }

func (p *popplerProvider) Available() bool { return binaryAvailable(p.bin) }

func (p *popplerProvider) Extract(ctx context.Context, path string) (string, int, error) {
	out, errb, err := p.runner.Run(ctx, p.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	text := string(out)
	// pdftotext separates pages with form feeds.
	pages := 1 + strings.Count(text, "\f")
	return text, pages, nil
}

// nativeProvider reads PDF text in-process. Always available, but loses
// column layout on complex tables, so it sits behind pdftotext in the chain.
type nativeProvider struct{}

func (nativeProvider) Name() string { return "pdf-native" }

func (nativeProvider) Available() bool { return true }

func (nativeProvider) Extract(ctx context.Context, path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", 0, fmt.Errorf("page %d text: %w", i, err)
		}
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					b.WriteString(" ")
				}
				b.WriteString(word.S)
			}
			b.WriteString("\n")
		}
	}
	return b.String(), total, nil
}
