package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"costbreakdown/constants"
)

// ErrNoPDFProvider means no PDF text capability is present on this host.
// Callers should surface this at startup rather than per document.
var ErrNoPDFProvider = errors.New("no pdf text provider available")

// Config holds extraction tool configuration.
type Config struct {
	Pdftotext     string // binary name or absolute path
	Tesseract     string // binary name or absolute path
	TesseractLang string
}

// Extractor turns input documents into plain text, dispatching on extension.
type Extractor struct {
	cfg      Config
	runner   Runner
	pdfChain []PDFProvider
	logger   *slog.Logger
}

// NewExtractor builds an extractor, applying defaults for unset config fields.
func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
	e.pdfChain = []PDFProvider{
		&popplerProvider{bin: cfg.Pdftotext, runner: e.runner},
		nativeProvider{},
	}
	return e
}

// Extract produces the text for one document.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := filepath.Ext(path)
	e.logger.Debug("extract.start", "path", path, "ext", ext)

	var res Result
	var err error
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	case constants.SPREADSHEET:
		res, err = e.extractSpreadsheet(path)
	default:
		return Result{}, fmt.Errorf("unsupported extension %q", ext)
	}

	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	e.logger.Info("extract.ok",
		"path", path,
		"source_type", res.SourceType,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// extractPDF hands the document to the first available provider. The chain
// is consulted for availability only; an extraction failure from the chosen
// provider is final.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	for _, p := range e.pdfChain {
		if !p.Available() {
			e.logger.Warn("extract.pdf.provider_unavailable", "provider", p.Name())
			continue
		}
		text, pages, err := p.Extract(ctx, path)
		if err != nil {
			return Result{SourceType: constants.PDF, Method: p.Name()}, err
		}
		return Result{Text: text, Pages: pages, SourceType: constants.PDF, Method: methodName(p)}, nil
	}
	return Result{SourceType: constants.PDF}, ErrNoPDFProvider
}

func methodName(p PDFProvider) string {
	if p.Name() == "pdftotext" {
		return "pdf-text"
	}
	return p.Name()
}

// Capabilities reports each extraction capability and its availability.
func (e *Extractor) Capabilities() []Capability {
	caps := make([]Capability, 0, len(e.pdfChain)+2)
	for _, p := range e.pdfChain {
		c := Capability{Name: p.Name(), Kind: "pdf", Available: p.Available()}
		if _, ok := p.(*popplerProvider); ok {
			c.Detail = e.cfg.Pdftotext
		} else {
			c.Detail = "in-process reader"
		}
		caps = append(caps, c)
	}
	caps = append(caps, Capability{
		Name:      "tesseract",
		Kind:      "image",
		Available: binaryAvailable(e.cfg.Tesseract),
		Detail:    e.cfg.Tesseract,
	})
	caps = append(caps, Capability{
		Name:      "spreadsheet",
		Kind:      "spreadsheet",
		Available: true,
		Detail:    "in-process reader",
	})
	return caps
}

// HasPDFCapability reports whether at least one PDF provider can run.
func (e *Extractor) HasPDFCapability() bool {
	for _, p := range e.pdfChain {
		if p.Available() {
			return true
		}
	}
	return false
}
