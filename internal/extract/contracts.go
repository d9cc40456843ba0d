package extract

import (
	"context"
	"time"

	"costbreakdown/constants"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Result is the outcome of text extraction for one document.
type Result struct {
	Text       string
	Pages      int
	SourceType constants.FileFormat
	Method     string // "pdf-text" | "pdf-native" | "image-ocr" | "sheet-dump"
	Duration   time.Duration
	Warnings   []string
}

// Capability describes one extraction capability and whether it is usable
// on this host.
type Capability struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // "pdf" | "image" | "spreadsheet"
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}
