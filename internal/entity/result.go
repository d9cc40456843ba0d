package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"costbreakdown/constants"
)

// DocumentResult is the per-document outcome accumulated across a batch run.
type DocumentResult struct {
	DocID      string              `json:"doc_id"`
	SourcePath string              `json:"source_path"`
	Status     constants.DocStatus `json:"status"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Error      string              `json:"error,omitempty"`
	Method     string              `json:"extract_method,omitempty"`
	ItemCount  int                 `json:"item_count"`
	Total      decimal.Decimal     `json:"total"`
	OutputPath string              `json:"output_path,omitempty"`
	Duration   time.Duration       `json:"-"`
}

// BatchStats aggregates counters over one batch run.
type BatchStats struct {
	Scanned   int `json:"scanned"`
	Matched   int `json:"matched"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
