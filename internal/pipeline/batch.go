package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"costbreakdown/internal/common"
	"costbreakdown/internal/entity"
	"costbreakdown/internal/metrics"
)

// Batch runs documents strictly one at a time, in the order given. One
// document's failure is recorded and the run continues with the next.
type Batch struct {
	proc   *Processor
	logger *slog.Logger
}

func NewBatch(proc *Processor, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{proc: proc, logger: logger}
}

// Report is the accumulator produced by one batch run.
type Report struct {
	ID      string                  `json:"batch_id"`
	Results []entity.DocumentResult `json:"results"`
	Stats   entity.BatchStats       `json:"stats"`
	Outputs []string                `json:"-"` // completed output paths, in processing order
}

// Run processes every document sequentially against one template.
func (b *Batch) Run(ctx context.Context, docs []string, templatePath, outputDir string) Report {
	report := Report{ID: uuid.New().String()}
	start := time.Now()

	b.logger.Info("batch.start",
		"batch_id", report.ID,
		"req_id", common.RequestIDFromContext(ctx),
		"documents", len(docs),
	)
	ctx = common.WithBatchID(ctx, report.ID)

	for _, doc := range docs {
		res, err := b.proc.ProcessDocument(ctx, doc, templatePath, outputDir)
		report.Results = append(report.Results, res)
		if err != nil {
			report.Stats.Failed++
			continue
		}
		report.Stats.Processed++
		report.Outputs = append(report.Outputs, res.OutputPath)
	}

	metrics.BatchesProcessed.Inc()
	b.logger.Info("batch.done",
		"batch_id", report.ID,
		"processed", report.Stats.Processed,
		"failed", report.Stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report
}
