package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"costbreakdown/constants"
	"costbreakdown/internal/common"
	"costbreakdown/internal/entity"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/llm"
	"costbreakdown/internal/metrics"
	"costbreakdown/internal/populate"
)

// TemplatePopulator is Stage 3 as the processor sees it.
type TemplatePopulator interface {
	Populate(templatePath, outputPath string, items []entity.LineItem) (populate.Result, error)
}

// Processor drives one document through extract -> structure -> populate.
// Failures never cross documents: every error is folded into the returned
// DocumentResult so a batch can keep going.
type Processor struct {
	extractor  extract.TextExtractor
	structurer llm.Structurer
	populator  TemplatePopulator
	logger     *slog.Logger
}

func NewProcessor(extractor extract.TextExtractor, structurer llm.Structurer, populator TemplatePopulator, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		extractor:  extractor,
		structurer: structurer,
		populator:  populator,
		logger:     logger,
	}
}

// ProcessDocument runs the full pipeline for one document. The returned
// result always describes the outcome; err is non-nil exactly when the
// result status is FAILED.
func (p *Processor) ProcessDocument(ctx context.Context, docPath, templatePath, outputDir string) (entity.DocumentResult, error) {
	start := time.Now()
	res := entity.DocumentResult{
		DocID:      uuid.New().String(),
		SourcePath: docPath,
		Status:     constants.DocStatusReceived,
	}
	p.logger.Info("pipeline.doc.start",
		"doc_id", res.DocID,
		"batch_id", common.BatchIDFromContext(ctx),
		"path", docPath,
	)

	if constants.MapExtToFormat(filepath.Ext(docPath)) == constants.UNKNOWN {
		return p.fail(res, common.CodeUnsupportedType,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(docPath)), nil, start)
	}

	stageStart := time.Now()
	ext, err := p.extractor.Extract(ctx, docPath)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return p.fail(res, common.CodeExtractFailed, "text extraction failed", err, start)
	}
	if strings.TrimSpace(ext.Text) == "" {
		return p.fail(res, common.CodeExtractFailed, "no text found in document", nil, start)
	}
	res.Method = ext.Method
	res.Status = constants.DocStatusExtractOK
	p.logger.Info("pipeline.extract.ok",
		"doc_id", res.DocID,
		"method", ext.Method,
		"pages", ext.Pages,
		"chars", len(ext.Text),
	)

	stageStart = time.Now()
	items, _, err := p.structurer.StructureText(ctx, ext.Text)
	metrics.StageDuration.WithLabelValues("structure").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return p.fail(res, common.CodeAIResponseMalformed, "line item structuring failed", err, start)
	}
	if len(items) == 0 {
		return p.fail(res, common.CodeAIResponseMalformed,
			"no line items recognized; enter them manually", nil, start)
	}
	res.Status = constants.DocStatusStructureOK
	p.logger.Info("pipeline.structure.ok", "doc_id", res.DocID, "items", len(items))

	return p.populateStage(res, items, templatePath, outputDir, start)
}

// ProcessManual populates the template from operator-entered items, skipping
// extraction and structuring. Unlike model output, invalid manual items are
// a hard error rather than a silent drop.
func (p *Processor) ProcessManual(_ context.Context, name string, items []entity.LineItem, templatePath, outputDir string) (entity.DocumentResult, error) {
	start := time.Now()
	res := entity.DocumentResult{
		DocID:      uuid.New().String(),
		SourcePath: name,
		Status:     constants.DocStatusStructureOK,
	}
	p.logger.Info("pipeline.manual.start", "doc_id", res.DocID, "name", name, "items", len(items))

	if len(items) == 0 {
		return p.fail(res, common.CodeInvalidInput, "no line items provided", nil, start)
	}
	for i, item := range items {
		if !item.Valid() {
			return p.fail(res, common.CodeInvalidInput,
				fmt.Sprintf("line item %d is invalid: description must be non-empty and amount non-negative", i+1), nil, start)
		}
	}

	return p.populateStage(res, items, templatePath, outputDir, start)
}

func (p *Processor) populateStage(res entity.DocumentResult, items []entity.LineItem, templatePath, outputDir string, start time.Time) (entity.DocumentResult, error) {
	outPath := filepath.Join(outputDir, constants.OutputFileName(res.SourcePath))

	stageStart := time.Now()
	popRes, err := p.populator.Populate(templatePath, outPath, items)
	metrics.StageDuration.WithLabelValues("populate").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return p.fail(res, common.CodeTemplateWriteFailed, "template population failed", err, start)
	}

	res.Status = constants.DocStatusCompleted
	res.ItemCount = popRes.ItemsWritten
	res.Total = entity.Total(items)
	res.OutputPath = outPath
	res.Duration = time.Since(start)

	metrics.DocumentsProcessed.WithLabelValues(string(res.Status)).Inc()
	metrics.LineItemsWritten.Add(float64(popRes.ItemsWritten))

	p.logger.Info("pipeline.doc.ok",
		"doc_id", res.DocID,
		"output", outPath,
		"items", res.ItemCount,
		"total", res.Total.String(),
		"insert_row", popRes.InsertRow,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Processor) fail(res entity.DocumentResult, code, msg string, cause error, start time.Time) (entity.DocumentResult, error) {
	err := common.NewAppError(code, msg, cause)
	res.Status = constants.DocStatusFailed
	res.ErrorCode = code
	res.Error = err.Error()
	res.Duration = time.Since(start)

	metrics.DocumentsProcessed.WithLabelValues(string(res.Status)).Inc()
	metrics.DocumentsFailed.WithLabelValues(code).Inc()

	p.logger.Error("pipeline.doc.failed",
		"doc_id", res.DocID,
		"path", res.SourcePath,
		"code", code,
		"error", err,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, err
}
