package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"costbreakdown/internal/archive"
	"costbreakdown/internal/common"
	"costbreakdown/internal/entity"
	"costbreakdown/internal/export"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/ingest"
	"costbreakdown/internal/llm/gemini"
	"costbreakdown/internal/pipeline"
	"costbreakdown/internal/populate"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir       = flag.String("dir", "", "directory of input documents to process")
		itemsPath = flag.String("items", "", "JSON file of manually entered line items (alternative to --dir)")
		name      = flag.String("name", "manual-entry", "job name for manual entry output naming")
		template  = flag.String("template", "", "breakdown template path (defaults to configured template)")
		out       = flag.String("out", "", "output directory (defaults to configured output dir)")
		zipOut    = flag.Bool("zip", false, "bundle outputs into a zip archive")
	)
	flag.Parse()

	if *dir == "" && *itemsPath == "" {
		printError("Error: one of --dir or --items is required\n")
		os.Exit(1)
	}
	if *dir != "" && *itemsPath != "" {
		printError("Error: --dir and --items are mutually exclusive\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *template == "" {
		*template = cfg.Paths.TemplatePath
	}
	if *out == "" {
		*out = cfg.Paths.OutputDir
	}

	if _, err := os.Stat(*template); err != nil {
		printError("Error: template not found at %s\n", *template)
		os.Exit(1)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		printError("Error: cannot create output directory %s: %v\n", *out, err)
		os.Exit(1)
	}

	ctx := context.Background()

	extractor := extract.NewExtractor(extract.Config{
		Pdftotext:     cfg.Extract.Pdftotext,
		Tesseract:     cfg.Extract.Tesseract,
		TesseractLang: cfg.Extract.TesseractLang,
	}, logger)

	ai := gemini.NewClient(gemini.Config{
		APIKey:          cfg.AI.APIKey,
		BaseURL:         cfg.AI.BaseURL,
		Model:           cfg.AI.Model,
		Temperature:     cfg.AI.Temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Timeout:         cfg.AI.Timeout,
	}, logger)

	proc := pipeline.NewProcessor(extractor, ai, populate.NewPopulator(logger), logger)

	// Manual mode: populate straight from a typed item list.
	if *itemsPath != "" {
		runManual(ctx, proc, *itemsPath, *name, *template, *out)
		return
	}

	if !ai.Configured() {
		logger.Warn("GEMINI_API_KEY not set; documents will fail structuring, use --items for manual entry")
	}
	if !extractor.HasPDFCapability() {
		logger.Warn("no PDF text provider available; PDF documents will fail extraction")
	}

	scanner := ingest.NewScanner(ingest.Options{
		MaxFileSizeMB: cfg.Ingest.MaxFileSizeMB,
		MaxBatchFiles: cfg.Ingest.MaxBatchFiles,
	}, logger)

	docs, decisions, stats, err := scanner.ScanDir(*dir)
	if err != nil {
		logger.Error("directory scan failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, d := range decisions {
		if !d.Accepted {
			logger.Warn("skipping file", "path", d.Path, "reason", d.Reason)
		}
	}
	if len(docs) == 0 {
		printError("Error: no processable documents in %s\n", *dir)
		os.Exit(1)
	}

	batch := pipeline.NewBatch(proc, logger)
	report := batch.Run(ctx, docs, *template, *out)
	report.Stats.Scanned = stats.Scanned
	report.Stats.Matched = stats.Matched
	report.Stats.Skipped = stats.Skipped()

	if data, err := export.NewService(logger).BatchSummaryXLSX(report.Results); err != nil {
		logger.Error("summary workbook failed", "error", err)
	} else {
		sumPath := filepath.Join(*out, fmt.Sprintf("batch_%s_summary.xlsx", shortID(report.ID)))
		if err := os.WriteFile(sumPath, data, 0o644); err != nil {
			logger.Error("write summary workbook", "path", sumPath, "error", err)
		} else {
			report.Outputs = append(report.Outputs, sumPath)
		}
	}

	zipPath := ""
	if *zipOut && len(report.Outputs) > 0 {
		zipPath = filepath.Join(*out, fmt.Sprintf("batch_%s.zip", shortID(report.ID)))
		if err := archive.WriteZip(zipPath, report.Outputs, logger); err != nil {
			logger.Error("archive failed", "path", zipPath, "error", err)
			zipPath = ""
		}
	}

	logger.Info("batch complete",
		"batch_id", report.ID,
		"scanned", report.Stats.Scanned,
		"processed", report.Stats.Processed,
		"failed", report.Stats.Failed,
		"skipped", report.Stats.Skipped,
	)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents scanned: %d\n", report.Stats.Scanned)
	fmt.Printf("- Documents processed: %d\n", report.Stats.Processed)
	fmt.Printf("- Failures: %d\n", report.Stats.Failed)
	fmt.Printf("- Output directory: %s\n", *out)
	if zipPath != "" {
		fmt.Printf("- Archive: %s\n", zipPath)
	}
	if report.Stats.Processed == 0 {
		os.Exit(1)
	}
}

func runManual(ctx context.Context, proc *pipeline.Processor, itemsPath, name, template, out string) {
	raw, err := os.ReadFile(itemsPath)
	if err != nil {
		printError("Error: cannot read items file: %v\n", err)
		os.Exit(1)
	}
	var items []entity.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		printError("Error: items file must be a JSON array of {description, amount}: %v\n", err)
		os.Exit(1)
	}

	res, err := proc.ProcessManual(ctx, common.SanitizeFilename(name), items, template, out)
	if err != nil {
		printError("Error: manual entry failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Manual entry complete!\n")
	fmt.Printf("- Items written: %d\n", res.ItemCount)
	fmt.Printf("- Total: %s\n", res.Total.String())
	fmt.Printf("- Output: %s\n", res.OutputPath)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
