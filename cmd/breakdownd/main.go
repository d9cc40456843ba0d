package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"costbreakdown/internal/common"
	"costbreakdown/internal/export"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/ingest"
	"costbreakdown/internal/llm/gemini"
	"costbreakdown/internal/pipeline"
	"costbreakdown/internal/populate"
	"costbreakdown/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor := extract.NewExtractor(extract.Config{
		Pdftotext:     cfg.Extract.Pdftotext,
		Tesseract:     cfg.Extract.Tesseract,
		TesseractLang: cfg.Extract.TesseractLang,
	}, logger)
	if !extractor.HasPDFCapability() {
		logger.Warn("no PDF text provider available; PDF documents will fail extraction")
	}

	ai := gemini.NewClient(gemini.Config{
		APIKey:          cfg.AI.APIKey,
		BaseURL:         cfg.AI.BaseURL,
		Model:           cfg.AI.Model,
		Temperature:     cfg.AI.Temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Timeout:         cfg.AI.Timeout,
	}, logger)
	if !ai.Configured() {
		logger.Warn("GEMINI_API_KEY not set; /v1/process is disabled, manual entry still works")
	}

	proc := pipeline.NewProcessor(extractor, ai, populate.NewPopulator(logger), logger)
	batch := pipeline.NewBatch(proc, logger)
	scanner := ingest.NewScanner(ingest.Options{
		MaxFileSizeMB: cfg.Ingest.MaxFileSizeMB,
		MaxBatchFiles: cfg.Ingest.MaxBatchFiles,
	}, logger)

	srv := server.New(cfg, proc, batch, scanner, extractor, export.NewService(logger), ai.Configured(), ai.Model(), logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Routes(),
	}

	go func() {
		logger.Info("breakdownd listening", "addr", cfg.Server.Addr, "template", cfg.Paths.TemplatePath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
