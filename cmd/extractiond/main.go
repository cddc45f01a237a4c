package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkelechi/docextract/internal/common"
	"github.com/mkelechi/docextract/internal/extract"
	"github.com/mkelechi/docextract/internal/llm/openai"
	"github.com/mkelechi/docextract/internal/ocr"
	"github.com/mkelechi/docextract/internal/pipeline"
	"github.com/mkelechi/docextract/internal/repository"
	"github.com/mkelechi/docextract/internal/schema"
	"github.com/mkelechi/docextract/internal/server"
	"github.com/mkelechi/docextract/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		logger.Error("schema load failed", "path", cfg.Schema.Path, "error", err)
		os.Exit(1)
	}

	db, dialect, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("db open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := repository.HealthCheck(ctx, db); err != nil {
		logger.Error("db health failed", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(ctx, db, dialect); err != nil {
		logger.Error("db migrate failed", "error", err)
		os.Exit(1)
	}
	tracker := repository.NewTrackerStore(db, dialect, logger)

	llmClient := openai.NewClient(openai.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.ModelID,
		VisionModel:  cfg.LLM.VisionModelID,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
		MaxPageBytes: cfg.OCR.MaxPageBytes,
	}, logger)

	runner := ocr.ExecRunner{}
	tess := ocr.NewTesseractOCR(ocr.TesseractConfig{
		Tesseract: cfg.OCR.Tesseract,
		Lang:      cfg.OCR.Lang,
	}, runner)
	dispatcher := ocr.NewDispatcher(ocr.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		PageTimeout: cfg.OCR.PageTimeout,
		PagesPerSec: cfg.OCR.PagesPerSec,
	}, runner, tess, llmClient, logger)

	detector := extract.NewDetector(cfg.OCR.Pdftotext, cfg.Extractor.ScanDensityThreshold, runner, logger)
	content := extract.NewExtractor(detector, dispatcher, cfg.OCR.Method, logger)

	orchestrator := pipeline.NewOrchestrator(llmClient, cfg.LLM.MaxRetries, cfg.LLM.RetryBaseWait, logger)
	processor := pipeline.NewProcessor(content, orchestrator, tracker, model,
		cfg.Extractor.MaxTokens, cfg.Extractor.TokenOverlap, logger)

	var store storage.ObjectStore
	if s3, err := storage.NewS3Store(ctx, cfg.Storage, logger); err != nil {
		logger.Warn("object storage disabled", "reason", err)
		store = storage.NewNoopStore(logger)
	} else {
		store = s3
	}

	svc := server.NewService(cfg, tracker, processor, store, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("stopped")
}
