package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mkelechi/docextract/internal/common"
	"github.com/mkelechi/docextract/internal/extract"
	"github.com/mkelechi/docextract/internal/llm/openai"
	"github.com/mkelechi/docextract/internal/ocr"
	"github.com/mkelechi/docextract/internal/pipeline"
	"github.com/mkelechi/docextract/internal/schema"
)

// runextract runs one document through the full extraction pipeline without
// a tracker store and prints the merged result to stdout. Intended for
// schema development and OCR debugging.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		filePath   = flag.String("file", "", "document to extract (pdf, docx or txt)")
		schemaPath = flag.String("schema", "", "JSON Schema file describing the output")
		ocrMethod  = flag.String("ocr-method", "", "override OCR method (tesseract or vlm)")
		maxTokens  = flag.Int("max-tokens", 0, "override chunk size in tokens")
		overlap    = flag.Int("overlap", -1, "override chunk overlap in tokens")
		timeout    = flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	)
	flag.Parse()

	if *filePath == "" || *schemaPath == "" {
		fmt.Fprintln(os.Stderr, "usage: runextract -file <doc> -schema <schema.json> [-ocr-method m] [-max-tokens n] [-overlap n]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if *ocrMethod != "" {
		cfg.OCR.Method = *ocrMethod
	}
	if *maxTokens > 0 {
		cfg.Extractor.MaxTokens = *maxTokens
	}
	if *overlap >= 0 {
		cfg.Extractor.TokenOverlap = *overlap
	}
	if err := cfg.ValidatePipeline(); err != nil {
		logger.Error("pipeline config invalid", "error", err)
		os.Exit(1)
	}

	model, err := schema.Load(*schemaPath)
	if err != nil {
		logger.Error("schema load failed", "path", *schemaPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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
	processor := pipeline.NewProcessor(content, orchestrator, nil, model,
		cfg.Extractor.MaxTokens, cfg.Extractor.TokenOverlap, logger)

	start := time.Now()
	res, err := processor.Run(ctx, *filePath)
	if err != nil {
		logger.Error("extraction failed", "file", *filePath, "error", err)
		os.Exit(1)
	}
	logger.Info("extraction done",
		"file", *filePath,
		"chunks", res.ChunkCount,
		"scanned", res.Scanned,
		"method", res.Method,
		"warnings", len(res.Errors),
		"duration", time.Since(start).String())

	fmt.Println(string(res.Data))
}
