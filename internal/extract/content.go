package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/mkelechi/docextract/constants"
	"github.com/mkelechi/docextract/internal/ocr"
)

// Extractor picks a strategy based on file format: PDFs go through the scan
// detector and, when needed, the OCR dispatcher; DOCX goes through docconv;
// TXT is read directly.
type Extractor struct {
	detector   *Detector
	dispatcher *ocr.Dispatcher
	ocrMethod  string
	logger     *slog.Logger
}

func NewExtractor(detector *Detector, dispatcher *ocr.Dispatcher, ocrMethod string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		detector:   detector,
		dispatcher: dispatcher,
		ocrMethod:  ocrMethod,
		logger:     logger,
	}
}

// Extract implements ContentExtractor.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		return e.extractPDF(ctx, path)
	case constants.DOCX:
		return e.extractDocx(path)
	case constants.TXT:
		return e.extractTxt(path)
	}
	e.logger.Error("extract.unsupported_extension", "extension", ext)
	return Result{}, fmt.Errorf("unsupported extension: %q", ext)
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	cls, err := e.detector.Classify(ctx, path)
	if err != nil {
		return Result{}, fmt.Errorf("classify pdf: %w", err)
	}

	if !cls.Scanned {
		pages := make([]PageText, len(cls.PageTexts))
		for i, txt := range cls.PageTexts {
			pages[i] = PageText{PageNumber: i + 1, Text: txt, Method: MethodNative}
		}
		return Result{
			MarkedText: MarkText(pages),
			Pages:      pages,
			Method:     MethodNative,
		}, nil
	}

	e.logger.Info("extract.pdf.scanned", "path", path, "ocr_method", e.ocrMethod)
	results, err := e.dispatcher.ExtractScanned(ctx, path, e.ocrMethod)
	if err != nil {
		return Result{}, fmt.Errorf("ocr: %w", err)
	}

	method := MethodOCRClassical
	if e.ocrMethod == constants.OCRMethodVLM {
		method = MethodOCRVLM
	}
	pages := make([]PageText, len(results))
	var warnings []string
	for i, r := range results {
		pages[i] = PageText{PageNumber: r.PageNumber, Text: r.Text, Method: method, Err: r.Err}
		if r.Err != "" {
			warnings = append(warnings, fmt.Sprintf("page %d: %s", r.PageNumber, r.Err))
		}
	}
	return Result{
		MarkedText: MarkText(pages),
		Pages:      pages,
		Scanned:    true,
		Method:     method,
		Warnings:   warnings,
	}, nil
}

func (e *Extractor) extractDocx(path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read docx: %w", err)
	}
	res, err := docconv.Convert(bytes.NewReader(b), constants.MapExtToMime("docx"), false)
	if err != nil {
		return Result{}, fmt.Errorf("docconv: %w", err)
	}
	// DOCX has no fixed pagination; the whole body is one page.
	pages := []PageText{{PageNumber: 1, Text: res.Body, Method: MethodNative}}
	return Result{MarkedText: MarkText(pages), Pages: pages, Method: MethodNative}, nil
}

func (e *Extractor) extractTxt(path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read txt: %w", err)
	}
	text := string(b)
	if !utf8.Valid(b) {
		// Latin-1 fallback: every byte maps to the same code point.
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		text = string(runes)
	}
	pages := []PageText{{PageNumber: 1, Text: text, Method: MethodNative}}
	return Result{MarkedText: MarkText(pages), Pages: pages, Method: MethodNative}, nil
}
