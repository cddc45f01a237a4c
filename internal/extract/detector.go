package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/mkelechi/docextract/internal/ocr"
)

// Classification is the scan detector's verdict for one PDF.
type Classification struct {
	Scanned   bool
	PageCount int
	PageTexts []string // native per-page text, reusable when Scanned is false
	Density   float64  // chars per page
}

// Detector decides whether direct text extraction is trustworthy or OCR must
// be used. The chars-per-page density threshold is a heuristic, not a
// guarantee: a missed scanned page surfaces as unusually short text, never
// as silent corruption.
type Detector struct {
	Pdftotext        string
	DensityThreshold int
	Runner           ocr.Runner
	Logger           *slog.Logger
}

func NewDetector(pdftotext string, threshold int, runner ocr.Runner, logger *slog.Logger) *Detector {
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	if threshold <= 0 {
		threshold = 100
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{Pdftotext: pdftotext, DensityThreshold: threshold, Runner: runner, Logger: logger}
}

// Classify extracts native text from the PDF at path and computes its
// chars-per-page density. Below the threshold (or for empty/zero-page
// documents) the document is classified as scanned.
func (d *Detector) Classify(ctx context.Context, path string) (Classification, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := d.Runner.Run(ctx, d.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return Classification{}, fmt.Errorf("pdftotext: %w (stderr: %s)", err, strings.TrimSpace(string(errb)))
	}

	// pdftotext separates pages with form feeds.
	pages := strings.Split(string(out), "\f")
	if len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}

	pageCount := len(pages)
	// Cross-check against the PDF's own page tree; a text layer can be
	// missing entirely, which makes the form-feed count undercount.
	if n, cerr := api.PageCountFile(path); cerr == nil && n > pageCount {
		for len(pages) < n {
			pages = append(pages, "")
		}
		pageCount = n
	}

	if pageCount == 0 {
		d.Logger.Info("extract.detect.empty", "path", path)
		return Classification{Scanned: true}, nil
	}

	totalChars := 0
	for _, p := range pages {
		totalChars += len(strings.TrimSpace(p))
	}
	density := float64(totalChars) / float64(pageCount)
	scanned := density < float64(d.DensityThreshold)

	d.Logger.Info("extract.detect.done",
		"path", path,
		"pages", pageCount,
		"chars", totalChars,
		"density", density,
		"threshold", d.DensityThreshold,
		"scanned", scanned,
	)

	return Classification{
		Scanned:   scanned,
		PageCount: pageCount,
		PageTexts: pages,
		Density:   density,
	}, nil
}
