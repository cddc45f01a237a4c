// Package ocr recovers text from scanned document pages. Two backends exist:
// classical OCR via tesseract and vision-model OCR via a multimodal LLM.
// Routing between them is a pure function of the configured method flag.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mkelechi/docextract/constants"
)

// PageOCR extracts text from a single rendered page image. Implementations
// must be safe for concurrent use; the vision path fans out across pages.
type PageOCR interface {
	ExtractPage(ctx context.Context, imagePath string) (string, error)
}

// PageResult carries one page's recognized text or its inline error.
// PageNumber is 1-based.
type PageResult struct {
	PageNumber int
	Text       string
	Err        string
}

// Config holds dispatcher configuration.
type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI, default 300
	MaxPages int    // 0 = no limit

	PageTimeout time.Duration // per-page call deadline on the vision path
	PagesPerSec float64       // rate limit for vision calls, 0 = unlimited
}

// Dispatcher renders a scanned PDF's pages to images and routes per-page OCR
// work to the configured backend.
type Dispatcher struct {
	cfg       Config
	runner    Runner
	tesseract PageOCR
	vision    PageOCR
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewDispatcher(cfg Config, runner Runner, tesseract, vision PageOCR, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.PagesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PagesPerSec), 1)
	}
	return &Dispatcher{
		cfg:       cfg,
		runner:    runner,
		tesseract: tesseract,
		vision:    vision,
		limiter:   limiter,
		logger:    logger,
	}
}

// ExtractScanned renders each page of the PDF at path and OCRs it with the
// requested method. A page failure never aborts the document; the failed
// page's slot carries an inline error instead. Results are always complete
// and ordered by page number.
func (d *Dispatcher) ExtractScanned(ctx context.Context, path, method string) ([]PageResult, error) {
	backend, err := d.backend(method)
	if err != nil {
		return nil, err
	}

	images, cleanup, err := d.renderPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}
	defer cleanup()

	start := time.Now()
	var results []PageResult
	switch method {
	case constants.OCRMethodVLM:
		results = d.extractConcurrent(ctx, backend, images)
	default:
		results = d.extractSequential(ctx, backend, images)
	}

	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
		}
	}
	d.logger.Info("ocr.document.done",
		"method", method,
		"pages", len(results),
		"failed_pages", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

func (d *Dispatcher) backend(method string) (PageOCR, error) {
	switch method {
	case constants.OCRMethodTesseract:
		if d.tesseract == nil {
			return nil, fmt.Errorf("tesseract backend not configured")
		}
		return d.tesseract, nil
	case constants.OCRMethodVLM:
		if d.vision == nil {
			return nil, fmt.Errorf("vision backend not configured")
		}
		return d.vision, nil
	}
	return nil, fmt.Errorf("unknown ocr method: %q", method)
}

// extractSequential processes pages one at a time. Classical OCR is
// CPU-bound; parallelizing within a document buys nothing and complicates
// resource isolation across requests.
func (d *Dispatcher) extractSequential(ctx context.Context, backend PageOCR, images []string) []PageResult {
	results := make([]PageResult, len(images))
	for i, img := range images {
		page := i + 1
		txt, err := backend.ExtractPage(ctx, img)
		if err != nil {
			d.logger.Warn("ocr.page.failed", "page", page, "error", err)
			results[i] = PageResult{PageNumber: page, Err: err.Error()}
			continue
		}
		results[i] = PageResult{PageNumber: page, Text: txt}
	}
	return results
}

// extractConcurrent launches one call per page and joins before returning.
// Sibling failures stay local to their page; reassembly is by page number,
// not completion order.
func (d *Dispatcher) extractConcurrent(ctx context.Context, backend PageOCR, images []string) []PageResult {
	results := make([]PageResult, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			page := i + 1
			if d.limiter != nil {
				if err := d.limiter.Wait(gctx); err != nil {
					results[i] = PageResult{PageNumber: page, Err: err.Error()}
					return nil
				}
			}
			callCtx, cancel := context.WithTimeout(gctx, d.cfg.PageTimeout)
			defer cancel()

			txt, err := backend.ExtractPage(callCtx, img)
			if err != nil {
				d.logger.Warn("ocr.page.failed", "page", page, "error", err)
				results[i] = PageResult{PageNumber: page, Err: err.Error()}
				return nil
			}
			results[i] = PageResult{PageNumber: page, Text: txt}
			return nil
		})
	}
	// Goroutines never return errors; the group is a join barrier.
	_ = g.Wait()
	return results
}
