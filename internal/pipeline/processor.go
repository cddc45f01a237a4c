package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mkelechi/docextract/constants"
	"github.com/mkelechi/docextract/internal/chunk"
	"github.com/mkelechi/docextract/internal/extract"
	"github.com/mkelechi/docextract/internal/repository"
	"github.com/mkelechi/docextract/internal/schema"
)

// RunResult is the outcome of one document run, before any tracker
// bookkeeping.
type RunResult struct {
	Data       json.RawMessage
	Errors     []StageError
	ChunkCount int
	Scanned    bool
	Method     string
}

// Processor composes content extraction, chunking and the per-chunk
// extraction loop, and records request lifecycle transitions.
type Processor struct {
	content      extract.ContentExtractor
	orchestrator *Orchestrator
	tracker      repository.RequestRepository
	model        *schema.Model
	maxTokens    int
	tokenOverlap int
	logger       *slog.Logger
}

// NewProcessor builds the request processor. tracker may be nil for
// one-shot CLI runs that track nothing.
func NewProcessor(content extract.ContentExtractor, orchestrator *Orchestrator, tracker repository.RequestRepository,
	model *schema.Model, maxTokens, tokenOverlap int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		content:      content,
		orchestrator: orchestrator,
		tracker:      tracker,
		model:        model,
		maxTokens:    maxTokens,
		tokenOverlap: tokenOverlap,
		logger:       logger,
	}
}

// Run extracts one document end to end: content, chunks, per-chunk model
// calls, merge. Page-level OCR failures are accumulated as stage errors and
// do not abort the run; the failed pages carry their inline error slot into
// the model input instead.
func (p *Processor) Run(ctx context.Context, filePath string) (*RunResult, error) {
	content, err := p.content.Extract(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("content extraction: %w", err)
	}

	var stageErrs []StageError
	for _, pg := range content.Pages {
		if pg.Err != "" {
			stageErrs = append(stageErrs, StageError{Stage: "ocr", Page: pg.PageNumber, Message: pg.Err})
		}
	}

	chunks, err := chunk.Split(content.MarkedText, p.maxTokens, p.tokenOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunking: %w", err)
	}
	p.logger.Info("pipeline.run",
		"file", filePath,
		"scanned", content.Scanned,
		"method", content.Method,
		"pages", len(content.Pages),
		"chunks", len(chunks))

	data, extractErrs, err := p.orchestrator.Extract(ctx, p.model, chunks)
	stageErrs = append(stageErrs, extractErrs...)
	if err != nil {
		return &RunResult{Errors: stageErrs, ChunkCount: len(chunks), Scanned: content.Scanned, Method: content.Method}, err
	}

	return &RunResult{
		Data:       data,
		Errors:     stageErrs,
		ChunkCount: len(chunks),
		Scanned:    content.Scanned,
		Method:     content.Method,
	}, nil
}

// ProcessRequest runs one tracked request through its lifecycle:
// pending to processing, then completed or failed. It never returns the
// run error to the caller; the tracker record is the source of truth for
// background work.
func (p *Processor) ProcessRequest(ctx context.Context, requestID, filePath string) {
	if err := p.tracker.SetStatus(ctx, requestID, constants.StatusProcessing, repository.StatusUpdate{
		Message: "extraction in progress",
	}); err != nil {
		p.logger.Error("pipeline.request.transition_failed", "request_id", requestID, "status", constants.StatusProcessing, "error", err)
		return
	}

	res, err := p.Run(ctx, filePath)
	if err != nil {
		var errsJSON json.RawMessage
		if res != nil {
			errsJSON = MarshalErrors(res.Errors)
		}
		p.logger.Error("pipeline.request.failed", "request_id", requestID, "error", err)
		if serr := p.tracker.SetStatus(ctx, requestID, constants.StatusFailed, repository.StatusUpdate{
			Message: err.Error(),
			Errors:  errsJSON,
		}); serr != nil {
			p.logger.Error("pipeline.request.transition_failed", "request_id", requestID, "status", constants.StatusFailed, "error", serr)
		}
		return
	}

	msg := "extraction successful"
	if len(res.Errors) > 0 {
		msg = fmt.Sprintf("extraction successful with %d warning(s)", len(res.Errors))
	}
	if serr := p.tracker.SetStatus(ctx, requestID, constants.StatusCompleted, repository.StatusUpdate{
		Data:    res.Data,
		Message: msg,
		Errors:  MarshalErrors(res.Errors),
	}); serr != nil {
		p.logger.Error("pipeline.request.transition_failed", "request_id", requestID, "status", constants.StatusCompleted, "error", serr)
		return
	}
	p.logger.Info("pipeline.request.completed", "request_id", requestID, "chunks", res.ChunkCount, "scanned", res.Scanned)
}
