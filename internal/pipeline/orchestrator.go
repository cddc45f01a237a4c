package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkelechi/docextract/internal/chunk"
	"github.com/mkelechi/docextract/internal/llm"
	"github.com/mkelechi/docextract/internal/schema"
)

// Orchestrator drives one model call per chunk against a strict schema,
// threading each chunk's accepted result into the next call as carryover,
// then reconciles all chunk results into one final object.
//
// Chunk processing is strictly sequential: chunk i+1's call must observe
// chunk i's result, so no two chunk calls for the same request are ever in
// flight concurrently. This is a hard ordering dependency, not a
// performance choice.
type Orchestrator struct {
	Extractor  llm.ChunkExtractor
	MaxRetries int           // attempts per chunk beyond the first
	BaseWait   time.Duration // backoff base between attempts
	Logger     *slog.Logger
}

func NewOrchestrator(extractor llm.ChunkExtractor, maxRetries int, baseWait time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseWait <= 0 {
		baseWait = 2 * time.Second
	}
	return &Orchestrator{Extractor: extractor, MaxRetries: maxRetries, BaseWait: baseWait, Logger: logger}
}

// Extract runs the per-chunk extraction loop and merges the results. The
// merged object is validated once more against the schema; failing that
// final validation is fatal for the request, never silently corrected.
func (o *Orchestrator) Extract(ctx context.Context, model *schema.Model, chunks []chunk.Chunk) (json.RawMessage, []StageError, error) {
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("no chunks to extract")
	}

	results := make([]json.RawMessage, 0, len(chunks))
	var carryover json.RawMessage
	var errs []StageError

	for _, c := range chunks {
		res, attempts, err := o.extractChunk(ctx, model, c, len(chunks), carryover)
		if err != nil {
			errs = append(errs, StageError{Stage: "extract", Chunk: c.Index, Message: err.Error()})
			return nil, errs, fmt.Errorf("chunk %d/%d failed after %d attempt(s): %w", c.Index+1, len(chunks), attempts, err)
		}
		if attempts > 1 {
			errs = append(errs, StageError{
				Stage:   "extract",
				Chunk:   c.Index,
				Message: fmt.Sprintf("succeeded after %d attempts", attempts),
			})
		}
		results = append(results, res)

		// The carryover for the next chunk is the running merge of all
		// accepted results so far, compacted to one JSON object.
		merged, merr := MergeResults(results)
		if merr != nil {
			return nil, errs, fmt.Errorf("carryover merge after chunk %d: %w", c.Index, merr)
		}
		carryover = merged
	}

	final, err := MergeResults(results)
	if err != nil {
		return nil, errs, fmt.Errorf("merge results: %w", err)
	}
	if err := model.Validate(final); err != nil {
		errs = append(errs, StageError{Stage: "merge", Message: err.Error()})
		return nil, errs, fmt.Errorf("merged result failed schema validation: %w", err)
	}

	o.Logger.Info("pipeline.extract.done", "chunks", len(chunks), "result_bytes", len(final))
	return final, errs, nil
}

// extractChunk performs one chunk's call with bounded retries. Transient
// model-call errors and schema-validation failures both retry; exhausting
// retries is fatal for the request, since a silently dropped chunk is worse
// than an explicit failure.
func (o *Orchestrator) extractChunk(ctx context.Context, model *schema.Model, c chunk.Chunk, chunkCount int, carryover json.RawMessage) (json.RawMessage, int, error) {
	req := llm.ChunkRequest{
		ChunkText:  c.Text,
		ChunkIndex: c.Index,
		ChunkCount: chunkCount,
		Carryover:  carryover,
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := llm.Backoff(o.BaseWait, attempt-1)
			o.Logger.Warn("pipeline.chunk.retry",
				"chunk", c.Index, "attempt", attempt+1, "wait", wait.String(), "error", lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, attempts, ctx.Err()
			}
		}
		attempts++

		res, err := o.Extractor.ExtractChunk(ctx, model, req)
		if err != nil {
			lastErr = err
			if llm.Transient(err) {
				continue
			}
			return nil, attempts, err
		}

		if err := model.Validate(res); err != nil {
			lastErr = fmt.Errorf("schema validation: %w", err)
			continue
		}

		o.Logger.Info("pipeline.chunk.ok",
			"chunk", c.Index, "tokens", c.TokenCount, "attempts", attempts)
		return res, attempts, nil
	}
	return nil, attempts, lastErr
}
