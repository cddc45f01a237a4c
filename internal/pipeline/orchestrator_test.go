package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mkelechi/docextract/internal/chunk"
	"github.com/mkelechi/docextract/internal/llm"
	"github.com/mkelechi/docextract/internal/schema"
)

func testModel(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.FromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"total": map[string]any{"type": "number"},
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	return m
}

func testChunks(t *testing.T, texts ...string) []chunk.Chunk {
	t.Helper()
	chunks := make([]chunk.Chunk, len(texts))
	for i, txt := range texts {
		chunks[i] = chunk.Chunk{Index: i, Text: txt, TokenCount: chunk.Count(txt)}
	}
	return chunks
}

// scriptedExtractor replays canned responses and records what it was asked.
type scriptedExtractor struct {
	responses []func(llm.ChunkRequest) (json.RawMessage, error)
	calls     []llm.ChunkRequest
}

func (s *scriptedExtractor) ExtractChunk(_ context.Context, _ *schema.Model, req llm.ChunkRequest) (json.RawMessage, error) {
	s.calls = append(s.calls, req)
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("unexpected call %d", len(s.calls))
	}
	fn := s.responses[0]
	s.responses = s.responses[1:]
	return fn(req)
}

func respond(body string) func(llm.ChunkRequest) (json.RawMessage, error) {
	return func(llm.ChunkRequest) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	}
}

func fail(err error) func(llm.ChunkRequest) (json.RawMessage, error) {
	return func(llm.ChunkRequest) (json.RawMessage, error) {
		return nil, err
	}
}

func TestOrchestratorThreadsCarryover(t *testing.T) {
	ext := &scriptedExtractor{responses: []func(llm.ChunkRequest) (json.RawMessage, error){
		respond(`{"total": null, "items": ["a"]}`),
		respond(`{"total": 12, "items": ["a", "b"]}`),
	}}
	o := NewOrchestrator(ext, 0, time.Millisecond, nil)

	final, stageErrs, err := o.Extract(context.Background(), testModel(t), testChunks(t, "part one", "part two"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(stageErrs) != 0 {
		t.Errorf("unexpected stage errors: %+v", stageErrs)
	}

	// First chunk sees no carryover; second sees the merge of chunk one.
	if ext.calls[0].Carryover != nil {
		t.Errorf("chunk 0 carryover = %s, want none", ext.calls[0].Carryover)
	}
	var carry map[string]any
	if err := json.Unmarshal(ext.calls[1].Carryover, &carry); err != nil {
		t.Fatalf("decode carryover: %v", err)
	}
	if _, ok := carry["items"]; !ok {
		t.Errorf("carryover = %v, want items from chunk 0", carry)
	}

	var result map[string]any
	if err := json.Unmarshal(final, &result); err != nil {
		t.Fatalf("decode final: %v", err)
	}
	if result["total"] != float64(12) {
		t.Errorf("total = %v, want 12", result["total"])
	}
	items := result["items"].([]any)
	if len(items) != 2 {
		t.Errorf("items = %v, want boundary dedup to [a b]", items)
	}
}

func TestOrchestratorRetriesTransient(t *testing.T) {
	ext := &scriptedExtractor{responses: []func(llm.ChunkRequest) (json.RawMessage, error){
		fail(&llm.StatusError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}),
		respond(`{"total": 5, "items": null}`),
	}}
	o := NewOrchestrator(ext, 2, time.Millisecond, nil)

	final, stageErrs, err := o.Extract(context.Background(), testModel(t), testChunks(t, "only chunk"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ext.calls) != 2 {
		t.Errorf("calls = %d, want retry after 429", len(ext.calls))
	}
	// A retried chunk leaves an informational stage error.
	if len(stageErrs) != 1 || stageErrs[0].Stage != "extract" {
		t.Errorf("stage errors = %+v, want one extract entry", stageErrs)
	}
	if final == nil {
		t.Error("expected a merged result")
	}
}

func TestOrchestratorRetriesValidationFailure(t *testing.T) {
	ext := &scriptedExtractor{responses: []func(llm.ChunkRequest) (json.RawMessage, error){
		respond(`{"total": "not a number", "items": null}`),
		respond(`{"total": 7, "items": null}`),
	}}
	o := NewOrchestrator(ext, 1, time.Millisecond, nil)

	if _, _, err := o.Extract(context.Background(), testModel(t), testChunks(t, "one")); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(ext.calls) != 2 {
		t.Errorf("calls = %d, want invalid chunk output to be retried", len(ext.calls))
	}
}

func TestOrchestratorNonTransientFailsFast(t *testing.T) {
	permanent := &llm.StatusError{StatusCode: http.StatusUnauthorized, Body: "bad key"}
	ext := &scriptedExtractor{responses: []func(llm.ChunkRequest) (json.RawMessage, error){
		fail(permanent),
	}}
	o := NewOrchestrator(ext, 3, time.Millisecond, nil)

	_, stageErrs, err := o.Extract(context.Background(), testModel(t), testChunks(t, "one"))
	if err == nil {
		t.Fatal("expected failure")
	}
	var se *llm.StatusError
	if !errors.As(err, &se) {
		t.Errorf("error = %v, want the endpoint error preserved", err)
	}
	if len(ext.calls) != 1 {
		t.Errorf("calls = %d, 401 must not be retried", len(ext.calls))
	}
	if len(stageErrs) != 1 || stageErrs[0].Chunk != 0 {
		t.Errorf("stage errors = %+v", stageErrs)
	}
}

func TestOrchestratorExhaustedRetriesFailRequest(t *testing.T) {
	throttle := &llm.StatusError{StatusCode: http.StatusTooManyRequests}
	ext := &scriptedExtractor{responses: []func(llm.ChunkRequest) (json.RawMessage, error){
		fail(throttle), fail(throttle), fail(throttle),
	}}
	o := NewOrchestrator(ext, 2, time.Millisecond, nil)

	if _, _, err := o.Extract(context.Background(), testModel(t), testChunks(t, "one")); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if len(ext.calls) != 3 {
		t.Errorf("calls = %d, want initial attempt plus 2 retries", len(ext.calls))
	}
}

func TestOrchestratorEmptyChunks(t *testing.T) {
	o := NewOrchestrator(&scriptedExtractor{}, 0, time.Millisecond, nil)
	if _, _, err := o.Extract(context.Background(), testModel(t), nil); err == nil {
		t.Fatal("expected error for empty chunk list")
	}
}
