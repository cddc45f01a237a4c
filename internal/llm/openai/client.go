package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkelechi/docextract/internal/llm"
	"github.com/mkelechi/docextract/internal/schema"
)

// ExtractChunk implements llm.ChunkExtractor using the chat/completions
// endpoint with a strict json_schema response format. The orchestrator
// validates the returned JSON; this client only sanitizes it.
func (c *Client) ExtractChunk(ctx context.Context, model *schema.Model, req llm.ChunkRequest) (json.RawMessage, error) {
	rid := uuid.New().String()
	start := time.Now()

	var carry string
	if len(req.Carryover) > 0 {
		carry = string(req.Carryover)
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"chunk", req.ChunkIndex,
		"chunks", req.ChunkCount,
		"text_len", len(req.ChunkText),
		"carryover_len", len(carry),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "document_extraction",
				"strict": true,
				"schema": model.Descriptor(),
			},
		},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(carry)},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
		},
	}

	content, err := c.chat(ctx, body)
	if err != nil {
		c.logger.Error("llm.extract.call_failed",
			"req_id", rid, "chunk", req.ChunkIndex, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	cleaned, err := llm.SanitizeJSON([]byte(llm.StripJSONFences(content)))
	if err != nil {
		c.logger.Error("llm.extract.bad_json",
			"req_id", rid, "chunk", req.ChunkIndex, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("chunk %d: %w", req.ChunkIndex, err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"chunk", req.ChunkIndex,
		"bytes", len(cleaned),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cleaned, nil
}

// ExtractPage implements the OCR dispatcher's PageOCR on the vision path:
// one independent transcription request per rendered page image.
func (c *Client) ExtractPage(ctx context.Context, imagePath string) (string, error) {
	dataURL, err := readAsDataURL(imagePath, c.cfg.MaxPageBytes)
	if err != nil {
		return "", fmt.Errorf("read page image: %w", err)
	}

	body := map[string]any{
		"model":       c.cfg.VisionModel,
		"temperature": 0,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": llm.BuildTranscriptionPrompt()},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}

	content, err := c.chat(ctx, body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// chat posts a chat/completions body and returns the first choice's content.
func (c *Client) chat(ctx context.Context, body map[string]any) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, c.headers(), c.logger)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	if r := cc.Choices[0].Message.Refusal; r != "" {
		return "", fmt.Errorf("model refusal: %s", r)
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}
