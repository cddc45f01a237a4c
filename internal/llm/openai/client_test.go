package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkelechi/docextract/internal/llm"
	"github.com/mkelechi/docextract/internal/schema"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func testModel(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.FromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"total": map[string]any{"type": "number"},
		},
	})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return m
}

func TestExtractChunkRequestShape(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("auth header = %q", got)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse(`{"total": 42}`)))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "key123", BaseURL: srv.URL, Model: "gpt-test"}, nil)
	out, err := c.ExtractChunk(context.Background(), testModel(t), llm.ChunkRequest{
		ChunkText:  "total 42",
		ChunkIndex: 1,
		ChunkCount: 3,
		Carryover:  json.RawMessage(`{"total": null}`),
	})
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if string(out) != `{"total":42}` {
		t.Errorf("out = %s", out)
	}

	if captured["model"] != "gpt-test" {
		t.Errorf("model = %v", captured["model"])
	}
	rf := captured["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format type = %v", rf["type"])
	}
	js := rf["json_schema"].(map[string]any)
	if js["strict"] != true || js["schema"] == nil {
		t.Errorf("json_schema = %v", js)
	}
	msgs := captured["messages"].([]any)
	system := msgs[0].(map[string]any)["content"].(string)
	if !containsAll(system, "Previous data") {
		t.Errorf("system prompt missing carryover: %q", system)
	}
}

func TestExtractChunkStripsFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse("```json\n{\"total\": 7}\n```")))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	out, err := c.ExtractChunk(context.Background(), testModel(t), llm.ChunkRequest{ChunkText: "x", ChunkCount: 1})
	if err != nil {
		t.Fatalf("ExtractChunk: %v", err)
	}
	if string(out) != `{"total":7}` {
		t.Errorf("out = %s", out)
	}
}

func TestExtractChunkSurfacesStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.ExtractChunk(context.Background(), testModel(t), llm.ChunkRequest{ChunkText: "x", ChunkCount: 1})
	var se *llm.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want StatusError 429", err)
	}
	if !llm.Transient(err) {
		t.Error("429 must classify transient")
	}
}

func TestExtractChunkRejectsRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"refusal": "cannot comply"}},
			},
		})
		w.Write(b)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	if _, err := c.ExtractChunk(context.Background(), testModel(t), llm.ChunkRequest{ChunkText: "x", ChunkCount: 1}); err == nil {
		t.Fatal("refusal must surface as an error")
	}
}

func TestExtractPage(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(chatResponse("transcribed page text")))
	}))
	defer srv.Close()

	dir := t.TempDir()
	img := filepath.Join(dir, "page-01.png")
	if err := os.WriteFile(img, []byte("\x89PNG fake"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, VisionModel: "gpt-vision"}, nil)
	text, err := c.ExtractPage(context.Background(), img)
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if text != "transcribed page text" {
		t.Errorf("text = %q", text)
	}
	if captured["model"] != "gpt-vision" {
		t.Errorf("model = %v", captured["model"])
	}
	content := captured["messages"].([]any)[0].(map[string]any)["content"].([]any)
	imgPart := content[1].(map[string]any)
	url := imgPart["image_url"].(map[string]any)["url"].(string)
	if !containsAll(url, "data:image/png;base64,") {
		t.Errorf("image url = %q, want data URL", url)
	}
}

func TestExtractPageTooLarge(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "big.png")
	os.WriteFile(img, make([]byte, 64), 0o600)

	c := NewClient(Config{APIKey: "k", MaxPageBytes: 16}, nil)
	if _, err := c.ExtractPage(context.Background(), img); err == nil {
		t.Fatal("oversized page image must be rejected before upload")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
