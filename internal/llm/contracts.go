package llm

import (
	"context"
	"encoding/json"

	"github.com/mkelechi/docextract/internal/schema"
)

// ChunkRequest is one chunk's extraction call: the chunk text plus the
// carryover from the previous chunk's accepted result (nil for chunk 0).
type ChunkRequest struct {
	ChunkText  string
	ChunkIndex int
	ChunkCount int
	Carryover  json.RawMessage
}

// ChunkExtractor is the interface the orchestrator depends on. The returned
// JSON is the model's raw structured output; the orchestrator validates it
// against the schema before accepting it.
type ChunkExtractor interface {
	ExtractChunk(ctx context.Context, model *schema.Model, req ChunkRequest) (json.RawMessage, error)
}
