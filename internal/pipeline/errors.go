package pipeline

import "encoding/json"

// StageError is one accumulated page- or chunk-level error, surfaced on the
// request record so callers can diagnose which stage and which page/chunk
// failed.
type StageError struct {
	Stage   string `json:"stage"`             // "ocr" | "extract" | "merge"
	Page    int    `json:"page,omitempty"`    // 1-based, ocr stage only
	Chunk   int    `json:"chunk,omitempty"`   // 0-based, extract stage only
	Message string `json:"message"`
}

// MarshalErrors encodes a StageError list for the tracker's errors column.
// Empty lists encode as nil so the column stays NULL.
func MarshalErrors(errs []StageError) json.RawMessage {
	if len(errs) == 0 {
		return nil
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return nil
	}
	return b
}
