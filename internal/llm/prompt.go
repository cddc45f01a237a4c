package llm

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt composes the system message for one chunk's extraction
// call. When a carryover from the previous chunk exists it is embedded so
// entities spanning the chunk boundary are continued, not restarted.
func BuildSystemPrompt(carryover string) string {
	parts := []string{
		"You are a specialized data extraction agent.",
		"Extract all required information from the provided text.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"Use null for any field the text does not support; never invent values.",
	}
	if strings.TrimSpace(carryover) != "" {
		parts = append(parts,
			"Previously extracted data from earlier parts of this document follows.",
			"Merge and update it: keep values the current text does not contradict, extend lists, and override scalars only when the current text gives a newer value.",
			"Previous data:\n"+carryover)
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the chunk text with its position so the model
// knows whether more of the document follows.
func BuildUserPrompt(req ChunkRequest) string {
	var b strings.Builder
	if req.ChunkCount > 1 {
		fmt.Fprintf(&b, "Document part %d of %d.\n\n", req.ChunkIndex+1, req.ChunkCount)
	}
	b.WriteString(req.ChunkText)
	return b.String()
}

// BuildTranscriptionPrompt is the instruction for vision-model page OCR.
func BuildTranscriptionPrompt() string {
	return strings.Join([]string{
		"Transcribe all text visible on this document page.",
		"Preserve reading order and line breaks.",
		"Output the raw text only, with no commentary and no markdown fences.",
	}, " ")
}
