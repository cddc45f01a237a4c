// Package chunk splits marked document text into overlapping, token-bounded
// windows. Tokenization is approximate (whitespace-delimited words with byte
// offsets); the corpus this feeds tolerates a coarse token count as long as
// splitting is deterministic, and determinism is what retries depend on.
package chunk

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Chunk is one window over the source text. Offsets are byte positions into
// the original string, so Text == source[StartOffset:EndOffset].
type Chunk struct {
	Index       int
	Text        string
	TokenCount  int
	StartOffset int
	EndOffset   int
}

type span struct {
	start, end int
}

// tokenize returns byte spans of whitespace-delimited tokens.
func tokenize(text string) []span {
	var spans []span
	inTok := false
	start := 0
	for i := 0; i < len(text); {
		r, sz := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if inTok {
				spans = append(spans, span{start, i})
				inTok = false
			}
		} else if !inTok {
			start = i
			inTok = true
		}
		i += sz
	}
	if inTok {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}

// Count returns the approximate token count of text.
func Count(text string) int {
	return len(tokenize(text))
}

// Split partitions text into windows of at most maxTokens tokens, each
// window's start advancing by maxTokens-overlapTokens so consecutive windows
// share overlapTokens of content. The final chunk may be shorter. Chunk
// indices are dense and zero-based; recomputing from the same input and
// configuration always yields identical chunks.
func Split(text string, maxTokens, overlapTokens int) ([]Chunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if overlapTokens < 0 {
		return nil, fmt.Errorf("token overlap must be non-negative, got %d", overlapTokens)
	}
	if overlapTokens >= maxTokens {
		// The window would never advance.
		return nil, fmt.Errorf("token overlap (%d) must be smaller than max tokens (%d)", overlapTokens, maxTokens)
	}

	spans := tokenize(text)
	total := len(spans)

	if total <= maxTokens {
		return []Chunk{{
			Index:       0,
			Text:        text,
			TokenCount:  total,
			StartOffset: 0,
			EndOffset:   len(text),
		}}, nil
	}

	step := maxTokens - overlapTokens
	var chunks []Chunk
	for start := 0; start < total; start += step {
		end := start + maxTokens
		if end > total {
			end = total
		}
		startOff := spans[start].start
		endOff := spans[end-1].end
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Text:        text[startOff:endOff],
			TokenCount:  end - start,
			StartOffset: startOff,
			EndOffset:   endOff,
		})
		if end == total {
			break
		}
	}
	return chunks, nil
}
