// Package extract obtains raw text from a document of unknown origin:
// digitally encoded text, classical OCR, or vision-model OCR. Its output is
// one marked text blob in which every page is prefixed with a literal
// `--- Page N ---` marker, in strictly increasing page order.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Extraction methods recorded per page.
const (
	MethodNative       = "native"
	MethodOCRClassical = "ocr_classical"
	MethodOCRVLM       = "ocr_vlm"
)

// PageText is one page's recovered text. When OCR failed for the page, Err
// is set and the page's slot in the marked text carries an inline error
// marker instead of content.
type PageText struct {
	PageNumber int    // 1-based
	Text       string
	Method     string
	Err        string
}

// Result is the content extractor's output for one document.
type Result struct {
	MarkedText string
	Pages      []PageText
	Scanned    bool
	Method     string
	Warnings   []string
}

// ContentExtractor is the narrow interface the pipeline consumes: given a
// file, return the document's marked textual content.
type ContentExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// PageMarker renders the literal page marker. Its format is part of the
// observable contract for consumers diffing OCR output; never change it.
func PageMarker(n int) string {
	return fmt.Sprintf("--- Page %d ---", n)
}

// InlineOCRError renders the in-band error slot for a failed page.
func InlineOCRError(msg string) string {
	return fmt.Sprintf("[OCR error: %s]", msg)
}

// MarkText assembles PageText entries into MarkedText: each page's marker,
// a blank line, then the page body. Pages are ordered by page number
// regardless of the order results arrived in.
func MarkText(pages []PageText) string {
	sorted := make([]PageText, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PageNumber < sorted[j].PageNumber
	})

	var b strings.Builder
	for i, p := range sorted {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(PageMarker(p.PageNumber))
		b.WriteString("\n\n")
		if p.Err != "" {
			b.WriteString(InlineOCRError(p.Err))
		} else {
			b.WriteString(strings.TrimRight(p.Text, "\n"))
		}
	}
	return b.String()
}
