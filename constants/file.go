package constants

import "strings"

// Document formats accepted by the pipeline.
const (
	PDF  = "PDF"
	DOCX = "DOCX"
	TXT  = "TXT"
)

// FileTypes holds the allowed document formats.
var FileTypes = []string{PDF, DOCX, TXT}

// OCR methods accepted by the dispatcher. Routing between them is a pure
// function of configuration; only scanned-vs-native detection is automatic.
const (
	OCRMethodTesseract = "tesseract"
	OCRMethodVLM       = "vlm"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a (normalized or raw) extension to a document format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	case "txt":
		return TXT
	}
	return ""
}

// MapExtToMime returns the mime type docconv expects for an extension.
func MapExtToMime(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "txt":
		return "text/plain"
	}
	return "application/octet-stream"
}
