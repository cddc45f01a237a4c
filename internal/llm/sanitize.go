package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SanitizeJSON decodes raw model output and strips control characters that
// would poison downstream JSON storage (NUL and the C0 range except \t, \n,
// \r), recursing through objects and arrays. Returns re-encoded JSON.
func SanitizeJSON(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	cleaned := sanitizeValue(v)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, nil
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return stripControl(t)
	case map[string]any:
		for k, val := range t {
			t[k] = sanitizeValue(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = sanitizeValue(val)
		}
		return t
	}
	return v
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// StripJSONFences removes a ```json ... ``` wrapper some models emit around
// structured output.
func StripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
