package pipeline

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// MergeResults combines per-chunk extraction results into one object,
// field by field:
//
//   - scalar fields take the last non-null value observed across chunks
//     (later chunks represent later document content and may legitimately
//     override earlier values);
//   - list fields are concatenated in chunk order, with duplicate entries at
//     the chunk boundary removed, since overlap windows can extract the same
//     source content twice;
//   - nested objects merge recursively by the same rules.
//
// The caller validates the merged object against the schema; merging itself
// never drops a chunk's contribution silently.
func MergeResults(results []json.RawMessage) (json.RawMessage, error) {
	var merged map[string]any
	for i, raw := range results {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode chunk %d result: %w", i, err)
		}
		if merged == nil {
			merged = m
			continue
		}
		merged = mergeObjects(merged, m)
	}
	if merged == nil {
		merged = map[string]any{}
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged result: %w", err)
	}
	return out, nil
}

func mergeObjects(acc, next map[string]any) map[string]any {
	for k, nv := range next {
		if nv == nil {
			continue // null never overrides
		}
		av, ok := acc[k]
		if !ok || av == nil {
			acc[k] = nv
			continue
		}
		switch typed := nv.(type) {
		case []any:
			if prev, isList := av.([]any); isList {
				acc[k] = appendDedup(prev, typed)
			} else {
				acc[k] = nv
			}
		case map[string]any:
			if prev, isObj := av.(map[string]any); isObj {
				acc[k] = mergeObjects(prev, typed)
			} else {
				acc[k] = nv
			}
		default:
			// Scalar: last non-null wins.
			acc[k] = nv
		}
	}
	return acc
}

// appendDedup concatenates next onto acc, dropping the largest run of
// leading next elements that duplicates acc's trailing elements. Repeats
// inside a chunk are preserved; only the boundary overlap is collapsed.
func appendDedup(acc, next []any) []any {
	max := len(next)
	if len(acc) < max {
		max = len(acc)
	}
	skip := 0
	for k := max; k > 0; k-- {
		if runsEqual(acc[len(acc)-k:], next[:k]) {
			skip = k
			break
		}
	}
	return append(acc, next[skip:]...)
}

func runsEqual(a, b []any) bool {
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
