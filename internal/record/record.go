// Package record models the untyped payloads returned by the CRM gateway.
//
// Every endpoint returns loosely structured JSON objects whose field names
// differ between endpoints (snake_case, camelCase, dotted-nested) and whose
// values may be scalars, nationalized-text objects, or nested maps/slices.
// Record is an open map with accessors that tolerate missing or oddly shaped
// fields instead of failing.
package record

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Record is one raw CRM payload. It is never mutated after decoding.
type Record map[string]any

// Get returns the value stored under key, or nil.
func (r Record) Get(key string) any {
	if r == nil {
		return nil
	}
	return r[key]
}

// Nested walks a dotted path ("customer.code") through nested maps. It
// returns nil as soon as any segment is missing or not a map.
func (r Record) Nested(path string) any {
	if r == nil || path == "" {
		return nil
	}
	var current any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := AsRecord(current)
		if !ok {
			return nil
		}
		current = m.Get(part)
		if current == nil {
			return nil
		}
	}
	return current
}

// Lookup dispatches to Nested for dotted keys and Get otherwise.
func (r Record) Lookup(key string) any {
	if strings.Contains(key, ".") {
		return r.Nested(key)
	}
	return r.Get(key)
}

// AsRecord converts a decoded JSON value into a Record when possible.
func AsRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	default:
		return nil, false
	}
}

// AsSlice converts a decoded JSON value into a slice when possible.
func AsSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// Records converts raw decoded list entries into Record values, dropping
// anything that is not an object.
func Records(items []map[string]any) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, Record(item))
		}
	}
	return out
}

// ResolveText unwraps a value into display text. Nationalized-text objects
// ({zh_TW, zh_CN, en_US}) prefer Traditional Chinese, then Simplified, then
// English. Scalars are stringified; nil and empty values yield "".
func ResolveText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case Record:
		return resolveNationalized(val)
	case map[string]any:
		return resolveNationalized(Record(val))
	case bool:
		if val {
			return "true"
		}
		return ""
	case float64:
		if val == 0 {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		if val == 0 {
			return ""
		}
		return strconv.Itoa(val)
	case int64:
		if val == 0 {
			return ""
		}
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

func resolveNationalized(r Record) string {
	for _, key := range []string{"zh_TW", "zh_CN", "en_US"} {
		if s, ok := r.Get(key).(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// CleanText resolves a value to text and trims surrounding whitespace.
func CleanText(v any) string {
	return strings.TrimSpace(ResolveText(v))
}

// FirstNonEmpty returns the first value whose cleaned text is non-empty.
func FirstNonEmpty(values ...any) string {
	for _, v := range values {
		if text := CleanText(v); text != "" {
			return text
		}
	}
	return ""
}

// CollectSources flattens the given payloads and every map nested inside them
// (through maps and slices, depth-first) into one search space. Later inputs
// surface earlier in the result, matching the precedence the extractors rely
// on: a detail payload passed last outranks the list record passed first.
func CollectSources(items ...any) []Record {
	var sources []Record
	seen := make(map[uintptr]bool)
	stack := make([]any, len(items))
	copy(stack, items)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		m, ok := AsRecord(current)
		if !ok || m == nil {
			continue
		}
		marker := reflect.ValueOf(map[string]any(m)).Pointer()
		if seen[marker] {
			continue
		}
		seen[marker] = true
		sources = append(sources, m)

		// Map iteration order is randomized; sort keys so nested source
		// precedence is stable across runs.
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch nested := m[k].(type) {
			case map[string]any:
				stack = append(stack, nested)
			case Record:
				stack = append(stack, nested)
			case []any:
				for _, entry := range nested {
					if _, ok := AsRecord(entry); ok {
						stack = append(stack, entry)
					}
				}
			}
		}
	}
	return sources
}

// ExtractValue tries each alias key in order against every source and returns
// the first non-empty cleaned value. Key order outranks source order, so a
// preferred field name wins even when it only appears in a later source.
// Dotted keys are resolved as nested paths.
func ExtractValue(sources []Record, keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		for _, src := range sources {
			if text := CleanText(src.Lookup(key)); text != "" {
				return text
			}
		}
	}
	return ""
}
