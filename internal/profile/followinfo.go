package profile

import (
	"sort"
	"strings"

	"github.com/maqua/member-lookup/internal/record"
)

// rawKey holds the untouched note text inside a follow-info map.
const rawKey = "__raw__"

// FollowInfo parses the structured key:value lines staff write into a
// customer's recent follow-up note (merchantAppliedDetail.recentFollowContent).
// Each line splits on its first colon, fullwidth colons included; the whole
// note is kept under the __raw__ key.
func FollowInfo(detail record.Record) map[string]string {
	result := make(map[string]string)
	if detail == nil {
		return result
	}
	merchant, ok := record.AsRecord(detail.Get("merchantAppliedDetail"))
	if !ok {
		return result
	}

	text := record.CleanText(merchant.Get("recentFollowContent"))
	if text == "" {
		return result
	}

	result[rawKey] = text
	for _, rawLine := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		normalized := strings.Replace(line, "：", ":", 1)
		normalized = strings.Replace(normalized, "﹕", ":", 1)
		key, value, found := strings.Cut(normalized, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key != "" {
			result[key] = strings.TrimSpace(value)
		}
	}
	return result
}

// sortedKeys returns map keys in a stable order for deterministic scans.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
