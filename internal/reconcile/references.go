package reconcile

import (
	"encoding/json"
	"strings"
)

// ParseImageRefs normalizes the legacy images column into a flat list of
// URL-or-path entries. Three historical shapes are tolerated: a raw string,
// a JSON-encoded array (of strings or of objects carrying url/path keys),
// and a comma-joined concatenation. Downstream code only ever sees the flat
// list.
func ParseImageRefs(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		if refs := parseJSONArray(trimmed); refs != nil {
			return refs
		}
	}

	if strings.Contains(trimmed, ",") {
		var refs []string
		for _, part := range strings.Split(trimmed, ",") {
			if part = strings.TrimSpace(part); part != "" {
				refs = append(refs, part)
			}
		}
		return refs
	}

	return []string{trimmed}
}

func parseJSONArray(raw string) []string {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	refs := make([]string, 0, len(entries))
	for _, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				refs = append(refs, s)
			}
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(entry, &obj); err != nil {
			continue
		}
		for _, key := range []string{"url", "path", "src"} {
			if value, ok := obj[key].(string); ok && strings.TrimSpace(value) != "" {
				refs = append(refs, strings.TrimSpace(value))
			}
		}
	}
	return refs
}
