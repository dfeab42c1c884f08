// Small scalar accessors for the loosely-typed accumulated payloads this
// package reads out of internal/registry, mirroring the style of
// internal/fingerprint's own unexported helpers without reaching across the
// package boundary for them.

package group

import "time"

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func gstr(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func gnum(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func gint(m map[string]any, key string) int {
	return int(gnum(m, key))
}
