package sports

import (
	"sort"
	"strings"
)

// CacheKey builds a cache key from its parts. Parts are joined with ":"
// after trimming, so identical inputs always produce identical keys.
func CacheKey(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		cleaned = append(cleaned, strings.ToLower(p))
	}
	return strings.Join(cleaned, ":")
}

// ParamKey renders a parameter map as a deterministic key fragment.
// Keys are sorted so map iteration order never leaks into cache keys.
func ParamKey(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strings.ToLower(k))
		b.WriteByte('=')
		b.WriteString(strings.ToLower(params[k]))
	}
	return b.String()
}
