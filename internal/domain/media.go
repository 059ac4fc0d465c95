package domain

import (
	"strconv"
	"strings"
)

// CacheBustParam is the query parameter appended to display copies of media URLs.
const CacheBustParam = "_t"

// StripCacheBust returns the canonical form of a media URL: every
// cache-busting parameter is removed, other parameters keep their order.
func StripCacheBust(raw string) string {
	raw = strings.TrimSpace(raw)
	base, fragment, hasFragment := strings.Cut(raw, "#")
	path, query, hasQuery := strings.Cut(base, "?")
	if !hasQuery {
		return raw
	}

	kept := make([]string, 0, 4)
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		name, _, _ := strings.Cut(part, "=")
		if name == CacheBustParam {
			continue
		}
		kept = append(kept, part)
	}

	out := path
	if len(kept) > 0 {
		out += "?" + strings.Join(kept, "&")
	}
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

// WithCacheBust returns a display copy of url carrying a fresh cache-busting
// parameter. The input may already carry one; it is replaced.
func WithCacheBust(url string, ts int64) string {
	canonical := StripCacheBust(url)
	if canonical == "" {
		return ""
	}
	base, fragment, hasFragment := strings.Cut(canonical, "#")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	out := base + sep + CacheBustParam + "=" + strconv.FormatInt(ts, 10)
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

// SameMedia compares two media URLs ignoring cache-busting parameters.
func SameMedia(a, b string) bool {
	return StripCacheBust(a) == StripCacheBust(b)
}
