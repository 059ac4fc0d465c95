// Package keys maps logical content keys to the storage spellings that may
// hold their values.
package keys

import (
	"strings"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

const imagesSegment = "images"

// Candidates returns the ordered storage keys to try for key on a page
// with the given prefix. The result always has at least one entry.
//
// A bare key yields prefix.images.key, prefix.key and key, in that order.
// A qualified key is tried as-is first; when it lives outside the page
// prefix the variants with the images segment toggled are tried as well.
func Candidates(prefix, key string) []string {
	prefix = normalizePrefix(prefix)
	key = strings.TrimSpace(key)

	if domain.IsQualified(key) {
		out := []string{key}
		if prefix == "" || !strings.HasPrefix(key, prefix+domain.KeySeparator) {
			out = append(out, toggleImages(key))
		}
		return dedupe(out)
	}

	if prefix == "" || key == "" {
		return []string{key}
	}
	return dedupe([]string{
		join(prefix, imagesSegment, key),
		join(prefix, key),
		key,
	})
}

// Spellings returns every key under which a value fetched for key should be
// stored so that later lookups by any equivalent spelling hit.
func Spellings(prefix, key string) []string {
	prefix = normalizePrefix(prefix)
	key = strings.TrimSpace(key)

	out := []string{key}
	if bare, ok := Bare(prefix, key); ok {
		out = append(out, Candidates(prefix, bare)...)
	} else if domain.IsQualified(key) {
		out = append(out, toggleImages(key))
	}
	return dedupe(out)
}

// Bare strips the page prefix and the images segment from a qualified key.
// It reports false when key does not belong to the prefix.
func Bare(prefix, key string) (string, bool) {
	prefix = normalizePrefix(prefix)
	if !domain.IsQualified(key) {
		return key, true
	}
	if prefix == "" || !strings.HasPrefix(key, prefix+domain.KeySeparator) {
		return "", false
	}
	rest := strings.TrimPrefix(key, prefix+domain.KeySeparator)
	rest = strings.TrimPrefix(rest, imagesSegment+domain.KeySeparator)
	if rest == "" || domain.IsQualified(rest) {
		return "", false
	}
	return rest, true
}

// toggleImages removes the first images segment, or inserts one after the
// namespace when none is present.
func toggleImages(key string) string {
	parts := strings.Split(key, domain.KeySeparator)
	for i, p := range parts {
		if p == imagesSegment && len(parts) > 1 {
			return strings.Join(append(parts[:i:i], parts[i+1:]...), domain.KeySeparator)
		}
	}
	if len(parts) < 2 {
		return key
	}
	out := make([]string, 0, len(parts)+1)
	out = append(out, parts[:len(parts)-1]...)
	out = append(out, imagesSegment, parts[len(parts)-1])
	return strings.Join(out, domain.KeySeparator)
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), domain.KeySeparator)
}

func join(parts ...string) string {
	return strings.Join(parts, domain.KeySeparator)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
