package domain

import (
	"maps"
	"sort"
	"strings"
)

// KeySeparator joins the segments of a content key ("hero.title_start").
const KeySeparator = "."

// IsQualified reports whether a content key already carries a namespace.
func IsQualified(key string) bool {
	return strings.Contains(key, KeySeparator)
}

// ContentMap maps content keys to resolved values for one page prefix.
type ContentMap map[string]string

// Clone returns an independent copy of the map (nil stays nil).
func (m ContentMap) Clone() ContentMap {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// SortedKeys returns the keys of the map in lexical order.
func (m ContentMap) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Page describes one editable page template: its storage id, the prefix
// its keys live under, the text keys it renders and its media slots with
// their built-in defaults.
type Page struct {
	ID         string            `mapstructure:"id"`
	Prefix     string            `mapstructure:"prefix"`
	Title      string            `mapstructure:"title"`
	Text       []string          `mapstructure:"text"`
	Media      map[string]string `mapstructure:"media"`
	LastResort string            `mapstructure:"last_resort"`
}

// MediaKeys returns the page's media slot names in lexical order.
func (p Page) MediaKeys() []string {
	return ContentMap(p.Media).SortedKeys()
}
