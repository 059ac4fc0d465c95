package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterKeys(t *testing.T) {
	items := []string{"hero.title_start", "hero.subtitle", "about.main_image", "Footer.Copyright"}

	matches := FilterKeys("hts", items)
	require.NotEmpty(t, matches)
	assert.Equal(t, 0, matches[0].Index)

	matches = FilterKeys("COPY", items)
	require.Len(t, matches, 1)
	assert.Equal(t, 3, matches[0].Index)
	assert.NotEmpty(t, matches[0].MatchedIndexes)

	assert.Empty(t, FilterKeys("zzz", items))
}

func TestFilterKeysEmptyQueryKeepsOrder(t *testing.T) {
	items := []string{"b", "a"}
	matches := FilterKeys("  ", items)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Index)
	assert.Equal(t, 1, matches[1].Index)
}

func TestRankMedia(t *testing.T) {
	urls := []string{
		"https://cdn/photos/team-building.jpg",
		"https://cdn/photos/locomotive.jpg",
		"https://cdn/photos/loco.jpg",
		"https://cdn/icons/logo.svg",
	}

	ranked := RankMedia("loco", urls)
	require.Len(t, ranked, 2)
	assert.Equal(t, "https://cdn/photos/loco.jpg", ranked[0])
	assert.Equal(t, "https://cdn/photos/locomotive.jpg", ranked[1])

	assert.Equal(t, urls, RankMedia("", urls))
	assert.Empty(t, RankMedia("xyz123", urls))
}
