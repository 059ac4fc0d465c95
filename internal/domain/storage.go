package domain

// Well-known durable storage keys
const (
	// StorageKeyInvalidation holds the invalidation timestamp as a base-10 integer string.
	StorageKeyInvalidation = "media_cache_timestamp"

	textDraftPrefix  = "edit_draft:"
	mediaDraftPrefix = "media_draft:"
)

// TextDraftKey is the durable key of the text draft for one (page, language) pair.
func TextDraftKey(pageID, language string) string {
	return textDraftPrefix + pageID + ":" + language
}

// MediaDraftKey is the durable key of the media draft for one page.
func MediaDraftKey(pageID string) string {
	return mediaDraftPrefix + pageID
}

// TextDraftPrefix returns the key prefix shared by every text draft of a page.
func TextDraftPrefix(pageID string) string {
	return textDraftPrefix + pageID + ":"
}

// LocalStorage is durable, per-profile string storage shared by every tab.
type LocalStorage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Keys(prefix string) []string
}
