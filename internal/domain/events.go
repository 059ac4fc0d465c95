package domain

// Event names carried on the in-page bus
const (
	// EventMediaCacheUpdated signals that media (or any cached content) may be stale.
	// Payload: Timestamp, optionally Key/URL/Source.
	EventMediaCacheUpdated = "media-cache-updated"

	// EventContentUpdated signals that text content was saved.
	// Payload: Timestamp, Language, Source.
	EventContentUpdated = "content-updated"

	// EventLanguageChanged signals an explicit editing-language switch.
	// Payload: Language.
	EventLanguageChanged = "admin-language-changed"
)

// SourcePoller marks events synthesized from the durable storage poller.
const SourcePoller = "storage-poll"

// Event is the payload delivered to bus subscribers.
type Event struct {
	Name      string
	Timestamp int64
	Key       string
	URL       string
	Language  string
	Source    string
}

// Handler receives bus events. Handlers must be idempotent: the same logical
// change may arrive through the in-page channel and the storage poller.
type Handler func(Event)

// EventBus is the in-page publish/subscribe channel.
type EventBus interface {
	Publish(name string, ev Event)
	Subscribe(name string, h Handler) (unsubscribe func())
}
