// Package bus delivers "content changed" notifications to every mounted
// consumer: synchronously within a document, and across documents through
// a timestamp written to durable storage and polled by every other tab.
package bus

import (
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

var _ domain.EventBus = (*Bus)(nil)

type subscription struct {
	id      uint64
	handler domain.Handler
}

// Bus is the in-page event channel of one document.
type Bus struct {
	storage domain.LocalStorage
	logger  *slog.Logger

	mu      sync.RWMutex
	subs    map[string]map[uint64]domain.Handler
	nextID  uint64
	localTS int64 // last timestamp this document persisted
}

// New creates a bus whose cross-tab channel lives in storage.
func New(storage domain.LocalStorage, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		storage: storage,
		logger:  logger,
		subs:    make(map[string]map[uint64]domain.Handler),
	}
}

// Subscribe registers h for events named name. The returned function
// removes the subscription and is safe to call more than once.
func (b *Bus) Subscribe(name string, h domain.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[name] == nil {
		b.subs[name] = make(map[uint64]domain.Handler)
	}
	b.subs[name][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[name], id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev synchronously to the current subscribers of name, in
// subscription order. A panicking handler is logged and skipped.
func (b *Bus) Publish(name string, ev domain.Event) {
	ev.Name = name

	b.mu.RLock()
	handlers := make([]subscription, 0, len(b.subs[name]))
	for id, h := range b.subs[name] {
		handlers = append(handlers, subscription{id: id, handler: h})
	}
	b.mu.RUnlock()

	sort.Slice(handlers, func(i, j int) bool { return handlers[i].id < handlers[j].id })

	b.logger.Debug("publish", "event", name, "timestamp", ev.Timestamp, "key", ev.Key, "source", ev.Source, "subscribers", len(handlers))
	for _, s := range handlers {
		b.deliver(s.handler, ev)
	}
}

func (b *Bus) deliver(h domain.Handler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", ev.Name, "panic", r)
		}
	}()
	h(ev)
}

// Timestamp reads the durable invalidation timestamp (0 when unset or invalid).
func (b *Bus) Timestamp() int64 {
	raw, ok := b.storage.GetItem(domain.StorageKeyInvalidation)
	if !ok {
		return 0
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		b.logger.Warn("invalid invalidation timestamp in storage", "value", raw, "error", err)
		return 0
	}
	return ts
}

// Persist writes ts to the durable cross-tab channel.
func (b *Bus) Persist(ts int64) error {
	if err := b.storage.SetItem(domain.StorageKeyInvalidation, strconv.FormatInt(ts, 10)); err != nil {
		b.logger.Error("failed to persist invalidation timestamp", "timestamp", ts, "error", err)
		return err
	}
	b.mu.Lock()
	if ts > b.localTS {
		b.localTS = ts
	}
	b.mu.Unlock()
	return nil
}

// Broadcast persists ev.Timestamp for other tabs and publishes ev locally.
func (b *Bus) Broadcast(name string, ev domain.Event) {
	_ = b.Persist(ev.Timestamp)
	b.Publish(name, ev)
}

// LocalTimestamp returns the newest timestamp persisted by this document.
func (b *Bus) LocalTimestamp() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.localTS
}
