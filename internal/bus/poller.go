package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// DefaultPollInterval is how often a document looks for invalidations made by other tabs.
const DefaultPollInterval = 2 * time.Second

// Poller watches the durable invalidation timestamp and republishes newer
// values on its document's bus.
type Poller struct {
	bus      *Bus
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSeen int64
}

// NewPoller creates a poller. Values already in storage are treated as seen.
func NewPoller(b *Bus, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		bus:      b,
		interval: interval,
		logger:   logger,
		lastSeen: b.Timestamp(),
	}
}

// Start polls until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check()
		}
	}
}

// Check compares the durable timestamp with the last one seen and publishes
// a media-cache-updated event when another tab wrote a newer value. It
// reports whether an event was published.
func (p *Poller) Check() bool {
	ts := p.bus.Timestamp()

	p.mu.Lock()
	if ts <= p.lastSeen {
		p.mu.Unlock()
		return false
	}
	p.lastSeen = ts
	p.mu.Unlock()

	// Our own writes were already delivered in-page.
	if ts == p.bus.LocalTimestamp() {
		return false
	}

	p.logger.Debug("observed invalidation from another tab", "timestamp", ts)
	p.bus.Publish(domain.EventMediaCacheUpdated, domain.Event{Timestamp: ts, Source: domain.SourcePoller})
	return true
}
