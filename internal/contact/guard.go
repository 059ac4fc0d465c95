// Package contact screens contact-form submissions for spam.
package contact

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// GenericMessage is the only thing a rejected sender is told.
const GenericMessage = "Your message could not be sent. Please try again later."

// Defaults
const (
	DefaultMinFillTime = 3 * time.Second
	DefaultRate        = 1.0 / 60 // one submission per minute
	DefaultBurst       = 3
)

// Config tunes the spam signals.
type Config struct {
	MinFillTime time.Duration `mapstructure:"min_fill_time"`
	// Rate is the sustained submissions per second allowed per client.
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// Submission is one contact-form post.
type Submission struct {
	ClientID    string    `json:"client_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	Honeypot    string    `json:"website"`
	StartedAt   time.Time `json:"started_at"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Guard rejects submissions that trip any spam signal. Every rejection is
// the same ErrSpamDetected; only the log records which signal fired.
type Guard struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewGuard creates a guard, filling unset config fields with defaults.
func NewGuard(cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinFillTime <= 0 {
		cfg.MinFillTime = DefaultMinFillTime
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	return &Guard{
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Check returns nil for an acceptable submission and ErrSpamDetected otherwise.
func (g *Guard) Check(sub Submission) error {
	if reason := g.reason(sub); reason != "" {
		g.logger.Warn("contact submission rejected",
			"reason", reason,
			"client", sub.ClientID,
			"fill_time", sub.SubmittedAt.Sub(sub.StartedAt),
		)
		return fmt.Errorf("%w: %s", domain.ErrSpamDetected, reason)
	}
	return nil
}

func (g *Guard) reason(sub Submission) string {
	if strings.TrimSpace(sub.Honeypot) != "" {
		return "honeypot"
	}
	if sub.StartedAt.IsZero() || sub.SubmittedAt.Sub(sub.StartedAt) < g.cfg.MinFillTime {
		return "too_fast"
	}
	if !g.limiter(sub.ClientID).AllowN(sub.SubmittedAt, 1) {
		return "rate_limited"
	}
	return ""
}

func (g *Guard) limiter(client string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[client]
	if !ok {
		l = rate.NewLimiter(rate.Limit(g.cfg.Rate), g.cfg.Burst)
		g.limiters[client] = l
	}
	return l
}

// UserMessage maps a Check error to what the sender sees.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return GenericMessage
}
