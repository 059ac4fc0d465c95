package translation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jantomson/steelbuckle-sub000/internal/cache"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// Service loads translations through the store, fetching from the backend
// when the cached entry is missing or older than the invalidation clock.
type Service struct {
	backend domain.TranslationBackend
	store   *Store
	clock   *cache.Clock
	bus     domain.EventBus
	flight  *cache.Flight
	logger  *slog.Logger
}

// NewService creates a translation service.
func NewService(
	backend domain.TranslationBackend,
	store *Store,
	clock *cache.Clock,
	bus domain.EventBus,
	flight *cache.Flight,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if flight == nil {
		flight = cache.NewFlight(0)
	}
	return &Service{
		backend: backend,
		store:   store,
		clock:   clock,
		bus:     bus,
		flight:  flight,
		logger:  logger,
	}
}

// Store returns the underlying cache.
func (s *Service) Store() *Store { return s.store }

// Cached returns the entry for (prefix, language) if it is still current.
func (s *Service) Cached(prefix, language string) (Entry, bool) {
	e, ok := s.store.Get(prefix, language)
	if !ok || e.Generation < s.clock.Current() {
		return Entry{}, false
	}
	return e, true
}

// Fetch loads (prefix, language) from the backend and caches the result
// under generation. Concurrent fetches of the same pair share one request.
func (s *Service) Fetch(ctx context.Context, prefix, language string, generation int64) (domain.ContentMap, error) {
	key := cache.FlightKey(cacheKey(prefix, language), generation)

	data, err := s.flight.Do(ctx, key, func(ctx context.Context) (domain.ContentMap, error) {
		raw, err := s.backend.FetchTranslations(ctx, language, prefix)
		if err != nil {
			return nil, err
		}
		data := domain.ContentMap(raw)
		if data == nil {
			data = domain.ContentMap{}
		}
		s.store.Put(prefix, language, data, generation)
		s.logger.Debug("fetched translations", "prefix", prefix, "language", language, "count", len(data))
		return data, nil
	})
	if errors.Is(err, context.Canceled) {
		s.logger.Debug("translation fetch canceled", "prefix", prefix, "language", language)
		return nil, err
	}
	if err != nil {
		s.logger.Warn("failed to fetch translations", "prefix", prefix, "language", language, "error", err)
		return nil, err
	}
	return data, nil
}

// Load returns cached text for (prefix, language), fetching it when stale.
func (s *Service) Load(ctx context.Context, prefix, language string) (domain.ContentMap, error) {
	if e, ok := s.Cached(prefix, language); ok {
		return e.Data, nil
	}
	return s.Fetch(ctx, prefix, language, s.clock.Current())
}

// Invalidate marks (prefix, language) stale and drops any in-flight fetch.
func (s *Service) Invalidate(prefix, language string) {
	s.store.Invalidate(prefix, language)
	s.flight.Forget(cache.FlightKey(cacheKey(prefix, language), s.clock.Current()))
}

// InvalidateAll drops every cached translation.
func (s *Service) InvalidateAll() {
	s.store.InvalidateAll()
}

// Resolver creates a resolver for (prefix, language) bound to this service.
func (s *Service) Resolver(prefix, language string, opts ...Option) *Resolver {
	return newResolver(s, prefix, language, opts...)
}

func cacheKey(prefix, language string) string {
	return "text:" + language + ":" + prefix
}
