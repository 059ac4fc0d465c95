// Package translation caches translated text per language and page prefix
// and resolves it for mounted consumers.
package translation

import (
	"sync"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// Entry is the cached text of one (prefix, language) pair.
type Entry struct {
	Data       domain.ContentMap
	Generation int64
}

// Store is the in-memory translation cache of one document.
type Store struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry // language -> prefix -> entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]map[string]Entry)}
}

// Get returns a copy of the entry for prefix in language.
func (s *Store) Get(prefix, language string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[language][prefix]
	if !ok {
		return Entry{}, false
	}
	return Entry{Data: e.Data.Clone(), Generation: e.Generation}, true
}

// Put replaces the entry for prefix in language.
func (s *Store) Put(prefix, language string, data domain.ContentMap, generation int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[language] == nil {
		s.entries[language] = make(map[string]Entry)
	}
	s.entries[language][prefix] = Entry{Data: data.Clone(), Generation: generation}
}

// Invalidate drops the entry for prefix in language.
func (s *Store) Invalidate(prefix, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[language], prefix)
}

// InvalidateAll drops every entry.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]map[string]Entry)
}

// Len returns the number of cached (prefix, language) pairs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, byPrefix := range s.entries {
		n += len(byPrefix)
	}
	return n
}
