package editor

import (
	"encoding/json"
	"fmt"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// loadDraft reads a JSON-encoded draft. A missing draft is empty; a corrupt
// one is reported and treated as empty.
func loadDraft(storage domain.LocalStorage, key string) (domain.ContentMap, error) {
	raw, ok := storage.GetItem(key)
	if !ok || raw == "" {
		return domain.ContentMap{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return domain.ContentMap{}, fmt.Errorf("decode draft %s: %w", key, err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// saveDraft writes the whole draft, removing the key when it is empty.
func saveDraft(storage domain.LocalStorage, key string, draft domain.ContentMap) error {
	if len(draft) == 0 {
		return storage.RemoveItem(key)
	}
	b, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", key, err)
	}
	return storage.SetItem(key, string(b))
}
