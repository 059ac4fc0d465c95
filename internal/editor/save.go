package editor

import (
	"context"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// SaveChanges sends pending text as one batch in the locked language and
// pending media as a second batch. Each category clears its draft only on
// success, so a failed category is retried by the next call. After any
// success, cached content is invalidated and the change broadcast.
func (s *active) SaveChanges(ctx context.Context) SaveResult {
	s.ensureLoaded()

	s.mu.Lock()
	if s.state == StateSaving {
		s.mu.Unlock()
		return SaveResult{TextErr: domain.ErrEditorBusy, MediaErr: domain.ErrEditorBusy}
	}
	lang := s.language
	text := s.text.Clone()
	media := s.media.Clone()
	s.editor = nil
	s.picker = nil
	s.state = StateSaving
	s.mu.Unlock()

	var res SaveResult

	if len(text) > 0 {
		updates := make([]domain.TranslationUpdate, 0, len(text))
		for _, k := range text.SortedKeys() {
			updates = append(updates, domain.TranslationUpdate{Path: k, Content: text[k], LanguageCode: lang})
		}
		if err := s.deps.Backend.UpdateTranslations(ctx, updates); err != nil {
			s.logger.Error("failed to save text", "language", lang, "count", len(updates), "error", err)
			res.TextErr = err
		} else {
			res.TextSaved = len(updates)
		}
	}

	if len(media) > 0 {
		updates := make([]domain.MediaUpdate, 0, len(media))
		for _, k := range media.SortedKeys() {
			updates = append(updates, domain.MediaUpdate{ReferenceKey: k, MediaPath: domain.StripCacheBust(media[k])})
		}
		if err := s.deps.Backend.UpdateMedia(ctx, updates); err != nil {
			s.logger.Error("failed to save media", "count", len(updates), "error", err)
			res.MediaErr = err
		} else {
			res.MediaSaved = len(updates)
		}
	}

	s.mu.Lock()
	if res.TextSaved > 0 {
		s.clearSavedText(lang, text)
	}
	if res.MediaSaved > 0 {
		clearSaved(s.media, media)
		for k := range media {
			if _, pending := s.media[k]; !pending {
				delete(s.display, k)
			}
		}
		if err := saveDraft(s.deps.Storage, domain.MediaDraftKey(s.cfg.PageID), s.media); err != nil {
			s.logger.Error("failed to clear media draft", "error", err)
		}
	}
	if s.state == StateSaving {
		s.state = StateLoaded
	}
	if s.closed {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if res.TextSaved > 0 || res.MediaSaved > 0 {
		if res.TextSaved > 0 {
			s.deps.Texts.Invalidate(s.cfg.Prefix, lang)
		}
		res.Timestamp = s.deps.Media.InvalidateAll()
		if res.TextSaved > 0 && s.deps.Bus != nil {
			s.deps.Bus.Publish(domain.EventContentUpdated, domain.Event{
				Timestamp: res.Timestamp,
				Language:  lang,
				Source:    s.cfg.Source,
			})
		}
	}

	s.logger.Info("save finished", "language", lang, "text_saved", res.TextSaved, "media_saved", res.MediaSaved, "ok", res.OK())
	return res
}

// clearSavedText drops saved entries from the draft of lang. The in-memory
// draft only belongs to lang if the language was not switched meanwhile.
func (s *active) clearSavedText(lang string, saved domain.ContentMap) {
	key := domain.TextDraftKey(s.cfg.PageID, lang)

	remaining := domain.ContentMap{}
	if s.language == lang {
		clearSaved(s.text, saved)
		remaining = s.text
	} else if stored, err := loadDraft(s.deps.Storage, key); err == nil {
		clearSaved(stored, saved)
		remaining = stored
	}
	if err := saveDraft(s.deps.Storage, key, remaining); err != nil {
		s.logger.Error("failed to clear text draft", "language", lang, "error", err)
	}
}

// clearSaved deletes entries of draft whose value is the one that was saved.
func clearSaved(draft, saved domain.ContentMap) {
	for k, v := range saved {
		if cur, ok := draft[k]; ok && cur == v {
			delete(draft, k)
		}
	}
}
