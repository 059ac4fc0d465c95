package backend

import "github.com/jantomson/steelbuckle-sub000/internal/domain"

// mediaUpdateRequest is the body of POST /api/media/update
type mediaUpdateRequest struct {
	Updates []domain.MediaUpdate `json:"updates"`
}

// translationUpdateRequest is the body of POST /api/translations/update
type translationUpdateRequest struct {
	Updates []domain.TranslationUpdate `json:"updates"`
}

// libraryResponse is the body of GET /api/media/library
type libraryResponse struct {
	Items []string `json:"items"`
}
