package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jantomson/steelbuckle-sub000/internal/backend/backendtest"
	"github.com/jantomson/steelbuckle-sub000/internal/contact"
	"github.com/jantomson/steelbuckle-sub000/internal/document"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/store"
)

func TestDumpPrintsResolvedPage(t *testing.T) {
	fake := backendtest.New()
	fake.SetText("en", "hero.title", "Hello")
	fake.SetMedia("hero.images.background", "https://cdn/bg.jpg")

	page := domain.Page{
		ID:     "home",
		Prefix: "hero",
		Text:   []string{"hero.title", "hero.missing"},
		Media:  map[string]string{"background": "/default.jpg", "logo": "/logo.png"},
	}
	doc := document.New(store.NewMemory(), fake, document.Options{}, nil)

	var out bytes.Buffer
	require.NoError(t, dump(&out, doc, page, "en", time.Second))

	assert.Equal(t, "# home [en]\n"+
		"hero.title\tHello\n"+
		"hero.missing\thero.missing\n"+
		"background\thttps://cdn/bg.jpg\n"+
		"logo\t/logo.png\n", out.String())
}

func TestContactCheckPrintsVerdicts(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := strings.NewReader(`
{"client_id":"alice","name":"Alice","message":"hi","started_at":"2024-05-01T11:59:00Z"}
{"client_id":"bot","message":"buy","website":"spam.example","started_at":"2024-05-01T11:59:00Z"}
{"client_id":"quick","message":"hi","started_at":"2024-05-01T11:59:59Z"}
`)
	guard := contact.NewGuard(contact.Config{}, nil)

	var out bytes.Buffer
	require.NoError(t, contactCheck(in, &out, guard, func() time.Time { return now }))

	assert.Equal(t, "accepted\talice\n"+
		"rejected\tbot\t"+contact.GenericMessage+"\n"+
		"rejected\tquick\t"+contact.GenericMessage+"\n", out.String())
}

func TestContactCheckRejectsMalformedInput(t *testing.T) {
	guard := contact.NewGuard(contact.Config{}, nil)
	var out bytes.Buffer
	err := contactCheck(strings.NewReader(`{"client_id":`), &out, guard, time.Now)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
