// Package backend talks to the content store's HTTP JSON API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Steelbuckle/1.0"
)

var _ domain.Backend = (*Client)(nil)

// Client implements domain.Backend over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a new API client. timeout <= 0 uses a 30s default.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// SetToken updates the authentication token
func (c *Client) SetToken(token string) {
	c.token = token
}

// doRequest performs an authenticated HTTP request with an optional JSON body
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	reqURL := c.baseURL + path
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("backend request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("backend request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, domain.ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("backend request error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("%w: %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}

	return respBody, nil
}

func (c *Client) cacheBust() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// FetchMedia resolves media URLs for keys on a page. Non-string values are skipped.
func (c *Client) FetchMedia(ctx context.Context, pageID string, keys []string) (map[string]string, error) {
	query := url.Values{}
	query.Set("keys", strings.Join(keys, ","))
	query.Set("pageId", pageID)
	query.Set(domain.CacheBustParam, c.cacheBust())

	body, err := c.doRequest(ctx, http.MethodGet, "/api/media", query, nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// UpdateMedia persists a batch of media references.
func (c *Client) UpdateMedia(ctx context.Context, updates []domain.MediaUpdate) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/media/update", nil, mediaUpdateRequest{Updates: updates})
	return err
}

// MediaLibrary lists every media asset.
func (c *Client) MediaLibrary(ctx context.Context) ([]string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/media/library", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp libraryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return resp.Items, nil
}

// FetchTranslations returns every translation under prefix for language.
func (c *Client) FetchTranslations(ctx context.Context, language, prefix string) (map[string]string, error) {
	query := url.Values{}
	query.Set("lang", language)
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	query.Set(domain.CacheBustParam, c.cacheBust())

	body, err := c.doRequest(ctx, http.MethodGet, "/api/translations", query, nil)
	if err != nil {
		return nil, err
	}

	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return out, nil
}

// UpdateTranslations persists a batch of translated text.
func (c *Client) UpdateTranslations(ctx context.Context, updates []domain.TranslationUpdate) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/translations/update", nil, translationUpdateRequest{Updates: updates})
	return err
}

// IsAuthError reports whether err means the token was rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}
