package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/bizintel/internal/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWithConfig(ClientConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		RateLimit: 1000,
	})
}

func TestMap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/map", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://x.com/", req.URL)
		assert.Equal(t, 50, req.Limit)
		assert.Equal(t, "include", req.Sitemap)

		w.Write([]byte(`{"success": true, "links": [
			{"url": "https://x.com/about", "title": "About"},
			"https://x.com/team",
			{"title": "no url"},
			42
		]}`))
	})

	urls, err := client.Map(context.Background(), "https://x.com/", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.com/about", "https://x.com/team"}, urls)
}

func TestMapUnexpectedShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "links": {"url": "https://x.com"}}`))
	})

	urls, err := client.Map(context.Background(), "https://x.com/", 50)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestMapHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Map(context.Background(), "https://x.com/", 50)
	assert.Error(t, err)
}

func TestMissingAPIKey(t *testing.T) {
	client := NewWithConfig(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	assert.False(t, client.HasAPIKey())

	_, err := client.Map(context.Background(), "https://x.com/", 50)
	assert.True(t, eris.Is(err, types.ErrMissingCredential))

	_, err = client.Scrape(context.Background(), "https://x.com/")
	assert.True(t, eris.Is(err, types.ErrMissingCredential))
}

func TestScrape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape", r.URL.Path)

		var req scrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"markdown"}, req.Formats)

		w.Write([]byte(`{"success": true, "data": {"markdown": "# About us"}}`))
	})

	content, err := client.Scrape(context.Background(), "https://x.com/about")
	require.NoError(t, err)
	assert.Equal(t, "# About us", content)
}

func TestScrapeNoMarkdown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"html": "<p>x</p>"}}`))
	})

	_, err := client.Scrape(context.Background(), "https://x.com/about")
	assert.True(t, eris.Is(err, ErrNoContent))
}

func TestScrapeRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Scrape(context.Background(), "https://x.com/about")
	assert.True(t, eris.Is(err, types.ErrRateLimited))
}
