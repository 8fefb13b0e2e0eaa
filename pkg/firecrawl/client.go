package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xhad/bizintel/internal/types"
)

// ErrNoContent marks a scrape response without markdown.
var ErrNoContent = eris.New("no markdown content in scrape response")

type ClientConfig struct {
	BaseURL       string
	APIKey        string
	MapTimeout    time.Duration
	ScrapeTimeout time.Duration
	RateLimit     float64 // requests per second
	Logger        *zap.Logger
	HTTPClient    *http.Client
}

// Client talks to the Firecrawl v2 API.
type Client struct {
	config  ClientConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.firecrawl.dev/v2"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.MapTimeout == 0 {
		config.MapTimeout = 30 * time.Second
	}
	if config.ScrapeTimeout == 0 {
		config.ScrapeTimeout = 35 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Client{
		config:  config,
		client:  config.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  config.Logger,
	}
}

// HasAPIKey reports whether a non-blank key is configured.
func (c *Client) HasAPIKey() bool {
	return strings.TrimSpace(c.config.APIKey) != ""
}

type mapRequest struct {
	URL     string `json:"url"`
	Limit   int    `json:"limit"`
	Sitemap string `json:"sitemap"`
}

type mapResponse struct {
	Links json.RawMessage `json:"links"`
}

// mapLink accepts either a plain URL string or an object with a url field.
type mapLink struct {
	URL string
}

func (l *mapLink) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		l.URL = s
		return nil
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		l.URL = obj.URL
	}
	return nil
}

// Map enumerates URLs under siteURL with the map endpoint.
func (c *Client) Map(ctx context.Context, siteURL string, limit int) ([]string, error) {
	if !c.HasAPIKey() {
		return nil, eris.Wrap(types.ErrMissingCredential, "Firecrawl API key required for URL discovery")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.MapTimeout)
	defer cancel()

	body, status, err := c.post(ctx, "/map", mapRequest{URL: siteURL, Limit: limit, Sitemap: "include"})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Error("map API call failed", zap.String("url", siteURL), zap.Int("status_code", status))
		return nil, statusError(status, siteURL)
	}

	var resp mapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "failed to decode map response")
	}

	urls := ParseLinks(resp.Links)
	c.logger.Info("discovered URLs", zap.Int("urls_discovered", len(urls)), zap.String("source_url", siteURL))
	return urls, nil
}

// ParseLinks extracts URLs from a links array. Any other shape yields nothing.
func ParseLinks(raw json.RawMessage) []string {
	var links []mapLink
	if err := json.Unmarshal(raw, &links); err != nil {
		return []string{}
	}
	urls := make([]string, 0, len(links))
	for _, l := range links {
		if l.URL != "" {
			urls = append(urls, l.URL)
		}
	}
	return urls
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Data *struct {
		Markdown *string `json:"markdown"`
	} `json:"data"`
}

// Scrape fetches markdown for one URL. A 429 is reported as types.ErrRateLimited
// so the caller can back off.
func (c *Client) Scrape(ctx context.Context, pageURL string) (string, error) {
	if !c.HasAPIKey() {
		return "", eris.Wrap(types.ErrMissingCredential, "Firecrawl API key required for content scraping")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ScrapeTimeout)
	defer cancel()

	body, status, err := c.post(ctx, "/scrape", scrapeRequest{URL: pageURL, Formats: []string{"markdown"}})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		c.logger.Warn("scrape API call failed", zap.String("url", pageURL), zap.Int("status_code", status))
		return "", statusError(status, pageURL)
	}

	var resp scrapeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "failed to decode scrape response")
	}
	if resp.Data == nil || resp.Data.Markdown == nil {
		return "", eris.Wrapf(ErrNoContent, "no markdown content available for %s", pageURL)
	}

	c.logger.Debug("scraped URL", zap.String("url", pageURL), zap.Int("content_length", len(*resp.Data.Markdown)))
	return *resp.Data.Markdown, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "rate limiter")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, eris.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "failed to read response")
	}
	return body, resp.StatusCode, nil
}

func statusError(status int, target string) error {
	if status == http.StatusTooManyRequests {
		return eris.Wrapf(types.ErrRateLimited, "firecrawl returned 429 for %s", target)
	}
	return eris.Errorf("firecrawl returned status %d for %s", status, target)
}
