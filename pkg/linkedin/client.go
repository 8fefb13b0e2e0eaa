package linkedin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xhad/bizintel/internal/types"
)

var (
	ErrInvalidAPIKey   = eris.New("invalid ScrapingDog API key")
	ErrProfileNotFound = eris.New("LinkedIn profile not found")
)

// ProfileFetcher returns the raw profile document for a LinkedIn URL.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, profileURL string) (map[string]any, error)
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Premium    bool
	MaxRetries int
	Timeout    time.Duration
	RateLimit  float64 // requests per second
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// Client talks to the ScrapingDog LinkedIn API.
type Client struct {
	config  ClientConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.scrapingdog.com/linkedin/"
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:  config,
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  config.Logger,
	}
}

func (c *Client) HasAPIKey() bool {
	return c.config.APIKey != ""
}

// FetchProfile scrapes one profile. A 429 is retried with 2^attempt second waits.
func (c *Client) FetchProfile(ctx context.Context, profileURL string) (map[string]any, error) {
	if !c.HasAPIKey() {
		return nil, eris.Wrap(types.ErrMissingCredential, "SCRAPINGDOG_API_KEY is not set")
	}
	profileID, err := ExtractProfileID(profileURL)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("type", "profile")
	params.Set("linkId", profileID)
	params.Set("premium", strconv.FormatBool(c.config.Premium))
	endpoint := c.config.BaseURL + "?" + params.Encode()

	for attempt := 0; ; attempt++ {
		body, status, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusOK:
			c.logger.Info("scraped LinkedIn profile", zap.String("profile_id", profileID))
			return decodeProfile(body)
		case status == http.StatusTooManyRequests && attempt < c.config.MaxRetries:
			wait := time.Duration(1<<attempt) * time.Second
			c.logger.Warn("ScrapingDog rate limited, retrying",
				zap.String("profile_id", profileID),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait))
			if err := c.config.Sleep(ctx, wait); err != nil {
				return nil, eris.Wrap(err, "backoff interrupted")
			}
		case status == http.StatusTooManyRequests:
			return nil, eris.Wrapf(types.ErrRateLimited, "ScrapingDog after %d retries", c.config.MaxRetries)
		case status == http.StatusUnauthorized:
			return nil, ErrInvalidAPIKey
		case status == http.StatusNotFound:
			return nil, eris.Wrap(ErrProfileNotFound, profileID)
		default:
			c.logger.Error("ScrapingDog API error", zap.Int("status_code", status), zap.ByteString("body", truncate(body, 512)))
			return nil, eris.Errorf("ScrapingDog API returned status %d", status)
		}
	}
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "failed to build request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ScrapingDog request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "failed to read response body")
	}
	return body, resp.StatusCode, nil
}

// decodeProfile accepts either a single profile object or an array whose first element is the profile.
func decodeProfile(body []byte) (map[string]any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "failed to decode profile")
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case []any:
		if len(v) > 0 {
			if profile, ok := v[0].(map[string]any); ok {
				return profile, nil
			}
		}
		return nil, eris.New("empty profile response")
	default:
		return nil, eris.Errorf("unexpected profile response type %T", raw)
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
