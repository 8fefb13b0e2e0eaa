package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/urlutil"
)

type ScraperConfig struct {
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	UserAgent         string
	Logger            *zap.Logger
}

// Scraper maps and fetches sites directly over HTTP, without a hosted provider.
// Map reads one page's links; it never follows them.
type Scraper struct {
	config    ScraperConfig
	client    *http.Client
	limiter   *rate.Limiter
	converter *md.Converter
	logger    *zap.Logger
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if config.UserAgent == "" {
		config.UserAgent = "bizintel/1.0"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		converter: md.NewConverter("", true, nil),
		logger:    config.Logger,
	}
}

func (s *Scraper) shouldProcessURL(baseURL, urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}
	if !urlutil.SameHost(baseURL, urlStr) {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	last := path[strings.LastIndex(path, "/")+1:]
	validExt := !strings.Contains(last, ".")
	for _, allowedExt := range s.config.AllowedExtensions {
		if allowedExt != "" && strings.HasSuffix(path, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

// Map lists same-host links found on siteURL, the site itself first, capped at limit.
func (s *Scraper) Map(ctx context.Context, siteURL string, limit int) ([]string, error) {
	doc, finalURL, err := s.fetch(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse base URL")
	}

	seen := map[string]bool{}
	urls := []string{}
	add := func(u string) {
		n := urlutil.Normalize(u)
		if seen[n] || (limit > 0 && len(urls) >= limit) {
			return
		}
		seen[n] = true
		urls = append(urls, n)
	}
	add(siteURL)

	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, exists := selection.Attr("href")
		if !exists {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		absoluteURL := base.ResolveReference(ref)
		absoluteURL.Fragment = ""
		if s.shouldProcessURL(siteURL, absoluteURL.String()) {
			add(absoluteURL.String())
		}
	})

	s.logger.Info("mapped site directly", zap.String("url", siteURL), zap.Int("urls_discovered", len(urls)))
	return urls, nil
}

// Scrape returns the page's main content converted to markdown.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	doc, _, err := s.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	html, err := goquery.OuterHtml(mainContent(doc))
	if err != nil {
		return "", eris.Wrap(err, "failed to render main content")
	}
	markdown, err := s.converter.ConvertString(html)
	if err != nil {
		return "", eris.Wrap(err, "failed to convert page to markdown")
	}
	return cleanContent(markdown), nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", eris.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "failed to build request")
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to fetch %s", pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, "", eris.Wrapf(types.ErrRateLimited, "received status code 429 for URL: %s", pageURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("received status code %d for URL: %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", eris.Wrap(err, "failed to parse HTML")
	}
	return doc, resp.Request.URL.String(), nil
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	doc.Find("script, style, noscript, nav, footer").Remove()

	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		"[role=main]",
	}
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			return selected.First()
		}
	}
	return doc.Find("body").First()
}

func cleanContent(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
