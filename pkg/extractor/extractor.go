package extractor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/metrics"
)

const (
	DefaultConcurrency = 3
	DefaultMaxRetries  = 3
)

type ExtractorConfig struct {
	Concurrency int
	// MaxRetries bounds the retries after a rate-limited fetch.
	MaxRetries int
	// Sleep waits between rate-limit retries; tests swap it out.
	Sleep   func(ctx context.Context, d time.Duration) error
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Extractor fetches selected pages with a bounded number in flight.
type Extractor struct {
	fetcher types.PageFetcher
	config  ExtractorConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewWithConfig(fetcher types.PageFetcher, config ExtractorConfig) *Extractor {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Extractor{
		fetcher: fetcher,
		config:  config,
		logger:  config.Logger,
		metrics: config.Metrics,
	}
}

// Extract fetches every selected URL. A failed page is recorded under its URL
// and never stops the others. If ctx ends early the pages gathered so far are returned.
func (e *Extractor) Extract(ctx context.Context, selected []models.ScoredURL) models.ExtractionResult {
	results := models.ExtractionResult{}
	if len(selected) == 0 {
		return results
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.config.Concurrency)

	for _, item := range selected {
		if ctx.Err() != nil {
			break
		}
		pageURL := item.URL
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			result := e.fetch(ctx, pageURL)
			mu.Lock()
			results[pageURL] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	ok, failed := results.Counts()
	e.logger.Info("content extraction finished",
		zap.Int("requested", len(selected)),
		zap.Int("succeeded", ok),
		zap.Int("failed", failed))
	e.metrics.ExtractionResults(ok, failed)
	return results
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) (result models.PageResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("page fetch panicked", zap.String("url", pageURL), zap.Any("panic", r))
			result = models.Failure(fmt.Sprintf("Error scraping %s: %v", pageURL, r))
		}
	}()

	for attempt := 0; ; attempt++ {
		content, err := e.fetcher.Scrape(ctx, pageURL)
		if err == nil {
			return models.Success(content)
		}
		if !eris.Is(err, types.ErrRateLimited) || attempt >= e.config.MaxRetries {
			e.logger.Warn("page fetch failed", zap.String("url", pageURL), zap.Int("attempts", attempt+1), zap.Error(err))
			return models.Failure(fmt.Sprintf("Failed to scrape %s: %v", pageURL, err))
		}

		wait := time.Duration(1<<attempt) * time.Second
		e.logger.Warn("rate limited, backing off",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		if err := e.config.Sleep(ctx, wait); err != nil {
			return models.Failure(fmt.Sprintf("Error scraping %s: %v", pageURL, err))
		}
	}
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
