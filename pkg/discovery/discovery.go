package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/metrics"
	"github.com/xhad/bizintel/pkg/urlutil"
)

// DefaultLimit caps how many URLs a provider is asked for.
const DefaultLimit = 50

type DiscovererConfig struct {
	Limit   int
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Discoverer enumerates candidate pages of a company site. Provider failures
// yield an empty list rather than an error.
type Discoverer struct {
	mapper  types.SiteMapper
	config  DiscovererConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewWithConfig(mapper types.SiteMapper, config DiscovererConfig) *Discoverer {
	if config.Limit <= 0 {
		config.Limit = DefaultLimit
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Discoverer{
		mapper:  mapper,
		config:  config,
		logger:  config.Logger,
		metrics: config.Metrics,
	}
}

func (d *Discoverer) Discover(ctx context.Context, siteURL string) []string {
	normalized := urlutil.Normalize(siteURL)

	urls, err := d.mapper.Map(ctx, normalized, d.config.Limit)
	if err != nil {
		d.logger.Error("site discovery failed", zap.String("url", normalized), zap.Error(err))
		d.metrics.Discovered(0)
		return []string{}
	}
	if urls == nil {
		urls = []string{}
	}

	d.logger.Info("discovered site URLs", zap.String("url", normalized), zap.Int("count", len(urls)))
	d.metrics.Discovered(len(urls))
	return urls
}
