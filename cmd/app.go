package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/config"
	"github.com/xhad/bizintel/pkg/discovery"
	"github.com/xhad/bizintel/pkg/extractor"
	"github.com/xhad/bizintel/pkg/firecrawl"
	"github.com/xhad/bizintel/pkg/linkedin"
	"github.com/xhad/bizintel/pkg/llm"
	"github.com/xhad/bizintel/pkg/metrics"
	"github.com/xhad/bizintel/pkg/pipeline"
	"github.com/xhad/bizintel/pkg/processor"
	"github.com/xhad/bizintel/pkg/ranking"
	"github.com/xhad/bizintel/pkg/scraper"
	"github.com/xhad/bizintel/pkg/store"
)

// app holds the wired components shared by serve and analyze.
type app struct {
	config    *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	pipeline  *pipeline.Pipeline
	store     types.AnalysisStore
	providers map[string]bool
	pool      *pgxpool.Pool
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &app{
		config:    cfg,
		logger:    logger,
		registry:  registry,
		metrics:   m,
		providers: map[string]bool{},
	}

	mapper, fetcher := a.buildProvider()

	scorer, err := a.buildScorer()
	if err != nil {
		return nil, err
	}

	profiles := linkedin.NewClient(linkedin.ClientConfig{
		BaseURL:    cfg.LinkedIn.BaseURL,
		APIKey:     cfg.LinkedIn.APIKey,
		Premium:    cfg.LinkedIn.Premium,
		MaxRetries: cfg.LinkedIn.MaxRetries,
		Timeout:    cfg.LinkedIn.Timeout,
		Logger:     logger.Named("linkedin"),
	})
	a.providers["scrapingdog"] = profiles.HasAPIKey()

	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.pool = pool
	}

	st, err := a.buildStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st

	index, err := a.buildIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := pipeline.Dependencies{
		Discoverer: discovery.NewWithConfig(mapper, discovery.DiscovererConfig{
			Limit:   cfg.Firecrawl.MapLimit,
			Logger:  logger.Named("discovery"),
			Metrics: m,
		}),
		Ranker: ranking.NewWithConfig(scorer, ranking.RankerConfig{
			Logger:  logger.Named("ranking"),
			Metrics: m,
		}),
		Extractor: extractor.NewWithConfig(fetcher, extractor.ExtractorConfig{
			Concurrency: cfg.Pipeline.Concurrency,
			MaxRetries:  cfg.Firecrawl.MaxRetries,
			Logger:      logger.Named("extractor"),
			Metrics:     m,
		}),
		Profiles: linkedin.NewAnalyzer(profiles, linkedin.AnalyzerConfig{Logger: logger.Named("linkedin")}),
		Store:    st,
	}
	// A nil *PageIndex must not become a non-nil interface.
	if index != nil {
		deps.Index = index
	}

	a.pipeline = pipeline.New(deps, pipeline.PipelineConfig{
		MaxURLs:   cfg.Pipeline.MaxURLs,
		Objective: cfg.Pipeline.Objective,
		Logger:    logger.Named("pipeline"),
		Metrics:   m,
	})
	return a, nil
}

// buildProvider picks the site mapper and page fetcher.
func (a *app) buildProvider() (types.SiteMapper, types.PageFetcher) {
	cfg := a.config
	if cfg.Scraper.Provider == "direct" {
		s := scraper.NewWithConfig(scraper.ScraperConfig{
			RateLimit:         cfg.Scraper.RateLimit,
			IgnorePatterns:    cfg.Scraper.IgnorePatterns,
			AllowedExtensions: cfg.Scraper.AllowedExtensions,
			Timeout:           cfg.Scraper.Timeout,
			UserAgent:         cfg.Scraper.UserAgent,
			Logger:            a.logger.Named("scraper"),
		})
		a.providers["direct"] = true
		return s, s
	}

	fc := firecrawl.NewWithConfig(firecrawl.ClientConfig{
		BaseURL:       cfg.Firecrawl.BaseURL,
		APIKey:        cfg.Firecrawl.APIKey,
		MapTimeout:    cfg.Firecrawl.MapTimeout,
		ScrapeTimeout: cfg.Firecrawl.ScrapeTimeout,
		RateLimit:     cfg.Firecrawl.RateLimit,
		Logger:        a.logger.Named("firecrawl"),
	})
	a.providers["firecrawl"] = fc.HasAPIKey()
	return fc, fc
}

// buildScorer returns nil when no generator can be built; the ranker then
// always takes the heuristic path.
func (a *app) buildScorer() (types.Scorer, error) {
	cfg := a.config
	gen, err := llm.NewGenerator(llm.GeneratorConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		if eris.Is(err, types.ErrMissingCredential) {
			a.logger.Warn("LLM unavailable, ranking uses the path heuristic", zap.Error(err))
			a.providers[cfg.LLM.Provider] = false
			return nil, nil
		}
		return nil, eris.Wrap(err, "failed to initialize LLM")
	}
	a.providers[cfg.LLM.Provider] = true
	return llm.NewScorer(gen, llm.ScorerConfig{Logger: a.logger.Named("scorer")}), nil
}

func (a *app) buildStore(ctx context.Context) (types.AnalysisStore, error) {
	cfg := a.config
	switch cfg.Storage.Backend {
	case "postgres":
		if a.pool == nil {
			return nil, eris.New("postgres backend requires database.url")
		}
		return store.NewPostgresStore(ctx, a.pool, store.PostgresStoreConfig{
			TableName: cfg.Database.AnalysesTable,
			Logger:    a.logger.Named("store"),
		})
	case "s3":
		return store.NewS3Store(ctx, store.S3Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			Prefix:          cfg.Storage.S3.Prefix,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
			Logger:          a.logger.Named("store"),
		})
	default:
		return store.NewFileStore(store.FileStoreConfig{
			OutputDir:   cfg.Storage.OutputDir,
			PrettyPrint: cfg.Storage.PrettyPrint,
			Logger:      a.logger.Named("store"),
		})
	}
}

func (a *app) buildIndex(ctx context.Context) (*store.PageIndex, error) {
	cfg := a.config
	if !cfg.Embedding.Enabled || a.pool == nil {
		return nil, nil
	}

	apiKey := ""
	if cfg.Embedding.Provider == cfg.LLM.Provider {
		apiKey = cfg.LLM.APIKey
	}
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   apiKey,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize embedder")
	}

	return store.NewPageIndex(ctx, a.pool, embedder, store.PageIndexConfig{
		TableName: cfg.Database.ChunksTable,
		VectorDim: cfg.Database.VectorDim,
		BatchSize: cfg.Database.BatchSize,
		Processor: processor.ProcessorConfig{
			ChunkSize:       cfg.Processor.ChunkSize,
			ChunkOverlap:    cfg.Processor.ChunkOverlap,
			RemoveStopwords: cfg.Processor.RemoveStopwords,
		},
		Logger: a.logger.Named("index"),
	})
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	a.logger.Sync()
}
