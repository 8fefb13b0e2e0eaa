package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/metrics"
	"github.com/xhad/bizintel/pkg/urlutil"
)

const DefaultMaxURLs = 7

// Dependencies are the collaborators of one pipeline. Profiles, Store and Index may be nil.
type Dependencies struct {
	Discoverer types.Discoverer
	Ranker     types.Ranker
	Extractor  types.Extractor
	Profiles   types.ProfileAnalyzer
	Store      types.AnalysisStore
	Index      types.PageIndex
}

type PipelineConfig struct {
	MaxURLs   int
	Objective string
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Tracer    trace.Tracer
	Now       func() time.Time
	NewID     func() string
}

// Pipeline runs the LinkedIn and website branches for one registration and
// assembles the result.
type Pipeline struct {
	deps    Dependencies
	config  PipelineConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func New(deps Dependencies, config PipelineConfig) *Pipeline {
	if config.MaxURLs <= 0 {
		config.MaxURLs = DefaultMaxURLs
	}
	if config.Objective == "" {
		config.Objective = models.DefaultObjective
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer("github.com/xhad/bizintel/pkg/pipeline")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.NewID == nil {
		config.NewID = func() string { return uuid.New().String() }
	}
	return &Pipeline{
		deps:    deps,
		config:  config,
		logger:  config.Logger,
		metrics: config.Metrics,
		tracer:  config.Tracer,
	}
}

// Run analyzes a registration under a freshly generated request id.
func (p *Pipeline) Run(ctx context.Context, reg models.Registration) (*models.AnalysisOutput, error) {
	return p.RunWithID(ctx, p.config.NewID(), reg)
}

// RunWithID analyzes a registration under a caller-supplied request id, so a
// retried job overwrites the same stored analysis. The only error is
// models.ErrNoSources; every other failure degrades the result instead.
func (p *Pipeline) RunWithID(ctx context.Context, requestID string, reg models.Registration) (*models.AnalysisOutput, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	logger := p.logger.With(zap.String("request_id", requestID))

	if !reg.HasSources() {
		logger.Warn("rejected registration without sources")
		p.metrics.PipelineRun("rejected")
		span.SetStatus(codes.Error, models.ErrNoSources.Error())
		return nil, eris.Wrap(models.ErrNoSources, "validate sources")
	}

	logger.Info("starting analysis",
		zap.Bool("linkedin", reg.LinkedIn != ""),
		zap.Bool("website", reg.CompanyWebsite != ""))

	out := &models.AnalysisOutput{
		RequestID:        requestID,
		Timestamp:        p.config.Now().UTC(),
		InputData:        reg,
		LinkedInAnalysis: p.analyzeLinkedIn(ctx, logger, strings.TrimSpace(reg.LinkedIn)),
	}

	if website := strings.TrimSpace(reg.CompanyWebsite); website != "" {
		out.WebsiteAnalysis = p.AnalyzeWebsite(ctx, website, reg.CompanyContext(p.config.Objective))
	}

	p.persist(ctx, logger, out)

	p.metrics.PipelineRun("success")
	logger.Info("analysis complete")
	return out, nil
}

func (p *Pipeline) analyzeLinkedIn(ctx context.Context, logger *zap.Logger, profileURL string) (doc map[string]any) {
	if profileURL == "" {
		return map[string]any{"status": "not_implemented"}
	}
	if p.deps.Profiles == nil {
		return map[string]any{"status": "error", "message": "LinkedIn analysis is not configured"}
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.linkedin")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("LinkedIn analysis panicked", zap.Any("panic", r))
			span.SetStatus(codes.Error, "panic")
			doc = map[string]any{"status": "error", "message": fmt.Sprint(r)}
		}
	}()

	result, err := p.deps.Profiles.Analyze(ctx, profileURL)
	if err != nil {
		logger.Error("LinkedIn analysis failed", zap.String("url", profileURL), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return map[string]any{"status": "error", "message": err.Error()}
	}
	return result
}

// AnalyzeWebsite runs discovery, ranking and extraction for one site.
func (p *Pipeline) AnalyzeWebsite(ctx context.Context, website string, cc models.CompanyContext) *models.WebsiteAnalysis {
	ctx, span := p.tracer.Start(ctx, "pipeline.website", trace.WithAttributes(attribute.String("website", website)))
	defer span.End()

	normalized := urlutil.Normalize(website)

	discovered := p.discover(ctx, normalized)
	filtered := p.rank(ctx, discovered, cc)
	content := p.extract(ctx, filtered)

	ok, failed := content.Counts()
	span.SetAttributes(
		attribute.Int("urls.discovered", len(discovered)),
		attribute.Int("urls.selected", len(filtered)),
		attribute.Int("pages.ok", ok),
		attribute.Int("pages.failed", failed),
	)

	return &models.WebsiteAnalysis{
		DiscoveredURLs: discovered,
		FilteredURLs:   filtered,
		ScrapedContent: content,
	}
}

func (p *Pipeline) discover(ctx context.Context, siteURL string) []string {
	ctx, span := p.tracer.Start(ctx, "pipeline.discover")
	defer span.End()

	urls := p.deps.Discoverer.Discover(ctx, siteURL)
	if urls == nil {
		urls = []string{}
	}
	return urls
}

func (p *Pipeline) rank(ctx context.Context, urls []string, cc models.CompanyContext) []models.ScoredURL {
	ctx, span := p.tracer.Start(ctx, "pipeline.rank")
	defer span.End()

	selected := p.deps.Ranker.SelectValuableURLs(ctx, urls, cc, p.config.MaxURLs)
	if selected == nil {
		selected = []models.ScoredURL{}
	}
	return selected
}

func (p *Pipeline) extract(ctx context.Context, selected []models.ScoredURL) models.ExtractionResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.extract")
	defer span.End()

	content := p.deps.Extractor.Extract(ctx, selected)
	if content == nil {
		content = models.ExtractionResult{}
	}
	return content
}

// persist stores the analysis and indexes its pages. Failures are logged only.
func (p *Pipeline) persist(ctx context.Context, logger *zap.Logger, out *models.AnalysisOutput) {
	ctx, span := p.tracer.Start(ctx, "pipeline.persist")
	defer span.End()

	if p.deps.Index != nil && out.WebsiteAnalysis != nil {
		if err := p.deps.Index.Index(ctx, out.RequestID, out.WebsiteAnalysis.ScrapedContent); err != nil {
			logger.Error("failed to index pages", zap.Error(err))
			span.RecordError(err)
		}
	}

	if p.deps.Store != nil {
		if err := p.deps.Store.Save(ctx, out); err != nil {
			logger.Error("failed to save analysis", zap.Error(err))
			span.RecordError(err)
		}
	}
}
