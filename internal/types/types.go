package types

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/xhad/bizintel/internal/models"
)

var (
	// ErrMissingCredential marks a call attempted without the provider credential it needs.
	ErrMissingCredential = eris.New("missing provider credential")
	// ErrRateLimited marks an HTTP 429 from an upstream provider.
	ErrRateLimited = eris.New("rate limit exceeded")
)

// SiteMapper enumerates URLs reachable from a base site.
type SiteMapper interface {
	Map(ctx context.Context, siteURL string, limit int) ([]string, error)
}

// PageFetcher returns readable markdown for one URL.
type PageFetcher interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

type Discoverer interface {
	Discover(ctx context.Context, siteURL string) []string
}

// Scorer judges a batch of URLs against a company context.
type Scorer interface {
	ScoreURLs(ctx context.Context, urls []string, companyContext string) ([]models.ScoredURL, error)
}

type Ranker interface {
	SelectValuableURLs(ctx context.Context, urls []string, cc models.CompanyContext, maxURLs int) []models.ScoredURL
}

type Extractor interface {
	Extract(ctx context.Context, selected []models.ScoredURL) models.ExtractionResult
}

// ProfileAnalyzer produces the LinkedIn branch document.
type ProfileAnalyzer interface {
	Analyze(ctx context.Context, profileURL string) (map[string]any, error)
}

// AnalysisStore persists analyses keyed by request id. Save must be idempotent per id.
type AnalysisStore interface {
	Save(ctx context.Context, out *models.AnalysisOutput) error
	Load(ctx context.Context, requestID string) (*models.AnalysisOutput, error)
}

// PageIndex stores successfully extracted pages for later retrieval.
type PageIndex interface {
	Index(ctx context.Context, requestID string, pages models.ExtractionResult) error
}

// Generator is a text-generation backend.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
