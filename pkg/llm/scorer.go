package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/internal/types"
)

// ErrInvalidResponse marks a scoring response that could not be decoded.
var ErrInvalidResponse = eris.New("invalid response from scoring provider")

const (
	incompleteScore  = 40
	incompleteReason = "AI scoring incomplete - using fallback"
	missingReason    = "No reason provided"
)

// ScoringSystemPrompt is sent as the system message with every scoring request.
const ScoringSystemPrompt = "You are a business intelligence expert. Always respond with valid JSON."

const scoringTemplate = `You are an expert business intelligence analyst. Score these URLs for their business intelligence value.

Company Context: %s

URLs to analyze:
%s

Instructions:
1. Score each URL from 0-100 for business intelligence value
2. Categorize into: %s
3. Provide one-sentence reasoning
4. Return valid JSON array

Scoring Guidelines:
- 90-100: Company mission, leadership, core strategy
- 80-89: Products/services, case studies, major announcements
- 70-79: Company culture, values, workplace insights
- 60-69: News, press releases, public announcements
- 40-59: General business content
- 20-39: Utility pages (contact, login, signup)
- 0-19: Legal and compliance pages (privacy, terms, cookies)

Categories:
- leadership: About, team, executives, board
- products: Services, solutions, offerings, features
- culture: Values, mission, workplace, blog posts
- customers: Case studies, testimonials, success stories
- financials: Investors, press releases, earnings
- strategy: Vision, roadmap, partnerships, acquisitions
- other: Miscellaneous business-relevant content

Return ONLY valid JSON in this exact format:
[
  {
    "url": "https://example.com/about",
    "score": 95,
    "reason": "Company mission and values page",
    "category": "leadership"
  }
]`

type ScorerConfig struct {
	Logger *zap.Logger
}

// Scorer asks a text-generation backend to judge URLs.
type Scorer struct {
	generator types.Generator
	logger    *zap.Logger
}

// NewScorer creates a Scorer. With a nil generator every call fails with
// types.ErrMissingCredential.
func NewScorer(generator types.Generator, config ScorerConfig) *Scorer {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Scorer{generator: generator, logger: config.Logger}
}

func (s *Scorer) ScoreURLs(ctx context.Context, urls []string, companyContext string) ([]models.ScoredURL, error) {
	if s.generator == nil {
		return nil, eris.Wrap(types.ErrMissingCredential, "scoring provider credential not configured")
	}

	response, err := s.generator.Generate(ctx, ScoringSystemPrompt, BuildScoringPrompt(urls, companyContext))
	if err != nil {
		return nil, eris.Wrap(err, "scoring request failed")
	}

	scored, err := ParseScoringResponse(response, urls)
	if err != nil {
		s.logger.Error("failed to parse AI response", zap.Error(err), zap.Int("response_length", len(response)))
		return nil, err
	}

	if len(scored) != len(urls) {
		s.logger.Warn("AI response count differs from input", zap.Int("scored", len(scored)), zap.Int("urls", len(urls)))
	}
	s.logger.Info("AI successfully scored URLs", zap.Int("urls_scored", len(scored)))
	return scored, nil
}

// BuildScoringPrompt embeds the URL list and serialized company context.
func BuildScoringPrompt(urls []string, companyContext string) string {
	var list strings.Builder
	for i, u := range urls {
		if i > 0 {
			list.WriteByte('\n')
		}
		list.WriteString("- ")
		list.WriteString(u)
	}

	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}

	return fmt.Sprintf(scoringTemplate, companyContext, list.String(), strings.Join(names, ", "))
}

type scoredItem struct {
	URL      *string      `json:"url"`
	Score    *json.Number `json:"score"`
	Reason   *string      `json:"reason"`
	Category *string      `json:"category"`
}

// ParseScoringResponse decodes a provider response into scored URLs. Entries
// without url or score are dropped, scores are clamped, and every input URL
// missing from the response is added with a neutral score.
func ParseScoringResponse(response string, originalURLs []string) ([]models.ScoredURL, error) {
	cleaned := StripCodeFence(response)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrapf(ErrInvalidResponse, "response is not a JSON array: %v", err)
	}

	results := make([]models.ScoredURL, 0, len(raw))
	for _, entry := range raw {
		var item scoredItem
		if err := json.Unmarshal(entry, &item); err != nil {
			continue
		}
		if item.URL == nil || item.Score == nil {
			continue
		}
		score, err := item.Score.Float64()
		if err != nil || math.IsNaN(score) {
			continue
		}

		reason := missingReason
		if item.Reason != nil {
			reason = *item.Reason
		}
		category := models.CategoryOther
		if item.Category != nil {
			category = models.ParseCategory(*item.Category)
		}

		results = append(results, models.ScoredURL{
			URL:      *item.URL,
			Score:    clamp(score),
			Reason:   reason,
			Category: category,
		})
	}

	return repairMissing(results, originalURLs), nil
}

func repairMissing(results []models.ScoredURL, originalURLs []string) []models.ScoredURL {
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.URL] = true
	}
	for _, u := range originalURLs {
		if seen[u] {
			continue
		}
		seen[u] = true
		results = append(results, models.ScoredURL{
			URL:      u,
			Score:    incompleteScore,
			Reason:   incompleteReason,
			Category: models.CategoryOther,
		})
	}
	return results
}

func clamp(score float64) int {
	if score <= 0 {
		return 0
	}
	if score >= 100 {
		return 100
	}
	return models.ClampScore(int(score))
}

// StripCodeFence removes a surrounding Markdown code fence such as ```json ... ```.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "[{") {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
