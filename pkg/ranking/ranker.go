package ranking

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/internal/types"
	"github.com/xhad/bizintel/pkg/metrics"
)

type RankerConfig struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Ranker selects the most valuable URLs of a site. AI scoring is tried first;
// any failure falls back to the path heuristic.
type Ranker struct {
	scorer  types.Scorer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWithConfig creates a Ranker. A nil scorer always uses the heuristic.
func NewWithConfig(scorer types.Scorer, config RankerConfig) *Ranker {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Ranker{
		scorer:  scorer,
		logger:  config.Logger,
		metrics: config.Metrics,
	}
}

// SelectValuableURLs never fails: it returns at most maxURLs entries, and only
// returns an empty list when urls is empty.
func (r *Ranker) SelectValuableURLs(ctx context.Context, urls []string, cc models.CompanyContext, maxURLs int) []models.ScoredURL {
	if len(urls) == 0 {
		return []models.ScoredURL{}
	}

	selected, err := r.selectWithAI(ctx, urls, cc, maxURLs)
	if err == nil {
		r.metrics.RankingPath("ai")
		return selected
	}

	r.logger.Warn("AI scoring failed, using fallback", zap.Error(err), zap.Int("urls", len(urls)))
	r.metrics.RankingPath("fallback")
	return Fallback(urls, maxURLs)
}

func (r *Ranker) selectWithAI(ctx context.Context, urls []string, cc models.CompanyContext, maxURLs int) (selected []models.ScoredURL, err error) {
	if r.scorer == nil {
		return nil, eris.Wrap(types.ErrMissingCredential, "no scoring provider configured")
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("scoring panicked: %v", rec)
		}
	}()

	scored, err := r.scorer.ScoreURLs(ctx, urls, cc.String())
	if err != nil {
		return nil, err
	}

	selected, categories := SelectDiverse(scored, maxURLs)
	r.logger.Info("AI scoring successful",
		zap.Int("urls_scored", len(scored)),
		zap.Int("urls_selected", len(selected)),
		zap.Int("categories_covered", categories),
	)
	return selected, nil
}

// Fallback scores every URL with the heuristic and keeps the top maxURLs.
// No category cap is applied.
func Fallback(urls []string, maxURLs int) []models.ScoredURL {
	scored := make([]models.ScoredURL, 0, len(urls))
	for _, u := range urls {
		scored = append(scored, Heuristic(u))
	}
	return TopByScore(scored, maxURLs)
}
