package ranking

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/bizintel/internal/models"
)

type fakeScorer struct {
	result []models.ScoredURL
	err    error
	panics bool
	calls  int
}

func (f *fakeScorer) ScoreURLs(ctx context.Context, urls []string, companyContext string) ([]models.ScoredURL, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

var testContext = models.CompanyContext{
	CompanyName: "Jane Doe's company",
	Website:     "https://x.com",
	Objective:   models.DefaultObjective,
}

func TestScoreURL(t *testing.T) {
	tests := []struct {
		url      string
		score    int
		category models.Category
	}{
		{"https://x.com/about", 95, models.CategoryLeadership},
		{"https://x.com/company/history", 95, models.CategoryLeadership},
		{"https://x.com/team", 90, models.CategoryLeadership},
		{"https://x.com/products/widget", 85, models.CategoryProducts},
		{"https://x.com/blog/our-culture", 75, models.CategoryCulture},
		{"https://x.com/blog/q3-results", 40, models.CategoryOther},
		{"https://x.com/case-studies/acme", 70, models.CategoryCustomers},
		{"https://x.com/press", 65, models.CategoryOther},
		{"https://x.com/privacy", 10, models.CategoryOther},
		{"https://x.com/contact", 20, models.CategoryOther},
		{"https://x.com/", 40, models.CategoryOther},
		{"https://x.com/ABOUT-US", 95, models.CategoryLeadership},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			s := Heuristic(tt.url)
			assert.Equal(t, tt.score, s.Score)
			assert.Equal(t, tt.category, s.Category)
			assert.NotEmpty(t, s.Reason)
		})
	}
}

func TestScoreURLFirstMatchWins(t *testing.T) {
	// matches both the team and the legal rule
	score, _ := ScoreURL("https://x.com/team/privacy")
	assert.Equal(t, 90, score)
}

func TestCategoryFromReason(t *testing.T) {
	assert.Equal(t, models.CategoryFinancials, CategoryFromReason("Investors and press coverage"))
	assert.Equal(t, models.CategoryOther, CategoryFromReason("Investor relations"), "singular investor is not in the table")
	assert.Equal(t, models.CategoryOther, CategoryFromReason("Legal/compliance pages"))
	assert.Equal(t, models.CategoryOther, CategoryFromReason("something else"))
}

func TestSelectDiverse(t *testing.T) {
	scores := []int{95, 94, 93, 85, 84, 70, 69}
	cats := []models.Category{
		models.CategoryLeadership, models.CategoryLeadership, models.CategoryLeadership,
		models.CategoryProducts, models.CategoryProducts,
		models.CategoryCulture, models.CategoryCulture,
	}
	var scored []models.ScoredURL
	for i := range scores {
		scored = append(scored, models.ScoredURL{
			URL:      fmt.Sprintf("https://x.com/%d", i),
			Score:    scores[i],
			Category: cats[i],
		})
	}

	selected, covered := SelectDiverse(scored, 7)
	require.Len(t, selected, 7)
	assert.Equal(t, 3, covered)

	perCategory := map[models.Category]int{}
	for _, s := range selected[:4] {
		perCategory[s.Category]++
	}
	for cat, n := range perCategory {
		assert.LessOrEqual(t, n, 2, "category %s", cat)
	}

	// the third leadership page only arrives through backfill
	assert.Equal(t, 93, selected[6].Score)

	seen := map[string]bool{}
	for _, s := range selected {
		seen[s.URL] = true
	}
	assert.Len(t, seen, 7)
}

func TestSelectDiverseBackfillOrder(t *testing.T) {
	scored := []models.ScoredURL{
		{URL: "a", Score: 90, Category: models.CategoryLeadership},
		{URL: "b", Score: 80, Category: models.CategoryLeadership},
		{URL: "c", Score: 70, Category: models.CategoryLeadership},
		{URL: "d", Score: 60, Category: models.CategoryLeadership},
		{URL: "e", Score: 10, Category: models.CategoryOther},
	}

	selected, _ := SelectDiverse(scored, 4)
	urls := make([]string, len(selected))
	for i, s := range selected {
		urls[i] = s.URL
	}
	assert.Equal(t, []string{"a", "b", "e", "c"}, urls)
}

func TestSelectDiverseStableTies(t *testing.T) {
	scored := []models.ScoredURL{
		{URL: "first", Score: 50, Category: models.CategoryOther},
		{URL: "second", Score: 50, Category: models.CategoryProducts},
		{URL: "third", Score: 50, Category: models.CategoryCulture},
	}
	selected, _ := SelectDiverse(scored, 2)
	require.Len(t, selected, 2)
	assert.Equal(t, "first", selected[0].URL)
	assert.Equal(t, "second", selected[1].URL)
}

func TestSelectValuableURLsEmpty(t *testing.T) {
	scorer := &fakeScorer{}
	r := NewWithConfig(scorer, RankerConfig{})
	assert.Empty(t, r.SelectValuableURLs(context.Background(), nil, testContext, 7))
	assert.Equal(t, 0, scorer.calls)
}

func TestSelectValuableURLsUsesAI(t *testing.T) {
	scorer := &fakeScorer{result: []models.ScoredURL{
		{URL: "https://x.com/a", Score: 10, Category: models.CategoryOther},
		{URL: "https://x.com/b", Score: 99, Category: models.CategoryStrategy},
	}}
	r := NewWithConfig(scorer, RankerConfig{})

	selected := r.SelectValuableURLs(context.Background(), []string{"https://x.com/a", "https://x.com/b"}, testContext, 1)
	require.Len(t, selected, 1)
	assert.Equal(t, "https://x.com/b", selected[0].URL)
	assert.Equal(t, 1, scorer.calls)
}

func TestSelectValuableURLsFallback(t *testing.T) {
	urls := []string{
		"https://x.com/privacy",
		"https://x.com/blog/post",
		"https://x.com/about",
		"https://x.com/team",
		"https://x.com/login",
	}

	scorers := map[string]*fakeScorer{
		"error": {err: errors.New("provider unreachable")},
		"panic": {panics: true},
	}

	for name, scorer := range scorers {
		t.Run(name, func(t *testing.T) {
			r := NewWithConfig(scorer, RankerConfig{})
			selected := r.SelectValuableURLs(context.Background(), urls, testContext, 3)
			require.Len(t, selected, 3)
			assert.Equal(t, []int{95, 90, 40}, []int{selected[0].Score, selected[1].Score, selected[2].Score})
			for _, s := range selected {
				assert.GreaterOrEqual(t, s.Score, 0)
				assert.LessOrEqual(t, s.Score, 100)
			}
		})
	}
}

func TestSelectValuableURLsFallbackReturnsMinOfLenAndMax(t *testing.T) {
	r := NewWithConfig(nil, RankerConfig{})
	urls := []string{"https://x.com/a", "https://x.com/b"}
	assert.Len(t, r.SelectValuableURLs(context.Background(), urls, testContext, 7), 2)
	assert.Len(t, r.SelectValuableURLs(context.Background(), urls, testContext, 1), 1)
}

func TestFallbackAboutBeatsPrivacy(t *testing.T) {
	r := NewWithConfig(nil, RankerConfig{})
	selected := r.SelectValuableURLs(context.Background(),
		[]string{"https://x.com/about", "https://x.com/privacy"}, testContext, 1)
	require.Len(t, selected, 1)
	assert.Equal(t, "https://x.com/about", selected[0].URL)
	assert.Equal(t, 95, selected[0].Score)
}
