package ranking

import (
	"strings"

	"github.com/xhad/bizintel/internal/models"
	"github.com/xhad/bizintel/pkg/urlutil"
)

type pathRule struct {
	terms   []string
	require []string
	score   int
	reason  string
}

// Evaluated in order; the first matching rule wins.
var pathRules = []pathRule{
	{terms: []string{"/about", "/company", "/mission"}, score: 95, reason: "Company overview and mission"},
	{terms: []string{"/team", "/leadership", "/people"}, score: 90, reason: "Leadership and team information"},
	{terms: []string{"/services", "/products", "/solutions"}, score: 85, reason: "Core offerings"},
	{terms: []string{"/blog"}, require: []string{"culture", "value", "announcement"}, score: 75, reason: "Company culture insights"},
	{terms: []string{"/customers", "/case-studies", "/testimonials"}, score: 70, reason: "Customer success stories"},
	{terms: []string{"/investors", "/press", "/news"}, score: 65, reason: "Public announcements"},
	{terms: []string{"/privacy", "/terms", "/legal", "/cookie"}, score: 10, reason: "Legal/compliance pages"},
	{terms: []string{"/login", "/signup", "/contact"}, score: 20, reason: "Utility pages"},
}

const (
	defaultScore  = 40
	defaultReason = "Potentially relevant content"
)

type reasonRule struct {
	terms    []string
	category models.Category
}

var reasonRules = []reasonRule{
	{terms: []string{"mission", "overview", "leadership", "team"}, category: models.CategoryLeadership},
	{terms: []string{"offerings", "services", "products"}, category: models.CategoryProducts},
	{terms: []string{"culture", "insights"}, category: models.CategoryCulture},
	{terms: []string{"customers", "success", "stories"}, category: models.CategoryCustomers},
	{terms: []string{"investors", "press", "news"}, category: models.CategoryFinancials},
}

// ScoreURL scores a URL from its path alone. It is deterministic and offline.
func ScoreURL(rawURL string) (int, string) {
	path := urlutil.Path(rawURL)
	for _, rule := range pathRules {
		if !containsAny(path, rule.terms) {
			continue
		}
		if len(rule.require) > 0 && !containsAny(path, rule.require) {
			continue
		}
		return rule.score, rule.reason
	}
	return defaultScore, defaultReason
}

// CategoryFromReason maps a reason string back onto a category.
func CategoryFromReason(reason string) models.Category {
	lower := strings.ToLower(reason)
	for _, rule := range reasonRules {
		if containsAny(lower, rule.terms) {
			return rule.category
		}
	}
	return models.CategoryOther
}

// Heuristic builds a ScoredURL with the pattern rules.
func Heuristic(rawURL string) models.ScoredURL {
	score, reason := ScoreURL(rawURL)
	return models.ScoredURL{
		URL:      rawURL,
		Score:    models.ClampScore(score),
		Reason:   reason,
		Category: CategoryFromReason(reason),
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
