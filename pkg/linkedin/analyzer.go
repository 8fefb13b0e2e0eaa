package linkedin

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type AnalyzerConfig struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// Analyzer turns a raw profile into the LinkedIn section of an analysis.
type Analyzer struct {
	fetcher ProfileFetcher
	logger  *zap.Logger
	now     func() time.Time
}

func NewAnalyzer(fetcher ProfileFetcher, config AnalyzerConfig) *Analyzer {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Analyzer{
		fetcher: fetcher,
		logger:  config.Logger,
		now:     config.Now,
	}
}

// Analyze fetches and reshapes one profile. Errors are returned to the caller,
// which decides how to record them.
func (a *Analyzer) Analyze(ctx context.Context, profileURL string) (map[string]any, error) {
	if _, err := ExtractProfileID(profileURL); err != nil {
		a.logger.Warn("rejected LinkedIn URL", zap.String("url", profileURL), zap.Error(err))
		return nil, err
	}

	a.logger.Info("analyzing LinkedIn profile", zap.String("url", profileURL))
	profile, err := a.fetcher.FetchProfile(ctx, profileURL)
	if err != nil {
		a.logger.Error("failed to fetch LinkedIn profile", zap.String("url", profileURL), zap.Error(err))
		return nil, err
	}

	return map[string]any{
		"status":    "success",
		"url":       profileURL,
		"analysis":  AnalyzeProfile(profile),
		"timestamp": a.now().UTC().Format(time.RFC3339),
	}, nil
}

// AnalyzeProfile reshapes a raw ScrapingDog profile into summary sections.
func AnalyzeProfile(p map[string]any) map[string]any {
	experience := records(p, "experience")
	education := records(p, "education")

	return map[string]any{
		"profile_summary": map[string]any{
			"full_name":   str(p, "fullName"),
			"first_name":  str(p, "first_name"),
			"last_name":   str(p, "last_name"),
			"headline":    str(p, "headline"),
			"location":    str(p, "location"),
			"profile_id":  str(p, "public_identifier"),
			"followers":   str(p, "followers"),
			"connections": str(p, "connections"),
			"about":       str(p, "about"),
		},
		"professional_info": map[string]any{
			"current_position":       currentPosition(experience),
			"total_experience_years": totalExperienceYears(experience),
			"companies_worked_at":    companies(experience, len(experience)),
			"skills_mentioned":       skillsMentioned(str(p, "about")),
		},
		"experience": map[string]any{
			"total_positions":    len(experience),
			"positions":          experience,
			"career_progression": careerProgression(experience),
			"recent_companies":   companies(experience, 5),
			"seniority_level":    SeniorityLevel(experience),
		},
		"education": map[string]any{
			"total_degrees":   len(education),
			"degrees":         education,
			"universities":    fieldValues(education, "school"),
			"fields_of_study": fieldValues(education, "field_of_study"),
		},
		"network_insights": map[string]any{
			"followers":   ParseCount(str(p, "followers")),
			"connections": ParseCount(str(p, "connections")),
		},
	}
}

func str(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func records(m map[string]any, key string) []map[string]any {
	items, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

func fieldValues(recs []map[string]any, key string) []string {
	out := []string{}
	for _, r := range recs {
		if v := str(r, key); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// currentPosition is the first entry without an end date, else the first entry.
func currentPosition(experience []map[string]any) map[string]any {
	for _, exp := range experience {
		if end := str(exp, "ends_at"); end == "" || end == "Present" {
			return exp
		}
	}
	if len(experience) > 0 {
		return experience[0]
	}
	return nil
}

func totalExperienceYears(experience []map[string]any) int {
	total := 0
	for _, exp := range experience {
		duration := strings.ToLower(str(exp, "duration"))
		if !strings.Contains(duration, "year") {
			continue
		}
		var digits strings.Builder
		for _, r := range duration {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		if years, err := strconv.Atoi(digits.String()); err == nil {
			total += years
		}
	}
	return total
}

func companies(experience []map[string]any, limit int) []string {
	out := []string{}
	seen := map[string]bool{}
	for i, exp := range experience {
		if i >= limit {
			break
		}
		name := str(exp, "company_name")
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

var knownSkills = []string{
	"python", "javascript", "java", "react", "node.js", "aws", "docker",
	"kubernetes", "machine learning", "ai", "data science", "sql",
	"project management", "leadership", "strategy", "marketing", "sales",
}

func skillsMentioned(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, skill := range knownSkills {
		if strings.Contains(lower, skill) {
			found = append(found, skill)
		}
	}
	return found
}

func positions(experience []map[string]any) []string {
	out := make([]string, len(experience))
	for i, exp := range experience {
		out[i] = strings.ToLower(str(exp, "position"))
	}
	return out
}

func anyContains(values []string, terms ...string) bool {
	for _, v := range values {
		for _, t := range terms {
			if strings.Contains(v, t) {
				return true
			}
		}
	}
	return false
}

func careerProgression(experience []map[string]any) map[string]any {
	if len(experience) == 0 {
		return map[string]any{"pattern": "no_data", "progression": "unknown"}
	}
	titles := positions(experience)

	progression := "entry_mid_level"
	switch {
	case anyContains(titles, "senior"):
		progression = "senior_level"
	case anyContains(titles, "manager", "director"):
		progression = "management_level"
	case anyContains(titles, "founder", "ceo", "cto"):
		progression = "executive_level"
	}
	return map[string]any{
		"pattern":         "analyzed",
		"progression":     progression,
		"total_positions": len(titles),
	}
}

// SeniorityLevel ranks the most senior title held.
func SeniorityLevel(experience []map[string]any) string {
	if len(experience) == 0 {
		return "unknown"
	}
	titles := positions(experience)
	switch {
	case anyContains(titles, "ceo", "founder", "president"):
		return "executive"
	case anyContains(titles, "director", "vp"):
		return "senior_management"
	case anyContains(titles, "manager", "lead"):
		return "management"
	case anyContains(titles, "senior"):
		return "senior"
	default:
		return "mid_level"
	}
}

var countPattern = regexp.MustCompile(`\d+`)

// ParseCount reads the leading number out of strings like "1,234 followers".
func ParseCount(s string) int {
	match := countPattern.FindString(strings.ReplaceAll(s, ",", ""))
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}
