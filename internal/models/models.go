package models

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// ErrNoSources is returned when a registration carries neither a website nor a LinkedIn URL.
var ErrNoSources = eris.New("at least one data source must be provided: company_website or linkedin")

// Category is the business-intelligence bucket a page belongs to.
type Category string

const (
	CategoryLeadership Category = "leadership"
	CategoryProducts   Category = "products"
	CategoryCulture    Category = "culture"
	CategoryCustomers  Category = "customers"
	CategoryFinancials Category = "financials"
	CategoryStrategy   Category = "strategy"
	CategoryOther      Category = "other"
)

// Categories lists the fixed category vocabulary in prompt order.
var Categories = []Category{
	CategoryLeadership,
	CategoryProducts,
	CategoryCulture,
	CategoryCustomers,
	CategoryFinancials,
	CategoryStrategy,
	CategoryOther,
}

// ParseCategory maps free text onto the vocabulary, falling back to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryOther
}

// ScoredURL is one URL judged for business-intelligence value.
type ScoredURL struct {
	URL      string   `json:"url"`
	Score    int      `json:"score"`
	Reason   string   `json:"reason"`
	Category Category `json:"category"`
}

// ClampScore forces a score into [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// CompanyContext is the per-request input to URL scoring.
type CompanyContext struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
	Objective   string `json:"objective"`
}

// DefaultObjective is the objective sent with every scoring request.
const DefaultObjective = "business intelligence gathering"

// String renders the context the way it is embedded into the scoring prompt.
func (c CompanyContext) String() string {
	return "company_name=" + c.CompanyName + "; website=" + c.Website + "; objective=" + c.Objective
}

// Registration is the request submitted to the front door.
type Registration struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CompanyWebsite string `json:"company_website,omitempty"`
	LinkedIn       string `json:"linkedin,omitempty"`
}

// HasSources reports whether at least one URL was supplied.
func (r Registration) HasSources() bool {
	return strings.TrimSpace(r.CompanyWebsite) != "" || strings.TrimSpace(r.LinkedIn) != ""
}

// CompanyContext derives the scoring context from the requester.
func (r Registration) CompanyContext(objective string) CompanyContext {
	if objective == "" {
		objective = DefaultObjective
	}
	return CompanyContext{
		CompanyName: r.FirstName + " " + r.LastName + "'s company",
		Website:     r.CompanyWebsite,
		Objective:   objective,
	}
}

// FieldError describes one invalid registration field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks name lengths, URL shapes and that a source is present.
func (r Registration) Validate() error {
	var errs []FieldError
	if n := utf8.RuneCountInString(r.FirstName); n < 1 || n > 100 {
		errs = append(errs, FieldError{Field: "first_name", Message: "must be between 1 and 100 characters"})
	}
	if n := utf8.RuneCountInString(r.LastName); n < 1 || n > 100 {
		errs = append(errs, FieldError{Field: "last_name", Message: "must be between 1 and 100 characters"})
	}
	if r.CompanyWebsite != "" && !isHTTPURL(r.CompanyWebsite) {
		errs = append(errs, FieldError{Field: "company_website", Message: "must be a valid http(s) URL"})
	}
	if r.LinkedIn != "" && !isHTTPURL(r.LinkedIn) {
		errs = append(errs, FieldError{Field: "linkedin", Message: "must be a valid http(s) URL"})
	}
	if len(errs) > 0 {
		return ValidationErrors(errs)
	}
	if !r.HasSources() {
		return ErrNoSources
	}
	return nil
}

// ValidationErrors groups field errors from Validate.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// PageResult is the tagged outcome of fetching one page.
type PageResult struct {
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success wraps extracted content.
func Success(content string) PageResult {
	return PageResult{OK: true, Content: content}
}

// Failure wraps a per-URL failure reason.
func Failure(reason string) PageResult {
	return PageResult{OK: false, Error: reason}
}

// ExtractionResult maps URL to its fetch outcome.
type ExtractionResult map[string]PageResult

// Counts tallies successful and failed entries.
func (r ExtractionResult) Counts() (ok, failed int) {
	for _, p := range r {
		if p.OK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// WebsiteAnalysis is the website branch of an analysis.
type WebsiteAnalysis struct {
	DiscoveredURLs []string         `json:"discovered_urls"`
	FilteredURLs   []ScoredURL      `json:"filtered_urls"`
	ScrapedContent ExtractionResult `json:"scraped_content"`
}

// AnalysisOutput is the persisted result of one pipeline run.
type AnalysisOutput struct {
	RequestID        string           `json:"request_id"`
	Timestamp        time.Time        `json:"timestamp"`
	InputData        Registration     `json:"input_data"`
	LinkedInAnalysis map[string]any   `json:"linkedin_analysis"`
	WebsiteAnalysis  *WebsiteAnalysis `json:"website_analysis"`
}

// Document is one extracted page prepared for the page index.
type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

type ProcessedDocument struct {
	Document
	Chunks    []string
	Embedding [][]float32
}
