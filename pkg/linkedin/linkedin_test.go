package linkedin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/bizintel/internal/types"
)

func TestExtractProfileID(t *testing.T) {
	tests := []struct {
		url     string
		id      string
		wantErr bool
	}{
		{"https://linkedin.com/in/johndoe", "johndoe", false},
		{"https://www.linkedin.com/in/johndoe/", "johndoe", false},
		{"https://linkedin.com/in/johndoe?trk=profile", "johndoe", false},
		{"linkedin.com/in/jane-doe_42", "jane-doe_42", false},
		{"", "", true},
		{"https://example.com/in/johndoe", "", true},
		{"https://linkedin.com/company/acme", "", true},
		{"https://linkedin.com/in/jd", "", true},
		{"https://linkedin.com/in/john.doe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, err := ExtractProfileID(tt.url)
			if tt.wantErr {
				assert.True(t, eris.Is(err, ErrInvalidURL))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("linkedin.com/in/johndoe?trk=profile")
	require.NoError(t, err)
	assert.Equal(t, "https://www.linkedin.com/in/johndoe", got)

	assert.True(t, IsValidURL("https://linkedin.com/in/johndoe"))
	assert.False(t, IsValidURL("https://linkedin.com/feed"))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, sleeps *[]time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		BaseURL:   server.URL + "/linkedin/",
		APIKey:    "test-key",
		Premium:   true,
		RateLimit: 100,
		Sleep: func(ctx context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	})
}

func TestFetchProfile(t *testing.T) {
	var sleeps []time.Duration
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "profile", q.Get("type"))
		assert.Equal(t, "johndoe", q.Get("linkId"))
		assert.Equal(t, "true", q.Get("premium"))
		w.Write([]byte(`[{"fullName": "John Doe", "headline": "CEO at Acme"}]`))
	}, &sleeps)

	profile, err := client.FetchProfile(context.Background(), "https://linkedin.com/in/johndoe")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", profile["fullName"])
}

func TestFetchProfileObjectResponse(t *testing.T) {
	var sleeps []time.Duration
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fullName": "Jane Roe"}`))
	}, &sleeps)

	profile, err := client.FetchProfile(context.Background(), "https://linkedin.com/in/janeroe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", profile["fullName"])
}

func TestFetchProfileRateLimitBackoff(t *testing.T) {
	calls := 0
	var sleeps []time.Duration
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"fullName": "John Doe"}`))
	}, &sleeps)

	_, err := client.FetchProfile(context.Background(), "https://linkedin.com/in/johndoe")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestFetchProfileRateLimitExhausted(t *testing.T) {
	var sleeps []time.Duration
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, &sleeps)

	_, err := client.FetchProfile(context.Background(), "https://linkedin.com/in/johndoe")
	assert.True(t, eris.Is(err, types.ErrRateLimited))
	assert.Len(t, sleeps, 3)
}

func TestFetchProfileStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, ErrInvalidAPIKey},
		{http.StatusNotFound, ErrProfileNotFound},
	}
	for _, tt := range tests {
		var sleeps []time.Duration
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}, &sleeps)

		_, err := client.FetchProfile(context.Background(), "https://linkedin.com/in/johndoe")
		assert.True(t, eris.Is(err, tt.target), "status %d", tt.status)
		assert.Empty(t, sleeps)
	}
}

func TestFetchProfileMissingKey(t *testing.T) {
	client := NewClient(ClientConfig{})
	_, err := client.FetchProfile(context.Background(), "https://linkedin.com/in/johndoe")
	assert.True(t, eris.Is(err, types.ErrMissingCredential))
}

type fakeFetcher struct {
	profile map[string]any
	err     error
	calls   int
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, profileURL string) (map[string]any, error) {
	f.calls++
	return f.profile, f.err
}

func sampleProfile() map[string]any {
	return map[string]any{
		"fullName":          "John Doe",
		"headline":          "Founder at Acme",
		"public_identifier": "johndoe",
		"followers":         "1,234 followers",
		"connections":       "500+ connections",
		"about":             "Leadership and machine learning for logistics.",
		"experience": []any{
			map[string]any{"position": "Founder & CEO", "company_name": "Acme", "ends_at": "Present", "duration": "3 years"},
			map[string]any{"position": "Senior Engineer", "company_name": "Globex", "ends_at": "2021", "duration": "4 years"},
		},
		"education": []any{
			map[string]any{"school": "State University", "field_of_study": "Computer Science"},
		},
	}
}

func TestAnalyze(t *testing.T) {
	fetcher := &fakeFetcher{profile: sampleProfile()}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	analyzer := NewAnalyzer(fetcher, AnalyzerConfig{Now: func() time.Time { return now }})

	doc, err := analyzer.Analyze(context.Background(), "https://linkedin.com/in/johndoe")
	require.NoError(t, err)
	assert.Equal(t, "success", doc["status"])
	assert.Equal(t, "2024-05-01T12:00:00Z", doc["timestamp"])

	analysis := doc["analysis"].(map[string]any)
	summary := analysis["profile_summary"].(map[string]any)
	assert.Equal(t, "John Doe", summary["full_name"])

	info := analysis["professional_info"].(map[string]any)
	assert.Equal(t, "Acme", info["current_position"].(map[string]any)["company_name"])
	assert.Equal(t, 7, info["total_experience_years"])
	assert.Equal(t, []string{"Acme", "Globex"}, info["companies_worked_at"])
	assert.Equal(t, []string{"machine learning", "leadership"}, info["skills_mentioned"])

	experience := analysis["experience"].(map[string]any)
	assert.Equal(t, "executive", experience["seniority_level"])
	assert.Equal(t, 2, experience["total_positions"])

	education := analysis["education"].(map[string]any)
	assert.Equal(t, []string{"State University"}, education["universities"])

	network := analysis["network_insights"].(map[string]any)
	assert.Equal(t, 1234, network["followers"])
	assert.Equal(t, 500, network["connections"])
}

func TestAnalyzeRejectsInvalidURLWithoutFetching(t *testing.T) {
	fetcher := &fakeFetcher{profile: sampleProfile()}
	analyzer := NewAnalyzer(fetcher, AnalyzerConfig{})

	_, err := analyzer.Analyze(context.Background(), "https://example.com/johndoe")
	assert.True(t, eris.Is(err, ErrInvalidURL))
	assert.Equal(t, 0, fetcher.calls)
}

func TestAnalyzeReturnsFetchErrors(t *testing.T) {
	fetcher := &fakeFetcher{err: ErrInvalidAPIKey}
	analyzer := NewAnalyzer(fetcher, AnalyzerConfig{})

	doc, err := analyzer.Analyze(context.Background(), "https://www.linkedin.com/in/johndoe")
	assert.True(t, eris.Is(err, ErrInvalidAPIKey))
	assert.Nil(t, doc, "the caller builds the error document")
	assert.Equal(t, 1, fetcher.calls)
}

func TestSeniorityLevel(t *testing.T) {
	exp := func(title string) []map[string]any {
		return []map[string]any{{"position": title}}
	}
	assert.Equal(t, "unknown", SeniorityLevel(nil))
	assert.Equal(t, "senior_management", SeniorityLevel(exp("VP Sales")))
	assert.Equal(t, "management", SeniorityLevel(exp("Team Lead")))
	assert.Equal(t, "senior", SeniorityLevel(exp("Senior Analyst")))
	assert.Equal(t, "mid_level", SeniorityLevel(exp("Analyst")))
}
