package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/bizintel/internal/models"
)

type fakeDiscoverer struct {
	urls  []string
	calls int
	got   string
}

func (f *fakeDiscoverer) Discover(ctx context.Context, siteURL string) []string {
	f.calls++
	f.got = siteURL
	return f.urls
}

type fakeRanker struct {
	calls   int
	gotCC   models.CompanyContext
	gotMax  int
	gotURLs []string
}

func (f *fakeRanker) SelectValuableURLs(ctx context.Context, urls []string, cc models.CompanyContext, maxURLs int) []models.ScoredURL {
	f.calls++
	f.gotCC = cc
	f.gotMax = maxURLs
	f.gotURLs = urls
	out := []models.ScoredURL{}
	for i, u := range urls {
		if i >= maxURLs {
			break
		}
		out = append(out, models.ScoredURL{URL: u, Score: 90, Reason: "test", Category: models.CategoryOther})
	}
	return out
}

type fakeExtractor struct {
	calls int
	got   []models.ScoredURL
}

func (f *fakeExtractor) Extract(ctx context.Context, selected []models.ScoredURL) models.ExtractionResult {
	f.calls++
	f.got = selected
	out := models.ExtractionResult{}
	for _, s := range selected {
		out[s.URL] = models.Success("# " + s.URL)
	}
	return out
}

type fakeProfiles struct {
	doc   map[string]any
	err   error
	panic bool
	calls int
}

func (f *fakeProfiles) Analyze(ctx context.Context, profileURL string) (map[string]any, error) {
	f.calls++
	if f.panic {
		panic("scrapingdog exploded")
	}
	return f.doc, f.err
}

type fakeStore struct {
	saved []*models.AnalysisOutput
	err   error
}

func (f *fakeStore) Save(ctx context.Context, out *models.AnalysisOutput) error {
	f.saved = append(f.saved, out)
	return f.err
}

func (f *fakeStore) Load(ctx context.Context, requestID string) (*models.AnalysisOutput, error) {
	for _, out := range f.saved {
		if out.RequestID == requestID {
			return out, nil
		}
	}
	return nil, errors.New("not found")
}

type fakeIndex struct {
	calls int
	err   error
}

func (f *fakeIndex) Index(ctx context.Context, requestID string, pages models.ExtractionResult) error {
	f.calls++
	return f.err
}

type fixture struct {
	discoverer *fakeDiscoverer
	ranker     *fakeRanker
	extractor  *fakeExtractor
	profiles   *fakeProfiles
	store      *fakeStore
	index      *fakeIndex
	pipeline   *Pipeline
}

func newFixture(urls ...string) *fixture {
	f := &fixture{
		discoverer: &fakeDiscoverer{urls: urls},
		ranker:     &fakeRanker{},
		extractor:  &fakeExtractor{},
		profiles:   &fakeProfiles{doc: map[string]any{"status": "success"}},
		store:      &fakeStore{},
		index:      &fakeIndex{},
	}
	f.pipeline = New(Dependencies{
		Discoverer: f.discoverer,
		Ranker:     f.ranker,
		Extractor:  f.extractor,
		Profiles:   f.profiles,
		Store:      f.store,
		Index:      f.index,
	}, PipelineConfig{
		Now:   func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string { return "generated-id" },
	})
	return f
}

func TestRunRejectsRegistrationWithoutSources(t *testing.T) {
	f := newFixture("https://acme.com/")

	out, err := f.pipeline.Run(context.Background(), models.Registration{FirstName: "Ada", LastName: "Lovelace"})
	assert.Nil(t, out)
	assert.True(t, eris.Is(err, models.ErrNoSources))

	assert.Zero(t, f.discoverer.calls)
	assert.Zero(t, f.ranker.calls)
	assert.Zero(t, f.extractor.calls)
	assert.Zero(t, f.profiles.calls)
	assert.Empty(t, f.store.saved)
	assert.Zero(t, f.index.calls)
}

func TestRunWebsiteOnly(t *testing.T) {
	urls := []string{"https://acme.com/", "https://acme.com/about", "https://acme.com/team"}
	f := newFixture(urls...)

	out, err := f.pipeline.Run(context.Background(), models.Registration{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyWebsite: "ACME.com/",
	})
	require.NoError(t, err)

	assert.Equal(t, "generated-id", out.RequestID)
	assert.Equal(t, map[string]any{"status": "not_implemented"}, out.LinkedInAnalysis)
	assert.Zero(t, f.profiles.calls)

	assert.Equal(t, "https://acme.com/", f.discoverer.got)
	assert.Equal(t, DefaultMaxURLs, f.ranker.gotMax)
	assert.Equal(t, models.CompanyContext{
		CompanyName: "Ada Lovelace's company",
		Website:     "ACME.com/",
		Objective:   models.DefaultObjective,
	}, f.ranker.gotCC)

	require.NotNil(t, out.WebsiteAnalysis)
	assert.Equal(t, urls, out.WebsiteAnalysis.DiscoveredURLs)
	assert.Len(t, out.WebsiteAnalysis.FilteredURLs, 3)
	assert.Len(t, out.WebsiteAnalysis.ScrapedContent, 3)

	require.Len(t, f.store.saved, 1)
	assert.Same(t, out, f.store.saved[0])
	assert.Equal(t, 1, f.index.calls)
}

func TestRunLinkedInOnly(t *testing.T) {
	f := newFixture()

	out, err := f.pipeline.Run(context.Background(), models.Registration{
		FirstName: "Ada",
		LastName:  "Lovelace",
		LinkedIn:  "https://linkedin.com/in/ada",
	})
	require.NoError(t, err)

	assert.Equal(t, "success", out.LinkedInAnalysis["status"])
	assert.Nil(t, out.WebsiteAnalysis)
	assert.Zero(t, f.discoverer.calls)
	assert.Zero(t, f.index.calls)
}

func TestRunLinkedInFailureDoesNotStopWebsite(t *testing.T) {
	f := newFixture("https://acme.com/")
	f.profiles.err = errors.New("invalid ScrapingDog API key")

	out, err := f.pipeline.Run(context.Background(), models.Registration{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyWebsite: "https://acme.com",
		LinkedIn:       "https://linkedin.com/in/ada",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"status": "error", "message": "invalid ScrapingDog API key"}, out.LinkedInAnalysis)
	require.NotNil(t, out.WebsiteAnalysis)
	assert.Len(t, out.WebsiteAnalysis.ScrapedContent, 1)
}

func TestRunLinkedInPanicIsContained(t *testing.T) {
	f := newFixture("https://acme.com/")
	f.profiles.panic = true

	out, err := f.pipeline.Run(context.Background(), models.Registration{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyWebsite: "https://acme.com",
		LinkedIn:       "https://linkedin.com/in/ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "error", out.LinkedInAnalysis["status"])
	assert.NotNil(t, out.WebsiteAnalysis)
}

func TestRunEmptyDiscovery(t *testing.T) {
	f := newFixture()

	out, err := f.pipeline.Run(context.Background(), models.Registration{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyWebsite: "https://acme.com",
	})
	require.NoError(t, err)

	require.NotNil(t, out.WebsiteAnalysis)
	assert.NotNil(t, out.WebsiteAnalysis.DiscoveredURLs)
	assert.Empty(t, out.WebsiteAnalysis.DiscoveredURLs)
	assert.Empty(t, out.WebsiteAnalysis.FilteredURLs)
	assert.NotNil(t, out.WebsiteAnalysis.ScrapedContent)
	assert.Empty(t, out.WebsiteAnalysis.ScrapedContent)
}

func TestRunPersistenceFailureIsNotFatal(t *testing.T) {
	f := newFixture("https://acme.com/")
	f.store.err = errors.New("disk full")
	f.index.err = errors.New("embedder offline")

	out, err := f.pipeline.Run(context.Background(), models.Registration{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyWebsite: "https://acme.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Len(t, f.store.saved, 1)
}

func TestRunWithIDIsIdempotent(t *testing.T) {
	f := newFixture("https://acme.com/", "https://acme.com/about")
	reg := models.Registration{FirstName: "Ada", LastName: "Lovelace", CompanyWebsite: "https://acme.com"}

	first, err := f.pipeline.RunWithID(context.Background(), "job-42", reg)
	require.NoError(t, err)
	second, err := f.pipeline.RunWithID(context.Background(), "job-42", reg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, f.store.saved, 2)
	assert.Equal(t, "job-42", f.store.saved[0].RequestID)
	assert.Equal(t, "job-42", f.store.saved[1].RequestID)
}

func TestRunMaxURLsConfigurable(t *testing.T) {
	f := newFixture("https://acme.com/a", "https://acme.com/b", "https://acme.com/c")
	f.pipeline = New(Dependencies{
		Discoverer: f.discoverer,
		Ranker:     f.ranker,
		Extractor:  f.extractor,
	}, PipelineConfig{MaxURLs: 2})

	out, err := f.pipeline.Run(context.Background(), models.Registration{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyWebsite: "https://acme.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, 2, f.ranker.gotMax)
	assert.Len(t, f.extractor.got, 2)
}
