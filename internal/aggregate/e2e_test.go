package aggregate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/aggregate"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/analysis"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/feeds"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/fetch"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/scrape"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/window"
	"github.com/ekbrothers/aggregated-devops-rss-ai/mocks"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const githubFeed = `<?xml version="1.0"?><rss version="2.0"><channel><title>GitHub Changelog</title>
<item><title>Passkeys for SSO</title><link>https://github.blog/changelog/passkeys</link>
<pubDate>Sat, 17 Oct 2026 09:00:00 GMT</pubDate>
<description>This adds a new security feature for authentication</description></item>
<item><title>Last year</title><link>https://github.blog/changelog/old</link>
<pubDate>Fri, 17 Oct 2025 09:00:00 GMT</pubDate><description>old news</description></item>
</channel></rss>`

func newRunner(t *testing.T, reg string) (*aggregate.Runner, *registry.Registry) {
	t.Helper()
	r, err := registry.Parse([]byte(reg))
	require.NoError(t, err)
	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	calc, err := window.New(time.Friday, "current")
	require.NoError(t, err)
	fd := feeds.New(cl)
	fd.Now = func() time.Time { return now }
	pg := scrape.New(cl, nil, false)
	pg.Now = func() time.Time { return now }
	return aggregate.New(aggregate.Options{Feeds: fd, Pages: pg, Window: calc.Compute(now), Concurrency: 2}), r
}

func TestScenario_GitHubSecurityFeature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(githubFeed))
	}))
	defer srv.Close()

	run, reg := newRunner(t, `
vcs_platforms:
  - url: `+srv.URL+`
    provider_name: github
    name: GitHub Changelog
`)
	got := run.Aggregate(context.Background(), reg)
	require.Len(t, got, 1)
	e := got[0]
	require.Equal(t, "Passkeys for SSO", e.Title)
	require.Equal(t, registry.VCSPlatforms, e.SourceType)
	require.Equal(t, "github", e.ProviderName)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := mocks.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("timeout")).Times(2)

	in := analysis.Input{Content: e.Content, Source: e.ProviderName, Title: e.Title, SourceType: e.SourceType, Metadata: e.SourceMetadata}

	on := analysis.New(c, analysis.Options{Synthesize: true}).Analyze(context.Background(), in)
	require.Contains(t, on.Categories, "Security")
	require.Contains(t, on.Categories, "New Feature")
	require.Equal(t, model.NoSummary, on.Summary)
	require.Equal(t, model.ImpactLow, on.ImpactLevel)
	require.Equal(t, model.UnknownStatus, on.PlatformStatus)

	off := analysis.New(c, analysis.Options{Synthesize: false}).Analyze(context.Background(), in)
	require.Equal(t, []string{"VCS Platform"}, off.Categories)
	require.Empty(t, off.SecurityUpdates)
	require.Empty(t, off.NewFeatures)
}

func TestScenario_Manual404ContributesNothing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(githubFeed))
	})
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><article><h2>Docs update</h2><p>text</p></article></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	run, reg := newRunner(t, `
auto:
  - url: `+srv.URL+`/feed
    provider_name: github
  - url: `+srv.URL+`/missing
    provider_name: hashicorp
    manual: true
  - url: `+srv.URL+`/docs
    provider_name: openai
    manual: true
`)
	got := run.Aggregate(context.Background(), reg)
	require.Len(t, got, 2)
	providers := map[string]bool{}
	for _, e := range got {
		providers[e.ProviderName] = true
	}
	require.True(t, providers["github"])
	require.True(t, providers["openai"])
	require.False(t, providers["hashicorp"])
}
