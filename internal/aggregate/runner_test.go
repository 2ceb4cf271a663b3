package aggregate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
)

var testWindow = model.Window{
	Start: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC),
}

// stubFetcher 按 URL 返回固定结果；"panic:" 前缀的 URL 触发 panic。
type stubFetcher struct {
	mu    sync.Mutex
	calls []string
	data  map[string][]model.Entry
	errs  map[string]error
	delay time.Duration
}

func (s *stubFetcher) Fetch(_ context.Context, src registry.Source) ([]model.Entry, error) {
	s.mu.Lock()
	s.calls = append(s.calls, src.URL)
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if strings.HasPrefix(src.URL, "panic:") {
		panic("bad source")
	}
	if err := s.errs[src.URL]; err != nil {
		return nil, err
	}
	out := make([]model.Entry, len(s.data[src.URL]))
	copy(out, s.data[src.URL])
	return out, nil
}

func at(day, hour int) time.Time {
	return time.Date(2026, 10, day, hour, 0, 0, 0, time.UTC)
}

func entry(title string, ts time.Time) model.Entry {
	return model.Entry{Title: title, Link: "https://ex/" + title, Published: ts, Content: title + " body"}
}

func testRegistry() *registry.Registry {
	return &registry.Registry{Groups: []registry.Group{
		{Category: registry.VCSPlatforms, Sources: []registry.Source{
			{URL: "feed-a", Name: "A", ProviderName: "github", Category: registry.VCSPlatforms, StatusURL: "https://status.a"},
			{URL: "feed-b", Name: "B", ProviderName: "gitlab", Category: registry.VCSPlatforms, FilterKeywords: []string{"RUNNER"}},
		}},
		{Category: registry.CloudProviders, Sources: []registry.Source{
			{URL: "page-c", Name: "C", ProviderName: "aws", Category: registry.CloudProviders, Manual: true},
			{URL: "feed-err", Name: "E", ProviderName: "azure", Category: registry.CloudProviders},
			{URL: "panic:x", Name: "P", ProviderName: "gcp", Category: registry.CloudProviders},
		}},
	}}
}

func testFetchers() (*stubFetcher, *stubFetcher) {
	feeds := &stubFetcher{
		data: map[string][]model.Entry{
			"feed-a": {
				entry("a-old", at(15, 23)),
				entry("a-start", testWindow.Start),
				entry("a-new", at(20, 9)),
				entry("a-end", testWindow.End),
				entry("a-tie", at(18, 12)),
			},
			"feed-b": {
				entry("b-runner", at(19, 8)),
				{Title: "b-other", Published: at(19, 7), Content: "nothing relevant"},
				{Title: "b-content", Published: at(18, 12), Content: "new Runner fleet"},
			},
		},
		errs: map[string]error{"feed-err": errors.New("status 500")},
	}
	pages := &stubFetcher{data: map[string][]model.Entry{
		"page-c": {entry("c-page", at(18, 12))},
	}}
	return feeds, pages
}

func TestAggregate_WindowKeywordsAndOrder(t *testing.T) {
	feeds, pages := testFetchers()
	r := New(Options{Feeds: feeds, Pages: pages, Window: testWindow})
	got := r.Aggregate(context.Background(), testRegistry())

	var titles []string
	for _, e := range got {
		titles = append(titles, e.Title)
		require.True(t, testWindow.Contains(e.Published), e.Title)
	}
	// a-tie/b-content/c-page 同一时刻，保持注册顺序
	require.Equal(t, []string{"a-new", "b-runner", "a-tie", "b-content", "c-page", "a-start"}, titles)

	for _, e := range got {
		if strings.HasPrefix(e.Title, "b-") {
			hay := strings.ToLower(e.Title + e.Content)
			require.Contains(t, hay, "runner")
		}
	}
	require.Equal(t, []string{"page-c"}, pages.calls)
}

func TestAggregate_Provenance(t *testing.T) {
	feeds, pages := testFetchers()
	got := New(Options{Feeds: feeds, Pages: pages, Window: testWindow}).Aggregate(context.Background(), testRegistry())
	require.NotEmpty(t, got)
	for _, e := range got {
		require.NotEmpty(t, e.ProviderName)
		require.Equal(t, e.SourceType, e.SourceMetadata.Type)
		require.Nil(t, e.Analysis)
		if e.Title == "a-new" {
			require.Equal(t, "github", e.ProviderName)
			require.Equal(t, registry.VCSPlatforms, e.SourceType)
			require.Equal(t, model.SourceMetadata{Name: "A", StatusURL: "https://status.a", Type: registry.VCSPlatforms}, e.SourceMetadata)
		}
		if e.Title == "c-page" {
			require.Equal(t, registry.CloudProviders, e.SourceType)
		}
	}
}

type recorder struct {
	mu   sync.Mutex
	seen map[string]error
}

func (r *recorder) SourceFetched(source string, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string]error{}
	}
	r.seen[source] = err
}

func TestAggregate_FailingSourcesIsolated(t *testing.T) {
	feeds, pages := testFetchers()
	rec := &recorder{}
	r := New(Options{Feeds: feeds, Pages: pages, Window: testWindow, Recorder: rec})
	got := r.Aggregate(context.Background(), testRegistry())

	for _, e := range got {
		require.NotEqual(t, "azure", e.ProviderName)
		require.NotEqual(t, "gcp", e.ProviderName)
	}
	require.Len(t, rec.seen, 5)
	require.Error(t, rec.seen["E"])
	require.Error(t, rec.seen["P"])
	require.NoError(t, rec.seen["A"])
}

func TestAggregate_FailureLogCarriesSource(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)
	logx.Init(logx.Options{Level: "warn", Format: "json", Output: &buf})

	feeds, pages := testFetchers()
	New(Options{Feeds: feeds, Pages: pages, Window: testWindow}).Aggregate(context.Background(), testRegistry())
	out := buf.String()
	require.Contains(t, out, `"source":"E"`)
	require.Contains(t, out, `"url":"feed-err"`)
	require.Contains(t, out, "status 500")
}

func TestAggregate_Idempotent(t *testing.T) {
	feeds, pages := testFetchers()
	r := New(Options{Feeds: feeds, Pages: pages, Window: testWindow})
	first := r.Aggregate(context.Background(), testRegistry())
	second := r.Aggregate(context.Background(), testRegistry())
	require.Equal(t, first, second)
}

func TestAggregate_ConcurrencyDoesNotChangeResult(t *testing.T) {
	reg := &registry.Registry{Groups: []registry.Group{{Category: registry.Other}}}
	feeds := &stubFetcher{data: map[string][]model.Entry{}, delay: 5 * time.Millisecond}
	for i := 0; i < 12; i++ {
		u := fmt.Sprintf("feed-%02d", i)
		reg.Groups[0].Sources = append(reg.Groups[0].Sources, registry.Source{URL: u, Name: u, Category: registry.Other})
		// 所有条目时间相同，顺序完全依赖注册顺序
		feeds.data[u] = []model.Entry{entry(u+"-1", at(17, 0)), entry(u+"-2", at(17, 0))}
	}
	seq := New(Options{Feeds: feeds, Window: testWindow, Concurrency: 1}).Aggregate(context.Background(), reg)
	par := New(Options{Feeds: feeds, Window: testWindow, Concurrency: 6}).Aggregate(context.Background(), reg)
	require.Len(t, seq, 24)
	require.Equal(t, seq, par)
}

func TestSortNewestFirst_ZeroLast(t *testing.T) {
	list := []model.Entry{{Title: "zero"}, entry("old", at(1, 0)), entry("new", at(2, 0)), {Title: "zero2"}}
	sortNewestFirst(list)
	require.Equal(t, "new", list[0].Title)
	require.Equal(t, "old", list[1].Title)
	require.Equal(t, "zero", list[2].Title)
	require.Equal(t, "zero2", list[3].Title)
}

func TestMatchKeywords(t *testing.T) {
	e := model.Entry{Title: "Terraform 1.9", Content: "Adds Stacks"}
	require.True(t, matchKeywords(e, nil))
	require.True(t, matchKeywords(e, []string{"stacks"}))
	require.True(t, matchKeywords(e, []string{"nope", "TERRAFORM"}))
	require.False(t, matchKeywords(e, []string{"pulumi"}))
}
