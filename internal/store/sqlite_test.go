package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

func digestFor(start time.Time, n int) model.Digest {
	d := model.Digest{
		Window:           model.Window{Start: start, End: start.AddDate(0, 0, 7)},
		ExecutiveSummary: "week",
		Stats:            model.Stats{GeneratedAt: start.Add(time.Hour)},
	}
	for i := 0; i < n; i++ {
		d.Entries = append(d.Entries, model.Entry{
			Title: "t", Link: "https://ex/" + string(rune('a'+i)), Published: start.Add(time.Duration(i) * time.Hour),
			ProviderName: "github",
			Analysis:     &model.Analysis{Summary: "s", ImpactLevel: model.ImpactHigh},
		})
	}
	d.Stats.Entries = n
	return d
}

func TestSQLite_SaveAndList(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	defer s.Close()

	w1 := time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)
	w2 := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	id1, err := s.SaveIssue(ctx, digestFor(w1, 2))
	require.NoError(t, err)
	id2, err := s.SaveIssue(ctx, digestFor(w2, 3))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	// 同一窗口重复写入覆盖条目
	again, err := s.SaveIssue(ctx, digestFor(w2, 1))
	require.NoError(t, err)
	require.Equal(t, id2, again)

	list, err := s.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, id2, list[0].ID)
	require.True(t, list[0].WindowStart.Equal(w2))
	require.True(t, list[0].WindowEnd.Equal(w2.AddDate(0, 0, 7)))
	require.Equal(t, 1, list[0].Entries)
	require.Equal(t, "week", list[0].ExecutiveSummary)

	n, err := s.CountEntries(ctx, id2)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, s.Reset(ctx))
	list, err = s.ListIssues(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestIssueID_Stable(t *testing.T) {
	w := model.Window{Start: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)}
	w.End = w.Start.AddDate(0, 0, 7)
	require.Equal(t, IssueID(w), IssueID(w))
	w.End = w.End.Add(time.Hour)
	require.NotEqual(t, IssueID(model.Window{Start: w.Start, End: w.Start.AddDate(0, 0, 7)}), IssueID(w))
}
