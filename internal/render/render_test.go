package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

func sampleDigest() model.Digest {
	pub := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return model.Digest{
		Window: model.Window{
			Start: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC),
		},
		Entries: []model.Entry{
			{
				Title: "Passkeys <GA>", Link: "https://github.blog/changelog/passkeys", Published: pub,
				Content: "## Highlights\n\n* faster **login**\n\n<script>alert(1)</script>", ContentType: model.ContentMarkdown,
				ProviderName: "github", SourceMetadata: model.SourceMetadata{Name: "GitHub Changelog"},
				Analysis: &model.Analysis{Summary: "Passkeys are GA.", ImpactLevel: model.ImpactHigh,
					KeyChanges: []string{"Passkeys"}, ActionItems: []string{"Enable passkeys"}, Categories: []string{"Security"}},
			},
			{
				Title: "Mystery", Link: "https://ex/m", Published: pub, ProviderName: "unknown",
				Analysis: &model.Analysis{Summary: "m", ImpactLevel: model.ImpactLow, Categories: []string{"General"}},
			},
			{
				Title: "No analysis yet", Link: "https://ex/n", Published: pub, ProviderName: "aws",
			},
		},
		ExecutiveSummary:    "A **busy** week.",
		ActionItems:         []string{"Enable passkeys"},
		AdditionalResources: []model.Resource{{Name: "Github Documentation", Link: "https://github.blog/changelog/passkeys"}},
		Stats:               model.Stats{Entries: 3, GeneratedAt: time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)},
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, sampleDigest(), Options{SiteTitle: "Weekly"}))
	out := buf.String()

	require.Contains(t, out, "<title>Weekly</title>")
	require.Contains(t, out, "October 16, 2026 - October 23, 2026")
	require.Contains(t, out, "<strong>busy</strong>")
	require.Contains(t, out, `src="assets/icons/github.svg"`)
	require.Contains(t, out, `src="assets/icons/aws.svg"`)
	require.Contains(t, out, "Passkeys &lt;GA&gt;")
	require.Contains(t, out, "impact-high")
	require.Contains(t, out, "<strong>login</strong>")
	require.NotContains(t, out, "<script>alert(1)</script>")
	require.NotContains(t, out, "Mystery")
	require.Contains(t, out, "No summary available.")
	require.Contains(t, out, "Additional Resources")
}

func TestHTML_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, model.Digest{ExecutiveSummary: model.NoExecutiveSummary}, Options{}))
	require.Contains(t, buf.String(), "No updates in this period.")
	require.Contains(t, buf.String(), "DevOps Updates Digest")
}

func TestAtom(t *testing.T) {
	d := sampleDigest()
	var buf bytes.Buffer
	require.NoError(t, Atom(&buf, d, Options{SiteURL: "https://digest.example/"}))
	out := buf.String()
	require.Contains(t, out, "<feed")
	require.Equal(t, 3, strings.Count(out, "<entry>"))
	require.Contains(t, out, EntryID(d.Entries[0]))
	require.Contains(t, out, "Passkeys are GA.")
}

func TestEntryID_Stable(t *testing.T) {
	e := model.Entry{Link: "https://ex/1", Published: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	id := EntryID(e)
	require.True(t, strings.HasPrefix(id, "urn:uuid:"))
	require.Equal(t, id, EntryID(e))

	e.Published = e.Published.In(time.FixedZone("X", 3600))
	require.Equal(t, id, EntryID(e))

	e.Link = "https://ex/2"
	require.NotEqual(t, id, EntryID(e))
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := WriteHTML(filepath.Join(dir, "dist"), sampleDigest(), Options{})
	require.NoError(t, err)
	require.FileExists(t, p)
	p, err = WriteAtom(filepath.Join(dir, "dist"), sampleDigest(), Options{})
	require.NoError(t, err)
	require.FileExists(t, p)
}

func TestIcons(t *testing.T) {
	require.Equal(t, "github.svg", IconFile("GitHub"))
	require.Equal(t, DefaultIcon, IconFile("nobody"))
	require.Equal(t, "assets/icons/question.svg", IconPath(""))

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "github.svg"), []byte("<svg/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, DefaultIcon), []byte("<svg/>"), 0o644))
	out := t.TempDir()
	n, err := CopyIcons(src, out)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.FileExists(t, filepath.Join(out, "assets", "icons", "github.svg"))
	require.NoFileExists(t, filepath.Join(out, "assets", "icons", "aws.svg"))
}
