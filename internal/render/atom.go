package render

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

// EntryID 返回条目的稳定 ID（link + 发布时间的 SHA1 UUID）。
func EntryID(e model.Entry) string {
	key := e.Link + "|" + e.Published.UTC().Format(time.RFC3339)
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func newFeed(d model.Digest, opts Options) *feeds.Feed {
	title := opts.SiteTitle
	if title == "" {
		title = "DevOps Updates Digest"
	}
	link := opts.SiteURL
	if link == "" {
		link = "https://example.invalid/"
	}
	f := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "Weekly digest of DevOps platform updates from " + d.Window.Label(),
		Id:          "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String(),
		Created:     d.Stats.GeneratedAt,
		Updated:     d.Stats.GeneratedAt,
	}
	for _, e := range d.Entries {
		summary := model.NoSummary
		if e.Analysis != nil {
			summary = e.Analysis.Summary
		}
		f.Items = append(f.Items, &feeds.Item{
			Title:       e.Title,
			Link:        &feeds.Link{Href: e.Link},
			Description: summary,
			Id:          EntryID(e),
			Created:     e.Published,
			Updated:     e.Published,
		})
	}
	return f
}

// Atom 将 d 渲染为 Atom XML。
func Atom(w io.Writer, d model.Digest, opts Options) error {
	if err := newFeed(d, opts).WriteAtom(w); err != nil {
		return fmt.Errorf("render atom: %w", err)
	}
	return nil
}

// WriteAtom 渲染到 outDir/feed.xml。
func WriteAtom(outDir string, d model.Digest, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := Atom(&buf, d, opts); err != nil {
		return "", err
	}
	p := filepath.Join(outDir, "feed.xml")
	if err := writeFile(p, buf.Bytes()); err != nil {
		return "", err
	}
	return p, nil
}
