// 包 render 将 model.Digest 渲染为静态产物：
// - index.html：按 provider 分组的周报（html/template + 内嵌模板，Markdown 经 goldmark 渲染）
// - feed.xml：Atom 订阅（gorilla/feeds）
// 渲染层只接收 Digest，不接触未过滤的原始条目。
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/analysis"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

//go:embed templates/newsletter.html.tmpl
var templateFS embed.FS

// UnknownProvider 的条目不进入 Key Highlights。
const UnknownProvider = "unknown"

// Options 为站点级展示参数。
type Options struct {
	SiteTitle string
	SiteURL   string
}

type platformView struct {
	Name    string
	Display string
	Icon    string
	Entries []model.Entry
}

type pageView struct {
	Title       string
	WeekRange   string
	Platforms   []platformView
	ActionItems []string
	Resources   []model.Resource
	GeneratedAt time.Time
	EntryCount  int

	ExecutiveSummary string
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

var page = template.Must(template.New("newsletter.html.tmpl").Funcs(template.FuncMap{
	"markdown":    markdown,
	"impactClass": impactClass,
	"body":        body,
}).ParseFS(templateFS, "templates/newsletter.html.tmpl"))

// HTML 将 d 渲染到 w。
func HTML(w io.Writer, d model.Digest, opts Options) error {
	if err := page.Execute(w, newPageView(d, opts)); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// WriteHTML 渲染到 outDir/index.html。
func WriteHTML(outDir string, d model.Digest, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := HTML(&buf, d, opts); err != nil {
		return "", err
	}
	p := filepath.Join(outDir, "index.html")
	if err := writeFile(p, buf.Bytes()); err != nil {
		return "", err
	}
	return p, nil
}

func newPageView(d model.Digest, opts Options) pageView {
	title := opts.SiteTitle
	if title == "" {
		title = "DevOps Updates Digest"
	}
	v := pageView{
		Title:            title,
		WeekRange:        d.Window.Label(),
		ActionItems:      d.ActionItems,
		Resources:        d.AdditionalResources,
		GeneratedAt:      d.Stats.GeneratedAt,
		EntryCount:       len(d.Entries),
		ExecutiveSummary: d.ExecutiveSummary,
	}
	idx := map[string]int{}
	skipped := 0
	for _, e := range d.Entries {
		if e.Analysis == nil {
			a := analysis.Default(e.SourceType)
			e.Analysis = &a
		}
		name := strings.ToLower(strings.TrimSpace(e.ProviderName))
		if name == "" || name == UnknownProvider {
			skipped++
			continue
		}
		i, ok := idx[name]
		if !ok {
			i = len(v.Platforms)
			idx[name] = i
			v.Platforms = append(v.Platforms, platformView{Name: name, Display: displayName(e), Icon: IconPath(name)})
		}
		v.Platforms[i].Entries = append(v.Platforms[i].Entries, e)
	}
	if skipped > 0 {
		logx.Warnf("%d 条条目的 provider 未知，未列入 Key Highlights", skipped)
	}
	return v
}

func displayName(e model.Entry) string {
	if e.SourceMetadata.Name != "" {
		return e.SourceMetadata.Name
	}
	return e.ProviderName
}

func impactClass(level string) string {
	switch level {
	case model.ImpactHigh:
		return "impact-high"
	case model.ImpactMedium:
		return "impact-medium"
	default:
		return "impact-low"
	}
}

// markdown 渲染 Markdown 文本；goldmark 默认不输出原始 HTML。
func markdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

// body 按内容类型渲染条目正文；html 已在抓取阶段清洗。
func body(e model.Entry) template.HTML {
	if strings.TrimSpace(e.Content) == "" {
		return ""
	}
	switch e.ContentType {
	case model.ContentMarkdown:
		return markdown(e.Content)
	case model.ContentHTML:
		return template.HTML(e.Content)
	default:
		return template.HTML("<p>" + template.HTMLEscapeString(e.Content) + "</p>")
	}
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
