// 包 digest 将聚合结果组装为渲染层的唯一输入 model.Digest：
// 逐条分析、收集行动项与参考资源、生成执行摘要。
package digest

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/analysis"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

// Summarizer 生成执行摘要；analysis.Service 实现该接口。
type Summarizer interface {
	Summarize(ctx context.Context, summaries []string) string
}

// Recorder 接收每条分析结果（指标）。
type Recorder interface {
	Analyzed(impact string)
}

// Builder 组装 Digest。Summarizer/Recorder 可为空。
type Builder struct {
	Analyzer   analysis.Analyzer
	Summarizer Summarizer
	Recorder   Recorder
	Now        func() time.Time
}

// Build 对每条条目恰好分析一次，并返回完整的 Digest（输入切片不被修改）。
func (b *Builder) Build(ctx context.Context, w model.Window, entries []model.Entry) model.Digest {
	out := make([]model.Entry, len(entries))
	copy(out, entries)

	summaries := make([]string, 0, len(out))
	var actions []string
	seenAction := map[string]struct{}{}
	providers := map[string]struct{}{}
	high := 0
	for i := range out {
		e := &out[i]
		a := b.Analyzer.Analyze(ctx, analysis.Input{
			Content:    e.Content,
			Source:     sourceLabel(*e),
			Title:      e.Title,
			SourceType: e.SourceType,
			Metadata:   e.SourceMetadata,
		})
		e.Analysis = &a
		if b.Recorder != nil {
			b.Recorder.Analyzed(a.ImpactLevel)
		}
		if a.ImpactLevel == model.ImpactHigh {
			high++
		}
		if e.ProviderName != "" {
			providers[e.ProviderName] = struct{}{}
		}
		summaries = append(summaries, a.Summary)
		for _, item := range a.ActionItems {
			if _, ok := seenAction[item]; ok {
				continue
			}
			seenAction[item] = struct{}{}
			actions = append(actions, item)
		}
		logx.Debugf("已分析：%s 影响=%s", e.Title, a.ImpactLevel)
	}

	exec := model.NoExecutiveSummary
	if b.Summarizer != nil && len(out) > 0 {
		exec = b.Summarizer.Summarize(ctx, summaries)
	}
	if actions == nil {
		actions = []string{}
	}
	return model.Digest{
		Window:              w,
		Entries:             out,
		ExecutiveSummary:    exec,
		ActionItems:         actions,
		AdditionalResources: Resources(out),
		Stats: model.Stats{
			Entries:     len(out),
			HighImpact:  high,
			Providers:   len(providers),
			GeneratedAt: b.now().UTC(),
		},
	}
}

// Resources 收集参考链接：每个 provider 的文档链接（首条条目链接）与状态页，按首次出现去重。
func Resources(entries []model.Entry) []model.Resource {
	out := []model.Resource{}
	seen := map[string]struct{}{}
	add := func(name, link string) {
		if link == "" || link == "#" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, model.Resource{Name: name, Link: link})
	}
	for _, e := range entries {
		if e.ProviderName != "" {
			add(titleCase(e.ProviderName)+" Documentation", e.Link)
		}
		if e.SourceMetadata.StatusURL != "" {
			name := e.SourceMetadata.Name
			if name == "" {
				name = titleCase(e.ProviderName)
			}
			add(name+" Status", e.SourceMetadata.StatusURL)
		}
	}
	return out
}

func sourceLabel(e model.Entry) string {
	if e.SourceMetadata.Name != "" {
		return e.SourceMetadata.Name
	}
	return e.ProviderName
}

// titleCase 将 "google-cloud" 转为 "Google Cloud"。
func titleCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, p := range parts {
		r, n := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[n:]
	}
	return strings.Join(parts, " ")
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
