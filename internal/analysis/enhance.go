package analysis

import (
	"sort"
	"strings"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/content"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
)

// maxSynthesized 为每个列表启发式补全的上限。
const maxSynthesized = 5

// 启发式关键词（小写子串匹配）。
var (
	changeWords   = []string{"add", "remove", "update", "change", "fix", "improve", "deprecate", "introduce"}
	actionWords   = []string{"required", "must", "should", "need to", "recommended", "ensure", "upgrade to"}
	securityWords = []string{"security", "vulnerab", "cve-", "exploit", "patch"}
	featureWords  = []string{"feature", "introduc", "now support", "now available"}
)

// Enhance 规范化并补全分析结果：
//   - impact_level 转大写，非法值视为 LOW
//   - summary 为空时使用兜底文案，platform_status 默认 Unknown
//   - synthesize 为真时，空的 key_changes/action_items/security_updates/new_features 由正文句子补全
//   - categories 为空时按来源分类与各列表推导；结果去重排序，至少为 ["General"]
func Enhance(a model.Analysis, in Input, synthesize bool) model.Analysis {
	a.Summary = strings.TrimSpace(a.Summary)
	if a.Summary == "" {
		a.Summary = model.NoSummary
	}
	a.ImpactLevel = strings.ToUpper(strings.TrimSpace(a.ImpactLevel))
	switch a.ImpactLevel {
	case model.ImpactHigh, model.ImpactMedium, model.ImpactLow:
	default:
		a.ImpactLevel = model.ImpactLow
	}
	a.PlatformStatus = strings.TrimSpace(a.PlatformStatus)
	if a.PlatformStatus == "" {
		a.PlatformStatus = model.UnknownStatus
	}

	a.KeyChanges = clean(a.KeyChanges)
	a.ActionItems = clean(a.ActionItems)
	a.AffectedServices = clean(a.AffectedServices)
	a.BreakingChanges = clean(a.BreakingChanges)
	a.SecurityUpdates = clean(a.SecurityUpdates)
	a.Deprecations = clean(a.Deprecations)
	a.NewFeatures = clean(a.NewFeatures)
	a.Categories = clean(a.Categories)

	if synthesize {
		sentences := splitSentences(plain(in))
		fill(&a.KeyChanges, sentences, changeWords)
		fill(&a.ActionItems, sentences, actionWords)
		fill(&a.SecurityUpdates, sentences, securityWords)
		fill(&a.NewFeatures, sentences, featureWords)
	}

	if len(a.Categories) == 0 {
		a.Categories = deriveCategories(a, in)
	}
	a.Categories = dedupSorted(a.Categories)
	if len(a.Categories) == 0 {
		a.Categories = []string{model.GeneralCategory}
	}
	return a
}

func deriveCategories(a model.Analysis, in Input) []string {
	var out []string
	if l := registry.Label(in.SourceType); l != "" {
		out = append(out, l)
	}
	if len(a.BreakingChanges) > 0 {
		out = append(out, "Breaking Change")
	}
	if len(a.SecurityUpdates) > 0 {
		out = append(out, "Security")
	}
	if len(a.NewFeatures) > 0 {
		out = append(out, "New Feature")
	}
	lc := strings.ToLower(in.Content)
	if strings.Contains(lc, "performance") || strings.Contains(lc, "optimization") {
		out = append(out, "Performance")
	}
	if strings.Contains(lc, "api") {
		out = append(out, "API")
	}
	if strings.Contains(lc, "deprecat") {
		out = append(out, "Deprecation")
	}
	return out
}

// fill 仅在 dst 为空时，挑选包含任一关键词的句子。
func fill(dst *[]string, sentences []string, words []string) {
	if len(*dst) > 0 {
		return
	}
	for _, s := range sentences {
		if len(*dst) >= maxSynthesized {
			return
		}
		ls := strings.ToLower(s)
		for _, w := range words {
			if strings.Contains(ls, w) {
				*dst = append(*dst, s)
				break
			}
		}
	}
}

func plain(in Input) string {
	if in.Content == "" {
		return ""
	}
	if strings.Contains(in.Content, "<") {
		return content.Text(in.Content)
	}
	return in.Content
}

func splitSentences(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		p = strings.TrimLeft(p, "-*# ")
		if len(p) < 8 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// clean 去除空白项，nil 归一为空切片。
func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
