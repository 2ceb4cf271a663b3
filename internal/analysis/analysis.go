// 包 analysis 负责单条更新的分类/摘要：
// - Analyzer 为注入点，Analyze 永不返回错误，失败时给出默认结果
// - Service 通过 Completer（LLM 传输层）获取 JSON，再经 Enhance 规范化与补全
// - Summarize 将各条摘要汇总为执行摘要
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
)

// Input 为单条分析请求。
type Input struct {
	Content    string
	Source     string
	Title      string
	SourceType string
	Metadata   model.SourceMetadata
}

// Analyzer 对单条内容给出结构化分析；实现必须吞掉所有错误。
type Analyzer interface {
	Analyze(ctx context.Context, in Input) model.Analysis
}

// Completer 为文本补全传输层。
//
//go:generate mockgen -destination=../../mocks/mock_completer.go -package=mocks github.com/ekbrothers/aggregated-devops-rss-ai/internal/analysis Completer
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ErrNoCompleter 表示未配置补全服务（例如缺少 API key）。
var ErrNoCompleter = errors.New("no completer configured")

// maxPromptContent 为提示词中正文的截断长度（字节）。
const maxPromptContent = 12000

type Options struct {
	MaxTokens  int
	Timeout    time.Duration
	Synthesize bool
}

// Service 为默认 Analyzer 实现。completer 可以为 nil，此时仅输出默认结果（可选启发式补全）。
type Service struct {
	completer Completer
	opts      Options
}

var _ Analyzer = (*Service)(nil)

func New(c Completer, opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	return &Service{completer: c, opts: opts}
}

// Analyze 调用补全服务并合并结果；任何失败都退化为默认结果。
func (s *Service) Analyze(ctx context.Context, in Input) model.Analysis {
	a, err := s.request(ctx, in)
	if err != nil {
		if !errors.Is(err, ErrNoCompleter) {
			logx.Warnf("分析失败，使用默认结果：%s 错误=%v", in.Title, err)
		}
		return s.fallback(in)
	}
	return Enhance(a, in, s.opts.Synthesize)
}

// fallback 返回默认结果；开启补全时由正文启发式填充列表并重新推导分类。
func (s *Service) fallback(in Input) model.Analysis {
	a := Default(in.SourceType)
	if s.opts.Synthesize {
		a.Categories = nil
	}
	return Enhance(a, in, s.opts.Synthesize)
}

func (s *Service) request(ctx context.Context, in Input) (model.Analysis, error) {
	if s.completer == nil {
		return model.Analysis{}, ErrNoCompleter
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	reply, err := s.completer.Complete(ctx, buildPrompt(in), s.opts.MaxTokens)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("complete: %w", err)
	}
	return parseResponse(reply)
}

// Summarize 将各条摘要汇总为 3-4 句执行摘要；失败或无内容时返回兜底文案。
func (s *Service) Summarize(ctx context.Context, summaries []string) string {
	var kept []string
	for _, v := range summaries {
		v = strings.TrimSpace(v)
		if v == "" || v == model.NoSummary {
			continue
		}
		kept = append(kept, "- "+v)
	}
	if len(kept) == 0 || s.completer == nil {
		return model.NoExecutiveSummary
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	prompt := "Consolidate the following DevOps update summaries into a concise executive summary " +
		"of 3-4 sentences for engineering leadership. Reply with the summary text only.\n\n" +
		strings.Join(kept, "\n")
	reply, err := s.completer.Complete(ctx, prompt, s.opts.MaxTokens)
	if err != nil {
		logx.Warnf("执行摘要生成失败：%v", err)
		return model.NoExecutiveSummary
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return model.NoExecutiveSummary
	}
	return reply
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// Default 返回分类失败时的默认结果。
func Default(sourceType string) model.Analysis {
	a := model.Analysis{
		Summary:          model.NoSummary,
		ImpactLevel:      model.ImpactLow,
		KeyChanges:       []string{},
		ActionItems:      []string{},
		AffectedServices: []string{},
		BreakingChanges:  []string{},
		SecurityUpdates:  []string{},
		Deprecations:     []string{},
		NewFeatures:      []string{},
		Categories:       []string{model.GeneralCategory},
		PlatformStatus:   model.UnknownStatus,
	}
	if l := registry.Label(sourceType); l != "" {
		a.Categories = []string{l}
	}
	return a
}

func buildPrompt(in Input) string {
	body := in.Content
	if len(body) > maxPromptContent {
		body = strings.ToValidUTF8(body[:maxPromptContent], "")
	}
	var b strings.Builder
	b.WriteString("Analyze this DevOps update and provide a comprehensive summary, focusing on critical information for DevOps engineers.\n\n")
	fmt.Fprintf(&b, "Source: %s\n", in.Source)
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	if in.SourceType != "" {
		fmt.Fprintf(&b, "Source Type: %s\n", in.SourceType)
	}
	if in.Metadata.StatusURL != "" {
		fmt.Fprintf(&b, "Status Page: %s\n", in.Metadata.StatusURL)
	}
	fmt.Fprintf(&b, "Content: %s\n\n", body)
	b.WriteString(`Respond with a single JSON object and nothing else, with these fields:
- summary: 3-5 sentence summary of the update
- impact_level: HIGH, MEDIUM or LOW depending on how urgently DevOps teams must act
- key_changes: list of the most important changes
- action_items: list of concrete actions DevOps teams should take
- affected_services: list of impacted tools, platforms or services
- breaking_changes: list of breaking changes
- security_updates: list of security fixes or advisories
- deprecations: list of deprecations
- new_features: list of new features
- categories: list of short category tags
- platform_status: current platform status if mentioned, otherwise "Unknown"`)
	return b.String()
}
