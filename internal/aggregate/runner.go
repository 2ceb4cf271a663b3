// 包 aggregate 负责主流程编排：
// - 按 manual 分派到订阅/网页抓取器（有界并发）
// - 补齐来源信息，按时间窗口与关键词过滤
// - 按发布时间倒序输出；分析由调用方在之后进行
package aggregate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
)

// Fetcher 为来源抓取器：返回归一化后的条目（不含来源信息与分析）。
type Fetcher interface {
	Fetch(ctx context.Context, src registry.Source) ([]model.Entry, error)
}

// Recorder 接收每个来源的处理结果（指标）。
type Recorder interface {
	SourceFetched(source string, kept int, err error)
}

// Options 为 Runner 构造参数。
type Options struct {
	Feeds       Fetcher
	Pages       Fetcher
	Window      model.Window
	Concurrency int
	Recorder    Recorder
}

// Runner 聚合执行器；窗口在构造时确定，运行期间不变。
type Runner struct {
	feeds       Fetcher
	pages       Fetcher
	window      model.Window
	concurrency int
	rec         Recorder
}

// New 创建 Runner。
func New(opts Options) *Runner {
	n := opts.Concurrency
	if n <= 0 {
		n = 1
	}
	return &Runner{
		feeds:       opts.Feeds,
		pages:       opts.Pages,
		window:      opts.Window,
		concurrency: n,
		rec:         opts.Recorder,
	}
}

// Window 返回本次运行的时间窗口。
func (r *Runner) Window() model.Window { return r.window }

// Aggregate 处理注册表中的全部来源。单个来源失败（含 panic）只记录日志并跳过。
func (r *Runner) Aggregate(ctx context.Context, reg *registry.Registry) []model.Entry {
	sources := reg.Sources()
	logx.Infof("开始聚合：来源=%d 并发=%d 窗口=%s", len(sources), r.concurrency, r.window.Label())

	buf := newResultBuffer(len(sources))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			list, err := r.processSource(ctx, src)
			if err != nil {
				logx.With("source", src.Name, "url", src.URL).Warn("来源处理失败", "err", err)
			} else {
				logx.Infof("[%s] 完成：保留 %d 条", src.Name, len(list))
			}
			if r.rec != nil {
				r.rec.SourceFetched(src.Name, len(list), err)
			}
			buf.Put(i, list)
			return nil
		})
	}
	_ = g.Wait()

	out := buf.Snapshot()
	logx.Infof("聚合完成：共 %d 条", len(out))
	return out
}

// processSource 抓取单个来源并过滤；panic 转为 error。
func (r *Runner) processSource(ctx context.Context, src registry.Source) (out []model.Entry, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	f := r.feeds
	if src.Manual {
		f = r.pages
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher for manual=%v", src.Manual)
	}
	entries, err := f.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	meta := model.SourceMetadata{Name: src.Name, StatusURL: src.StatusURL, Type: src.Category}
	dropped := 0
	for _, e := range entries {
		e.ProviderName = src.ProviderName
		e.SourceType = src.Category
		e.SourceMetadata = meta
		if !r.window.Contains(e.Published) {
			dropped++
			continue
		}
		if !matchKeywords(e, src.FilterKeywords) {
			dropped++
			continue
		}
		out = append(out, e)
	}
	if dropped > 0 {
		logx.Debugf("[%s] 过滤 %d 条（窗口外或不含关键词）", src.Name, dropped)
	}
	return out, nil
}

// matchKeywords 在标题与正文中做大小写不敏感的子串匹配；无关键词时全部保留。
func matchKeywords(e model.Entry, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	hay := strings.ToLower(e.Title + " " + e.Content)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(hay, k) {
			return true
		}
	}
	return false
}
