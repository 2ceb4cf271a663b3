// 命令行入口：
// - 加载 .env、settings.yaml、sources.yaml 与 rules.yaml
// - 初始化日志、HTTP 客户端、时间窗口与抓取器
// - 聚合、分析、渲染 index.html/feed.xml，导出 data.json，按需归档与写指标
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/aggregate"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/analysis"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/config"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/digest"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/export"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/feeds"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/fetch"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/metrics"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/render"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/rules"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/scrape"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/store"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/window"
)

func main() {
	var (
		configPath  = flag.String("config", "settings.yaml", "path to settings.yaml")
		sourcesPath = flag.String("sources", "sources.yaml", "path to sources.yaml")
		rulesPath   = flag.String("rules", "rules.yaml", "path to rules.yaml (optional)")
		exportPath  = flag.String("export", "", "export json path (default OUTPUT_DIR/data.json)")
		outDir      = flag.String("out", "", "output directory (overrides OUTPUT_DIR)")
		issues      = flag.Bool("issues", false, "print archived issues from ARCHIVE.dsn and exit")
	)
	flag.Parse()
	started := time.Now()

	// 1) .env 可选，不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	// 2) 配置与来源清单：失败即退出
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *exportPath == "" {
		*exportPath = filepath.Join(cfg.OutputDir, "data.json")
	}
	logx.Init(logx.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Locale: cfg.LogLocale, Color: cfg.LogColor})

	ctx := context.Background()
	if *issues {
		// 调试：仅列出归档并退出
		dsn := cfg.Archive.DSN
		if dsn == "" {
			dsn = "./digest.db"
		}
		if err := printIssues(ctx, dsn, os.Stdout); err != nil {
			log.Fatalf("list issues: %v", err)
		}
		return
	}

	reg, err := registry.Load(*sourcesPath)
	if err != nil {
		log.Fatalf("load sources: %v", err)
	}
	var rl *rules.Rules
	if *rulesPath != "" {
		if r, err := rules.Load(*rulesPath); err == nil {
			rl = r
		} else {
			logx.Warnf("加载规则失败，使用内置选择器：%v", err)
		}
	}

	// 3) HTTP 客户端（含代理与重试）
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.HTTPTimeout(),
		Retry:      cfg.Concurrency.Retry,
		UserAgent:  cfg.Scrape.UserAgent,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}

	// 4) 时间窗口：每次运行只计算一次
	calc, err := window.FromConfig(cfg)
	if err != nil {
		log.Fatalf("window: %v", err)
	}
	w := calc.Compute(time.Now())
	logx.Infof("时间窗口：%s（策略=%s）", w.Label(), cfg.Window.Policy)

	m := metrics.New()

	// 5) 聚合
	run := aggregate.New(aggregate.Options{
		Feeds:       feeds.New(cl),
		Pages:       scrape.New(cl, rl, cfg.Scrape.RespectRobots),
		Window:      w,
		Concurrency: cfg.Concurrency.Fetch,
		Recorder:    m,
	})
	entries := run.Aggregate(ctx, reg)

	// 6) 分析：未配置 API key 时只输出默认结果
	var completer analysis.Completer
	if cfg.Classifier.APIKey != "" {
		completer = analysis.NewAnthropic(analysis.AnthropicOptions{
			Endpoint: cfg.Classifier.Endpoint,
			Model:    cfg.Classifier.Model,
			APIKey:   cfg.Classifier.APIKey,
			Timeout:  cfg.ClassifierTimeout(),
			Retry:    cfg.Concurrency.Retry,
		})
	} else {
		logx.Warnf("未配置 ANTHROPIC_API_KEY，跳过外部分析")
	}
	svc := analysis.New(completer, analysis.Options{
		MaxTokens:  cfg.Classifier.MaxTokens,
		Timeout:    cfg.ClassifierTimeout(),
		Synthesize: cfg.SynthesizeEnabled(),
	})
	b := &digest.Builder{Analyzer: svc, Summarizer: svc, Recorder: m}
	d := b.Build(ctx, w, entries)

	// 7) 渲染与导出
	opts := render.Options{SiteTitle: cfg.SiteTitle, SiteURL: cfg.SiteURL}
	if p, err := render.WriteHTML(cfg.OutputDir, d, opts); err != nil {
		logx.Errorf("渲染 HTML 失败：%v", err)
		os.Exit(1)
	} else {
		logx.Infof("已生成 %s", p)
	}
	if p, err := render.WriteAtom(cfg.OutputDir, d, opts); err != nil {
		logx.Errorf("渲染 Atom 失败：%v", err)
	} else {
		logx.Infof("已生成 %s", p)
	}
	if n, err := render.CopyIcons(cfg.AssetsDir, cfg.OutputDir); err != nil {
		logx.Warnf("复制图标失败：%v", err)
	} else {
		logx.Debugf("已复制 %d 个图标", n)
	}
	if err := export.ToJSON(*exportPath, d, cfg.MaxExport); err != nil {
		logx.Errorf("导出 JSON 失败：%v", err)
	} else {
		logx.Infof("已导出 %s", *exportPath)
	}

	// 8) 归档（只写）
	if cfg.Archive.Enabled {
		if err := archive(ctx, cfg.Archive, d); err != nil {
			logx.Warnf("归档失败：%v", err)
		}
	}

	// 9) 指标
	m.RunFinished(started, len(d.Entries))
	if cfg.MetricsFile != "" {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			logx.Warnf("写入指标文件失败：%v", err)
		}
	}
	logx.Infof("完成：条目=%d 高影响=%d 来源平台=%d 用时=%s",
		d.Stats.Entries, d.Stats.HighImpact, d.Stats.Providers, time.Since(started).Round(time.Millisecond))
}

// archive 写入本期；ResetOnStart 时先清空历史。
func archive(ctx context.Context, ac config.Archive, d model.Digest) error {
	st, err := store.OpenSQLite(ac.DSN)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer st.Close()
	if ac.ResetOnStart {
		if err := st.Reset(ctx); err != nil {
			return fmt.Errorf("reset archive: %w", err)
		}
		logx.Infof("已清理归档表（issues/issue_entries）")
	}
	id, err := st.SaveIssue(ctx, d)
	if err != nil {
		return fmt.Errorf("save issue: %w", err)
	}
	logx.Infof("已归档本期：%s", id)
	return nil
}

// printIssues 按窗口倒序输出归档列表及每期条目数。
func printIssues(ctx context.Context, dsn string, w io.Writer) error {
	st, err := store.OpenSQLite(dsn)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer st.Close()
	list, err := st.ListIssues(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "no archived issues")
		return nil
	}
	for _, it := range list {
		n, err := st.CountEntries(ctx, it.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  %s - %s  entries=%d high=%d generated=%s\n",
			it.ID,
			it.WindowStart.Format("2006-01-02"), it.WindowEnd.Format("2006-01-02"),
			n, it.HighImpact, it.GeneratedAt.Format(time.RFC3339))
	}
	return nil
}
