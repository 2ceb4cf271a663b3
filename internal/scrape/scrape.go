// 包 scrape 负责 manual 来源（网页）的抓取与正文抽取：
// - 编码转换（x/net/html/charset）后剥离 script/style/nav/header/footer
// - 正文容器选择链：article → 来源/rules.yaml 选择器 → main → readability → body
// - 每个容器生成一条 Entry；日期取不到时使用抓取时刻
// - 可选遵循 robots.txt
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/content"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/fetch"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/rules"
)

const chrome = "script, style, noscript, nav, header, footer"

// Fetcher 为网页抓取器。
type Fetcher struct {
	Client        *fetch.Client
	Rules         *rules.Rules
	RespectRobots bool
	Now           func() time.Time

	mu     sync.Mutex
	robots map[string]*robotstxt.Group // key: scheme://host
}

func New(cl *fetch.Client, rl *rules.Rules, respectRobots bool) *Fetcher {
	return &Fetcher{Client: cl, Rules: rl, RespectRobots: respectRobots}
}

// Fetch 抓取 src.URL 并抽取条目；被 robots.txt 禁止时返回空列表。
func (f *Fetcher) Fetch(ctx context.Context, src registry.Source) ([]model.Entry, error) {
	pageURL, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", src.URL, err)
	}
	if f.RespectRobots && !f.allowed(ctx, pageURL) {
		logx.Warnf("[%s] robots.txt 禁止抓取：%s", src.Name, src.URL)
		return nil, nil
	}
	body, header, err := f.Client.GetBody(ctx, src.URL, 0)
	if err != nil {
		return nil, fmt.Errorf("GET page %s: %w", src.URL, err)
	}
	page, err := decode(body, header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode page %s: %w", src.URL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", src.URL, err)
	}
	doc.Find(chrome).Remove()

	preset, _ := f.Rules.GetPreset(src.ProviderName)
	sel, fallbackTitle := f.selectContent(doc, page, pageURL, src, preset)
	if fallbackTitle == "" {
		fallbackTitle = src.Name
	}
	fetched := f.now().UTC()

	var out []model.Entry
	sel.Each(func(i int, s *goquery.Selection) {
		e, err := f.extract(s, src, preset, fallbackTitle, fetched)
		if err != nil {
			logx.Warnf("[%s] 跳过第 %d 个内容块：%v", src.Name, i+1, err)
			return
		}
		out = append(out, e)
	})
	return out, nil
}

// selectContent 依次尝试选择链，返回命中的容器集合以及可选的兜底标题。
func (f *Fetcher) selectContent(doc *goquery.Document, page []byte, pageURL *url.URL, src registry.Source, preset rules.Preset) (*goquery.Selection, string) {
	if s := doc.Find("article"); s.Length() > 0 {
		return s, ""
	}
	custom := src.Selector
	if custom == "" {
		custom = preset.Content
	}
	if custom != "" {
		if s := doc.Find(custom); s.Length() > 0 {
			return s, ""
		}
	}
	if s := doc.Find("main"); s.Length() > 0 {
		return s.First(), ""
	}
	if art, err := readability.FromReader(bytes.NewReader(page), pageURL); err == nil && strings.TrimSpace(art.Content) != "" {
		if rd, err := goquery.NewDocumentFromReader(strings.NewReader(art.Content)); err == nil {
			logx.Debugf("[%s] 使用 readability 抽取正文", src.Name)
			return rd.Find("body"), art.Title
		}
	}
	return doc.Find("body"), ""
}

// extract 由单个容器构造 Entry，panic 转为 error。
func (f *Fetcher) extract(s *goquery.Selection, src registry.Source, preset rules.Preset, fallbackTitle string, fetched time.Time) (e model.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed block: %v", r)
		}
	}()
	e = model.Entry{
		Title:       getVal(s, preset.Title),
		Link:        src.URL,
		Published:   fetched,
		ContentType: src.ContentType,
	}
	if e.Title == "" {
		e.Title = fallbackTitle
	}
	if e.Title == "" {
		e.Title = "Untitled"
	}
	if preset.Link != "" {
		if l := abs(src.URL, getVal(s, preset.Link)); l != "" {
			e.Link = l
		}
	}
	if raw := getVal(s, preset.Date); raw != "" {
		if t, perr := dateparse.ParseIn(raw, time.UTC); perr == nil {
			e.Published = t.UTC()
		} else {
			logx.Debugf("[%s] 无法解析日期 %q：%v", src.Name, raw, perr)
		}
	}
	switch src.ContentType {
	case model.ContentHTML:
		h, herr := s.Html()
		if herr != nil {
			return e, fmt.Errorf("render block: %w", herr)
		}
		e.Content = content.Clean(h, model.ContentHTML)
	default:
		e.Content = strings.Join(strings.Fields(s.Text()), " ")
	}
	return e, nil
}

// allowed 检查 robots.txt；获取失败视为允许。
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	key := u.Scheme + "://" + u.Host
	f.mu.Lock()
	g, ok := f.robots[key]
	f.mu.Unlock()
	if !ok {
		g = f.loadRobots(ctx, key)
		f.mu.Lock()
		if f.robots == nil {
			f.robots = map[string]*robotstxt.Group{}
		}
		f.robots[key] = g
		f.mu.Unlock()
	}
	if g == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return g.Test(path)
}

func (f *Fetcher) loadRobots(ctx context.Context, origin string) *robotstxt.Group {
	resp, err := f.Client.Get(ctx, origin+"/robots.txt")
	if err != nil {
		logx.Debugf("robots.txt 不可用（忽略）：%s %v", origin, err)
		return nil
	}
	defer resp.Body.Close()
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		logx.Debugf("robots.txt 解析失败（忽略）：%s %v", origin, err)
		return nil
	}
	return data.FindGroup(f.Client.UserAgent())
}

// decode 依据 Content-Type 与 <meta charset> 转换为 UTF-8。
func decode(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body, nil
	}
	return io.ReadAll(r)
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
