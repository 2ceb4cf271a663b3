// 包 feeds 负责订阅来源（manual=false）的抓取与解析：
// - 使用 gofeed 解析 RSS/Atom/JSON Feed，逐条归一化为 model.Entry
// - URL 返回 HTML 时，尝试自动发现订阅地址（见 Discover）
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/content"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/fetch"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/registry"
)

// Fetcher 为订阅抓取器。Now 为空时使用 time.Now（测试可注入固定时钟）。
type Fetcher struct {
	Client *fetch.Client
	Now    func() time.Time
}

func New(cl *fetch.Client) *Fetcher {
	return &Fetcher{Client: cl}
}

// Fetch 抓取并解析 src 对应的订阅；单条目异常仅跳过该条目。
func (f *Fetcher) Fetch(ctx context.Context, src registry.Source) ([]model.Entry, error) {
	feed, err := f.parse(ctx, src.URL)
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		feed, err = f.parseDiscovered(ctx, src.URL)
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.Entry, 0, len(feed.Items))
	for i, it := range feed.Items {
		e, err := f.convert(it, src)
		if err != nil {
			logx.Warnf("[%s] 跳过第 %d 条：%v", src.Name, i+1, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *Fetcher) parse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, _, err := f.Client.GetBody(ctx, feedURL, 0)
	if err != nil {
		return nil, fmt.Errorf("GET feed %s: %w", feedURL, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return feed, nil
}

func (f *Fetcher) parseDiscovered(ctx context.Context, pageURL string) (*gofeed.Feed, error) {
	page, _, err := f.Client.GetBody(ctx, pageURL, 0)
	if err != nil {
		return nil, fmt.Errorf("GET page %s: %w", pageURL, err)
	}
	found, err := Discover(ctx, f.Client, pageURL, page)
	if err != nil {
		return nil, err
	}
	logx.Infof("订阅地址已发现：%s -> %s", pageURL, found)
	return f.parse(ctx, found)
}

// convert 归一化单个条目，panic 转为 error。
func (f *Fetcher) convert(it *gofeed.Item, src registry.Source) (e model.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed item: %v", r)
		}
	}()
	if it == nil {
		return e, errors.New("nil item")
	}
	e = model.Entry{
		Title:       strings.TrimSpace(it.Title),
		Link:        strings.TrimSpace(it.Link),
		ContentType: src.ContentType,
	}
	if e.Title == "" {
		e.Title = "No Title"
	}
	if e.Link == "" {
		e.Link = "#"
	}
	switch {
	case it.PublishedParsed != nil:
		e.Published = it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		e.Published = it.UpdatedParsed.UTC()
	default:
		e.Published = f.now().UTC()
		logx.Warnf("[%s] 条目缺少日期，使用当前时间：%s", src.Name, e.Title)
	}
	raw := it.Content
	if strings.TrimSpace(raw) == "" {
		raw = it.Description
	}
	e.Content = content.Clean(raw, src.ContentType)
	return e, nil
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
