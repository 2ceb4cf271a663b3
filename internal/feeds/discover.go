package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/fetch"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/logx"
)

// 站点根下常见的订阅端点，按顺序探测。
var commonEndpoints = []string{
	"/feed", "/feed.xml", "/index.xml", "/atom.xml", "/rss.xml", "/rss",
	"/blog/feed", "/blog/index.xml", "/changelog.rss", "/feed.json",
}

// Discover 在 URL 返回 HTML 时寻找真正的订阅地址：
// 先解析页面中的 <link rel="alternate">，再探测常见端点。
func Discover(ctx context.Context, cl *fetch.Client, pageURL string, page []byte) (string, error) {
	if found := linkAlternate(pageURL, page); found != "" && looksLikeFeed(ctx, cl, found) {
		logx.Debugf("从 <link> 发现订阅：%s", found)
		return found, nil
	}
	for _, ep := range commonEndpoints {
		u := joinURL(pageURL, ep)
		if u == pageURL {
			continue
		}
		logx.Debugf("探测候选订阅：%s", u)
		if looksLikeFeed(ctx, cl, u) {
			return u, nil
		}
	}
	return "", fmt.Errorf("no feed discovered for %s", pageURL)
}

// linkAlternate 返回页面声明的第一个订阅链接（绝对地址）。
func linkAlternate(pageURL string, page []byte) string {
	if len(page) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	var found string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		typ := strings.ToLower(s.AttrOr("type", ""))
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || !strings.Contains(rel, "alternate") {
			return true
		}
		if strings.Contains(typ, "rss") || strings.Contains(typ, "atom") || strings.Contains(typ, "feed+json") {
			found = joinURL(pageURL, href)
			return false
		}
		return true
	})
	return found
}

// looksLikeFeed 根据 Content-Type 与内容前缀粗略判断 URL 是否为订阅。
func looksLikeFeed(ctx context.Context, cl *fetch.Client, feedURL string) bool {
	prCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	resp, err := cl.Get(prCtx, feedURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "xml") {
		return true
	}
	lb := bytes.ToLower(head)
	if bytes.Contains(lb, []byte("<rss")) || bytes.Contains(lb, []byte("<feed")) || bytes.Contains(lb, []byte("<rdf")) {
		return true
	}
	return bytes.Contains(lb, []byte("jsonfeed.org/version"))
}

// joinURL 将相对路径解析为绝对 URL。
func joinURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return base + ref
	}
	return u.ResolveReference(ru).String()
}
