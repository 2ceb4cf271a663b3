// 包 content 按内容类型清洗正文：
// - plain：去除全部标记，仅保留文本（空白归一）
// - html：保留结构，按 bluemonday UGC 白名单清洗
// - markdown：原样返回，交由渲染层处理
package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

// unsafeTags 为提取纯文本前整体删除的元素。
const unsafeTags = "script, style, iframe, object, embed, noscript"

var policy = bluemonday.UGCPolicy()

// Clean 根据 contentType 清洗 raw；未知类型按 html 处理。
func Clean(raw, contentType string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	switch contentType {
	case model.ContentMarkdown:
		return raw
	case model.ContentPlain:
		return Text(raw)
	default:
		return Sanitize(raw)
	}
}

// Text 提取纯文本。非 HTML 输入原样归一空白后返回。
func Text(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapse(raw)
	}
	doc.Find(unsafeTags).Remove()
	return collapse(doc.Text())
}

// Sanitize 返回清理后的 HTML 片段（bluemonday UGC 策略）：
// 移除脚本类元素与事件属性，链接仅保留 http/https/mailto 与相对地址。
func Sanitize(raw string) string {
	return strings.TrimSpace(policy.Sanitize(raw))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
