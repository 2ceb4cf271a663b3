package scrape

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// getVal 解析取值表达式，"||" 分隔多个候选，按先后尝试，例如
// "time@datetime||.date" 或 "a@href||@href"。
func getVal(scope *goquery.Selection, expr string) string {
	for _, p := range strings.Split(expr, "||") {
		if v := getValSingle(scope, strings.TrimSpace(p)); v != "" {
			return v
		}
	}
	return ""
}

// getValSingle 解析单个表达式：
// - "."：当前元素文本
// - "sel@attr" / "@attr"：属性
// - "sel"：首个匹配元素文本
func getValSingle(scope *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	if expr == "." {
		return strings.Join(strings.Fields(scope.Text()), " ")
	}
	if at := strings.Index(expr, "@"); at != -1 {
		sel := strings.TrimSpace(expr[:at])
		attr := strings.TrimSpace(expr[at+1:])
		if sel == "" {
			return strings.TrimSpace(scope.AttrOr(attr, ""))
		}
		el := scope.Find(sel).First()
		if el.Length() == 0 {
			return ""
		}
		return strings.TrimSpace(el.AttrOr(attr, ""))
	}
	el := scope.Find(expr).First()
	if el.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(el.Text()), " ")
}

// abs 将相对链接转换为绝对 URL。
func abs(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}
