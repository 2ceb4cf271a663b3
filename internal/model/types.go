// 包 model 定义聚合流程中流转的数据模型（条目/分析结果/时间窗口/导出结构）。
package model

import "time"

// 内容类型：决定抓取后正文的清洗策略。
const (
	ContentHTML     = "html"
	ContentMarkdown = "markdown"
	ContentPlain    = "plain"
)

// 影响级别（统一大写）。
const (
	ImpactHigh   = "HIGH"
	ImpactMedium = "MEDIUM"
	ImpactLow    = "LOW"
)

// 兜底文案。
const (
	NoSummary          = "No summary available."
	NoExecutiveSummary = "No executive summary available."
	UnknownStatus      = "Unknown"
	GeneralCategory    = "General"
)

// Window 为本次运行的时间窗口，半开区间 [Start, End)。
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains 判断时间点是否落在窗口内（含 Start，不含 End）。
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Label 返回人读的区间文案，例如 "October 16, 2026 - October 23, 2026"。
func (w Window) Label() string {
	return w.Start.Format("January 02, 2006") + " - " + w.End.Format("January 02, 2006")
}

// SourceMetadata 为来源的透传元数据。
type SourceMetadata struct {
	Name      string `json:"name"`
	StatusURL string `json:"status_url,omitempty"`
	Type      string `json:"type"`
}

// Entry 为归一化后的候选新闻条目。
// Fetcher 只负责 Title/Link/Published/Content/ContentType，
// 来源信息由聚合器补齐，Analysis 由分类器填充。
type Entry struct {
	Title          string         `json:"title"`
	Link           string         `json:"link"`
	Published      time.Time      `json:"published"`
	Content        string         `json:"content"`
	ContentType    string         `json:"content_type"`
	ProviderName   string         `json:"provider_name"`
	SourceType     string         `json:"source_type"`
	SourceMetadata SourceMetadata `json:"source_metadata"`
	Analysis       *Analysis      `json:"analysis,omitempty"`
}

// Analysis 为分类器输出（经补全与规范化）。
type Analysis struct {
	Summary          string   `json:"summary"`
	ImpactLevel      string   `json:"impact_level"`
	KeyChanges       []string `json:"key_changes"`
	ActionItems      []string `json:"action_items"`
	AffectedServices []string `json:"affected_services"`
	BreakingChanges  []string `json:"breaking_changes"`
	SecurityUpdates  []string `json:"security_updates"`
	Deprecations     []string `json:"deprecations"`
	NewFeatures      []string `json:"new_features"`
	Categories       []string `json:"categories"`
	PlatformStatus   string   `json:"platform_status"`
}

// Resource 为 "Additional Resources" 中的一项。
type Resource struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// Stats 为一次运行的统计。
type Stats struct {
	Entries     int       `json:"entries"`
	HighImpact  int       `json:"high_impact"`
	Providers   int       `json:"providers"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Digest 为渲染层唯一的输入：已过滤排序并完成分析的条目及汇总信息。
type Digest struct {
	Window              Window     `json:"window"`
	Entries             []Entry    `json:"entries"`
	ExecutiveSummary    string     `json:"executive_summary"`
	ActionItems         []string   `json:"action_items"`
	AdditionalResources []Resource `json:"additional_resources"`
	Stats               Stats      `json:"stats"`
}
