// 包 registry 负责加载来源清单（sources.yaml）：
// - 顶层为 分类 -> 来源列表，分类与来源顺序按文件书写顺序保留
// - 补齐 content_type 默认值与分类（显式字段 > 分组键 > 启发式）
// 加载失败是本程序唯一的致命错误。
package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

// AutoCategory 作为分组键时，分类由启发式推导。
const AutoCategory = "auto"

// 已知分类。
const (
	TerraformProviders = "terraform_providers"
	VCSPlatforms       = "vcs_platforms"
	AITools            = "ai_tools"
	CloudProviders     = "cloud_providers"
	DevOpsTools        = "devops_tools"
	Other              = "other"
)

// Source 为单个来源配置，运行期只读。
type Source struct {
	URL            string   `yaml:"url"`
	ProviderName   string   `yaml:"provider_name"`
	Name           string   `yaml:"name"`
	Title          string   `yaml:"title"`
	Manual         bool     `yaml:"manual"`
	ContentType    string   `yaml:"content_type"`
	Category       string   `yaml:"source_type"`
	FilterKeywords []string `yaml:"filter_keywords"`
	StatusURL      string   `yaml:"status_url"`
	// Selector 为抓取页面时的自定义内容选择器，优先级高于 rules.yaml 预设。
	Selector string `yaml:"selector"`
}

// Group 为同一分类下的来源集合。
type Group struct {
	Category string
	Sources  []Source
}

// Registry 为全部来源（保持文件顺序）。
type Registry struct {
	Groups []Group
}

// UnmarshalYAML 逐个读取映射节点，保证分组顺序稳定。
func (r *Registry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("registry: line %d: expected mapping of category -> sources", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var list []Source
		if err := val.Decode(&list); err != nil {
			return fmt.Errorf("registry: category %q: %w", key.Value, err)
		}
		r.Groups = append(r.Groups, Group{Category: key.Value, Sources: list})
	}
	return nil
}

// Load 读取并校验来源清单。
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(b)
}

// Parse 解析 YAML 内容并规范化每个来源。
func Parse(b []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal registry: %w", err)
	}
	if len(r.Groups) == 0 {
		return nil, errors.New("registry has no categories")
	}
	for gi := range r.Groups {
		g := &r.Groups[gi]
		for si := range g.Sources {
			if err := normalize(&g.Sources[si], g.Category); err != nil {
				return nil, fmt.Errorf("category %q source #%d: %w", g.Category, si+1, err)
			}
		}
	}
	return &r, nil
}

// Sources 以文件顺序平铺全部来源。
func (r *Registry) Sources() []Source {
	if r == nil {
		return nil
	}
	var out []Source
	for _, g := range r.Groups {
		out = append(out, g.Sources...)
	}
	return out
}

func normalize(s *Source, group string) error {
	s.URL = strings.TrimSpace(s.URL)
	if s.URL == "" {
		return errors.New("url is required")
	}
	s.ProviderName = strings.ToLower(strings.TrimSpace(s.ProviderName))
	if s.Name == "" {
		s.Name = s.Title
	}
	if s.Name == "" {
		s.Name = s.ProviderName
	}
	ct := strings.ToLower(strings.TrimSpace(s.ContentType))
	switch ct {
	case "":
		s.ContentType = InferContentType(s.URL)
	case model.ContentHTML, model.ContentMarkdown, model.ContentPlain:
		s.ContentType = ct
	default:
		return fmt.Errorf("unsupported content_type %q", s.ContentType)
	}
	if s.Category == "" {
		g := strings.TrimSpace(group)
		if g == "" || strings.EqualFold(g, AutoCategory) {
			s.Category = DeriveSourceType(s.ProviderName, s.URL)
		} else {
			s.Category = g
		}
	}
	return nil
}

// git 托管域名：这些来源的正文通常为 Markdown（release notes）。
var gitHosts = []string{"github.com", "gitlab.com", "bitbucket.org"}

// InferContentType 根据 URL 推断内容类型。
func InferContentType(u string) string {
	lu := strings.ToLower(u)
	for _, h := range gitHosts {
		if strings.Contains(lu, h) {
			return model.ContentMarkdown
		}
	}
	return model.ContentHTML
}

// heuristic 按顺序匹配，命中即返回。
var heuristic = []struct {
	category string
	tokens   []string
}{
	{TerraformProviders, []string{"terraform-provider", "terraform"}},
	{VCSPlatforms, []string{"github", "gitlab", "bitbucket", "azure-devops", "azuredevops"}},
	{AITools, []string{"openai", "anthropic", "copilot", "chatgpt", "claude", "gemini"}},
	{CloudProviders, []string{"aws", "amazon", "azure", "google-cloud", "googlecloud", "gcp", "cloud.google"}},
	{DevOpsTools, []string{"docker", "kubernetes", "k8s", "hashicorp", "jenkins", "ansible", "helm", "argo", "grafana", "prometheus"}},
}

// DeriveSourceType 由 provider 与 URL 推导分类，未命中返回 "other"。
func DeriveSourceType(provider, u string) string {
	p := strings.ToLower(provider)
	lu := strings.ToLower(u)
	for _, h := range heuristic {
		for _, t := range h.tokens {
			if strings.Contains(p, t) {
				return h.category
			}
		}
	}
	for _, h := range heuristic {
		for _, t := range h.tokens {
			if strings.Contains(lu, t) {
				return h.category
			}
		}
	}
	return Other
}

// Label 返回分类的人读标签，用于分析结果的兜底分类。
// 未知或 other 返回空串。
func Label(sourceType string) string {
	switch sourceType {
	case TerraformProviders:
		return "Terraform Provider"
	case VCSPlatforms:
		return "VCS Platform"
	case AITools:
		return "AI Tool"
	case CloudProviders:
		return "Cloud Provider"
	case DevOpsTools:
		return "DevOps Tool"
	}
	return ""
}
