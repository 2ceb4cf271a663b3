// 包 rules 负责加载并提供页面抓取规则（rules.yaml），
// 以 provider 名（如 default/hashicorp/openai）组织 CSS 选择器，用于 manual 来源的正文/标题/日期/链接抽取。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 默认表达式，语法见 scrape 包：支持 "选择器@属性" 与 "||" 回退。
const (
	DefaultTitle = "h1||h2"
	DefaultDate  = "time@datetime||.date@datetime||.published@datetime||time||.date||.published"
)

// Rules 表示全部规则集合：键为 provider 名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 描述单个 provider 的抽取规则：
// - content：正文容器选择器（article 未命中时尝试）
// - title/date/link：在容器内取值的表达式
type Preset struct {
	Content string `yaml:"content"`
	Title   string `yaml:"title"`
	Date    string `yaml:"date"`
	Link    string `yaml:"link"`
}

// WithDefaults 为空字段填入默认表达式。
func (p Preset) WithDefaults() Preset {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Date == "" {
		p.Date = DefaultDate
	}
	return p
}

func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	return &r, nil
}

// GetPreset 按 provider 名获取预设（不区分大小写），不存在则回退到 "default"。
// 第二个返回值表示是否命中了任何配置。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}.WithDefaults(), false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p.WithDefaults(), true
	}
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v.WithDefaults(), true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p.WithDefaults(), true
	}
	return Preset{}.WithDefaults(), false
}
