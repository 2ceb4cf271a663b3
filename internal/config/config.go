// 包 config 负责加载与校验运行配置（settings.yaml），
// 先按 YAML 解析，再用环境变量覆盖，最后统一校验并填充默认值。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// 窗口策略。
const (
	PolicyCurrent   = "current"
	PolicyPrevious  = "previous"
	PolicyFortnight = "fortnight"
)

// Config 为运行期配置；来源清单在 sources.yaml（见 registry 包）。
type Config struct {
	SiteTitle   string      `yaml:"SITE_TITLE" env:"DIGEST_SITE_TITLE"`
	SiteURL     string      `yaml:"SITE_URL" env:"DIGEST_SITE_URL"`
	OutputDir   string      `yaml:"OUTPUT_DIR" env:"DIGEST_OUTPUT_DIR"`
	AssetsDir   string      `yaml:"ASSETS_DIR" env:"DIGEST_ASSETS_DIR"`
	MaxExport   int         `yaml:"MAX_EXPORT"`
	Window      Window      `yaml:"WINDOW"`
	Concurrency Concurrency `yaml:"CONCURRENCY"`
	Proxy       Proxy       `yaml:"PROXY"`
	Timeout     string      `yaml:"TIMEOUT"`
	Scrape      Scrape      `yaml:"SCRAPE"`
	Classifier  Classifier  `yaml:"CLASSIFIER"`
	Archive     Archive     `yaml:"ARCHIVE"`
	MetricsFile string      `yaml:"METRICS_FILE" env:"DIGEST_METRICS_FILE"`
	LogLevel    string      `yaml:"LOG_LEVEL" env:"DIGEST_LOG_LEVEL"`
	LogFormat   string      `yaml:"LOG_FORMAT" env:"DIGEST_LOG_FORMAT"` // text|json|pretty
	LogLocale   string      `yaml:"LOG_LOCALE"`                         // zh-CN|en
	LogColor    string      `yaml:"LOG_COLOR"`                          // auto|always|never
}

// Window 描述周期锚点：默认每周五 00:00 UTC。
type Window struct {
	Anchor string `yaml:"anchor" env:"DIGEST_WINDOW_ANCHOR"`
	Policy string `yaml:"policy" env:"DIGEST_WINDOW_POLICY"` // current|previous|fortnight
}

type Concurrency struct {
	Fetch int `yaml:"fetch"`
	Retry int `yaml:"retry"`
}

type Proxy struct {
	HTTP  string `yaml:"http" env:"HTTP_PROXY"`
	HTTPS string `yaml:"https" env:"HTTPS_PROXY"`
}

type Scrape struct {
	RespectRobots bool   `yaml:"respect_robots"`
	UserAgent     string `yaml:"user_agent" env:"DIGEST_UA"`
}

// Classifier 为外部文本分析服务（Anthropic Messages API）配置。
type Classifier struct {
	Endpoint   string `yaml:"endpoint" env:"ANTHROPIC_BASE_URL"`
	Model      string `yaml:"model" env:"ANTHROPIC_MODEL"`
	APIKey     string `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	MaxTokens  int    `yaml:"max_tokens"`
	Timeout    string `yaml:"timeout"`
	Synthesize *bool  `yaml:"synthesize"`
}

type Archive struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn" env:"DIGEST_ARCHIVE_DSN"`
	// ResetOnStart 为真时，写入本期前清空归档表。
	ResetOnStart bool `yaml:"reset_on_start"`
}

// Load 从文件读取 YAML，叠加环境变量后校验。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("read env overrides: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate 负责合法性检查与默认值设置。
func (c *Config) Validate() error {
	if c.MaxExport < 0 {
		return errors.New("MAX_EXPORT must be >= 0")
	}
	if c.MaxExport == 0 {
		c.MaxExport = 150
	}
	if c.SiteTitle == "" {
		c.SiteTitle = "DevOps Updates Digest"
	}
	if c.OutputDir == "" {
		c.OutputDir = "dist"
	}
	if c.AssetsDir == "" {
		c.AssetsDir = "assets/icons"
	}
	if c.Window.Anchor == "" {
		c.Window.Anchor = "friday"
	}
	if _, err := ParseWeekday(c.Window.Anchor); err != nil {
		return err
	}
	c.Window.Policy = strings.ToLower(strings.TrimSpace(c.Window.Policy))
	switch c.Window.Policy {
	case "":
		c.Window.Policy = PolicyCurrent
	case PolicyCurrent, PolicyPrevious, PolicyFortnight:
	default:
		return fmt.Errorf("unsupported WINDOW.policy: %s", c.Window.Policy)
	}
	if c.Concurrency.Fetch <= 0 {
		c.Concurrency.Fetch = 1
	}
	if c.Concurrency.Retry < 0 {
		c.Concurrency.Retry = 0
	}
	if c.Timeout == "" {
		c.Timeout = "25s"
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid TIMEOUT %q: %w", c.Timeout, err)
	}
	if c.Classifier.Endpoint == "" {
		c.Classifier.Endpoint = "https://api.anthropic.com"
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "claude-3-5-sonnet-latest"
	}
	if c.Classifier.MaxTokens <= 0 {
		c.Classifier.MaxTokens = 1000
	}
	if c.Classifier.Timeout == "" {
		c.Classifier.Timeout = "60s"
	}
	if _, err := time.ParseDuration(c.Classifier.Timeout); err != nil {
		return fmt.Errorf("invalid CLASSIFIER.timeout %q: %w", c.Classifier.Timeout, err)
	}
	if c.Classifier.Synthesize == nil {
		on := true
		c.Classifier.Synthesize = &on
	}
	if c.Archive.Enabled && c.Archive.DSN == "" {
		c.Archive.DSN = "./digest.db"
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// HTTPTimeout 返回抓取超时（已在 Validate 中校验）。
func (c *Config) HTTPTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// ClassifierTimeout 返回分析调用超时。
func (c *Config) ClassifierTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Classifier.Timeout)
	return d
}

// SynthesizeEnabled 是否启用启发式补全（key_changes/action_items 等）。
func (c *Config) SynthesizeEnabled() bool {
	return c.Classifier.Synthesize == nil || *c.Classifier.Synthesize
}

// ParseWeekday 解析英文星期名（大小写不敏感，支持三字母缩写）。
func ParseWeekday(s string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d, nil
		}
	}
	return time.Friday, fmt.Errorf("unknown weekday: %q", s)
}
