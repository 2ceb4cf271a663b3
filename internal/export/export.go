// 包 export 负责机器可读导出：将本期 Digest 写为 data.json。
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

// DefaultMax 为导出条目数的默认上限。
const DefaultMax = 150

// Cap 按上限截断条目（条目已按时间倒序），统计按导出的条目重新计算。
// max <= 0 时使用 DefaultMax。
func Cap(d model.Digest, max int) model.Digest {
	if max <= 0 {
		max = DefaultMax
	}
	if len(d.Entries) > max {
		d.Entries = d.Entries[:max]
	}
	if d.Entries == nil {
		d.Entries = []model.Entry{}
	}
	d.Stats.Entries, d.Stats.HighImpact, d.Stats.Providers = recount(d.Entries)
	return d
}

func recount(entries []model.Entry) (n, high, providers int) {
	seen := map[string]struct{}{}
	for _, e := range entries {
		if e.Analysis != nil && e.Analysis.ImpactLevel == model.ImpactHigh {
			high++
		}
		if e.ProviderName != "" {
			seen[e.ProviderName] = struct{}{}
		}
	}
	return len(entries), high, len(seen)
}

// ToJSON 将 d（截断后）写入 path，带缩进格式。
func ToJSON(path string, d model.Digest, max int) error {
	out := Cap(d, max)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
