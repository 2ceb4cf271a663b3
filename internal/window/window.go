// 包 window 计算每次运行的时间窗口：以每周固定锚点（默认周五 00:00 UTC）为边界。
package window

import (
	"fmt"
	"time"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/config"
	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

const week = 7 * 24 * time.Hour

// Calculator 按锚点与策略计算窗口。
type Calculator struct {
	anchor time.Weekday
	policy string
}

// New 创建计算器，policy 为 current/previous/fortnight 之一。
func New(anchor time.Weekday, policy string) (*Calculator, error) {
	switch policy {
	case "":
		policy = config.PolicyCurrent
	case config.PolicyCurrent, config.PolicyPrevious, config.PolicyFortnight:
	default:
		return nil, fmt.Errorf("unknown window policy %q", policy)
	}
	return &Calculator{anchor: anchor, policy: policy}, nil
}

// FromConfig 由配置构建计算器。
func FromConfig(c *config.Config) (*Calculator, error) {
	d, err := config.ParseWeekday(c.Window.Anchor)
	if err != nil {
		return nil, err
	}
	return New(d, c.Window.Policy)
}

// LastAnchor 返回不晚于 now 的最近一个锚点（UTC 零点）。
func (c *Calculator) LastAnchor(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	back := (int(now.Weekday()) - int(c.anchor) + 7) % 7
	return midnight.AddDate(0, 0, -back)
}

// Compute 返回半开区间窗口：
//   - current:   [last, last+7d)
//   - previous:  [last-7d, last)
//   - fortnight: [last-7d, last+7d)
func (c *Calculator) Compute(now time.Time) model.Window {
	last := c.LastAnchor(now)
	switch c.policy {
	case config.PolicyPrevious:
		return model.Window{Start: last.Add(-week), End: last}
	case config.PolicyFortnight:
		return model.Window{Start: last.Add(-week), End: last.Add(week)}
	default:
		return model.Window{Start: last, End: last.Add(week)}
	}
}
