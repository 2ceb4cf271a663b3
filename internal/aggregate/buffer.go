package aggregate

import (
	"sort"
	"sync"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

// resultBuffer 按来源下标收集结果：每个来源只写自己的槽位，
// Snapshot 按注册顺序合并，因此结果与并发度无关。
type resultBuffer struct {
	mu    sync.Mutex
	slots [][]model.Entry
}

func newResultBuffer(n int) *resultBuffer {
	return &resultBuffer{slots: make([][]model.Entry, n)}
}

func (b *resultBuffer) Put(i int, list []model.Entry) {
	b.mu.Lock()
	b.slots[i] = list
	b.mu.Unlock()
}

// Snapshot 返回合并后的副本，按发布时间倒序（稳定排序，零值时间排最后）。
func (b *resultBuffer) Snapshot() []model.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.slots {
		n += len(s)
	}
	out := make([]model.Entry, 0, n)
	for _, s := range b.slots {
		out = append(out, s...)
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(list []model.Entry) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Published, list[j].Published
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}
