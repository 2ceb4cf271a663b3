// 包 metrics 收集单次运行的 Prometheus 指标，并以 textfile 形式落盘
// （node_exporter textfile collector 格式）。
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devops_digest"

// Metrics 持有独立的 Registry。
type Metrics struct {
	reg *prometheus.Registry

	sourceFetches *prometheus.CounterVec
	entriesKept   *prometheus.CounterVec
	analyses      *prometheus.CounterVec
	digestEntries prometheus.Gauge
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		sourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Source fetch attempts by result.",
		}, []string{"source", "result"}),
		entriesKept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_kept_total",
			Help:      "Entries that passed window and keyword filters, per source.",
		}, []string{"source"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyzed entries by impact level.",
		}, []string{"impact"}),
		digestEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "digest_entries",
			Help:      "Entries in the last generated digest.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	m.reg.MustRegister(m.sourceFetches, m.entriesKept, m.analyses, m.digestEntries, m.runDuration, m.lastRun)
	return m
}

// SourceFetched 记录单个来源的抓取结果。
func (m *Metrics) SourceFetched(source string, kept int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sourceFetches.WithLabelValues(source, result).Inc()
	m.entriesKept.WithLabelValues(source).Add(float64(kept))
}

// Analyzed 记录一次分析结果。
func (m *Metrics) Analyzed(impact string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(impact).Inc()
}

// RunFinished 记录运行耗时与本期条目数。
func (m *Metrics) RunFinished(started time.Time, entries int) {
	if m == nil {
		return
	}
	now := time.Now()
	m.runDuration.Set(now.Sub(started).Seconds())
	m.lastRun.Set(float64(now.Unix()))
	m.digestEntries.Set(float64(entries))
}

// Registry 返回内部注册表（测试与自定义导出用）。
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteFile 以文本格式原子写入 path。
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
