package effects

import (
	"sync"
	"sync/atomic"
	"time"
)

// Op 指标操作类型
type Op string

const (
	OpPush    Op = "push"
	OpProcess Op = "process"
)

// latencyStats 延迟统计
type latencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func (s *latencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

// Snapshot 延迟统计快照
type Snapshot struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

func (s *latencyStats) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Count: s.count, Min: s.min, Max: s.max}
	if s.count > 0 {
		snap.Avg = s.total / time.Duration(s.count)
	}
	return snap
}

// Metrics 队列性能指标收集器
type Metrics struct {
	totalTasks      atomic.Int64
	successfulTasks atomic.Int64
	failedTasks     atomic.Int64
	retriedTasks    atomic.Int64

	pushLatency    *latencyStats
	processLatency *latencyStats
}

// NewMetrics 创建指标收集器
func NewMetrics() *Metrics {
	return &Metrics{
		pushLatency:    &latencyStats{},
		processLatency: &latencyStats{},
	}
}

// RecordSuccess 记录成功操作
func (m *Metrics) RecordSuccess(_ Op) {
	m.successfulTasks.Add(1)
	m.totalTasks.Add(1)
}

// RecordError 记录失败操作
func (m *Metrics) RecordError(_ Op) {
	m.failedTasks.Add(1)
	m.totalTasks.Add(1)
}

// RecordRetry 记录一次重试投递
func (m *Metrics) RecordRetry() {
	m.retriedTasks.Add(1)
}

// RecordPushLatency 记录投递延迟
func (m *Metrics) RecordPushLatency(d time.Duration) {
	m.pushLatency.record(d)
}

// RecordProcessLatency 记录处理延迟
func (m *Metrics) RecordProcessLatency(d time.Duration) {
	m.processLatency.record(d)
}

// Stats 指标汇总
type Stats struct {
	Total      int64    `json:"total"`
	Successful int64    `json:"successful"`
	Failed     int64    `json:"failed"`
	Retried    int64    `json:"retried"`
	Push       Snapshot `json:"push"`
	Process    Snapshot `json:"process"`
}

// Report 导出当前指标
func (m *Metrics) Report() Stats {
	return Stats{
		Total:      m.totalTasks.Load(),
		Successful: m.successfulTasks.Load(),
		Failed:     m.failedTasks.Load(),
		Retried:    m.retriedTasks.Load(),
		Push:       m.pushLatency.snapshot(),
		Process:    m.processLatency.snapshot(),
	}
}
