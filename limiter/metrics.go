package limiter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
)

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	Resource      string                   `json:"resource"`
	TotalRequests int64                    `json:"total_requests"`
	Allowed       int64                    `json:"allowed"`
	Rejected      int64                    `json:"rejected"`
	Tokens        bucket.StatisticSnapshot `json:"tokens"`
	Available     int64                    `json:"available"` // 当前可用令牌
	Capacity      int64                    `json:"capacity"`  // 最大令牌数
	RejectRate    float64                  `json:"reject_rate"`
	LastResetAt   time.Time                `json:"last_reset_at"`
}

// MetricsCollector 单个资源的指标采集器，同时作为 bucket 的 StatisticCollector
type MetricsCollector interface {
	bucket.StatisticCollector

	RecordAllowed()
	RecordRejected()
	GetSnapshot() *MetricsSnapshot
	Reset()
}

type metricsCollector struct {
	*bucket.SimpleStatistic

	resource      string
	totalRequests atomic.Int64
	allowed       atomic.Int64
	rejected      atomic.Int64
	lastResetAt   time.Time
	mu            sync.RWMutex
}

// NewMetricsCollector 创建指标采集器
func NewMetricsCollector(resource string) MetricsCollector {
	return &metricsCollector{
		SimpleStatistic: bucket.NewSimpleStatistic(),
		resource:        resource,
		lastResetAt:     time.Now(),
	}
}

func (m *metricsCollector) RecordAllowed() {
	m.totalRequests.Add(1)
	m.allowed.Add(1)
}

func (m *metricsCollector) RecordRejected() {
	m.totalRequests.Add(1)
	m.rejected.Add(1)
}

func (m *metricsCollector) GetSnapshot() *MetricsSnapshot {
	total := m.totalRequests.Load()
	rejected := m.rejected.Load()

	var rejectRate float64
	if total > 0 {
		rejectRate = float64(rejected) / float64(total)
	}

	m.mu.RLock()
	lastResetAt := m.lastResetAt
	m.mu.RUnlock()

	return &MetricsSnapshot{
		Resource:      m.resource,
		TotalRequests: total,
		Allowed:       m.allowed.Load(),
		Rejected:      rejected,
		Tokens:        m.Snapshot(),
		RejectRate:    rejectRate,
		LastResetAt:   lastResetAt,
	}
}

func (m *metricsCollector) Reset() {
	m.totalRequests.Store(0)
	m.allowed.Store(0)
	m.rejected.Store(0)
	m.SimpleStatistic.Reset()

	m.mu.Lock()
	m.lastResetAt = time.Now()
	m.mu.Unlock()
}
