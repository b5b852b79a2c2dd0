package bucket

import (
	"sync/atomic"
)

// StatisticCollector 接收 bucket 使用事件。
// 实现必须并发安全且不能阻塞。
type StatisticCollector interface {
	RegisterConsumed(tokens int64)
	RegisterRejected(tokens int64)
	RegisterReturned(tokens int64)
	RegisterInterrupt()
	RegisterParkedNanos(nanos int64)
}

// StatisticSnapshot SimpleStatistic 计数快照
type StatisticSnapshot struct {
	Consumed    int64 `json:"consumed"`
	Rejected    int64 `json:"rejected"`
	Returned    int64 `json:"returned"`
	Interrupts  int64 `json:"interrupts"`
	ParkedNanos int64 `json:"parked_nanos"`
}

type noopStatistic struct{}

func (noopStatistic) RegisterConsumed(int64)    {}
func (noopStatistic) RegisterRejected(int64)    {}
func (noopStatistic) RegisterReturned(int64)    {}
func (noopStatistic) RegisterInterrupt()        {}
func (noopStatistic) RegisterParkedNanos(int64) {}

// NoopStatistic 丢弃所有事件
var NoopStatistic StatisticCollector = noopStatistic{}

// SimpleStatistic 进程内原子计数
type SimpleStatistic struct {
	consumed    atomic.Int64
	rejected    atomic.Int64
	returned    atomic.Int64
	interrupts  atomic.Int64
	parkedNanos atomic.Int64
}

func NewSimpleStatistic() *SimpleStatistic {
	return &SimpleStatistic{}
}

func (s *SimpleStatistic) RegisterConsumed(tokens int64)   { s.consumed.Add(tokens) }
func (s *SimpleStatistic) RegisterRejected(tokens int64)   { s.rejected.Add(tokens) }
func (s *SimpleStatistic) RegisterReturned(tokens int64)   { s.returned.Add(tokens) }
func (s *SimpleStatistic) RegisterInterrupt()              { s.interrupts.Add(1) }
func (s *SimpleStatistic) RegisterParkedNanos(nanos int64) { s.parkedNanos.Add(nanos) }

// Snapshot 读取当前计数
func (s *SimpleStatistic) Snapshot() StatisticSnapshot {
	return StatisticSnapshot{
		Consumed:    s.consumed.Load(),
		Rejected:    s.rejected.Load(),
		Returned:    s.returned.Load(),
		Interrupts:  s.interrupts.Load(),
		ParkedNanos: s.parkedNanos.Load(),
	}
}

// Reset 清零
func (s *SimpleStatistic) Reset() {
	s.consumed.Store(0)
	s.rejected.Store(0)
	s.returned.Store(0)
	s.interrupts.Store(0)
	s.parkedNanos.Store(0)
}

type multiStatistic []StatisticCollector

// MultiStatistic 把事件分发给所有收集器
func MultiStatistic(collectors ...StatisticCollector) StatisticCollector {
	return multiStatistic(collectors)
}

func (m multiStatistic) RegisterConsumed(tokens int64) {
	for _, c := range m {
		c.RegisterConsumed(tokens)
	}
}

func (m multiStatistic) RegisterRejected(tokens int64) {
	for _, c := range m {
		c.RegisterRejected(tokens)
	}
}

func (m multiStatistic) RegisterReturned(tokens int64) {
	for _, c := range m {
		c.RegisterReturned(tokens)
	}
}

func (m multiStatistic) RegisterInterrupt() {
	for _, c := range m {
		c.RegisterInterrupt()
	}
}

func (m multiStatistic) RegisterParkedNanos(nanos int64) {
	for _, c := range m {
		c.RegisterParkedNanos(nanos)
	}
}
