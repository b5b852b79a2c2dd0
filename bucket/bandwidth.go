package bucket

import (
	"fmt"
	"math"
	"time"
)

// MaxDelay 表示请求永远无法满足
const MaxDelay int64 = math.MaxInt64

// BandwidthDefinition 用户给出的单个带宽定义
type BandwidthDefinition struct {
	Capacity   Capacity
	Period     time.Duration
	Guaranteed bool

	initialTokens    int64
	hasInitialTokens bool
}

// Limited 硬性限制的带宽
func Limited(capacity Capacity, period time.Duration) BandwidthDefinition {
	return BandwidthDefinition{Capacity: capacity, Period: period}
}

// Guaranteed 保底带宽，满足时跳过所有限制带宽
func Guaranteed(capacity Capacity, period time.Duration) BandwidthDefinition {
	return BandwidthDefinition{Capacity: capacity, Period: period, Guaranteed: true}
}

// WithInitialTokens 覆盖初始令牌数（默认为初始上限）
func (d BandwidthDefinition) WithInitialTokens(tokens int64) BandwidthDefinition {
	d.initialTokens = tokens
	d.hasInitialTokens = true
	return d
}

// InitialTokens 显式设置的初始令牌数
func (d BandwidthDefinition) InitialTokens() (int64, bool) {
	return d.initialTokens, d.hasInitialTokens
}

func (d BandwidthDefinition) String() string {
	kind := "limited"
	if d.Guaranteed {
		kind = "guaranteed"
	}
	return fmt.Sprintf("%s{capacity=%v, period=%v}", kind, d.Capacity, d.Period)
}

// Bandwidth 校验过的带宽，绑定状态向量中的槽位。
// offset 槽位保存令牌数；预热带宽还占用 offset+1，保存当前上限。
type Bandwidth struct {
	capacity      Capacity
	periodNanos   int64
	guaranteed    bool
	initialTokens float64
	offset        int
}

func (b *Bandwidth) Capacity() Capacity    { return b.capacity }
func (b *Bandwidth) Period() time.Duration { return time.Duration(b.periodNanos) }
func (b *Bandwidth) IsGuaranteed() bool    { return b.guaranteed }
func (b *Bandwidth) IsLimited() bool       { return !b.guaranteed }

// Offset 令牌槽位在状态向量中的下标
func (b *Bandwidth) Offset() int { return b.offset }

// Rate 最高上限下每纳秒的令牌数
func (b *Bandwidth) Rate() float64 {
	return b.capacity.Max() / float64(b.periodNanos)
}

func (b *Bandwidth) stateSize() int {
	return 1 + b.capacity.stateSize()
}

func (b *Bandwidth) initState(slots []float64) {
	slots[b.offset] = b.initialTokens
	if b.capacity.Kind == CapacityWarmup {
		slots[b.offset+1] = b.capacity.Initial()
	}
}

func (b *Bandwidth) tokens(slots []float64) float64 {
	return slots[b.offset]
}

func (b *Bandwidth) ceiling(slots []float64) float64 {
	if b.capacity.Kind == CapacityWarmup {
		return slots[b.offset+1]
	}
	return b.capacity.Value
}

// refill 从 lastRefillNanos 补充到 nowNanos。
// newSize = min(ceiling, size + ceiling*elapsed/period)
func (b *Bandwidth) refill(slots []float64, lastRefillNanos, nowNanos int64) {
	ceiling := b.capacity.MaxValue(lastRefillNanos, b.ceiling(slots), nowNanos)
	if b.capacity.Kind == CapacityWarmup {
		slots[b.offset+1] = ceiling
	}

	elapsed := nowNanos - lastRefillNanos
	size := slots[b.offset]
	refilled := size + ceiling*float64(elapsed)/float64(b.periodNanos)
	slots[b.offset] = math.Min(ceiling, refilled)
}

// delayNanos 距离凑够 tokens 的纳秒数，向上取整。
// 超过当前上限时返回 MaxDelay。
func (b *Bandwidth) delayNanos(slots []float64, tokens float64) int64 {
	size := slots[b.offset]
	if tokens <= size {
		return 0
	}
	ceiling := b.ceiling(slots)
	if tokens > ceiling {
		return MaxDelay
	}

	delay := math.Ceil(float64(b.periodNanos) * (tokens - size) / ceiling)
	if delay >= float64(MaxDelay) {
		return MaxDelay
	}
	return int64(delay)
}

func (b *Bandwidth) consume(slots []float64, tokens float64) {
	slots[b.offset] = math.Max(0, slots[b.offset]-tokens)
}

func (b *Bandwidth) add(slots []float64, tokens float64) {
	slots[b.offset] = math.Min(b.ceiling(slots), slots[b.offset]+tokens)
}

func (b *Bandwidth) String() string {
	kind := "limited"
	if b.guaranteed {
		kind = "guaranteed"
	}
	return fmt.Sprintf("%s{capacity=%v, period=%v}", kind, b.capacity, time.Duration(b.periodNanos))
}
