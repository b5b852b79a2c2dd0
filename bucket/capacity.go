package bucket

import (
	"fmt"
	"math"
	"time"
)

// CapacityKind 容量函数类型
type CapacityKind uint8

const (
	// CapacityConstant 固定上限
	CapacityConstant CapacityKind = iota
	// CapacityWarmup 持续使用时上限从 cold 增长到 hot
	CapacityWarmup
)

func (k CapacityKind) String() string {
	switch k {
	case CapacityConstant:
		return "constant"
	case CapacityWarmup:
		return "warmup"
	default:
		return fmt.Sprintf("CapacityKind(%d)", uint8(k))
	}
}

// Capacity 带宽在某一时刻的最大容量。
// 按 Kind 分派。
type Capacity struct {
	Kind CapacityKind

	// Value 固定容量的上限
	Value float64

	// Cold/Hot/WarmupNanos 描述预热曲线
	Cold        float64
	Hot         float64
	WarmupNanos int64
}

// Constant 固定 n 个令牌的上限
func Constant(n int64) Capacity {
	return Capacity{Kind: CapacityConstant, Value: float64(n)}
}

// Warmup 上限从 cold 开始，持续使用 warmup 后达到 hot
func Warmup(cold, hot int64, warmup time.Duration) Capacity {
	return Capacity{
		Kind:        CapacityWarmup,
		Cold:        float64(cold),
		Hot:         float64(hot),
		WarmupNanos: int64(warmup),
	}
}

// Initial 新建 bucket 的上限
func (c Capacity) Initial() float64 {
	if c.Kind == CapacityWarmup {
		return c.Cold
	}
	return c.Value
}

// Max 可能达到的最高上限
func (c Capacity) Max() float64 {
	if c.Kind == CapacityWarmup {
		return c.Hot
	}
	return c.Value
}

// MaxValue 已知 previousAccessNanos 时的上限，计算 now 时的上限。
//
// 预热：闲置超过预热期时上限回到 cold，
// 否则每纳秒线性增长 (hot-cold)/warmup，最多到 hot。
func (c Capacity) MaxValue(previousAccessNanos int64, previousMax float64, nowNanos int64) float64 {
	if c.Kind != CapacityWarmup {
		return c.Value
	}

	elapsed := nowNanos - previousAccessNanos
	if elapsed <= 0 {
		return previousMax
	}
	if elapsed > c.WarmupNanos {
		return c.Cold
	}

	grown := previousMax + (c.Hot-c.Cold)*float64(elapsed)/float64(c.WarmupNanos)
	return math.Min(c.Hot, grown)
}

// stateSize 容量函数额外占用的槽位数
func (c Capacity) stateSize() int {
	if c.Kind == CapacityWarmup {
		return 1
	}
	return 0
}

func (c Capacity) validate() error {
	switch c.Kind {
	case CapacityConstant:
		if c.Value <= 0 {
			return ErrInvalidConfiguration.WithMsgf("capacity should be positive, got %v", c.Value)
		}
	case CapacityWarmup:
		if c.Cold <= 0 {
			return ErrInvalidConfiguration.WithMsgf("cold capacity should be positive, got %v", c.Cold)
		}
		if c.Hot <= c.Cold {
			return ErrInvalidConfiguration.WithMsgf("hot capacity %v should be greater than cold capacity %v", c.Hot, c.Cold)
		}
		if c.WarmupNanos <= 0 {
			return ErrInvalidConfiguration.WithMsgf("warmup period should be positive, got %v", time.Duration(c.WarmupNanos))
		}
	default:
		return ErrInvalidConfiguration.WithMsgf("unknown capacity kind %v", c.Kind)
	}
	return nil
}

func (c Capacity) String() string {
	if c.Kind == CapacityWarmup {
		return fmt.Sprintf("warmup{cold=%v, hot=%v, period=%v}", c.Cold, c.Hot, time.Duration(c.WarmupNanos))
	}
	return fmt.Sprintf("constant{%v}", c.Value)
}
