package bucket

import (
	"fmt"
	"strings"
	"time"
)

// Configuration 校验过的不可变 bucket 配置，可并发使用。
type Configuration struct {
	bandwidths []Bandwidth
	limited    []*Bandwidth
	guaranteed *Bandwidth
	meter      TimeMeter
	stateSize  int
}

// NewConfiguration 校验带宽定义，按定义顺序分配状态槽位
func NewConfiguration(meter TimeMeter, defs ...BandwidthDefinition) (*Configuration, error) {
	if meter == nil {
		return nil, ErrInvalidConfiguration.WithMsg("time meter is required")
	}

	cfg := &Configuration{
		bandwidths: make([]Bandwidth, len(defs)),
		meter:      meter,
	}

	offset := 0
	for i, def := range defs {
		if err := validateDefinition(def); err != nil {
			return nil, err
		}

		initial := def.Capacity.Initial()
		if tokens, ok := def.InitialTokens(); ok {
			initial = float64(tokens)
		}

		cfg.bandwidths[i] = Bandwidth{
			capacity:      def.Capacity,
			periodNanos:   int64(def.Period),
			guaranteed:    def.Guaranteed,
			initialTokens: initial,
			offset:        offset,
		}
		offset += cfg.bandwidths[i].stateSize()
	}
	cfg.stateSize = offset

	for i := range cfg.bandwidths {
		bw := &cfg.bandwidths[i]
		if bw.guaranteed {
			if cfg.guaranteed != nil {
				return nil, ErrInvalidConfiguration.WithMsg("only one guaranteed bandwidth supported")
			}
			cfg.guaranteed = bw
			continue
		}
		cfg.limited = append(cfg.limited, bw)
	}

	if len(cfg.limited) == 0 {
		return nil, ErrInvalidConfiguration.WithMsg("at least one limited bandwidth should be specified")
	}
	if err := cfg.checkCompatibility(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustConfiguration 定义非法时 panic，用于静态配置
func MustConfiguration(meter TimeMeter, defs ...BandwidthDefinition) *Configuration {
	cfg, err := NewConfiguration(meter, defs...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func validateDefinition(def BandwidthDefinition) error {
	if err := def.Capacity.validate(); err != nil {
		return err
	}
	if def.Period <= 0 {
		return ErrInvalidConfiguration.WithMsgf("period should be positive, got %v", def.Period)
	}
	if tokens, ok := def.InitialTokens(); ok {
		if tokens < 0 {
			return ErrInvalidConfiguration.WithMsgf("initial tokens should not be negative, got %d", tokens)
		}
		if float64(tokens) > def.Capacity.Max() {
			return ErrInvalidConfiguration.WithMsgf("initial tokens %d exceed max capacity %v", tokens, def.Capacity.Max())
		}
	}
	return nil
}

// checkCompatibility 拒绝互相重叠的限制带宽，以及速率不低于限制带宽的保底带宽。
// 限制带宽两两严格有序：周期越短容量越小。
func (c *Configuration) checkCompatibility() error {
	for i := 0; i < len(c.limited); i++ {
		first := c.limited[i]
		for j := i + 1; j < len(c.limited); j++ {
			second := c.limited[j]
			firstMax, secondMax := first.capacity.Max(), second.capacity.Max()

			switch {
			case first.periodNanos == second.periodNanos,
				first.periodNanos < second.periodNanos && firstMax >= secondMax,
				first.periodNanos > second.periodNanos && firstMax <= secondMax:
				return ErrInvalidConfiguration.
					WithMsgf("overlap detected between %v and %v", first, second).
					WithData("first", first.String()).
					WithData("second", second.String())
			}
		}
	}

	if c.guaranteed == nil {
		return nil
	}
	guaranteedRate := c.guaranteed.Rate()
	for _, limited := range c.limited {
		if limited.Rate() <= guaranteedRate {
			return ErrInvalidConfiguration.
				WithMsgf("guaranteed bandwidth %v has higher rate than limited bandwidth %v", c.guaranteed, limited).
				WithData("guaranteed", c.guaranteed.String()).
				WithData("limited", limited.String())
		}
	}
	return nil
}

// TimeMeter 状态计算使用的时钟
func (c *Configuration) TimeMeter() TimeMeter { return c.meter }

// Bandwidths 按定义顺序返回所有带宽
func (c *Configuration) Bandwidths() []Bandwidth {
	out := make([]Bandwidth, len(c.bandwidths))
	copy(out, c.bandwidths)
	return out
}

// Guaranteed 保底带宽，没有时为 nil
func (c *Configuration) Guaranteed() *Bandwidth { return c.guaranteed }

// LimitedCount 限制带宽数量
func (c *Configuration) LimitedCount() int { return len(c.limited) }

// StateSize 状态向量的槽位数
func (c *Configuration) StateSize() int { return c.stateSize }

// MaxTokens 单次请求可能被满足的最大令牌数
func (c *Configuration) MaxTokens() float64 {
	var limitedMax float64 = -1
	for _, bw := range c.limited {
		if limitedMax < 0 || bw.capacity.Max() < limitedMax {
			limitedMax = bw.capacity.Max()
		}
	}
	if c.guaranteed != nil && c.guaranteed.capacity.Max() > limitedMax {
		return c.guaranteed.capacity.Max()
	}
	return limitedMax
}

func (c *Configuration) String() string {
	parts := make([]string, 0, len(c.bandwidths))
	for i := range c.bandwidths {
		parts = append(parts, c.bandwidths[i].String())
	}
	return fmt.Sprintf("Configuration{bandwidths=[%s], meter=%v}", strings.Join(parts, ", "), c.meter)
}

// Builder 链式构造 Configuration
//
//	cfg, err := bucket.NewBuilder().
//	    WithLimitedBandwidth(bucket.Constant(100), time.Minute).
//	    WithGuaranteedBandwidth(bucket.Constant(10), time.Hour).
//	    WithNanosecondPrecision().
//	    Build()
type Builder struct {
	meter TimeMeter
	defs  []BandwidthDefinition
}

// NewBuilder 默认使用毫秒墙上时钟
func NewBuilder() *Builder {
	return &Builder{meter: SystemMilliseconds}
}

func (b *Builder) WithLimitedBandwidth(capacity Capacity, period time.Duration) *Builder {
	return b.WithBandwidth(Limited(capacity, period))
}

func (b *Builder) WithGuaranteedBandwidth(capacity Capacity, period time.Duration) *Builder {
	return b.WithBandwidth(Guaranteed(capacity, period))
}

func (b *Builder) WithBandwidth(def BandwidthDefinition) *Builder {
	b.defs = append(b.defs, def)
	return b
}

func (b *Builder) WithNanosecondPrecision() *Builder {
	b.meter = SystemNanotime
	return b
}

func (b *Builder) WithMillisecondPrecision() *Builder {
	b.meter = SystemMilliseconds
	return b
}

func (b *Builder) WithCustomTimePrecision(meter TimeMeter) *Builder {
	b.meter = meter
	return b
}

func (b *Builder) Build() (*Configuration, error) {
	return NewConfiguration(b.meter, b.defs...)
}
