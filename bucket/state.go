package bucket

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// State 上次补充时间加上每个带宽一个槽位（预热带宽两个）。
// 发布后不再修改：Engine 先拷贝，改拷贝，再发布。
type State struct {
	lastRefillNanos int64
	slots           []float64
}

// NewInitialState 以配置时钟的当前时间创建初始状态
func NewInitialState(cfg *Configuration) *State {
	return NewInitialStateAt(cfg, cfg.meter.CurrentTimeNanos())
}

// NewInitialStateAt 以 nowNanos 创建初始状态
func NewInitialStateAt(cfg *Configuration, nowNanos int64) *State {
	s := &State{
		lastRefillNanos: nowNanos,
		slots:           make([]float64, cfg.stateSize),
	}
	for i := range cfg.bandwidths {
		cfg.bandwidths[i].initState(s.slots)
	}
	return s
}

// LastRefillNanos 上次补充时间
func (s *State) LastRefillNanos() int64 { return s.lastRefillNanos }

// Tokens 第 index 个带宽（定义顺序）的令牌数
func (s *State) Tokens(cfg *Configuration, index int) float64 {
	return cfg.bandwidths[index].tokens(s.slots)
}

// Ceiling 第 index 个带宽的当前上限
func (s *State) Ceiling(cfg *Configuration, index int) float64 {
	return cfg.bandwidths[index].ceiling(s.slots)
}

// Clone 深拷贝
func (s *State) Clone() *State {
	slots := make([]float64, len(s.slots))
	copy(slots, s.slots)
	return &State{lastRefillNanos: s.lastRefillNanos, slots: slots}
}

// CompatibleWith 槽位布局是否与 cfg 一致
func (s *State) CompatibleWith(cfg *Configuration) bool {
	return len(s.slots) == cfg.stateSize
}

// Refill 把所有带宽补充到 nowNanos，时间没有前进时不做任何事。
func (s *State) Refill(cfg *Configuration, nowNanos int64) {
	if nowNanos <= s.lastRefillNanos {
		return
	}
	for i := range cfg.bandwidths {
		cfg.bandwidths[i].refill(s.slots, s.lastRefillNanos, nowNanos)
	}
	s.lastRefillNanos = nowNanos
}

// AvailableTokens max(限制带宽的最小值, 保底带宽余额)
func (s *State) AvailableTokens(cfg *Configuration) float64 {
	byLimited := math.Inf(1)
	for _, bw := range cfg.limited {
		byLimited = math.Min(byLimited, bw.tokens(s.slots))
	}
	if cfg.guaranteed == nil {
		return byLimited
	}
	return math.Max(byLimited, cfg.guaranteed.tokens(s.slots))
}

// IsFull 每个带宽的令牌数都已达到当前上限
func (s *State) IsFull(cfg *Configuration) bool {
	for i := range cfg.bandwidths {
		bw := &cfg.bandwidths[i]
		if bw.tokens(s.slots) < bw.ceiling(s.slots) {
			return false
		}
	}
	return true
}

// Consume 所有带宽（包括保底带宽）都扣除，最低为 0
func (s *State) Consume(cfg *Configuration, tokens float64) {
	for i := range cfg.bandwidths {
		cfg.bandwidths[i].consume(s.slots, tokens)
	}
}

// AddTokens 所有带宽加上 tokens，不超过当前上限
func (s *State) AddTokens(cfg *Configuration, tokens float64) {
	for i := range cfg.bandwidths {
		cfg.bandwidths[i].add(s.slots, tokens)
	}
}

// DelayNanos 距离凑够 tokens 的纳秒数，永远无法满足时为 MaxDelay。
// 保底带宽能满足时不再看限制带宽。
func (s *State) DelayNanos(cfg *Configuration, tokens float64) int64 {
	guaranteedDelay := MaxDelay
	if cfg.guaranteed != nil {
		guaranteedDelay = cfg.guaranteed.delayNanos(s.slots, tokens)
		if guaranteedDelay == 0 {
			return 0
		}
	}

	var limitedDelay int64
	for _, bw := range cfg.limited {
		if d := bw.delayNanos(s.slots, tokens); d > limitedDelay {
			limitedDelay = d
		}
	}

	if limitedDelay < guaranteedDelay {
		return limitedDelay
	}
	return guaranteedDelay
}

// MarshalBinary 小端序：int64 时间戳，之后每个槽位一个 float64
func (s *State) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8*(1+len(s.slots)))
	binary.LittleEndian.PutUint64(buf, uint64(s.lastRefillNanos))
	for i, v := range s.slots {
		binary.LittleEndian.PutUint64(buf[8*(i+1):], math.Float64bits(v))
	}
	return buf, nil
}

// UnmarshalBinary MarshalBinary 的逆操作
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) < 8 || len(data)%8 != 0 {
		return ErrCorruptState.WithMsgf("state blob length %d is not a positive multiple of 8", len(data))
	}
	s.lastRefillNanos = int64(binary.LittleEndian.Uint64(data))
	s.slots = make([]float64, len(data)/8-1)
	for i := range s.slots {
		s.slots[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*(i+1):]))
	}
	return nil
}

// DecodeState 解码并校验与 cfg 是否兼容
func DecodeState(cfg *Configuration, data []byte) (*State, error) {
	s := &State{}
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if !s.CompatibleWith(cfg) {
		return nil, ErrIncompatibleSnapshot.WithMsgf("state has %d slots, configuration expects %d", len(s.slots), cfg.stateSize)
	}
	return s, nil
}

type stateJSON struct {
	LastRefillNanos int64     `json:"last_refill_nanos"`
	Slots           []float64 `json:"slots"`
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{LastRefillNanos: s.lastRefillNanos, Slots: s.slots})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var v stateJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.lastRefillNanos, s.slots = v.LastRefillNanos, v.Slots
	return nil
}

func (s *State) String() string {
	return fmt.Sprintf("State{lastRefill=%d, slots=%v}", s.lastRefillNanos, s.slots)
}
