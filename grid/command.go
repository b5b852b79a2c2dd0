package grid

import (
	"github.com/KOMKZ/go-yogan-bucket/bucket"
)

// Command 在存储按 key 串行的临界区内执行的状态变更。
// 命令是普通值（带 json tag），不会阻塞。
type Command[T any] interface {
	// Execute 原地修改 state，返回是否有变化
	Execute(state *bucket.State, cfg *bucket.Configuration) (result T, modified bool)
}

func refill(state *bucket.State, cfg *bucket.Configuration) {
	state.Refill(cfg, cfg.TimeMeter().CurrentTimeNanos())
}

// TryConsume 令牌足够时扣除 Tokens
type TryConsume struct {
	Tokens int64 `json:"tokens"`
}

func (c TryConsume) Execute(state *bucket.State, cfg *bucket.Configuration) (bool, bool) {
	refill(state, cfg)
	ok := bucket.TryConsumeOn(cfg, state, c.Tokens)
	return ok, ok
}

// ConsumeAsMuchAsPossible 最多扣除 Limit 个
type ConsumeAsMuchAsPossible struct {
	Limit int64 `json:"limit"`
}

func (c ConsumeAsMuchAsPossible) Execute(state *bucket.State, cfg *bucket.Configuration) (int64, bool) {
	refill(state, cfg)
	consumed := bucket.ConsumeAsMuchAsPossibleOn(cfg, state, c.Limit)
	return consumed, consumed > 0
}

// ConsumeOrComputeDelay 扣除 Tokens，或者返回调用方需要等待的时间
type ConsumeOrComputeDelay struct {
	Tokens int64 `json:"tokens"`
}

func (c ConsumeOrComputeDelay) Execute(state *bucket.State, cfg *bucket.Configuration) (int64, bool) {
	refill(state, cfg)
	delay := bucket.ConsumeOrDelayOn(cfg, state, c.Tokens)
	return delay, delay == 0
}

// AvailableTokens 只读
type AvailableTokens struct{}

func (AvailableTokens) Execute(state *bucket.State, cfg *bucket.Configuration) (int64, bool) {
	refill(state, cfg)
	return int64(state.AvailableTokens(cfg)), false
}

// CreateSnapshot 只读，返回状态拷贝
type CreateSnapshot struct{}

func (CreateSnapshot) Execute(state *bucket.State, _ *bucket.Configuration) (*bucket.State, bool) {
	return state.Clone(), false
}

// AddTokens 归还 Tokens
type AddTokens struct {
	Tokens int64 `json:"tokens"`
}

func (c AddTokens) Execute(state *bucket.State, cfg *bucket.Configuration) (struct{}, bool) {
	refill(state, cfg)
	state.AddTokens(cfg, float64(c.Tokens))
	return struct{}{}, true
}

// ReplaceState 用 State 覆盖存储中的状态
type ReplaceState struct {
	State *bucket.State `json:"state"`
}

func (c ReplaceState) Execute(state *bucket.State, _ *bucket.Configuration) (struct{}, bool) {
	*state = *c.State.Clone()
	return struct{}{}, true
}
