package bucket

import (
	"context"
)

// Engine Bucket 的状态变更后端。
// 参数由 Bucket 预先校验。
// 本地 Engine 不会出错，远端 Engine 返回存储错误。
type Engine interface {
	TryConsume(ctx context.Context, tokens int64) (bool, error)

	ConsumeAsMuchAsPossible(ctx context.Context, limit int64) (int64, error)

	// ConsumeOrDelay 令牌足够时扣除并返回 0，
	// 否则不扣除，返回需要等待的纳秒数（永远无法满足时为 MaxDelay）。
	ConsumeOrDelay(ctx context.Context, tokens int64) (int64, error)

	// AvailableTokens 估计值，后续调用时可能已经过期
	AvailableTokens(ctx context.Context) (int64, error)

	AddTokens(ctx context.Context, tokens int64) error

	Snapshot(ctx context.Context) (*State, error)

	ApplySnapshot(ctx context.Context, state *State) error
}

// TryConsumeOn 各 Engine 共用的 try-consume 状态变更
func TryConsumeOn(cfg *Configuration, state *State, tokens int64) bool {
	if float64(tokens) > state.AvailableTokens(cfg) {
		return false
	}
	state.Consume(cfg, float64(tokens))
	return true
}

// ConsumeAsMuchAsPossibleOn 扣除 min(limit, available) 并返回
func ConsumeAsMuchAsPossibleOn(cfg *Configuration, state *State, limit int64) int64 {
	available := int64(state.AvailableTokens(cfg))
	if available <= 0 {
		return 0
	}
	toConsume := min(limit, available)
	state.Consume(cfg, float64(toConsume))
	return toConsume
}

// ConsumeOrDelayOn 能扣就扣，否则返回补足差额所需的等待时间
func ConsumeOrDelayOn(cfg *Configuration, state *State, tokens int64) int64 {
	delay := state.DelayNanos(cfg, float64(tokens))
	if delay == 0 {
		state.Consume(cfg, float64(tokens))
	}
	return delay
}
