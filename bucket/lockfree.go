package bucket

import (
	"context"
	"sync/atomic"
)

// LockFreeEngine 进程内 Engine：不可变状态放在 atomic 指针后面，
// 每次变更都是 clone -> refill -> 判断 -> CAS，CAS 失败则重试。
type LockFreeEngine struct {
	cfg   *Configuration
	state atomic.Pointer[State]
}

// NewLockFreeEngine 从初始状态开始
func NewLockFreeEngine(cfg *Configuration) *LockFreeEngine {
	e := &LockFreeEngine{cfg: cfg}
	e.state.Store(NewInitialState(cfg))
	return e
}

// update 在补充后的私有拷贝上执行 fn，直到 fn 放弃提交或 CAS 成功
func (e *LockFreeEngine) update(fn func(candidate *State) (commit bool)) {
	for {
		snapshot := e.state.Load()
		candidate := snapshot.Clone()
		candidate.Refill(e.cfg, e.cfg.meter.CurrentTimeNanos())

		if !fn(candidate) {
			return
		}
		if e.state.CompareAndSwap(snapshot, candidate) {
			return
		}
	}
}

func (e *LockFreeEngine) TryConsume(_ context.Context, tokens int64) (bool, error) {
	var consumed bool
	e.update(func(candidate *State) bool {
		consumed = TryConsumeOn(e.cfg, candidate, tokens)
		return consumed
	})
	return consumed, nil
}

func (e *LockFreeEngine) ConsumeAsMuchAsPossible(_ context.Context, limit int64) (int64, error) {
	var consumed int64
	e.update(func(candidate *State) bool {
		consumed = ConsumeAsMuchAsPossibleOn(e.cfg, candidate, limit)
		return consumed > 0
	})
	return consumed, nil
}

func (e *LockFreeEngine) ConsumeOrDelay(_ context.Context, tokens int64) (int64, error) {
	var delay int64
	e.update(func(candidate *State) bool {
		delay = ConsumeOrDelayOn(e.cfg, candidate, tokens)
		return delay == 0
	})
	return delay, nil
}

func (e *LockFreeEngine) AvailableTokens(_ context.Context) (int64, error) {
	candidate := e.state.Load().Clone()
	candidate.Refill(e.cfg, e.cfg.meter.CurrentTimeNanos())
	return int64(candidate.AvailableTokens(e.cfg)), nil
}

func (e *LockFreeEngine) AddTokens(_ context.Context, tokens int64) error {
	e.update(func(candidate *State) bool {
		candidate.AddTokens(e.cfg, float64(tokens))
		return true
	})
	return nil
}

func (e *LockFreeEngine) Snapshot(_ context.Context) (*State, error) {
	return e.state.Load().Clone(), nil
}

func (e *LockFreeEngine) ApplySnapshot(_ context.Context, state *State) error {
	if !state.CompatibleWith(e.cfg) {
		return ErrIncompatibleSnapshot.WithMsgf("state has %d slots, configuration expects %d", len(state.slots), e.cfg.stateSize)
	}
	e.state.Store(state.Clone())
	return nil
}
