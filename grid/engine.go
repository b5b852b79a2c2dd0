package grid

import (
	"context"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
)

// Engine 基于 Proxy 的 bucket.Engine，每个操作一次命令往返。
// 等待发生在调用方，不在存储内部。
type Engine struct {
	proxy *Proxy
}

func NewEngine(proxy *Proxy) *Engine {
	return &Engine{proxy: proxy}
}

func (e *Engine) TryConsume(ctx context.Context, tokens int64) (bool, error) {
	return Execute[bool](ctx, e.proxy, TryConsume{Tokens: tokens})
}

func (e *Engine) ConsumeAsMuchAsPossible(ctx context.Context, limit int64) (int64, error) {
	return Execute[int64](ctx, e.proxy, ConsumeAsMuchAsPossible{Limit: limit})
}

func (e *Engine) ConsumeOrDelay(ctx context.Context, tokens int64) (int64, error) {
	return Execute[int64](ctx, e.proxy, ConsumeOrComputeDelay{Tokens: tokens})
}

func (e *Engine) AvailableTokens(ctx context.Context) (int64, error) {
	return Execute[int64](ctx, e.proxy, AvailableTokens{})
}

func (e *Engine) AddTokens(ctx context.Context, tokens int64) error {
	_, err := Execute[struct{}](ctx, e.proxy, AddTokens{Tokens: tokens})
	return err
}

func (e *Engine) Snapshot(ctx context.Context) (*bucket.State, error) {
	return Execute[*bucket.State](ctx, e.proxy, CreateSnapshot{})
}

func (e *Engine) ApplySnapshot(ctx context.Context, state *bucket.State) error {
	if !state.CompatibleWith(e.proxy.cfg) {
		return bucket.ErrIncompatibleSnapshot.WithMsgf("state is incompatible with configuration of bucket %q", e.proxy.key)
	}
	_, err := Execute[struct{}](ctx, e.proxy, ReplaceState{State: state})
	return err
}

// NewBucket 状态保存在 proxy 对应 key 上的 bucket，不存在时写入初始状态
func NewBucket(ctx context.Context, proxy *Proxy, opts ...bucket.Option) (*bucket.Bucket, error) {
	if err := proxy.SetInitialStateIfAbsent(ctx, bucket.NewInitialState(proxy.cfg)); err != nil {
		return nil, err
	}
	opts = append([]bucket.Option{bucket.WithName(proxy.key)}, opts...)
	return bucket.New(proxy.cfg, NewEngine(proxy), opts...), nil
}
