package grid

import (
	"context"
	"errors"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
	"github.com/KOMKZ/go-yogan-bucket/errcode"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"go.uber.org/zap"
)

// RestoreListener 缺失的状态被重建后回调
type RestoreListener func(ctx context.Context, key string)

// Proxy 对 KeyedAtomicStore 的一个 key 执行命令。
// 配置不落存储，每条命令都带上。
type Proxy struct {
	store      KeyedAtomicStore
	key        string
	cfg        *bucket.Configuration
	logger     *logger.CtxZapLogger
	onRestored RestoreListener
}

// ProxyOption Proxy 可选项
type ProxyOption func(*Proxy)

func WithProxyLogger(l *logger.CtxZapLogger) ProxyOption {
	return func(p *Proxy) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithRestoreListener(fn RestoreListener) ProxyOption {
	return func(p *Proxy) { p.onRestored = fn }
}

func NewProxy(store KeyedAtomicStore, key string, cfg *bucket.Configuration, opts ...ProxyOption) (*Proxy, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	p := &Proxy{
		store:  store,
		key:    key,
		cfg:    cfg,
		logger: logger.GetLogger("grid"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Proxy) Key() string                          { return p.key }
func (p *Proxy) Configuration() *bucket.Configuration { return p.cfg }

// Execute 在存储的单 key 原子性保证下执行 cmd
func Execute[T any](ctx context.Context, p *Proxy, cmd Command[T]) (T, error) {
	proc := NewEntryProcessor(p.cfg, cmd)
	if err := p.store.Execute(ctx, p.key, proc); err != nil {
		var zero T
		return zero, wrapStoreError(err)
	}

	if proc.Restored() {
		p.logger.WarnCtx(ctx, "bucket state missing in store, recreated from configuration",
			zap.String("key", p.key))
		if p.onRestored != nil {
			p.onRestored(ctx, p.key)
		}
	}
	return proc.Result(), nil
}

// SetInitialStateIfAbsent 写入初始状态，已存在时不覆盖
func (p *Proxy) SetInitialStateIfAbsent(ctx context.Context, state *bucket.State) error {
	data, err := state.MarshalBinary()
	if err != nil {
		return err
	}
	if err := p.store.PutIfAbsent(ctx, p.key, data); err != nil {
		return wrapStoreError(err)
	}
	return nil
}

// wrapStoreError 分层错误（状态损坏、冲突）和 context 错误原样返回，其余包装为 ErrStoreFailure
func wrapStoreError(err error) error {
	var layered *errcode.LayeredError
	if errors.As(err, &layered) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ErrStoreFailure.Wrap(err)
}
