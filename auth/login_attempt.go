package auth

import (
	"context"
	"sync"

	"github.com/KOMKZ/go-yogan-bucket/bucket"
)

// unknownUser 未配置的用户名共用一个桶，避免按任意用户名建桶
const unknownUser = "\x00unknown"

// AttemptGuard 按用户名记录失败次数，令牌耗尽即锁定
type AttemptGuard struct {
	cfg     *bucket.Configuration
	known   map[string]struct{}
	mu      sync.Mutex
	buckets map[string]*bucket.Bucket
}

// NewAttemptGuard usernames 之外的名字都计入同一个桶
func NewAttemptGuard(cfg LoginAttemptConfig, usernames []string, meter bucket.TimeMeter) (*AttemptGuard, error) {
	if meter == nil {
		meter = bucket.SystemMilliseconds
	}
	bc, err := bucket.NewBuilder().
		WithCustomTimePrecision(meter).
		WithLimitedBandwidth(bucket.Constant(int64(cfg.MaxAttempts)), cfg.LockoutDuration).
		Build()
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		known[u] = struct{}{}
	}
	return &AttemptGuard{cfg: bc, known: known, buckets: make(map[string]*bucket.Bucket)}, nil
}

func (g *AttemptGuard) key(username string) string {
	if _, ok := g.known[username]; ok {
		return username
	}
	return unknownUser
}

func (g *AttemptGuard) bucketFor(username string) *bucket.Bucket {
	key := g.key(username)
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.buckets[key]
	if !ok {
		b = bucket.NewLockFree(g.cfg, bucket.WithName("login:"+key))
		g.buckets[key] = b
	}
	return b
}

// Locked 没有剩余尝试次数
func (g *AttemptGuard) Locked(ctx context.Context, username string) bool {
	available, err := g.bucketFor(username).AvailableTokens(ctx)
	return err == nil && available < 1
}

// Fail 记录一次失败
func (g *AttemptGuard) Fail(ctx context.Context, username string) {
	_, _ = g.bucketFor(username).TryConsume(ctx, 1)
}

// Reset 登录成功后清零
func (g *AttemptGuard) Reset(username string) {
	key := g.key(username)
	g.mu.Lock()
	delete(g.buckets, key)
	g.mu.Unlock()
}

// Remaining 剩余尝试次数
func (g *AttemptGuard) Remaining(ctx context.Context, username string) int64 {
	available, _ := g.bucketFor(username).AvailableTokens(ctx)
	return available
}
