package grid

import (
	"context"
	"errors"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/retry"
	"github.com/redis/go-redis/v9"
)

// RedisStore WATCH/MULTI 乐观存储：WATCH 下读取，客户端执行 Processor，
// MULTI/EXEC 提交；并发写入会让 EXEC 失败，
// 整次尝试重放。
type RedisStore struct {
	client      redis.UniversalClient
	keyPrefix   string
	ttl         time.Duration
	maxAttempts int
	backoff     retry.BackoffStrategy
}

// RedisStoreOption RedisStore 可选项
type RedisStoreOption func(*RedisStore)

// WithRedisTTL 状态过期时间，闲置的 bucket 过期后下次使用时重建
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithRedisMaxAttempts 写冲突时每条命令的最大尝试次数
func WithRedisMaxAttempts(n int) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client redis.UniversalClient, keyPrefix string, opts ...RedisStoreOption) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "bucket:"
	}
	s := &RedisStore{
		client:      client,
		keyPrefix:   keyPrefix,
		maxAttempts: 100,
		backoff:     retry.ExponentialBackoff(time.Millisecond, retry.WithMaxDelay(50*time.Millisecond), retry.WithJitter(0.2)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

func (s *RedisStore) Execute(ctx context.Context, key string, p Processor) error {
	fullKey := s.buildKey(key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, write, err := p.Process(current)
		if err != nil || !write {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, s.ttl)
			return nil
		})
		return err
	}

	err := retry.Do(ctx, func() error {
		return s.client.Watch(ctx, txf, fullKey)
	},
		retry.MaxAttempts(s.maxAttempts),
		retry.Backoff(s.backoff),
		retry.Condition(retry.RetryOnError(redis.TxFailedErr)),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict.Wrap(err)
	}
	return unwrapRetry(err)
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	return s.client.SetNX(ctx, s.buildKey(key), value, s.ttl).Err()
}

// Delete 删除 key 的状态
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.buildKey(key)).Err()
}

// unwrapRetry 返回最后一次尝试的错误而不是重试汇总
func unwrapRetry(err error) error {
	var multi *retry.MultiError
	if errors.As(err, &multi) && multi.LastError() != nil {
		return multi.LastError()
	}
	return err
}
