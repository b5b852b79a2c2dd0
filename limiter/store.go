package limiter

import (
	"context"
	"errors"

	"github.com/KOMKZ/go-yogan-bucket/breaker"
	"github.com/KOMKZ/go-yogan-bucket/bucket"
	"github.com/KOMKZ/go-yogan-bucket/errcode"
	"github.com/KOMKZ/go-yogan-bucket/grid"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// backend 为资源创建 bucket
type backend interface {
	NewBucket(ctx context.Context, resource string, cfg *bucket.Configuration, opts ...bucket.Option) (*bucket.Bucket, error)
	Close() error
}

// breakerStore 熔断保护的远端存储
type breakerStore struct {
	grid.KeyedAtomicStore
	cb *breaker.Breaker
}

func (s *breakerStore) Execute(ctx context.Context, key string, p grid.Processor) error {
	return s.cb.Do(ctx, func(ctx context.Context) error {
		return s.KeyedAtomicStore.Execute(ctx, key, p)
	})
}

func (s *breakerStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	return s.cb.Do(ctx, func(ctx context.Context) error {
		return s.KeyedAtomicStore.PutIfAbsent(ctx, key, value)
	})
}

// isStoreFailure 只有存储本身的错误计入熔断，命令和状态错误不算
func isStoreFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var layered *errcode.LayeredError
	if errors.As(err, &layered) {
		return errors.Is(err, grid.ErrStoreFailure)
	}
	return true
}

// memoryBackend 进程内 lock-free bucket
type memoryBackend struct{}

func (memoryBackend) NewBucket(_ context.Context, resource string, cfg *bucket.Configuration, opts ...bucket.Option) (*bucket.Bucket, error) {
	opts = append([]bucket.Option{bucket.WithName(resource)}, opts...)
	return bucket.NewLockFree(cfg, opts...), nil
}

func (memoryBackend) Close() error { return nil }

// gridBackend 状态保存在共享存储中
type gridBackend struct {
	store      grid.KeyedAtomicStore
	breaker    *breaker.Breaker
	onRestored grid.RestoreListener
	logger     *logger.CtxZapLogger
	closer     func() error
}

// withBreaker 未启用熔断时原样返回
func (b *gridBackend) withBreaker(cfg Config) *gridBackend {
	if !cfg.Breaker.Enabled {
		return b
	}
	b.breaker = breaker.New(cfg.StoreType, cfg.Breaker,
		breaker.WithLogger(b.logger),
		breaker.WithIsFailure(isStoreFailure))
	b.store = &breakerStore{KeyedAtomicStore: b.store, cb: b.breaker}
	return b
}

func (b *gridBackend) NewBucket(ctx context.Context, resource string, cfg *bucket.Configuration, opts ...bucket.Option) (*bucket.Bucket, error) {
	proxy, err := grid.NewProxy(b.store, resource, cfg,
		grid.WithProxyLogger(b.logger),
		grid.WithRestoreListener(b.onRestored),
	)
	if err != nil {
		return nil, err
	}
	return grid.NewBucket(ctx, proxy, opts...)
}

func (b *gridBackend) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}

// newBackend 按 StoreType 创建存储
func newBackend(ctx context.Context, cfg Config, o *managerOptions, onRestored grid.RestoreListener, log *logger.CtxZapLogger) (backend, error) {
	switch cfg.StoreType {
	case StoreTypeMemory:
		log.DebugCtx(ctx, "✅ using in-memory buckets")
		return memoryBackend{}, nil

	case StoreTypeRedis:
		if o.redisClient == nil {
			return nil, ErrStoreNotSupported.WithMsgf("redis client is required for redis store (instance %q)", cfg.Redis.Instance)
		}
		var storeOpts []grid.RedisStoreOption
		if cfg.Redis.TTL > 0 {
			storeOpts = append(storeOpts, grid.WithRedisTTL(cfg.Redis.TTL))
		}
		log.DebugCtx(ctx, "✅ using redis store",
			zap.String("instance", cfg.Redis.Instance),
			zap.String("key_prefix", cfg.Redis.KeyPrefix))
		return (&gridBackend{
			store:      grid.NewRedisStore(o.redisClient, cfg.Redis.KeyPrefix, storeOpts...),
			onRestored: onRestored,
			logger:     log,
		}).withBreaker(cfg), nil

	case StoreTypeDatabase:
		if o.db == nil {
			return nil, ErrStoreNotSupported.WithMsgf("database connection is required for database store (instance %q)", cfg.Database.Instance)
		}
		store := grid.NewSQLStore(o.db, cfg.Database.Table)
		if err := store.AutoMigrate(); err != nil {
			return nil, ErrStoreNotSupported.Wrapf(err, "migrate bucket state table failed")
		}
		log.DebugCtx(ctx, "✅ using database store", zap.String("instance", cfg.Database.Instance))
		return (&gridBackend{store: store, onRestored: onRestored, logger: log}).withBreaker(cfg), nil

	case StoreTypeEtcd:
		kv := o.etcdKV
		var closer func() error
		if kv == nil {
			client, err := clientv3.New(clientv3.Config{
				Endpoints:   cfg.Etcd.Endpoints,
				DialTimeout: cfg.Etcd.DialTimeout,
			})
			if err != nil {
				return nil, ErrStoreNotSupported.Wrapf(err, "connect etcd failed")
			}
			kv, closer = client, client.Close
		}
		log.DebugCtx(ctx, "✅ using etcd store",
			zap.Strings("endpoints", cfg.Etcd.Endpoints),
			zap.String("key_prefix", cfg.Etcd.KeyPrefix))
		return (&gridBackend{
			store:      grid.NewEtcdStore(kv, cfg.Etcd.KeyPrefix),
			onRestored: onRestored,
			logger:     log,
			closer:     closer,
		}).withBreaker(cfg), nil
	}

	return nil, ErrStoreNotSupported.WithMsgf("unsupported store type: %s", cfg.StoreType)
}

// managerOptions NewManager 的可选依赖
type managerOptions struct {
	logger      *logger.CtxZapLogger
	redisClient redis.UniversalClient
	db          *gorm.DB
	etcdKV      clientv3.KV
	timeMeter   bucket.TimeMeter
	scheduler   bucket.Scheduler
	metrics     *OTelMetrics
}
