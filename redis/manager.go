package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Manager 管理多个 Redis 实例（单机 + 集群）
type Manager struct {
	instances map[string]*redis.Client
	clusters  map[string]*redis.ClusterClient
	configs   map[string]Config
	logger    *logger.CtxZapLogger
	metrics   *commandMetrics
	mu        sync.RWMutex
}

// NewManager 创建并 Ping 所有实例，任一失败时关闭已创建的连接
func NewManager(ctx context.Context, configs map[string]Config, log *logger.CtxZapLogger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger("redis")
	}

	m := &Manager{
		instances: make(map[string]*redis.Client),
		clusters:  make(map[string]*redis.ClusterClient),
		configs:   make(map[string]Config),
		logger:    log,
	}

	for name, cfg := range configs {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("invalid redis config %s: %w", name, err)
		}

		var client redis.UniversalClient
		if cfg.Mode == ModeCluster {
			cluster := newClusterClient(cfg)
			m.clusters[name] = cluster
			client = cluster
		} else {
			single := newClient(cfg)
			m.instances[name] = single
			client = single
		}
		m.configs[name] = cfg

		if err := client.Ping(ctx).Err(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("ping redis %s failed: %w", name, err)
		}

		m.logger.DebugCtx(ctx, "Redis 连接成功",
			zap.String("name", name),
			zap.String("mode", cfg.Mode),
			zap.Strings("addrs", cfg.Addrs))
	}

	return m, nil
}

func newClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addrs[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

func newClusterClient(cfg Config) *redis.ClusterClient {
	return redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        cfg.Addrs,
		Password:     cfg.Password,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// Client 单机实例，不存在或为集群时返回 nil
func (m *Manager) Client(name string) *redis.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[name]
}

// Cluster 集群实例
func (m *Manager) Cluster(name string) *redis.ClusterClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clusters[name]
}

// Universal 按名称返回实例，不区分模式
func (m *Manager) Universal(name string) (redis.UniversalClient, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.instances[name]; ok {
		return c, true
	}
	if c, ok := m.clusters[name]; ok {
		return c, true
	}
	return nil, false
}

// Names 所有实例名（有序）
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping 检查所有连接
func (m *Manager) Ping(ctx context.Context) error {
	for _, name := range m.Names() {
		client, _ := m.Universal(name)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis %s failed: %w", name, err)
		}
	}
	return nil
}

// Close 关闭所有连接
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, client := range m.instances {
		if err := client.Close(); err != nil {
			m.logger.Error("关闭 Redis 连接失败", zap.String("name", name), zap.Error(err))
		}
	}
	for name, cluster := range m.clusters {
		if err := cluster.Close(); err != nil {
			m.logger.Error("关闭 Redis 集群连接失败", zap.String("name", name), zap.Error(err))
		}
	}
	m.instances = make(map[string]*redis.Client)
	m.clusters = make(map[string]*redis.ClusterClient)
	m.configs = make(map[string]Config)
	return nil
}

// Shutdown samber/do 容器关闭时调用
func (m *Manager) Shutdown() error {
	// 未配置时 Provider 返回 nil
	if m == nil {
		return nil
	}
	return m.Close()
}
