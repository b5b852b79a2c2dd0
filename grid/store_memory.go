package grid

import (
	"context"
	"hash/fnv"
	"sync"
)

const memoryStripes = 64

// MemoryStore 进程内存储，一个主副本加 N 个副本。
// 同一 key 的命令由分段锁串行化，提交的值
// 通过 BackupProcessor 同步到副本。
type MemoryStore struct {
	locks [memoryStripes]sync.Mutex

	mu      sync.RWMutex
	primary map[string][]byte
	backups []map[string][]byte
}

// NewMemoryStore 带 backupCount 个副本
func NewMemoryStore(backupCount int) *MemoryStore {
	s := &MemoryStore{
		primary: make(map[string][]byte),
		backups: make([]map[string][]byte, backupCount),
	}
	for i := range s.backups {
		s.backups[i] = make(map[string][]byte)
	}
	return s
}

func (s *MemoryStore) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%memoryStripes]
}

func (s *MemoryStore) Execute(ctx context.Context, key string, p Processor) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	next, write, err := p.Process(s.Get(key))
	if err != nil || !write {
		return err
	}

	s.mu.Lock()
	s.primary[key] = cloneBytes(next)
	s.mu.Unlock()

	ba, ok := p.(BackupAware)
	if !ok {
		return nil
	}
	backup := ba.BackupProcessor()
	if backup == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, replica := range s.backups {
		value, write, err := backup.Process(cloneBytes(replica[key]))
		if err != nil {
			return err
		}
		if write {
			replica[key] = cloneBytes(value)
		}
	}
	return nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.primary[key]; exists {
		return nil
	}
	s.primary[key] = cloneBytes(value)
	for _, replica := range s.backups {
		replica[key] = cloneBytes(value)
	}
	return nil
}

// Get 主副本的值，不存在时为 nil
func (s *MemoryStore) Get(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBytes(s.primary[key])
}

// Backup 第 index 个副本的值，不存在时为 nil
func (s *MemoryStore) Backup(index int, key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBytes(s.backups[index][key])
}

// Evict 从主副本和所有副本删除 key（模拟重启或淘汰）
func (s *MemoryStore) Evict(key string) {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.primary, key)
	for _, replica := range s.backups {
		delete(replica, key)
	}
}

// FailPrimary 丢弃 key 的主副本，提升第一个持有它的副本。
// 没有副本持有时返回 false。
func (s *MemoryStore) FailPrimary(key string) bool {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.primary, key)
	for _, replica := range s.backups {
		if value, ok := replica[key]; ok {
			s.primary[key] = value
			delete(replica, key)
			return true
		}
	}
	return false
}

// Len 主副本中的 key 数量
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primary)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
