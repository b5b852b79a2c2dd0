package grid

import (
	"context"
)

// Processor 计算一个 key 的新值。
// key 不存在时 current 为 nil。乐观并发的存储可能在一次 Execute 中
// 多次调用 Process，每次都必须从头计算。
type Processor interface {
	Process(current []byte) (next []byte, write bool, err error)
}

// BackupAware 给带副本的存储提供副本侧 Processor。
// Process 提交后调用，nil 表示无需同步。
type BackupAware interface {
	BackupProcessor() Processor
}

// KeyedAtomicStore 对单个 key 原子地执行 Processor。
// 核心对存储的全部要求：在一个原子步骤内读取值，
// 按需写入新值。
type KeyedAtomicStore interface {
	Execute(ctx context.Context, key string, p Processor) error

	// PutIfAbsent key 不存在时写入
	PutIfAbsent(ctx context.Context, key string, value []byte) error
}

// ProcessorFunc 函数适配为 Processor
type ProcessorFunc func(current []byte) ([]byte, bool, error)

func (f ProcessorFunc) Process(current []byte) ([]byte, bool, error) {
	return f(current)
}
