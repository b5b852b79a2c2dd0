package errcode

import (
	"fmt"
	"sort"
	"sync"
)

// Registry 错误码注册表，防止不同错误占用同一个码
type Registry struct {
	mu     sync.RWMutex
	codes  map[int]*LayeredError
	locked bool
}

func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]*LayeredError)}
}

var globalRegistry = NewRegistry()

// Register 注册到全局注册表，通常用于包级错误变量初始化
//
//	var ErrClosed = errcode.Register(errcode.New(32, 5, "limiter", "error.limiter.closed", "limiter closed"))
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register 相同 code + module + msgKey 幂等；冲突或已锁定时 panic
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locked {
		panic(fmt.Sprintf("errcode: registry is locked, cannot register %d", err.Code()))
	}
	if existing, ok := r.codes[err.Code()]; ok {
		if existing.Module() != err.Module() || existing.MsgKey() != err.MsgKey() {
			panic(fmt.Sprintf("errcode: code %d already registered as %s:%s, cannot register as %s:%s",
				err.Code(), existing.Module(), existing.MsgKey(), err.Module(), err.MsgKey()))
		}
		return err
	}
	r.codes[err.Code()] = err
	return err
}

// Lock 启动完成后锁定，阻止运行时注册
func (r *Registry) Lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

// Lookup 按码查找
func (r *Registry) Lookup(code int) (*LayeredError, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	err, ok := r.codes[code]
	return err, ok
}

// All 按码排序
func (r *Registry) All() []*LayeredError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*LayeredError, 0, len(r.codes))
	for _, err := range r.codes {
		all = append(all, err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code() < all[j].Code() })
	return all
}

// Lookup 全局注册表
func Lookup(code int) (*LayeredError, bool) {
	return globalRegistry.Lookup(code)
}

// All 全局注册表中的所有错误码
func All() []*LayeredError {
	return globalRegistry.All()
}
