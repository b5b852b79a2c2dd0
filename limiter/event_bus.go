package limiter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/KOMKZ/go-yogan-bucket/logger"
	"go.uber.org/zap"
)

// eventBus 单协程分发，同一 bus 上的事件按发布顺序到达监听器
type eventBus struct {
	listeners []EventListener
	eventChan chan Event
	closed    bool
	dropped   atomic.Int64
	logger    *logger.CtxZapLogger
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

// NewEventBus 创建事件总线
func NewEventBus(bufferSize int, log *logger.CtxZapLogger) EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if log == nil {
		log = logger.GetLogger("limiter")
	}

	bus := &eventBus{
		eventChan: make(chan Event, bufferSize),
		logger:    log,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

func (b *eventBus) Subscribe(listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.listeners = append(b.listeners, listener)
}

func (b *eventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.eventChan <- event:
	default:
		b.dropped.Add(1)
	}
}

// Dropped 因缓冲区满丢弃的事件数
func (b *eventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close 等待已入队事件分发完毕
func (b *eventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *eventBus) dispatch() {
	defer b.wg.Done()

	for event := range b.eventChan {
		b.mu.RLock()
		listeners := make([]EventListener, len(b.listeners))
		copy(listeners, b.listeners)
		b.mu.RUnlock()

		for _, listener := range listeners {
			b.notify(listener, event)
		}
	}
}

// notify 单个监听器 panic 不影响其他监听器
func (b *eventBus) notify(listener EventListener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorCtx(context.Background(), "event listener panic",
				zap.String("event", string(event.Type())),
				zap.String("resource", event.Resource()),
				zap.Any("panic", r))
		}
	}()
	listener.OnEvent(event)
}
