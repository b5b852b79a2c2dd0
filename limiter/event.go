package limiter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	// EventAllowed 放行
	EventAllowed EventType = "allowed"

	// EventRejected 拒绝
	EventRejected EventType = "rejected"

	// EventWaitStart 开始等待
	EventWaitStart EventType = "wait_start"

	// EventWaitSuccess 等待后拿到令牌
	EventWaitSuccess EventType = "wait_success"

	// EventWaitTimeout 等待预算内拿不到令牌
	EventWaitTimeout EventType = "wait_timeout"

	// EventWaitInterrupted 等待被 ctx 取消
	EventWaitInterrupted EventType = "wait_interrupted"

	// EventStateRestored 远端状态丢失，按新 bucket 重建
	EventStateRestored EventType = "state_restored"

	// EventEvicted 闲置 bucket 被回收
	EventEvicted EventType = "evicted"
)

// Event 事件接口
type Event interface {
	ID() string
	Type() EventType
	Resource() string
	Context() context.Context
	Timestamp() time.Time
}

// BaseEvent 基础事件
type BaseEvent struct {
	id        string
	eventType EventType
	resource  string
	ctx       context.Context
	timestamp time.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType EventType, resource string, ctx context.Context) BaseEvent {
	return BaseEvent{
		id:        uuid.NewString(),
		eventType: eventType,
		resource:  resource,
		ctx:       ctx,
		timestamp: time.Now(),
	}
}

func (e *BaseEvent) ID() string               { return e.id }
func (e *BaseEvent) Type() EventType          { return e.eventType }
func (e *BaseEvent) Resource() string         { return e.resource }
func (e *BaseEvent) Context() context.Context { return e.ctx }
func (e *BaseEvent) Timestamp() time.Time     { return e.timestamp }

// AllowedEvent 放行事件
type AllowedEvent struct {
	BaseEvent
	Tokens    int64
	Remaining int64
}

// RejectedEvent 拒绝事件
type RejectedEvent struct {
	BaseEvent
	Tokens int64
	Reason string
}

// WaitEvent 等待事件
type WaitEvent struct {
	BaseEvent
	Tokens  int64
	Success bool
	Waited  time.Duration
}

// StateRestoredEvent 崩溃恢复事件
type StateRestoredEvent struct {
	BaseEvent
	Key string
}

// EvictedEvent 闲置回收事件
type EvictedEvent struct {
	BaseEvent
}

// EventListener 事件监听器
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc 函数形式的监听器
type EventListenerFunc func(event Event)

func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}

// EventBus 事件总线
type EventBus interface {
	Subscribe(listener EventListener)

	// Publish 非阻塞，缓冲区满时丢弃
	Publish(event Event)

	Close()
}
