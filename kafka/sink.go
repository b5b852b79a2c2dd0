// Package kafka 把限流事件异步投递到 Kafka topic，供审计和离线分析
//
//	sink, _ := kafka.NewEventSink(cfg, log)
//	lm.GetEventBus().Subscribe(sink)
//	defer sink.Close()
package kafka

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/logger"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"go.uber.org/zap"
)

// Record 写入 Kafka 的消息体
type Record struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Resource  string    `json:"resource"`
	Timestamp time.Time `json:"timestamp"`
	Tokens    int64     `json:"tokens,omitempty"`
	Remaining int64     `json:"remaining,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	WaitedMs  int64     `json:"waited_ms,omitempty"`
	StoreKey  string    `json:"store_key,omitempty"`
}

// SinkStats 投递计数
type SinkStats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

// EventSink 实现 limiter.EventListener
// OnEvent 不阻塞事件总线，producer 输入队列满时丢弃
type EventSink struct {
	producer sarama.AsyncProducer
	topic    string
	events   map[limiter.EventType]struct{}
	logger   *logger.CtxZapLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewEventSink 连接 broker 并创建异步 producer
func NewEventSink(cfg Config, log *logger.CtxZapLogger) (*EventSink, error) {
	cfg.ApplyDefaults()
	if err := validator.Validate(cfg, ErrInvalidConfig); err != nil {
		return nil, err
	}
	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, ErrInvalidConfig.Wrap(err)
	}
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, ErrProducer.Wrap(err)
	}
	return NewEventSinkWithProducer(producer, cfg, log), nil
}

// NewEventSinkWithProducer 使用外部 producer，测试时传入 mocks.AsyncProducer
func NewEventSinkWithProducer(producer sarama.AsyncProducer, cfg Config, log *logger.CtxZapLogger) *EventSink {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	events := make(map[limiter.EventType]struct{}, len(cfg.Events))
	for _, e := range cfg.Events {
		events[limiter.EventType(e)] = struct{}{}
	}

	s := &EventSink{
		producer: producer,
		topic:    cfg.Topic,
		events:   events,
		logger:   log,
	}
	s.wg.Add(1)
	go s.drainErrors()

	log.Debug("✅ kafka event sink ready",
		zap.String("topic", cfg.Topic),
		zap.Strings("events", cfg.Events))
	return s
}

func (s *EventSink) drainErrors() {
	defer s.wg.Done()
	for perr := range s.producer.Errors() {
		s.failed.Add(1)
		s.logger.Warn("⚠️  publish limiter event failed",
			zap.String("topic", perr.Msg.Topic),
			zap.Error(perr.Err))
	}
}

// Accepts 是否投递该类型事件
func (s *EventSink) Accepts(t limiter.EventType) bool {
	_, ok := s.events[t]
	return ok
}

// OnEvent 由事件总线的分发协程调用
func (s *EventSink) OnEvent(event limiter.Event) {
	if s == nil || !s.Accepts(event.Type()) {
		return
	}

	rec := NewRecord(event)
	value, err := json.Marshal(rec)
	if err != nil {
		s.failed.Add(1)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(rec.Resource),
		Value:     sarama.ByteEncoder(value),
		Timestamp: rec.Timestamp,
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(rec.Type)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.producer.Input() <- msg:
		s.published.Add(1)
	default:
		s.dropped.Add(1)
	}
}

// NewRecord 按事件类型展开字段
func NewRecord(event limiter.Event) Record {
	rec := Record{
		ID:        event.ID(),
		Type:      string(event.Type()),
		Resource:  event.Resource(),
		Timestamp: event.Timestamp(),
	}
	switch e := event.(type) {
	case *limiter.AllowedEvent:
		rec.Tokens = e.Tokens
		rec.Remaining = e.Remaining
	case *limiter.RejectedEvent:
		rec.Tokens = e.Tokens
		rec.Reason = e.Reason
	case *limiter.WaitEvent:
		rec.Tokens = e.Tokens
		rec.WaitedMs = e.Waited.Milliseconds()
	case *limiter.StateRestoredEvent:
		rec.StoreKey = e.Key
	}
	return rec
}

func (s *EventSink) Stats() SinkStats {
	if s == nil {
		return SinkStats{}
	}
	return SinkStats{
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}

// Close 刷出缓冲中的消息后关闭 producer，可重复调用
func (s *EventSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.producer.AsyncClose()
	s.wg.Wait()

	stats := s.Stats()
	s.logger.Debug("kafka event sink closed",
		zap.Int64("published", stats.Published),
		zap.Int64("dropped", stats.Dropped),
		zap.Int64("failed", stats.Failed))
	return nil
}

// Shutdown do 容器关闭时调用
func (s *EventSink) Shutdown() error {
	return s.Close()
}
