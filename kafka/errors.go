package kafka

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode kafka 模块码
const ModuleCode = 36

var (
	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 1, "kafka", "error.kafka.invalid_config",
		"invalid kafka config", http.StatusInternalServerError))

	// ErrProducer 创建 producer 失败
	ErrProducer = errcode.Register(errcode.New(ModuleCode, 2, "kafka", "error.kafka.producer",
		"kafka producer unavailable", http.StatusServiceUnavailable))
)
