package config

import (
	"os"
	"strings"
)

// EnvSource 环境变量数据源
//
// 层级用双下划线分隔，单下划线保留在 key 中：
//
//	BUCKET_LIMITER__STORE_TYPE=redis  ->  limiter.store_type
//	BUCKET_REDIS__INSTANCES__MAIN__ADDR=...  ->  redis.instances.main.addr
type EnvSource struct {
	prefix   string
	priority int
	environ  func() []string
}

// NewEnvSource 创建环境变量数据源，prefix 如 "BUCKET"
func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{prefix: prefix, priority: priority, environ: os.Environ}
}

func (s *EnvSource) Name() string  { return "env:" + s.prefix }
func (s *EnvSource) Priority() int { return s.priority }

func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if s.prefix == "" {
		return result, nil
	}

	prefix := s.prefix + "_"
	for _, env := range s.environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		path := splitPath(strings.ToLower(strings.TrimPrefix(key, prefix)), "__")
		if len(path) == 0 {
			continue
		}
		SetPath(result, path, value)
	}
	return result, nil
}
