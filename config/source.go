package config

// Source 配置数据源
//
// Load 返回嵌套 map（与 YAML 结构一致），不展平 key，
// 因此资源名中的点号（如 gRPC 方法名）可以保留。
//
// 建议优先级：
//   - 默认值: 1
//   - config.yaml: 10
//   - {env}.yaml: 20
//   - --config 指定的文件: 30
//   - 环境变量: 50
//   - 命令行覆盖: 100
type Source interface {
	Name() string
	Priority() int
	Load() (map[string]interface{}, error)
}

// MapSource 内存数据源，用于默认值和命令行覆盖
type MapSource struct {
	name     string
	priority int
	data     map[string]interface{}
}

// NewMapSource 创建内存数据源
func NewMapSource(name string, priority int, data map[string]interface{}) *MapSource {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &MapSource{name: name, priority: priority, data: data}
}

func (s *MapSource) Name() string  { return "map:" + s.name }
func (s *MapSource) Priority() int { return s.priority }

// Set 按点号路径写入，如 Set("limiter.store_type", "redis")
func (s *MapSource) Set(path string, value interface{}) *MapSource {
	SetPath(s.data, splitPath(path, "."), value)
	return s
}

func (s *MapSource) Load() (map[string]interface{}, error) {
	return s.data, nil
}
