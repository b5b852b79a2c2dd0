package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// FileSource 文件数据源（yaml / json / toml，由扩展名决定）
type FileSource struct {
	path     string
	priority int
	required bool
}

// NewFileSource 文件不存在时返回空配置
func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{path: path, priority: priority}
}

// NewRequiredFileSource 文件不存在时报错
func NewRequiredFileSource(path string, priority int) *FileSource {
	return &FileSource{path: path, priority: priority, required: true}
}

func (s *FileSource) Name() string  { return "file:" + s.path }
func (s *FileSource) Priority() int { return s.priority }
func (s *FileSource) Path() string  { return s.path }

func (s *FileSource) Load() (map[string]interface{}, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) && !s.required {
			return make(map[string]interface{}), nil
		}
		return nil, fmt.Errorf("访问配置文件失败 %s: %w", s.path, err)
	}

	// 用不会出现在 key 中的分隔符，AllSettings 才不会按点号拆分资源名
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", s.path, err)
	}
	return v.AllSettings(), nil
}
