package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// Loader 多数据源配置加载器，按优先级从低到高合并
type Loader struct {
	sources     []Source
	merged      map[string]interface{}
	v           *viper.Viper
	loadedFiles []string
}

func NewLoader() *Loader {
	return &Loader{
		merged: make(map[string]interface{}),
		v:      viper.New(),
	}
}

// AddSource 添加数据源，Load 之后生效
func (l *Loader) AddSource(source Source) {
	l.sources = append(l.sources, source)
}

// Load 加载并合并所有数据源
func (l *Loader) Load() error {
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() < l.sources[j].Priority()
	})

	merged := make(map[string]interface{})
	var files []string
	for _, source := range l.sources {
		data, err := source.Load()
		if err != nil {
			return fmt.Errorf("加载数据源 %s 失败: %w", source.Name(), err)
		}
		if fs, ok := source.(*FileSource); ok && len(data) > 0 {
			files = append(files, fs.Path())
		}
		deepMerge(merged, data)
	}

	// 只按顶层 key 写入 viper，嵌套部分原样保留
	v := viper.New()
	for key, value := range merged {
		v.Set(key, value)
	}

	l.merged, l.v, l.loadedFiles = merged, v, files
	return nil
}

// Reload 重新读取所有数据源
func (l *Loader) Reload() error {
	return l.Load()
}

// Unmarshal 整体解析到结构体（mapstructure tag）
func (l *Loader) Unmarshal(out interface{}) error {
	return l.v.Unmarshal(out)
}

// UnmarshalKey 解析某个配置段，如 "limiter"、"redis.instances"
func (l *Loader) UnmarshalKey(key string, out interface{}) error {
	if err := l.v.UnmarshalKey(key, out); err != nil {
		return fmt.Errorf("解析配置 %s 失败: %w", key, err)
	}
	return nil
}

func (l *Loader) Get(key string) interface{}           { return l.v.Get(key) }
func (l *Loader) GetString(key string) string          { return l.v.GetString(key) }
func (l *Loader) GetInt(key string) int                { return l.v.GetInt(key) }
func (l *Loader) GetBool(key string) bool              { return l.v.GetBool(key) }
func (l *Loader) GetDuration(key string) time.Duration { return l.v.GetDuration(key) }
func (l *Loader) IsSet(key string) bool                { return l.v.IsSet(key) }
func (l *Loader) AllSettings() map[string]interface{}  { return l.v.AllSettings() }

// GetLoadedFiles 实际读到内容的配置文件
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

// GetViper 底层 viper 实例
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}
