package config

import (
	"os"
	"path/filepath"
)

// LoaderBuilder 按约定组合数据源
type LoaderBuilder struct {
	configPath string
	configFile string
	envPrefix  string
	defaults   map[string]interface{}
	overrides  map[string]interface{}
}

func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{}
}

// WithConfigPath 配置目录，读取 config.yaml 和 {env}.yaml（都可以不存在）
func (b *LoaderBuilder) WithConfigPath(path string) *LoaderBuilder {
	b.configPath = path
	return b
}

// WithConfigFile 指定单个配置文件，必须存在
func (b *LoaderBuilder) WithConfigFile(file string) *LoaderBuilder {
	b.configFile = file
	return b
}

// WithEnvPrefix 环境变量前缀
func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithDefaults 最低优先级的默认值（嵌套 map）
func (b *LoaderBuilder) WithDefaults(defaults map[string]interface{}) *LoaderBuilder {
	b.defaults = defaults
	return b
}

// WithOverrides 最高优先级的覆盖值，一般来自命令行
func (b *LoaderBuilder) WithOverrides(overrides map[string]interface{}) *LoaderBuilder {
	b.overrides = overrides
	return b
}

func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()

	if b.defaults != nil {
		loader.AddSource(NewMapSource("defaults", 1, b.defaults))
	}
	if b.configPath != "" {
		loader.AddSource(NewFileSource(filepath.Join(b.configPath, "config.yaml"), 10))
		if env := GetEnv(); env != "" {
			loader.AddSource(NewFileSource(filepath.Join(b.configPath, env+".yaml"), 20))
		}
	}
	if b.configFile != "" {
		loader.AddSource(NewRequiredFileSource(b.configFile, 30))
	}
	if b.envPrefix != "" {
		loader.AddSource(NewEnvSource(b.envPrefix, 50))
	}
	if b.overrides != nil {
		loader.AddSource(NewMapSource("overrides", 100, b.overrides))
	}

	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// GetEnv 运行环境：APP_ENV > ENV > dev
func GetEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}
