package swagger

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/swaggo/swag"
)

// Config swagger 配置段
type Config struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// UIPath 必须以 /*any 结尾
	UIPath   string `mapstructure:"ui_path" json:"ui_path"`
	SpecPath string `mapstructure:"spec_path" json:"spec_path"`

	DeepLinking          bool   `mapstructure:"deep_linking" json:"deep_linking"`
	PersistAuthorization bool   `mapstructure:"persist_authorization" json:"persist_authorization"`
	DocExpansion         string `mapstructure:"doc_expansion" json:"doc_expansion"` // list, full, none

	// InstanceName swag.Register 的名字
	InstanceName string `mapstructure:"instance_name" json:"instance_name"`
}

func DefaultConfig() Config {
	return Config{
		UIPath:               "/swagger/*any",
		SpecPath:             "/openapi.json",
		DeepLinking:          true,
		PersistAuthorization: true,
		DocExpansion:         "list",
		InstanceName:         swag.Name,
	}
}

func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.UIPath == "" {
		c.UIPath = def.UIPath
	}
	if c.SpecPath == "" {
		c.SpecPath = def.SpecPath
	}
	if c.DocExpansion == "" {
		c.DocExpansion = def.DocExpansion
	}
	if c.InstanceName == "" {
		c.InstanceName = def.InstanceName
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.UIPath, validation.Required,
			validation.By(func(interface{}) error {
				if !strings.HasPrefix(c.UIPath, "/") || !strings.HasSuffix(c.UIPath, "/*any") {
					return validation.NewError("validation_ui_path", "must look like /prefix/*any")
				}
				return nil
			})),
		validation.Field(&c.DocExpansion, validation.In("list", "full", "none")),
	)
}
