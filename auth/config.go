package auth

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt 只使用前 72 字节
const maxPasswordBytes = 72

// Config 管理接口的 Basic 认证
type Config struct {
	Enabled    bool         `mapstructure:"enabled" json:"enabled"`
	Realm      string       `mapstructure:"realm" json:"realm"`
	Users      []UserConfig `mapstructure:"users" json:"users"`
	BcryptCost int          `mapstructure:"bcrypt_cost" json:"bcrypt_cost"` // 4-31，推荐 10-12

	Policy       PasswordPolicy     `mapstructure:"policy" json:"policy"`
	LoginAttempt LoginAttemptConfig `mapstructure:"login_attempt" json:"login_attempt"`
}

// UserConfig 密码只保存 bcrypt 哈希，用 bucketctl hash-password 生成
type UserConfig struct {
	Username     string `mapstructure:"username" json:"username"`
	PasswordHash string `mapstructure:"password_hash" json:"-"`
}

func (u UserConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&u.PasswordHash, validation.Required, validation.By(isBcryptHash)),
	)
}

func isBcryptHash(value interface{}) error {
	hash, _ := value.(string)
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return errors.New("must be a bcrypt hash")
	}
	return nil
}

// PasswordPolicy 密码复杂度要求
type PasswordPolicy struct {
	MinLength          int      `mapstructure:"min_length" json:"min_length"`
	MaxLength          int      `mapstructure:"max_length" json:"max_length"`
	RequireUppercase   bool     `mapstructure:"require_uppercase" json:"require_uppercase"`
	RequireLowercase   bool     `mapstructure:"require_lowercase" json:"require_lowercase"`
	RequireDigit       bool     `mapstructure:"require_digit" json:"require_digit"`
	RequireSpecialChar bool     `mapstructure:"require_special_char" json:"require_special_char"`
	Blacklist          []string `mapstructure:"blacklist" json:"blacklist"` // 包含即拒绝，不区分大小写
}

// LoginAttemptConfig 失败次数限制。
// 每个用户名有一个容量为 MaxAttempts、每 LockoutDuration 补满的令牌桶，失败一次取一个令牌。
type LoginAttemptConfig struct {
	Enabled         bool          `mapstructure:"enabled" json:"enabled"`
	MaxAttempts     int           `mapstructure:"max_attempts" json:"max_attempts"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration" json:"lockout_duration"`
}

func DefaultConfig() Config {
	return Config{
		Realm:      "bucket admin",
		BcryptCost: bcrypt.DefaultCost,
		Policy: PasswordPolicy{
			MinLength:        10,
			MaxLength:        maxPasswordBytes,
			RequireLowercase: true,
			RequireDigit:     true,
			Blacklist:        []string{"password", "123456", "admin", "bucket"},
		},
		LoginAttempt: LoginAttemptConfig{
			Enabled:         true,
			MaxAttempts:     5,
			LockoutDuration: 15 * time.Minute,
		},
	}
}

// ApplyDefaults 填充零值字段，布尔开关保持原样
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Realm == "" {
		c.Realm = def.Realm
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = def.BcryptCost
	}
	if c.Policy.MinLength <= 0 {
		c.Policy.MinLength = def.Policy.MinLength
	}
	if c.Policy.MaxLength <= 0 {
		c.Policy.MaxLength = def.Policy.MaxLength
	}
	if c.LoginAttempt.MaxAttempts <= 0 {
		c.LoginAttempt.MaxAttempts = def.LoginAttempt.MaxAttempts
	}
	if c.LoginAttempt.LockoutDuration <= 0 {
		c.LoginAttempt.LockoutDuration = def.LoginAttempt.LockoutDuration
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.Errors{
		"users":       validation.Validate(c.Users, validation.Required),
		"bcrypt_cost": validation.Validate(c.BcryptCost, validation.Min(bcrypt.MinCost), validation.Max(bcrypt.MaxCost)),
		"policy.max_length": validation.Validate(c.Policy.MaxLength,
			validation.Max(maxPasswordBytes), validation.Min(c.Policy.MinLength)),
		"login_attempt.max_attempts": validation.Validate(c.LoginAttempt.MaxAttempts,
			validation.When(c.LoginAttempt.Enabled, validation.Min(1))),
	}.Filter()
}
