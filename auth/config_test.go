package auth

import (
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestConfig_Validate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("refill-rate-42"), bcrypt.MinCost)
	require.NoError(t, err)

	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Enabled = true
		cfg.Users = []UserConfig{{Username: "ops", PasswordHash: string(hash)}}
		return cfg
	}

	assert.NoError(t, valid().Validate())
	assert.NoError(t, Config{}.Validate(), "disabled config is not validated")

	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"no users", func(c *Config) { c.Users = nil }, []string{"users"}},
		{"plain password", func(c *Config) { c.Users[0].PasswordHash = "refill-rate-42" }, []string{"users.0.password_hash"}},
		{"empty username", func(c *Config) { c.Users[0].Username = "" }, []string{"users.0.username"}},
		{"cost too high", func(c *Config) { c.BcryptCost = 40 }, []string{"bcrypt_cost"}},
		{"max length over bcrypt limit", func(c *Config) { c.Policy.MaxLength = 100 }, []string{"policy.max_length"}},
		{"zero attempts", func(c *Config) { c.LoginAttempt.MaxAttempts = 0 }, []string{"login_attempt.max_attempts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := validator.Validate(cfg, ErrInvalidConfig)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, tt.fields, validator.Fields(err))
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()

	assert.Equal(t, "bucket admin", cfg.Realm)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, 10, cfg.Policy.MinLength)
	assert.Equal(t, 72, cfg.Policy.MaxLength)
	assert.Equal(t, 5, cfg.LoginAttempt.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginAttempt.LockoutDuration)
	// 开关不做默认填充
	assert.False(t, cfg.LoginAttempt.Enabled)
}
