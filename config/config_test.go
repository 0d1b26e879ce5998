package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("MAX_UPLOAD_MB", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, int64(50), cfg.MaxUploadMB)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONGODB_URI", MemoryURI)
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://smartbook.app ,")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"http://localhost:3000", "https://smartbook.app"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("SMTP_PORT", "twenty-five")
	t.Setenv("JWT_TTL", "a week")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_PORT")
	assert.Contains(t, err.Error(), "JWT_TTL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{JWTSecret: "s3cret", JWTTTL: time.Hour, MaxUploadMB: 10, OTPRateLimit: 5, Environment: "production"}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"default secret in production": func(c *Config) { c.JWTSecret = defaultJWTSecret },
		"empty secret":                 func(c *Config) { c.JWTSecret = " " },
		"memory store in production":   func(c *Config) { c.MongoURI = MemoryURI },
		"upload limit":                 func(c *Config) { c.MaxUploadMB = 0 },
		"admin without password":       func(c *Config) { c.AdminEmail = "root@example.com" },
		"short admin password":         func(c *Config) { c.AdminEmail, c.AdminPassword = "root@example.com", "123" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
