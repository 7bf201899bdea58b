package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWT:            JWTConfig{SecretKey: strings.Repeat("j", 32)},
		InternalSecret: strings.Repeat("i", 32),
		Encryption:     EncryptionConfig{Key: strings.Repeat("ab", 32)},
		GoPay: GoPayConfig{
			GoID:         "8123456789",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		},
		Hestia: HestiaConfig{AccessKey: "hestia-key"},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsInsecureSecrets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"default jwt secret", func(c *Config) { c.JWT.SecretKey = "your-secret-key-change-in-production" }, "JWT_SECRET_KEY"},
		{"short jwt secret", func(c *Config) { c.JWT.SecretKey = "short" }, "JWT_SECRET_KEY"},
		{"empty internal secret", func(c *Config) { c.InternalSecret = "" }, "INTERNAL_SECRET"},
		{"changeme internal secret", func(c *Config) { c.InternalSecret = "changeme" }, "INTERNAL_SECRET"},
		{"short encryption key", func(c *Config) { c.Encryption.Key = "abcd" }, "ENCRYPTION_KEY"},
		{"missing gopay credentials", func(c *Config) { c.GoPay.ClientSecret = "" }, "GOPAY"},
		{"missing hestia key", func(c *Config) { c.Hestia.AccessKey = "" }, "HESTIA_ACCESS_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.internal",
		Port:     "5432",
		User:     "shop",
		Password: "pw",
		DBName:   "saas",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://shop:pw@db.internal:5432/saas?sslmode=require", db.DSN())
}
