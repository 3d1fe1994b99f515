package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DEVICE_STORE", "PROFILE_API_TIMEOUT", "AVATAR_REMOVAL_POLICY", "JWT_ACCESS_EXPIRY", "DEVICE_ENTRY_TTL", "LOG_RETENTION_DAYS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "redis", cfg.DeviceStoreBackend)
	assert.Equal(t, 10*time.Second, cfg.ProfileAPITimeout)
	assert.Equal(t, "immediate", cfg.AvatarRemovalPolicy)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	assert.Zero(t, cfg.DeviceEntryTTL, "device entries are kept unless a TTL is configured")
}

func TestLoad_DeviceEntryTTLIsIndependentOfLogRetention(t *testing.T) {
	t.Setenv("LOG_RETENTION_DAYS", "7")
	t.Setenv("DEVICE_ENTRY_TTL", "")

	cfg := Load()
	assert.Equal(t, 7, cfg.LogRetentionDays)
	assert.Zero(t, cfg.DeviceEntryTTL)

	t.Setenv("DEVICE_ENTRY_TTL", "2160h")
	assert.Equal(t, 2160*time.Hour, Load().DeviceEntryTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEVICE_STORE", "memory")
	t.Setenv("PROFILE_API_URL", "http://users.internal")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.DeviceStoreBackend)
	assert.Equal(t, "http://users.internal", cfg.ProfileAPIURL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_REFRESH_EXPIRY", "forever")
	t.Setenv("LOG_RETENTION_DAYS", "many")

	cfg := Load()

	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshExpiry)
	assert.Equal(t, 30, cfg.LogRetentionDays)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
