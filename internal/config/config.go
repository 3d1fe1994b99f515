package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Device store: redis, postgres or memory
	DeviceStoreBackend string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	// Idle time after which a device entry is dropped. Zero keeps entries.
	DeviceEntryTTL time.Duration

	// Profile API. Empty URL means the in-process service is used.
	ProfileAPIURL     string
	ProfileAPITimeout time.Duration

	// Profile settings view
	AvatarRemovalPolicy string
	ViewIdleTTL         time.Duration

	// Logging
	LogRetentionDays int

	// Server
	Port         string
	CORSOrigins  string
	CookieSecure bool
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, seeds variables that are not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "skyreserve"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),

		DeviceStoreBackend: getEnv("DEVICE_STORE", "redis"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            parseInt(getEnv("REDIS_DB", "0"), 0),
		DeviceEntryTTL:     parseDuration(getEnv("DEVICE_ENTRY_TTL", "0"), 0),

		ProfileAPIURL:     getEnv("PROFILE_API_URL", ""),
		ProfileAPITimeout: parseDuration(getEnv("PROFILE_API_TIMEOUT", "10s"), 10*time.Second),

		AvatarRemovalPolicy: getEnv("AVATAR_REMOVAL_POLICY", "immediate"),
		ViewIdleTTL:         parseDuration(getEnv("VIEW_IDLE_TTL", "30m"), 30*time.Minute),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),

		Port:         getEnv("PORT", "8080"),
		CORSOrigins:  getEnv("CORS_ORIGINS", "*"),
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
