package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config 应用配置，全部来自环境变量（.env 由 main 预先加载）
type Config struct {
	Port     string
	Env      string
	LogLevel string

	StorageDriver string
	DatabaseURL   string

	SessionSecret string
	JWTSecret     string
	JWTTTL        time.Duration

	CORSOrigins []string

	SeedSampleData    bool
	ViewFlushInterval time.Duration
	TagReconcileSpec  string
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		SessionSecret: getEnv("SESSION_SECRET", "secret_key_change_me"),
		JWTSecret:     getEnv("JWT_SECRET", "jwt_secret_change_me"),
		JWTTTL:        getDuration("JWT_TTL", 24*time.Hour),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		SeedSampleData:    getBool("SEED_SAMPLE_DATA", true),
		ViewFlushInterval: getDuration("VIEW_FLUSH_INTERVAL", 2*time.Second),
		TagReconcileSpec:  getEnv("TAG_RECONCILE_SPEC", "@every 10m"),
	}
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv 获取环境变量，不存在时返回默认值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
