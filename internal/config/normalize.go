package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnvOverrides lets container deployments override connection settings
// without editing config.yml. Only a small allow list of SVK_* variables is
// honored; everything else stays file-driven.
func ApplyEnvOverrides(cfg *AppConfig) {
	overrideString(&cfg.Database.Host, "SVK_DB_HOST")
	overrideInt(&cfg.Database.Port, "SVK_DB_PORT")
	overrideString(&cfg.Database.User, "SVK_DB_USER")
	overrideString(&cfg.Database.Password, "SVK_DB_PASSWORD")
	overrideString(&cfg.Database.Name, "SVK_DB_NAME")

	overrideString(&cfg.Redis.Host, "SVK_REDIS_HOST")
	overrideInt(&cfg.Redis.Port, "SVK_REDIS_PORT")
	overrideString(&cfg.Redis.Password, "SVK_REDIS_PASSWORD")
	overrideInt(&cfg.Redis.DB, "SVK_REDIS_DB")

	overrideInt(&cfg.Port, "SVK_PORT")
	overrideString(&cfg.JWTSecret, "SVK_JWT_SECRET")
	overrideString(&cfg.Platform.BaseURL, "SVK_PLATFORM_URL")
	overrideString(&cfg.Platform.ServiceToken, "SVK_PLATFORM_TOKEN")

	normalizeDatabaseConfig(&cfg.Database)
	normalizeRedisConfig(&cfg.Redis)
}

func normalizeDatabaseConfig(db *DatabaseConfig) {
	db.Host = strings.TrimSpace(db.Host)
	db.User = strings.TrimSpace(db.User)
	db.Name = strings.TrimSpace(db.Name)
	if db.Host == "" {
		db.Host = "127.0.0.1"
	}
	if db.User == "" {
		db.User = "root"
	}
}

func normalizeRedisConfig(r *RedisConfig) {
	r.Host = strings.TrimSpace(r.Host)
	if r.Host == "" {
		r.Host = "127.0.0.1"
	}
	if r.DB < 0 {
		r.DB = 0
	}
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func overrideInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
