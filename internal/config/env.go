package config

import (
	"os"
	"strconv"
)

// FromEnv overlays environment variables onto cfg. Names follow the env
// surface the rest of the deployment already uses.
func FromEnv(cfg *Config) {
	if v := os.Getenv("BIND"); v != "" {
		cfg.Bind = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = n
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_NAMESPACE"); v != "" {
		cfg.Redis.Namespace = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = n
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASS"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_POOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Database.PoolSize = n
		}
	}

	if v := os.Getenv("LIMITED_FEDERATION_MODE"); isTruthy(v) {
		cfg.RequireAuthentication = true
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// isTruthy mirrors how the rest of the stack reads boolean env flags.
func isTruthy(v string) bool {
	switch v {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}
