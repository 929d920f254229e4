package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string

	LockTTL           time.Duration
	SessionTTL        time.Duration
	ValidationTimeout time.Duration
	BuildHistoryLimit int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		LockTTL:           time.Duration(getEnvInt("LOCK_TTL_SECONDS", 300)) * time.Second,
		SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_SECONDS", 86400)) * time.Second,
		ValidationTimeout: time.Duration(getEnvInt("VALIDATION_TIMEOUT_SECONDS", 10)) * time.Second,
		BuildHistoryLimit: getEnvInt("BUILD_HISTORY_LIMIT", 100),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
