package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AppEnv         string
	BaseURL        string
	StoreBackend   string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string
	CodeLength     int
	MaxRetries     int
	CacheSize      int
	CacheTTL       time.Duration
	ClickTimeout   time.Duration
	ConnectTimeout time.Duration
	CORSOrigins    []string
	TrustProxy     bool
	LogLevel       string
	LogFormat      string
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "local"),
		BaseURL:        strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		DatabaseURL:    getEnv("DATABASE_URL", "file:db.sqlite"),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "shortlink:"),
		CodeLength:     getEnvInt("CODE_LENGTH", 6),
		MaxRetries:     getEnvInt("MAX_RETRIES", 5),
		CacheSize:      getEnvInt("CACHE_SIZE", 0),
		CacheTTL:       getEnvDuration("CACHE_TTL", 30*time.Second),
		ClickTimeout:   getEnvDuration("CLICK_TIMEOUT", 5*time.Second),
		ConnectTimeout: getEnvDuration("CONNECT_TIMEOUT", 30*time.Second),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"*"}),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
