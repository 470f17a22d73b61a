package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	RedisAddr      string
	CacheTTL       time.Duration
	WorkerCount    int
	RequestTimeout time.Duration
	DefaultOwner   string

	AI AIConfig
}

type AIConfig struct {
	APIKey  string
	URL     string
	Model   string
	SiteURL string
	Timeout time.Duration
}

// Load reads the environment, after merging a .env file if there is one.
// An empty DatabaseURL selects in-memory storage and an empty RedisAddr
// disables the list cache.
func Load() (Config, error) {
	return load(".env")
}

func load(envFile string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		DefaultOwner: getEnv("DEFAULT_OWNER", "default-user"),
		AI: AIConfig{
			APIKey:  getEnv("OPENROUTER_API_KEY", ""),
			URL:     getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1/chat/completions"),
			Model:   getEnv("AI_MODEL", "deepseek/deepseek-chat"),
			SiteURL: getEnv("SITE_URL", "http://localhost:8080"),
		},
	}

	var err error
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.AI.Timeout, err = getDuration("AI_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WorkerCount, err = getInt("WORKER_COUNT", 2); err != nil {
		return Config{}, err
	}
	if cfg.WorkerCount < 0 {
		return Config{}, fmt.Errorf("WORKER_COUNT must not be negative, got %d", cfg.WorkerCount)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
