package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port  string
	Store string // "mongo" or "memory"

	MongoURI string
	MongoDB  string

	// RedisURL empty means events stay in-process.
	RedisURL      string
	RedisPassword string

	// JWTSecret empty disables authentication of mutations.
	JWTSecret []byte

	OpTimeout         time.Duration
	OpRetries         uint64
	MaxDepth          int
	ReconcileInterval time.Duration
	RateLimit         float64
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:          get("PORT", ":8080"),
		Store:         get("STORE", "mongo"),
		MongoURI:      get("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       get("MONGO_DB", "socialgraph"),
		RedisURL:      getenv("REDIS_URL"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		JWTSecret:     []byte(getenv("JWT_SECRET")),
	}
	if cfg.Port[0] != ':' {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.Store != "mongo" && cfg.Store != "memory" {
		return Config{}, fmt.Errorf("STORE must be mongo or memory, got %q", cfg.Store)
	}

	var err error
	if cfg.OpTimeout, err = time.ParseDuration(get("OP_TIMEOUT", "5s")); err != nil {
		return Config{}, fmt.Errorf("OP_TIMEOUT: %w", err)
	}
	if cfg.OpRetries, err = strconv.ParseUint(get("OP_RETRIES", "4"), 10, 32); err != nil {
		return Config{}, fmt.Errorf("OP_RETRIES: %w", err)
	}
	if cfg.MaxDepth, err = strconv.Atoi(get("MAX_DEPTH", "8")); err != nil || cfg.MaxDepth < 1 {
		return Config{}, fmt.Errorf("MAX_DEPTH must be a positive integer, got %q", getenv("MAX_DEPTH"))
	}
	if cfg.ReconcileInterval, err = time.ParseDuration(get("RECONCILE_INTERVAL", "1m")); err != nil {
		return Config{}, fmt.Errorf("RECONCILE_INTERVAL: %w", err)
	}
	if cfg.RateLimit, err = strconv.ParseFloat(get("RATE_LIMIT", "5"), 64); err != nil || cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT must be a positive number, got %q", getenv("RATE_LIMIT"))
	}
	return cfg, nil
}
