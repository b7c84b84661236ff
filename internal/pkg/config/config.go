package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	APIBaseURL     string        `env:"COOKEASY_API_URL,      default=http://localhost:5000/api"`
	RequestTimeout time.Duration `env:"COOKEASY_HTTP_TIMEOUT, default=10s"`
	LogLevel       string        `env:"LOG_LEVEL,             default=info"`
	LogPretty      bool          `env:"LOG_PRETTY,            default=false"`

	Storage StorageConfig
	Redis   RedisConfig
}

// StorageConfig selects the credential persistence backend.
type StorageConfig struct {
	// Backend is one of "file", "redis", "memory".
	Backend string `env:"COOKEASY_STORAGE,      default=file"`
	Path    string `env:"COOKEASY_STORAGE_PATH, default=.cookeasy/session.json"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
