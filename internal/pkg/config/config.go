package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL,    default=24h"`
	// TokenSecret keys the per-window sender token HMAC. Empty falls back to
	// plain SHA-256, which anyone knowing a user id can recompute.
	TokenSecret string `env:"TOKEN_SECRET"`

	StorageDriver  string        `env:"STORAGE_DRIVER,  default=mongo"`
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT, default=5s"`

	Mongo  MongoConfig
	Redis  RedisConfig
	Ledger LedgerConfig
	Admin  AdminConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DB,  default=whisper"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,        default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=0"`
}

type LedgerConfig struct {
	Workers     int `env:"LEDGER_WORKERS,      default=8"`
	MaxAttempts int `env:"LEDGER_MAX_ATTEMPTS, default=5"`
}

// AdminConfig bootstraps the single admin account at startup. Both fields
// empty skips the bootstrap.
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMongo, StorageMemory, c.StorageDriver)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.IsProduction() && c.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required in production")
	}
	if c.Ledger.Workers <= 0 {
		return fmt.Errorf("LEDGER_WORKERS must be positive")
	}
	if c.Ledger.MaxAttempts <= 0 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be positive")
	}
	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}
