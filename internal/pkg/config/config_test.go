package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.StorageDriver != StorageMongo {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWTTTL != 24*time.Hour || cfg.StorageTimeout != 5*time.Second {
		t.Fatalf("unexpected durations: %s %s", cfg.JWTTTL, cfg.StorageTimeout)
	}
	if cfg.Ledger.Workers != 8 || cfg.Ledger.MaxAttempts != 5 {
		t.Fatalf("unexpected ledger config: %+v", cfg.Ledger)
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORAGE_DRIVER": "memory",
		"LEDGER_WORKERS": "2",
		"REDIS_DB":       "3",
		"JWT_TTL":        "1h",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != StorageMemory || cfg.Ledger.Workers != 2 || cfg.Redis.DB != 3 || cfg.JWTTTL != time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadWith_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":       {"STORAGE_DRIVER": "postgres"},
		"prod secrets": {"ENV": "production"},
		"workers":      {"LEDGER_WORKERS": "0"},
		"half admin":   {"ADMIN_USERNAME": "root"},
		"bad duration": {"JWT_TTL": "soon"},
	}
	for name, env := range cases {
		if _, err := LoadWith(context.Background(), envconfig.MapLookuper(env)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
