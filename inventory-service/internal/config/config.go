package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Log         Log
	GRPC        GRPCServer `envPrefix:"INVENTORY_"`
	Store       Store      `envPrefix:"INVENTORY_"`
	Telemetry   Telemetry  `envPrefix:"OTEL_"`

	// SeedStock is applied to products the store does not know yet.
	SeedStock map[string]int32 `env:"INVENTORY_SEED_STOCK" envDefault:"performance-tennis-shirt:100,love-cap:100,tennis-tank-top:100"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

type GRPCServer struct {
	Port string `env:"GRPC_PORT" envDefault:"50053"`
}

type Store struct {
	// Backend is "memory" or "redis".
	Backend          string        `env:"STORE" envDefault:"memory"`
	// RedisAddrs with more than one entry selects a cluster client.
	RedisAddrs       []string      `env:"REDIS_ADDR" envDefault:"localhost:6379" envSeparator:","`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix        string        `env:"REDIS_PREFIX" envDefault:"{inventory}:"`
	ReservationTTL   time.Duration `env:"RESERVATION_TTL" envDefault:"10m"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"30s"`
	SettledRetention time.Duration `env:"SETTLED_RETENTION" envDefault:"1h"`
}

type Telemetry struct {
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "redis" {
		return nil, fmt.Errorf("unknown INVENTORY_STORE %q", cfg.Store.Backend)
	}
	return cfg, nil
}
