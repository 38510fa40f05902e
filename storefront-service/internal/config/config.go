package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Log         Log
	HTTP        HTTPServer `envPrefix:"HTTP_"`
	Auth        Auth       `envPrefix:"AUTH_"`
	Postgres    Postgres   `envPrefix:"POSTGRES_"`
	Mongo       Mongo      `envPrefix:"MONGO_"`
	Redis       Redis      `envPrefix:"REDIS_"`
	Catalog     Catalog    `envPrefix:"CATALOG_"`
	Kafka       Kafka      `envPrefix:"KAFKA_"`
	Inventory   Inventory  `envPrefix:"INVENTORY_"`
	Checkout    Checkout   `envPrefix:"CHECKOUT_"`
	Payment     Payment    `envPrefix:"PAYMENT_"`
	Paystack    Paystack   `envPrefix:"PAYSTACK_"`
	Telemetry   Telemetry  `envPrefix:"OTEL_"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

type HTTPServer struct {
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           string        `env:"PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

type Auth struct {
	// JWTSecret signs HS256 bearer tokens.
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	Issuer    string `env:"ISSUER" envDefault:"lagc"`
}

type Postgres struct {
	Host          string `env:"HOST" envDefault:"localhost"`
	Port          int    `env:"PORT" envDefault:"5432"`
	User          string `env:"USER" envDefault:"storefront"`
	Password      string `env:"PASSWORD" envDefault:"storefront"`
	DBName        string `env:"DB" envDefault:"storefront"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"./storefront-service/migrations/postgres"`
}

type Mongo struct {
	URI            string        `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database       string        `env:"DATABASE" envDefault:"storefront"`
	MaxPoolSize    uint64        `env:"MAX_POOL_SIZE" envDefault:"50"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
}

type Redis struct {
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	CartTTL  time.Duration `env:"CART_TTL" envDefault:"15m"`
}

type Catalog struct {
	DSN           string `env:"DSN" envDefault:"file:catalog.db?cache=shared"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"./storefront-service/migrations/sqlite"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic   string   `env:"OUTBOX_TOPIC" envDefault:"checkout-outbox"`
}

type Inventory struct {
	Addr    string        `env:"ADDR" envDefault:"localhost:50053"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"3s"`
}

type Checkout struct {
	Currency string `env:"CURRENCY" envDefault:"GHS"`
	// HoldTimeout bounds how long a checkout waits for the payment outcome.
	HoldTimeout time.Duration `env:"HOLD_TIMEOUT" envDefault:"10m"`
	// ReadyTimeout bounds how long Begin waits for the session to await payment.
	ReadyTimeout      time.Duration   `env:"READY_TIMEOUT" envDefault:"15s"`
	ShippingFee       decimal.Decimal `env:"SHIPPING_FEE" envDefault:"0"`
	FreeShippingOver  decimal.Decimal `env:"FREE_SHIPPING_OVER" envDefault:"50"`
	ReconcileInterval time.Duration   `env:"RECONCILE_INTERVAL" envDefault:"30s"`
}

type Payment struct {
	// Gateway is "paystack" or "simulated".
	Gateway         string        `env:"GATEWAY" envDefault:"simulated"`
	SimSuccessRatio float64       `env:"SIM_SUCCESS_RATIO" envDefault:"0.95"`
	SimDelay        time.Duration `env:"SIM_DELAY" envDefault:"2s"`
}

type Paystack struct {
	BaseURL     string `env:"BASE_URL" envDefault:"https://api.paystack.co"`
	SecretKey   string `env:"SECRET_KEY"`
	CallbackURL string `env:"CALLBACK_URL"`
}

type Telemetry struct {
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(decimal.Decimal{}): func(v string) (any, error) {
				return decimal.NewFromString(v)
			},
		},
	}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	switch cfg.Payment.Gateway {
	case "simulated":
	case "paystack":
		if cfg.Paystack.SecretKey == "" {
			return nil, fmt.Errorf("PAYSTACK_SECRET_KEY is required for the paystack gateway")
		}
	default:
		return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", cfg.Payment.Gateway)
	}
	return cfg, nil
}
