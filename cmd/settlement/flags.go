package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env"
)

type Config struct {
	Address            string `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"INFO"`
	DatabaseConnection string `env:"DATABASE_URI"`
	JWTSecret          string `env:"JWT_SECRET" envDefault:"dontexposethis"`

	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"BDT"`
	FeePercent      string `env:"PLATFORM_FEE_PERCENT" envDefault:"10"`

	CatalogAddress string `env:"CATALOG_ADDRESS" envDefault:"http://localhost:8090"`

	GatewayAPIURL        string        `env:"GATEWAY_API_URL"`
	GatewayValidationURL string        `env:"GATEWAY_VALIDATION_URL"`
	GatewayStoreID       string        `env:"GATEWAY_STORE_ID"`
	GatewayStorePassword string        `env:"GATEWAY_STORE_PASSWORD"`
	GatewaySuccessURL    string        `env:"GATEWAY_SUCCESS_URL"`
	GatewayFailURL       string        `env:"GATEWAY_FAIL_URL"`
	GatewayCancelURL     string        `env:"GATEWAY_CANCEL_URL"`
	GatewayTimeout       time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"settlement-events"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	CallbackLimit  int           `env:"CALLBACK_RATE_LIMIT" envDefault:"60"`
	CallbackWindow time.Duration `env:"CALLBACK_RATE_WINDOW" envDefault:"1m"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ENV JWT_SECRET must be set")
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Database connection string")
	catalogAddress := flag.String("c", cfg.CatalogAddress, "Catalog service base URL")
	gatewayTimeout := flag.Duration("g", cfg.GatewayTimeout, "Payment gateway request timeout")
	feePercent := flag.String("f", cfg.FeePercent, "Platform fee percent withheld from sellers")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.CatalogAddress = *catalogAddress
	cfg.GatewayTimeout = *gatewayTimeout
	cfg.FeePercent = *feePercent

	return cfg, nil
}

func (c *Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	return strings.Split(c.KafkaBrokers, ",")
}
