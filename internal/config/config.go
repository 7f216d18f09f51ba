package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	CorrelationToken   = "token"
	CorrelationScratch = "scratch"
)

type Config struct {
	HTTP_PORT        string `env:"HTTP_PORT" envDefault:"3333"`
	LOG_LEVEL        string `env:"LOG_LEVEL" envDefault:"info"`
	STORAGE_DRIVER   string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DB_STRING        string `env:"DB_STRING"`
	MIGRATE_ON_START bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	MP_ACCESS_TOKEN string        `env:"MERCADOPAGO_ACCESS_TOKEN"`
	MP_BASE_URL     string        `env:"MP_BASE_URL" envDefault:"https://api.mercadopago.com"`
	MP_TIMEOUT      time.Duration `env:"MP_TIMEOUT" envDefault:"10s"`

	BACK_URL_SUCCESS string `env:"BACK_URL_SUCCESS" envDefault:"https://gestion-bares.vercel.app/resumen"`
	BACK_URL_FAILURE string `env:"BACK_URL_FAILURE" envDefault:"https://gestion-bares.vercel.app/homeCliente"`
	NOTIFICATION_URL string `env:"NOTIFICATION_URL"`
	WEBHOOK_SECRET   string `env:"WEBHOOK_SECRET"`

	CORRELATION_STRATEGY string        `env:"CORRELATION_STRATEGY" envDefault:"token"`
	RECONCILE_TIMEOUT    time.Duration `env:"RECONCILE_TIMEOUT" envDefault:"20s"`
	REQUEST_TIMEOUT      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	KAFKA_BROKERS             string `env:"KAFKA_BROKERS"`
	KAFKA_EVENTS_TOPIC        string `env:"KAFKA_EVENTS_TOPIC" envDefault:"orders.completed"`
	KAFKA_NOTIFICATIONS_TOPIC string `env:"KAFKA_NOTIFICATIONS_TOPIC"`
	KAFKA_GROUP_ID            string `env:"KAFKA_GROUP_ID" envDefault:"mp-checkout-service"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.STORAGE_DRIVER {
	case StorageMemory:
	case StoragePostgres:
		if c.DB_STRING == "" {
			return fmt.Errorf("DB_STRING must be set for storage driver %q", c.STORAGE_DRIVER)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.STORAGE_DRIVER)
	}

	switch c.CORRELATION_STRATEGY {
	case CorrelationToken, CorrelationScratch:
	default:
		return fmt.Errorf("unknown CORRELATION_STRATEGY %q", c.CORRELATION_STRATEGY)
	}

	if c.MP_ACCESS_TOKEN == "" {
		return fmt.Errorf("ENV MERCADOPAGO_ACCESS_TOKEN must be set")
	}
	if c.RECONCILE_TIMEOUT <= 0 {
		return fmt.Errorf("RECONCILE_TIMEOUT must be positive")
	}
	// the router timeout has to cover a whole reconciliation
	if c.REQUEST_TIMEOUT <= c.RECONCILE_TIMEOUT {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must exceed RECONCILE_TIMEOUT (%s)", c.REQUEST_TIMEOUT, c.RECONCILE_TIMEOUT)
	}
	return nil
}

func (c *Config) KafkaEnabled() bool {
	return c.KAFKA_BROKERS != ""
}
