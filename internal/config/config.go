// Package config loads server settings from SPLITLEDGER_* environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmynk/splitledger/internal/money"
)

// Prefix is prepended to every variable name below.
const Prefix = "SPLITLEDGER_"

const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

type Config struct {
	// HTTP Server
	Port int `env:"PORT" envDefault:"8080"`

	// Storage
	Backend                  string `env:"BACKEND" envDefault:"memory"`
	DBPath                   string `env:"DB_PATH" envDefault:"./data/ledger.db"`
	FirestoreProject         string `env:"FIRESTORE_PROJECT"`
	FirestoreCredentialsFile string `env:"FIRESTORE_CREDENTIALS_FILE"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Ledger
	MaxAmount         string `env:"MAX_AMOUNT" envDefault:"1000000.00"`
	MaxCommitAttempts int    `env:"MAX_COMMIT_ATTEMPTS" envDefault:"5"`
	CascadeBatchSize  int    `env:"CASCADE_BATCH_SIZE" envDefault:"100"`

	// Summary cache. An empty RedisAddr keeps the cache in process.
	RedisAddr       string        `env:"REDIS_ADDR"`
	SummaryCacheTTL time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"5m"`
	SummaryCacheMax int           `env:"SUMMARY_CACHE_SIZE" envDefault:"1000"`

	// Ledger events. An empty AMQPURL disables publishing.
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"splitledger"`

	// Tracing. An empty endpoint disables export.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return load(env.Options{Prefix: Prefix})
}

// LoadFrom parses vars instead of the process environment. Keys include the
// prefix.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Prefix: Prefix, Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// MaxAmountValue returns MaxAmount as money.
func (c *Config) MaxAmountValue() (money.Money, error) {
	return money.Parse(c.MaxAmount, money.DefaultMax)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendFirestore}
	if !slices.Contains(validBackends, c.Backend) {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}
	if c.Backend == BackendSQLite && c.DBPath == "" {
		errors = append(errors, "database path cannot be empty when using sqlite backend")
	}
	if c.Backend == BackendFirestore && c.FirestoreProject == "" {
		errors = append(errors, "firestore project is required when using firestore backend")
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be positive", c.TokenTTL))
	}

	if _, err := c.MaxAmountValue(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid max amount '%s': %v", c.MaxAmount, err))
	}
	if c.MaxCommitAttempts < 1 || c.MaxCommitAttempts > 100 {
		errors = append(errors, fmt.Sprintf("invalid max commit attempts %d: must be between 1 and 100", c.MaxCommitAttempts))
	}
	if c.CascadeBatchSize < 1 || c.CascadeBatchSize > 500 {
		errors = append(errors, fmt.Sprintf("invalid cascade batch size %d: must be between 1 and 500", c.CascadeBatchSize))
	}

	if c.SummaryCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must be positive", c.SummaryCacheTTL))
	}
	if c.RedisAddr == "" && c.SummaryCacheMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheMax))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
