package config

import (
	"strings"
	"testing"
	"time"
)

const secret = "0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"SPLITLEDGER_JWT_SECRET": secret})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.Port != 8080 || cfg.Backend != BackendMemory || cfg.TokenTTL != 24*time.Hour {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxCommitAttempts != 5 || cfg.CascadeBatchSize != 100 {
		t.Errorf("ledger defaults = %d/%d", cfg.MaxCommitAttempts, cfg.CascadeBatchSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if max, _ := cfg.MaxAmountValue(); max != 100000000 {
		t.Errorf("MaxAmountValue() = %s", max)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SPLITLEDGER_PORT":              "9090",
		"SPLITLEDGER_BACKEND":           "sqlite",
		"SPLITLEDGER_DB_PATH":           "/tmp/x.db",
		"SPLITLEDGER_SUMMARY_CACHE_TTL": "30s",
		"SPLITLEDGER_MAX_AMOUNT":        "500",
		"SPLITLEDGER_JWT_SECRET":        secret,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 || cfg.Backend != BackendSQLite || cfg.DBPath != "/tmp/x.db" || cfg.SummaryCacheTTL != 30*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if max, err := cfg.MaxAmountValue(); err != nil || max != 50000 {
		t.Errorf("MaxAmountValue() = %s, %v", max, err)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	if _, err := LoadFrom(map[string]string{"SPLITLEDGER_PORT": "eighty"}); err == nil {
		t.Error("expected parse error for non-numeric port")
	}
	if _, err := LoadFrom(map[string]string{"SPLITLEDGER_TOKEN_TTL": "forever"}); err == nil {
		t.Error("expected parse error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }, "invalid backend"},
		{"firestore without project", func(c *Config) { c.Backend = BackendFirestore }, "firestore project"},
		{"short secret", func(c *Config) { c.JWTSecret = "abc" }, "JWT secret"},
		{"bad max amount", func(c *Config) { c.MaxAmount = "-5" }, "invalid max amount"},
		{"zero attempts", func(c *Config) { c.MaxCommitAttempts = 0 }, "max commit attempts"},
		{"huge batch", func(c *Config) { c.CascadeBatchSize = 1000 }, "cascade batch size"},
		{"amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "AMQP URL scheme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(map[string]string{"SPLITLEDGER_JWT_SECRET": secret})
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := &Config{Port: 0, Backend: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "\n- "); n < 5 {
		t.Errorf("expected several problems, got %d:\n%v", n, err)
	}
}
