package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	DriverRemote   = "remote"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	StoreDriver    string   `mapstructure:"STORE_DRIVER"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant  string   `mapstructure:"DEFAULT_TENANT"`
	LocalPath      string   `mapstructure:"LOCAL_PATH"`
	APIURL         string   `mapstructure:"API_URL"`
	APIToken       string   `mapstructure:"API_TOKEN"`
	Principal      string   `mapstructure:"PRINCIPAL"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthSignKey    string   `mapstructure:"AUTH_SIGNING_KEY"`
	NATSURL        string   `mapstructure:"NATS_URL"`
	NotifySubject  string   `mapstructure:"NOTIFY_SUBJECT"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	SeedDemoData   bool     `mapstructure:"SEED_DEMO_DATA"`
	PushgatewayURL string   `mapstructure:"PUSHGATEWAY_URL"`
}

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_TENANT", "LOCAL_PATH", "API_URL", "API_TOKEN", "PRINCIPAL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"NATS_URL", "NOTIFY_SUBJECT", "CORS_ORIGINS", "SEED_DEMO_DATA",
	"PUSHGATEWAY_URL",
}

// Load reads .env (when present) and the environment. It does not
// validate; call Validate once the command knows what it needs.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("LOCAL_PATH", "./data/mednote.db")
	v.SetDefault("PRINCIPAL", "local-user")
	v.SetDefault("NOTIFY_SUBJECT", "mednote.notifications")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SEED_DEMO_DATA", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate enforces what the selected store driver needs. The hosted
// variant cannot start without an endpoint and credential.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", c.StoreDriver)
		}
	case DriverSQLite, DriverBadger:
		if c.LocalPath == "" {
			return fmt.Errorf("LOCAL_PATH is required when STORE_DRIVER is %q", c.StoreDriver)
		}
	case DriverRemote:
		if c.APIURL == "" {
			return fmt.Errorf("API_URL is required when STORE_DRIVER is %q", c.StoreDriver)
		}
		if c.APIToken == "" {
			return fmt.Errorf("API_TOKEN is required when STORE_DRIVER is %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, sqlite, badger, remote; got %q", c.StoreDriver)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// ValidateServer checks the settings `serve` needs on top of Validate.
// Outside development a token verifier must be configured.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.StoreDriver == DriverRemote {
		return fmt.Errorf("serve cannot use STORE_DRIVER %q; it is the backend", DriverRemote)
	}
	if !c.IsDev() && c.AuthJWKSURL == "" && c.AuthSignKey == "" {
		return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when ENV is %q", c.Env)
	}
	return nil
}
