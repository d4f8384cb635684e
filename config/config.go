package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	models "storefront-cart/model"
)

// Config holds all storefront-cart configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Shop       ShopConfig       `yaml:"shop"`
	Cart       CartConfig       `yaml:"cart"`
	References ReferencesConfig `yaml:"references"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ShopConfig configures the Storefront GraphQL endpoint.
type ShopConfig struct {
	Domain          string `yaml:"domain"`   // my-shop.myshopify.com
	Endpoint        string `yaml:"endpoint"` // overrides the URL derived from Domain
	StorefrontToken string `yaml:"storefront_token"`
	APIVersion      string `yaml:"api_version"`
	Timeout         string `yaml:"timeout"`
}

// CartConfig configures cart handling.
type CartConfig struct {
	LineLimit          int    `yaml:"line_limit"`
	SerializeMutations bool   `yaml:"serialize_mutations"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       string `yaml:"cookie_max_age"`
}

// ReferencesConfig selects where cart references are persisted for the
// terminal shopper session.
type ReferencesConfig struct {
	Driver string `yaml:"driver"` // memory, postgres
	DSN    string `yaml:"dsn"`
	TTL    string `yaml:"ttl"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8082",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},
		Shop: ShopConfig{
			APIVersion: "2024-10",
			Timeout:    "10s",
		},
		Cart: CartConfig{
			LineLimit:          100,
			SerializeMutations: true,
			CookieName:         "cartId",
			CookieMaxAge:       "720h",
		},
		References: ReferencesConfig{
			Driver: "memory",
			TTL:    "720h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHOPIFY_STORE_DOMAIN"); v != "" {
		c.Shop.Domain = v
	}
	if v := os.Getenv("SHOPIFY_STOREFRONT_ACCESS_TOKEN"); v != "" {
		c.Shop.StorefrontToken = v
	}
	if v := os.Getenv("SHOPIFY_API_VERSION"); v != "" {
		c.Shop.APIVersion = v
	}
	if v := os.Getenv("STOREFRONT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.References.DSN = v
		c.References.Driver = "postgres"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the settings every command needs. Missing shop credentials
// are a configuration error.
func (c *Config) Validate() error {
	if c.Shop.GraphQLEndpoint() == "" {
		return models.NewConfigurationError("config", "shop.domain or shop.endpoint is required")
	}
	if c.Shop.StorefrontToken == "" {
		return models.NewConfigurationError("config", "shop.storefront_token is required")
	}
	if c.Cart.LineLimit < 1 || c.Cart.LineLimit > 250 {
		return fmt.Errorf("cart.line_limit must be between 1 and 250, got %d", c.Cart.LineLimit)
	}
	switch c.References.Driver {
	case "memory":
	case "postgres":
		if c.References.DSN == "" {
			return fmt.Errorf("references.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown references.driver %q", c.References.Driver)
	}
	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"shop.timeout":            c.Shop.Timeout,
		"cart.cookie_max_age":     c.Cart.CookieMaxAge,
		"references.ttl":          c.References.TTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	return nil
}

// GraphQLEndpoint returns the Storefront API URL.
func (s ShopConfig) GraphQLEndpoint() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	if s.Domain == "" {
		return ""
	}
	domain := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(s.Domain, "https://"), "http://"), "/")
	return fmt.Sprintf("https://%s/api/%s/graphql.json", domain, s.APIVersion)
}

// RequestTimeout bounds a single remote call.
func (s ShopConfig) RequestTimeout() time.Duration {
	return parseDuration(s.Timeout, 10*time.Second)
}

func (c CartConfig) CookieLifetime() time.Duration {
	return parseDuration(c.CookieMaxAge, 30*24*time.Hour)
}

func (r ReferencesConfig) Lifetime() time.Duration {
	return parseDuration(r.TTL, 30*24*time.Hour)
}

func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	return parseDuration(s.ReadTimeout, 15*time.Second)
}

func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	return parseDuration(s.WriteTimeout, 30*time.Second)
}

func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(s.ShutdownTimeout, 10*time.Second)
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
