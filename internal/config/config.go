package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config holds application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	State    StateConfig    `toml:"state"`
	Redis    RedisConfig    `toml:"redis"`
	Session  SessionConfig  `toml:"session"`
	Funnel   FunnelConfig   `toml:"funnel"`
	Payment  PaymentConfig  `toml:"payment"`
	OAuth    OAuthConfig    `toml:"oauth"`
	Email    EmailConfig    `toml:"email"`
}

type ServerConfig struct {
	Port     string `toml:"port"`
	BaseURL  string `toml:"base_url"`
	LogLevel string `toml:"log_level"`
}

// DatabaseConfig selects the SQL dialect. Path is used by sqlite, URL by the others.
type DatabaseConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
	URL  string `toml:"url"`

	// Zero values keep the driver's defaults
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
}

// StateConfig picks where per-visitor progress, bundle and settings live
type StateConfig struct {
	Backend string `toml:"backend"`
}

type RedisConfig struct {
	Addr           string `toml:"addr"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	LibraryChannel string `toml:"library_channel"`
}

type SessionConfig struct {
	Duration        Duration `toml:"duration"`
	VisitorDuration Duration `toml:"visitor_duration"`
	VisitorSecret   string   `toml:"visitor_secret"`
	CSRFSecret      string   `toml:"csrf_secret"`
}

type FunnelConfig struct {
	SelectionMode    string `toml:"selection_mode"`
	BundlePriceCents int64  `toml:"bundle_price_cents"`
	Currency         string `toml:"currency"`
	CatalogDir       string `toml:"catalog_dir"`
	LibraryStore     string `toml:"library_store"`
	IntroVideoURL    string `toml:"intro_video_url"`
}

type PaymentConfig struct {
	Provider string       `toml:"provider"`
	PayPal   PayPalConfig `toml:"paypal"`
	Stripe   StripeConfig `toml:"stripe"`
}

type PayPalConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Mode         string `toml:"mode"`
}

type StripeConfig struct {
	SecretKey string `toml:"secret_key"`
}

type OAuthConfig struct {
	Google GoogleConfig `toml:"google"`
}

type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Enabled reports whether Google sign-in is configured
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type EmailConfig struct {
	Region      string `toml:"region"`
	FromAddress string `toml:"from_address"`
}

// Duration lets TOML values like "24h" decode into a time.Duration
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the configuration described by the embedded example file
func DefaultConfig() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// Load builds the configuration from defaults, the TOML file at path (if it
// exists), a .env file in the working directory, and finally the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// A missing .env file is normal outside development
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.BaseURL = getEnv("BASE_URL", c.Server.BaseURL)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)

	c.Database.Type = getEnv("DB_TYPE", c.Database.Type)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.State.Backend = getEnv("STATE_BACKEND", c.State.Backend)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.LibraryChannel = getEnv("REDIS_LIBRARY_CHANNEL", c.Redis.LibraryChannel)

	if v := os.Getenv("SESSION_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_DURATION: %w", err)
		}
		c.Session.Duration.Duration = d
	}
	c.Session.VisitorSecret = getEnv("VISITOR_SECRET", c.Session.VisitorSecret)
	c.Session.CSRFSecret = getEnv("CSRF_SECRET", c.Session.CSRFSecret)

	c.Funnel.SelectionMode = getEnv("SELECTION_MODE", c.Funnel.SelectionMode)
	if v := os.Getenv("BUNDLE_PRICE_CENTS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid BUNDLE_PRICE_CENTS: %q", v)
		}
		c.Funnel.BundlePriceCents = n
	}
	c.Funnel.CatalogDir = getEnv("CATALOG_DIR", c.Funnel.CatalogDir)
	c.Funnel.LibraryStore = getEnv("LIBRARY_STORE", c.Funnel.LibraryStore)
	c.Funnel.IntroVideoURL = getEnv("INTRO_VIDEO_URL", c.Funnel.IntroVideoURL)

	c.Payment.Provider = getEnv("PAYMENT_PROVIDER", c.Payment.Provider)
	c.Payment.PayPal.ClientID = getEnv("PAYPAL_CLIENT_ID", c.Payment.PayPal.ClientID)
	c.Payment.PayPal.ClientSecret = getEnv("PAYPAL_CLIENT_SECRET", c.Payment.PayPal.ClientSecret)
	c.Payment.PayPal.Mode = getEnv("PAYPAL_MODE", c.Payment.PayPal.Mode)
	c.Payment.Stripe.SecretKey = getEnv("STRIPE_SECRET_KEY", c.Payment.Stripe.SecretKey)

	c.OAuth.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", c.OAuth.Google.ClientID)
	c.OAuth.Google.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.OAuth.Google.ClientSecret)

	c.Email.Region = getEnv("AWS_REGION", c.Email.Region)
	c.Email.FromAddress = getEnv("EMAIL_FROM", c.Email.FromAddress)
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
