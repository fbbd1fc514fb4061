package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DevSecretKey is the fallback session secret used for local/demo runs.
const DevSecretKey = "dev-secret-key-change-me-in-production"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Session   SessionConfig   `koanf:"session"`
	Database  DatabaseConfig  `koanf:"database"`
	OAuth     OAuthConfig     `koanf:"oauth"`
	Fintoc    FintocConfig    `koanf:"fintoc"`
	TLS       TLSConfig       `koanf:"tls"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host         string   `koanf:"host"`
	Port         string   `koanf:"port"`
	HostURL      string   `koanf:"host_url"`
	AllowedHosts []string `koanf:"allowed_hosts"`
}

type SessionConfig struct {
	SecretKey  string        `koanf:"secret_key"`
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
	Store      string        `koanf:"store"` // memory | postgres
	// CleanupInterval is how often expired sessions are purged.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

type OAuthConfig struct {
	Google GoogleOAuthConfig `koanf:"google"`
}

type GoogleOAuthConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// FintocConfig configures the bank aggregation client. An empty APIKey
// leaves the client unconfigured, which is not a load error.
type FintocConfig struct {
	APIKey    string        `koanf:"api_key"`
	PublicKey string        `koanf:"public_key"`
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	Country   string        `koanf:"country"`
}

type TLSConfig struct {
	Enabled      bool   `koanf:"enabled"`
	CertPath     string `koanf:"cert_path"`
	KeyPath      string `koanf:"key_path"`
	RedirectHTTP bool   `koanf:"redirect_http"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ServiceName  string `koanf:"service_name"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	MetricsPort  string `koanf:"metrics_port"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// envKeys maps process environment variables onto config keys.
var envKeys = map[string]string{
	"HOST":                   "server.host",
	"PORT":                   "server.port",
	"HOST_URL":               "server.host_url",
	"ALLOWED_HOSTS":          "server.allowed_hosts",
	"SECRET_KEY":             "session.secret_key",
	"SESSION_COOKIE_NAME":    "session.cookie_name",
	"SESSION_TTL":            "session.ttl",
	"SESSION_STORE":          "session.store",
	"SESSION_CLEANUP":        "session.cleanup_interval",
	"DB_HOST":                "database.host",
	"DB_PORT":                "database.port",
	"DB_USER":                "database.user",
	"DB_PASSWORD":            "database.password",
	"DB_NAME":                "database.name",
	"DB_SSLMODE":             "database.sslmode",
	"GOOGLE_CLIENT_ID":       "oauth.google.client_id",
	"GOOGLE_CLIENT_SECRET":   "oauth.google.client_secret",
	"GOOGLE_REDIRECT_URL":    "oauth.google.redirect_url",
	"FINTOC_API_KEY":         "fintoc.api_key",
	"FINTOC_PUBLIC_KEY":      "fintoc.public_key",
	"FINTOC_BASE_URL":        "fintoc.base_url",
	"FINTOC_TIMEOUT":         "fintoc.timeout",
	"FINTOC_COUNTRY":         "fintoc.country",
	"TLS_ENABLED":            "tls.enabled",
	"TLS_CERT_PATH":          "tls.cert_path",
	"TLS_KEY_PATH":           "tls.key_path",
	"TLS_REDIRECT_HTTP":      "tls.redirect_http",
	"OTEL_ENABLED":           "telemetry.enabled",
	"OTEL_SERVICE_NAME":      "telemetry.service_name",
	"OTEL_EXPORTER_ENDPOINT": "telemetry.otlp_endpoint",
	"METRICS_PORT":           "telemetry.metrics_port",
	"LOG_LEVEL":              "log.level",
	"LOG_JSON":               "log.json",
}

var boolKeys = map[string]bool{
	"tls.enabled":       true,
	"tls.redirect_http": true,
	"telemetry.enabled": true,
	"log.json":          true,
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = "5001"
	cfg.Session.SecretKey = DevSecretKey
	cfg.Session.CookieName = "bancolink_session"
	cfg.Session.TTL = 24 * time.Hour
	cfg.Session.Store = "memory"
	cfg.Session.CleanupInterval = 15 * time.Minute
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "bancolink"
	cfg.Database.DBName = "bancolink"
	cfg.Database.SSLMode = "disable"
	cfg.Fintoc.BaseURL = "https://api.fintoc.com/v1"
	cfg.Fintoc.Timeout = 30 * time.Second
	cfg.Fintoc.Country = "cl"
	cfg.Telemetry.ServiceName = "bancolink"
	cfg.Telemetry.OTLPEndpoint = "localhost:4317"
	cfg.Telemetry.MetricsPort = "9464"
	cfg.Log.Level = "info"
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file
// (CONFIG_FILE, default config.yaml) and the process environment, in that order.
func Load() (*Config, error) {
	k := koanf.New(".")

	path := getEnv("CONFIG_FILE", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.AllowedHosts = cleanList(cfg.Server.AllowedHosts)
	if cfg.OAuth.Google.RedirectURL == "" && cfg.Server.HostURL != "" {
		cfg.OAuth.Google.RedirectURL = strings.TrimRight(cfg.Server.HostURL, "/") + "/callback"
	}
	cfg.Fintoc.Country = strings.ToLower(cfg.Fintoc.Country)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Session.SecretKey) < 16 {
		return errors.New("SECRET_KEY must be at least 16 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.Session.CleanupInterval <= 0 {
		return errors.New("SESSION_CLEANUP must be positive")
	}
	switch c.Session.Store {
	case "memory":
	case "postgres":
		if c.Database.DBName == "" {
			return errors.New("DB_NAME is required when SESSION_STORE=postgres")
		}
	default:
		return fmt.Errorf("invalid SESSION_STORE %q (want memory or postgres)", c.Session.Store)
	}
	if c.Fintoc.Timeout <= 0 {
		return errors.New("FINTOC_TIMEOUT must be positive")
	}
	if len(c.Fintoc.Country) != 2 {
		return fmt.Errorf("invalid FINTOC_COUNTRY %q", c.Fintoc.Country)
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return errors.New("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return errors.New("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}
	return nil
}

// UsesDevSecret reports whether the session secret is still the demo fallback.
func (c *Config) UsesDevSecret() bool {
	return c.Session.SecretKey == DevSecretKey
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// envValue translates an environment variable into a koanf key/value pair.
// Unknown variables and empty values are skipped so defaults survive.
func envValue(name, value string) (string, interface{}) {
	key, ok := envKeys[name]
	if !ok || value == "" {
		return "", nil
	}
	if boolKeys[key] {
		b, ok := parseBool(value)
		if !ok {
			return "", nil
		}
		return key, b
	}
	return key, value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseBool accepts true, false, 1, 0, yes, no (case-insensitive).
func parseBool(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
