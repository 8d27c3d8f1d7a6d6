// Package config loads the service configuration from an optional YAML
// file and environment variables.
//
// Precedence, lowest first: built-in defaults, the YAML file (with ${VAR}
// references expanded), environment variables. Command-line flags are
// applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds the complete application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	HTTP     HTTPConfig     `yaml:"http"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Gmail    GmailConfig    `yaml:"gmail"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
	Import   ImportConfig   `yaml:"import"`
	PDF      PDFConfig      `yaml:"pdf"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig holds the API and metrics listeners.
type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	MetricsAddr string   `yaml:"metrics_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// GeminiConfig holds the classification model settings.
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// GmailConfig holds the OAuth client used for mailbox access.
type GmailConfig struct {
	ClientSecretsFile string `yaml:"client_secrets_file"`
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	RedirectURL       string `yaml:"redirect_url"`
}

// DatabaseConfig holds the metadata database connection.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig holds the S3-compatible object store settings.
type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// SessionConfig selects the OAuth session store.
type SessionConfig struct {
	Store    string        `yaml:"store"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// ImportConfig tunes attachment imports.
type ImportConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// PDFConfig configures first-page rendering of scanned PDFs.
type PDFConfig struct {
	PdftoppmPath  string        `yaml:"pdftoppm_path"`
	RenderTimeout time.Duration `yaml:"render_timeout"`
}

// Load builds a Config from defaults and environment variables. A non-empty
// path names a YAML file applied between the two; it must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis session store")
		}
	default:
		return fmt.Errorf("invalid session store %q, must be one of: memory, redis", c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Import.Concurrency <= 0 {
		return fmt.Errorf("import concurrency must be positive, got %d", c.Import.Concurrency)
	}
	return nil
}

// GmailConfigured reports whether OAuth client credentials are available.
func (c *Config) GmailConfigured() bool {
	if c.Gmail.ClientID != "" && c.Gmail.ClientSecret != "" {
		return true
	}
	if c.Gmail.ClientSecretsFile == "" {
		return false
	}
	_, err := os.Stat(c.Gmail.ClientSecretsFile)
	return err == nil
}

// StorageConfigured reports whether both the object store and the metadata
// database are set.
func (c *Config) StorageConfigured() bool {
	return c.Storage.Bucket != "" && c.Database.URL != ""
}

func (c *Config) applyDefaults() {
	c.Logging.Level = "info"
	c.Logging.Format = "text"
	c.HTTP.Addr = ":5000"
	c.HTTP.MetricsAddr = ":9090"
	c.HTTP.CORSOrigins = []string{"*"}
	c.Gmail.ClientSecretsFile = "client_secret.json"
	c.Gmail.RedirectURL = "http://localhost:5000/api/gmail/callback"
	c.Storage.Bucket = "documents"
	c.Storage.Region = "us-east-1"
	c.Session.Store = SessionStoreMemory
	c.Session.TTL = 24 * time.Hour
	c.Import.Concurrency = 4
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"LOG_LEVEL", &c.Logging.Level},
		{"LOG_FORMAT", &c.Logging.Format},
		{"HTTP_ADDR", &c.HTTP.Addr},
		{"METRICS_ADDR", &c.HTTP.MetricsAddr},
		{"GEN_AI_API_KEY", &c.Gemini.APIKey},
		{"GEN_AI_MODEL", &c.Gemini.Model},
		{"GMAIL_CLIENT_SECRETS_FILE", &c.Gmail.ClientSecretsFile},
		{"GOOGLE_CLIENT_ID", &c.Gmail.ClientID},
		{"GOOGLE_CLIENT_SECRET", &c.Gmail.ClientSecret},
		{"GMAIL_OAUTH_REDIRECT_URI", &c.Gmail.RedirectURL},
		{"DATABASE_URL", &c.Database.URL},
		{"STORAGE_BUCKET", &c.Storage.Bucket},
		{"STORAGE_ENDPOINT", &c.Storage.Endpoint},
		{"STORAGE_REGION", &c.Storage.Region},
		{"STORAGE_ACCESS_KEY_ID", &c.Storage.AccessKeyID},
		{"STORAGE_SECRET_ACCESS_KEY", &c.Storage.SecretAccessKey},
		{"SESSION_STORE", &c.Session.Store},
		{"REDIS_URL", &c.Session.RedisURL},
		{"PDFTOPPM_PATH", &c.PDF.PdftoppmPath},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Session.Store = strings.ToLower(c.Session.Store)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.HTTP.CORSOrigins = SplitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &c.Session.TTL},
		{"CLASSIFY_TIMEOUT", &c.Gemini.Timeout},
		{"RENDER_TIMEOUT", &c.PDF.RenderTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
			}
			*d.dst = parsed
		}
	}

	if v := os.Getenv("IMPORT_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid IMPORT_CONCURRENCY %q: %w", v, err)
		}
		c.Import.Concurrency = n
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blank entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
