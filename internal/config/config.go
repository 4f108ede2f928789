package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigError reports missing or invalid configuration. It is raised at
// load time, before any network call is attempted.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config represents the top-level contas.yaml configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	OpenFinance OpenFinanceConfig `yaml:"open_finance"`
	Layouts     []Layout          `yaml:"layouts,omitempty"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig locates the ledger database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OpenFinanceConfig holds credentials and endpoints for the bank's Open
// Finance APIs. Immutable once loaded.
type OpenFinanceConfig struct {
	ClientID             string            `yaml:"client_id"`
	ClientSecret         string            `yaml:"client_secret"`
	ConsentID            string            `yaml:"consent_id,omitempty"`
	BaseURL              string            `yaml:"base_url"`
	TokenURL             string            `yaml:"token_url"`
	Scope                string            `yaml:"scope"`
	Certificate          string            `yaml:"certificate,omitempty"`
	CertificateKey       string            `yaml:"certificate_key,omitempty"`
	APIKey               string            `yaml:"api_key,omitempty"`
	AccountsEndpoint     string            `yaml:"accounts_endpoint"`
	TransactionsEndpoint string            `yaml:"transactions_endpoint"` // templated with {account_id}
	ConsentsEndpoint     string            `yaml:"consents_endpoint"`
	AdditionalHeaders    map[string]string `yaml:"additional_headers,omitempty"`
	TimeoutSeconds       int               `yaml:"timeout_seconds"`
	StaticAccessToken    string            `yaml:"static_access_token,omitempty"`
	StaticTokenExpiresAt string            `yaml:"static_token_expires_at,omitempty"`
}

// Layout is a configurable column mapping for a bank statement format.
type Layout struct {
	Name         string   `yaml:"name"`
	DateColumn   int      `yaml:"date_column"`
	DescColumn   int      `yaml:"desc_column"`
	AmountColumn int      `yaml:"amount_column"`
	HeaderRows   int      `yaml:"header_rows"`
	DateFormats  []string `yaml:"date_formats,omitempty"`
	InvertSign   bool     `yaml:"invert_sign,omitempty"`
	SkipPrefixes []string `yaml:"skip_prefixes,omitempty"`
}

// Timeout returns the configured HTTP timeout.
func (c OpenFinanceConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StaticExpiry parses static_token_expires_at, accepting RFC 3339 or unix
// seconds. Zero time when unset.
func (c OpenFinanceConfig) StaticExpiry() (time.Time, error) {
	raw := strings.TrimSpace(c.StaticTokenExpiresAt)
	if raw == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &ConfigError{
			Field:  "open_finance.static_token_expires_at",
			Reason: "use RFC 3339 or unix seconds",
		}
	}
	return t.UTC(), nil
}

// Validate checks the configuration once at load time.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return &ConfigError{Field: "database.path", Reason: "required"}
	}
	// The Open Finance section is only checked once credentials appear, so a
	// fresh install can import files before the bank is set up. The client
	// constructor re-validates the full section.
	if c.OpenFinance.ClientID != "" || c.OpenFinance.StaticAccessToken != "" {
		return c.OpenFinance.Validate()
	}
	return nil
}

// Validate checks the Open Finance section. A static token stands in for
// client credentials; a certificate without its key is always an error.
func (c OpenFinanceConfig) Validate() error {
	if c.StaticAccessToken == "" {
		if c.ClientID == "" {
			return &ConfigError{Field: "open_finance.client_id", Reason: "required"}
		}
		if c.ClientSecret == "" {
			return &ConfigError{Field: "open_finance.client_secret", Reason: "required"}
		}
		if c.TokenURL == "" {
			return &ConfigError{Field: "open_finance.token_url", Reason: "required"}
		}
	}
	if c.Certificate != "" && c.CertificateKey == "" {
		return &ConfigError{Field: "open_finance.certificate_key", Reason: "required when certificate is set"}
	}
	if c.BaseURL == "" {
		return &ConfigError{Field: "open_finance.base_url", Reason: "required"}
	}
	if c.AccountsEndpoint == "" {
		return &ConfigError{Field: "open_finance.accounts_endpoint", Reason: "required"}
	}
	if c.TransactionsEndpoint == "" {
		return &ConfigError{Field: "open_finance.transactions_endpoint", Reason: "required"}
	}
	if _, err := c.StaticExpiry(); err != nil {
		return err
	}
	return nil
}

// Load reads a contas.yaml file from disk and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new installation.
func Default(dataDir string) *Config {
	return &Config{
		Server:   ServerConfig{Addr: "127.0.0.1:8421"},
		Database: DatabaseConfig{Path: filepath.Join(dataDir, "contas.db")},
		OpenFinance: OpenFinanceConfig{
			BaseURL:              "https://api.itau/open-finance",
			TokenURL:             "https://sts.itau.com.br/api/oauth/token",
			Scope:                "openid accounts",
			AccountsEndpoint:     "/open-banking/accounts/v1/accounts",
			TransactionsEndpoint: "/open-banking/accounts/v1/accounts/{account_id}/transactions",
			ConsentsEndpoint:     "/open-banking/consents/v1/consents",
			TimeoutSeconds:       30,
		},
	}
}
