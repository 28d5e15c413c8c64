// ABOUTME: Configuration loading and parsing for shelf-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength is the minimum accepted length of auth.jwt_secret in bytes.
const MinJWTSecretLength = 32

// Defaults applied when the corresponding field is left empty.
const (
	DefaultPollInterval      = 2 * time.Second
	DefaultKeepaliveInterval = 15 * time.Second
	DefaultSessionTTL        = 30 * 24 * time.Hour
	DefaultCookieName        = "shelf_session"
	DefaultDatabaseDriver    = "sqlite"
)

// Config represents the complete shelf-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Desktop   DesktopConfig   `yaml:"desktop" toml:"desktop"`
	Live      LiveConfig      `yaml:"live" toml:"live"`
	Routes    RoutesConfig    `yaml:"routes" toml:"routes"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	BaseURL  string `yaml:"base_url" toml:"base_url"` // external URL used when printing share links
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public HTTPS; share links work from outside the tailnet
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" toml:"jwt_secret"`
	CookieName string        `yaml:"cookie_name" toml:"cookie_name"`
	SessionTTL time.Duration `yaml:"-" toml:"-"`

	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl"`
}

// DesktopConfig holds the desktop-IPC shared secret settings.
type DesktopConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Token   string `yaml:"token" toml:"token"`
}

// LiveConfig holds live-update stream timing
type LiveConfig struct {
	PollInterval      time.Duration `yaml:"-" toml:"-"`
	KeepaliveInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	PollIntervalRaw      string `yaml:"poll_interval" toml:"poll_interval"`
	KeepaliveIntervalRaw string `yaml:"keepalive_interval" toml:"keepalive_interval"`
}

// RoutesConfig overrides the gateway's route classification prefixes.
// Empty fields keep the built-in defaults.
type RoutesConfig struct {
	PublicPages      []string `yaml:"public_pages" toml:"public_pages"`
	SharePagePrefix  string   `yaml:"share_page_prefix" toml:"share_page_prefix"`
	IdentityPrefix   string   `yaml:"identity_prefix" toml:"identity_prefix"`
	ShareAPIPrefix   string   `yaml:"share_api_prefix" toml:"share_api_prefix"`
	DesktopAPIPrefix string   `yaml:"desktop_api_prefix" toml:"desktop_api_prefix"`
	AdminAPIPrefix   string   `yaml:"admin_api_prefix" toml:"admin_api_prefix"`
	AdminPagePrefix  string   `yaml:"admin_page_prefix" toml:"admin_page_prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDatabaseDriver
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = DefaultCookieName
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = DefaultSessionTTL
	}
	if c.Live.PollInterval == 0 {
		c.Live.PollInterval = DefaultPollInterval
	}
	if c.Live.KeepaliveInterval == 0 {
		c.Live.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"sqlite3\", got %q", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}

	if c.Live.PollInterval < 0 || c.Live.KeepaliveInterval < 0 || c.Auth.SessionTTL < 0 {
		return fmt.Errorf("durations must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.session_ttl", cfg.Auth.SessionTTLRaw, &cfg.Auth.SessionTTL},
		{"live.poll_interval", cfg.Live.PollIntervalRaw, &cfg.Live.PollInterval},
		{"live.keepalive_interval", cfg.Live.KeepaliveIntervalRaw, &cfg.Live.KeepaliveInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
