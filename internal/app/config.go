package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/dashgate/internal/observability"
	"github.com/florianilch/dashgate/internal/tokenstore"
	"github.com/florianilch/dashgate/internal/web"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the storage backends available to the CLI.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// KeyringService identifies dashgate entries in the OS keyring.
const KeyringService = "dashgate-session-token"

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigLogExporter     = observability.ExporterNone
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 3000
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigUpstreamBaseURL = "http://127.0.0.1:8080"
	DefaultConfigCookieName      = tokenstore.DefaultCookieName
	DefaultConfigSignInPath      = "/sign_in"
	DefaultConfigSignUpPath      = "/sign_up"
	DefaultConfigAuthStorage     = TokenStorageTypeFile
)

// DefaultConfigProtectedPrefixes are the page prefixes gated by the route guard.
var DefaultConfigProtectedPrefixes = []string{"/dashboard"}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds backend API configuration.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// SessionConfig describes the session cookie and the pages it protects.
type SessionConfig struct {
	CookieName        string        `json:"cookie_name" validate:"required"`
	CookieSecure      bool          `json:"cookie_secure"`
	CookieMaxAge      time.Duration `json:"cookie_max_age" validate:"gte=0"`
	SignInPath        string        `json:"sign_in_path" validate:"required,startswith=/"`
	SignUpPath        string        `json:"sign_up_path" validate:"required,startswith=/"`
	ProtectedPrefixes []string      `json:"protected_prefixes" validate:"dive,startswith=/"`
}

// AuthConfig describes where the CLI keeps its session token.
type AuthConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to token file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(KeyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level             `json:"log_level"`
	LogFormat   LogFormat              `json:"log_format" validate:"oneof=text json"`
	LogExporter observability.Exporter `json:"log_exporter" validate:"oneof=none stdout otlp_http otlp_grpc"`
	Server      ServerConfig           `json:"server"`
	Shutdown    ShutdownConfig         `json:"shutdown"`
	Upstream    UpstreamConfig         `json:"upstream"`
	Session     SessionConfig          `json:"session"`
	Auth        AuthConfig             `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultConfigCookieName
	}
	if c.Session.SignInPath == "" {
		c.Session.SignInPath = DefaultConfigSignInPath
	}
	if c.Session.SignUpPath == "" {
		c.Session.SignUpPath = DefaultConfigSignUpPath
	}
	if c.Session.ProtectedPrefixes == nil {
		c.Session.ProtectedPrefixes = append([]string(nil), DefaultConfigProtectedPrefixes...)
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "dashgate", "token")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if err := web.ValidateRoutes(c.Session.SignInPath, c.Session.SignUpPath); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	for _, prefix := range c.Session.ProtectedPrefixes {
		if prefix == "/" || isUnder(c.Session.SignInPath, prefix) {
			return fmt.Errorf("session.sign_in_path %s is covered by protected prefix %s", c.Session.SignInPath, prefix)
		}
		if isUnder(c.Session.SignUpPath, prefix) {
			return fmt.Errorf("session.sign_up_path %s is covered by protected prefix %s", c.Session.SignUpPath, prefix)
		}
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// isUnder reports whether path equals prefix or lies below it.
func isUnder(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
