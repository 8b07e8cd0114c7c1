// ABOUTME: Configuration loading and parsing for note-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and overrides

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete note-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Note     NoteConfig     `yaml:"note" toml:"note"`
	Markdown MarkdownConfig `yaml:"markdown" toml:"markdown"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	MCP      MCPConfig      `yaml:"mcp" toml:"mcp"`
}

// ServerConfig holds the listener address
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// NoteConfig holds upstream API settings and credentials
type NoteConfig struct {
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	Session   string `yaml:"session" toml:"session"`       // _note_session_v5 cookie value
	XSRFToken string `yaml:"xsrf_token" toml:"xsrf_token"` // XSRF-TOKEN cookie value
	Email     string `yaml:"email" toml:"email"`
	Password  string `yaml:"password" toml:"password"`
	UserAgent string `yaml:"user_agent" toml:"user_agent"`
	CacheSize int    `yaml:"cache_size" toml:"cache_size"`

	Timeout  time.Duration `yaml:"-" toml:"-"`
	CacheTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw  string `yaml:"timeout" toml:"timeout"`
	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// HasCredentials reports whether a session cookie or a login is configured.
func (n NoteConfig) HasCredentials() bool {
	return n.Session != "" || (n.Email != "" && n.Password != "")
}

// MarkdownConfig selects the Markdown renderer for draft bodies
type MarkdownConfig struct {
	Engine string `yaml:"engine" toml:"engine"` // "note" or "commonmark"
}

// DatabaseConfig holds the tool-call journal location. An empty path
// disables the journal.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MCPConfig holds what initialize advertises
type MCPConfig struct {
	Name            string `yaml:"name" toml:"name"`
	Version         string `yaml:"version" toml:"version"`
	ProtocolVersion string `yaml:"protocol_version" toml:"protocol_version"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Note: NoteConfig{
			BaseURL:     "https://note.com/api",
			CacheSize:   256,
			Timeout:     30 * time.Second,
			TimeoutRaw:  "30s",
			CacheTTL:    0,
			CacheTTLRaw: "0s",
		},
		Markdown: MarkdownConfig{Engine: "note"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Name:            "note-api-mcp",
			Version:         "2.0.0-http",
			ProtocolVersion: "2025-06-18",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML; anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, unset keys keep
// their defaults, and ApplyEnv overrides are applied before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw file content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if err := c.ApplyEnv(); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyEnv overrides fields from well-known environment variables.
//
//	MCP_HTTP_HOST, MCP_HTTP_PORT        server.host, server.port
//	NOTE_SESSION_V5, NOTE_XSRF_TOKEN    note.session, note.xsrf_token
//	NOTE_EMAIL, NOTE_PASSWORD           note.email, note.password
//	NOTE_BASE_URL                       note.base_url
//	NOTE_GATEWAY_JWT_SECRET             auth.jwt_secret
//	DEBUG                               logging.level=debug when "true"
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("MCP_HTTP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MCP_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCP_HTTP_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{"NOTE_SESSION_V5", &c.Note.Session},
		{"NOTE_XSRF_TOKEN", &c.Note.XSRFToken},
		{"NOTE_EMAIL", &c.Note.Email},
		{"NOTE_PASSWORD", &c.Note.Password},
		{"NOTE_BASE_URL", &c.Note.BaseURL},
		{"NOTE_GATEWAY_JWT_SECRET", &c.Auth.JWTSecret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	if os.Getenv("DEBUG") == "true" {
		c.Logging.Level = "debug"
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	u, err := url.Parse(c.Note.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("note.base_url %q is not an absolute URL", c.Note.BaseURL)
	}
	if (c.Note.Email == "") != (c.Note.Password == "") {
		return fmt.Errorf("note.email and note.password must be set together")
	}
	if c.Note.Timeout < 0 || c.Note.CacheTTL < 0 {
		return fmt.Errorf("note.timeout and note.cache_ttl must not be negative")
	}

	switch c.Markdown.Engine {
	case "", "note", "commonmark":
	default:
		return fmt.Errorf("markdown.engine %q is not one of note, commonmark", c.Markdown.Engine)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Note.TimeoutRaw != "" {
		cfg.Note.Timeout, err = time.ParseDuration(cfg.Note.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Note.TimeoutRaw, err)
		}
	}

	if cfg.Note.CacheTTLRaw != "" {
		cfg.Note.CacheTTL, err = time.ParseDuration(cfg.Note.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.Note.CacheTTLRaw, err)
		}
	}

	return nil
}
