// ABOUTME: Configuration loading and parsing for tidewave-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPathPrefix is the mount point of the gateway when none is configured.
const DefaultPathPrefix = "/tidewave"

// Config represents the complete tidewave-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Gateway  GatewayConfig  `yaml:"gateway" toml:"gateway"`
	Project  ProjectConfig  `yaml:"project" toml:"project"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Eval     EvalConfig     `yaml:"eval" toml:"eval"`
	Lint     LintConfig     `yaml:"lint" toml:"lint"`
	Logs     LogsConfig     `yaml:"logs" toml:"logs"`
	Packages PackagesConfig `yaml:"packages" toml:"packages"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the listen address and the wrapped application
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// UpstreamURL is the host application every out-of-scope request is proxied to.
	// Empty means out-of-scope requests get 404.
	UpstreamURL string `yaml:"upstream_url" toml:"upstream_url"`
}

// GatewayConfig holds the access-control settings of the mounted surface
type GatewayConfig struct {
	PathPrefix        string   `yaml:"path_prefix" toml:"path_prefix"`
	AllowRemoteAccess bool     `yaml:"allow_remote_access" toml:"allow_remote_access"`
	AllowedIPs        []string `yaml:"allowed_ips" toml:"allowed_ips"`
	AllowedOrigins    []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// ProjectConfig describes the host project served by /config
type ProjectConfig struct {
	Name          string         `yaml:"name" toml:"name"`
	Root          string         `yaml:"root" toml:"root"` // empty: git rev-parse --show-toplevel
	FrameworkType string         `yaml:"framework_type" toml:"framework_type"`
	Team          map[string]any `yaml:"team" toml:"team"`
}

// DatabaseConfig selects the SQL driver used by the query tools
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (modernc) or "sqlite3" (mattn)
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// EvalConfig configures the project_eval interpreter
type EvalConfig struct {
	Command string        `yaml:"command" toml:"command"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// LintConfig configures the run_linter tool
type LintConfig struct {
	Command     string `yaml:"command" toml:"command"`
	OKExitCodes []int  `yaml:"ok_exit_codes" toml:"ok_exit_codes"`
}

// LogsConfig points get_logs at the host application's log file
type LogsConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// PackagesConfig configures the package_search tool
type PackagesConfig struct {
	SearchURL string        `yaml:"search_url" toml:"search_url"`
	CacheTTL  time.Duration `yaml:"-" toml:"-"`

	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
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

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
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

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "127.0.0.1:4000"
	}
	if cfg.Gateway.PathPrefix == "" {
		cfg.Gateway.PathPrefix = DefaultPathPrefix
	}
	cfg.Gateway.PathPrefix = "/" + strings.Trim(cfg.Gateway.PathPrefix, "/")
	if cfg.Project.Team == nil {
		cfg.Project.Team = map[string]any{}
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Eval.Timeout == 0 {
		cfg.Eval.Timeout = 30 * time.Second
	}
	if len(cfg.Lint.OKExitCodes) == 0 {
		cfg.Lint.OKExitCodes = []int{0, 1}
	}
	if cfg.Logs.Path == "" {
		cfg.Logs.Path = filepath.Join("log", "development.log")
	}
	if cfg.Packages.SearchURL == "" {
		cfg.Packages.SearchURL = "https://rubygems.org/api/v1/search.json"
	}
	if cfg.Packages.CacheTTL == 0 {
		cfg.Packages.CacheTTL = 10 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.PathPrefix == "/" {
		return fmt.Errorf("gateway.path_prefix must not be the root path")
	}

	if c.Server.UpstreamURL != "" {
		u, err := url.Parse(c.Server.UpstreamURL)
		if err != nil {
			return fmt.Errorf("server.upstream_url is invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("server.upstream_url must use http or https, got %q", u.Scheme)
		}
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"sqlite3\", got %q", c.Database.Driver)
	}

	if c.Eval.Timeout < 0 {
		return fmt.Errorf("eval.timeout must be positive")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Eval.TimeoutRaw != "" {
		cfg.Eval.Timeout, err = time.ParseDuration(cfg.Eval.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing eval.timeout %q: %w", cfg.Eval.TimeoutRaw, err)
		}
	}

	if cfg.Packages.CacheTTLRaw != "" {
		cfg.Packages.CacheTTL, err = time.ParseDuration(cfg.Packages.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing packages.cache_ttl %q: %w", cfg.Packages.CacheTTLRaw, err)
		}
	}

	return nil
}
