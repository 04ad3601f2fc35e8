// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "0.0.0.0:4100"
  upstream_url: "http://127.0.0.1:3000"

gateway:
  path_prefix: "/tidewave/"
  allow_remote_access: false
  allowed_ips:
    - "10.0.0.0/8"
    - "192.168.1.20"

project:
  name: "shop"
  framework_type: "rails"
  team:
    id: "acme"

database:
  driver: "sqlite3"
  dsn: "db/dev.sqlite3"

eval:
  command: "ruby -e"
  timeout: "5s"

lint:
  command: "rubocop"
  ok_exit_codes: [0]

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:4100" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:4100")
	}
	if cfg.Server.UpstreamURL != "http://127.0.0.1:3000" {
		t.Errorf("Server.UpstreamURL = %q", cfg.Server.UpstreamURL)
	}
	if cfg.Gateway.PathPrefix != "/tidewave" {
		t.Errorf("Gateway.PathPrefix = %q, want trailing slash trimmed", cfg.Gateway.PathPrefix)
	}
	if len(cfg.Gateway.AllowedIPs) != 2 || cfg.Gateway.AllowedIPs[0] != "10.0.0.0/8" {
		t.Errorf("Gateway.AllowedIPs = %v", cfg.Gateway.AllowedIPs)
	}
	if cfg.Project.Name != "shop" || cfg.Project.FrameworkType != "rails" {
		t.Errorf("Project = %+v", cfg.Project)
	}
	if cfg.Project.Team["id"] != "acme" {
		t.Errorf("Project.Team = %v", cfg.Project.Team)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Eval.Timeout != 5*time.Second {
		t.Errorf("Eval.Timeout = %v, want 5s", cfg.Eval.Timeout)
	}
	if len(cfg.Lint.OKExitCodes) != 1 || cfg.Lint.OKExitCodes[0] != 0 {
		t.Errorf("Lint.OKExitCodes = %v", cfg.Lint.OKExitCodes)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q", cfg.Logging.Format)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:4200"

[gateway]
allow_remote_access = true

[packages]
cache_ttl = "1m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:4200" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if !cfg.Gateway.AllowRemoteAccess {
		t.Error("Gateway.AllowRemoteAccess should be true")
	}
	if cfg.Packages.CacheTTL != time.Minute {
		t.Errorf("Packages.CacheTTL = %v, want 1m", cfg.Packages.CacheTTL)
	}
	if cfg.Gateway.PathPrefix != DefaultPathPrefix {
		t.Errorf("Gateway.PathPrefix = %q, want default", cfg.Gateway.PathPrefix)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "empty.yaml", "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:4000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Gateway.AllowRemoteAccess {
		t.Error("remote access must be off by default")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Eval.Timeout != 30*time.Second {
		t.Errorf("Eval.Timeout = %v", cfg.Eval.Timeout)
	}
	if cfg.Packages.CacheTTL != 10*time.Minute {
		t.Errorf("Packages.CacheTTL = %v", cfg.Packages.CacheTTL)
	}
	if cfg.Project.Team == nil {
		t.Error("Project.Team should default to an empty map")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_TIDEWAVE_DSN", "/tmp/app.db")

	cfg, err := Load(writeConfig(t, "gateway.yaml", `
database:
  dsn: "${TEST_TIDEWAVE_DSN}"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.DSN != "/tmp/app.db" {
		t.Errorf("Database.DSN = %q, want %q", cfg.Database.DSN, "/tmp/app.db")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/gateway.yaml")
	if err == nil {
		t.Fatal("Load() should return error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.yaml", "server:\n  http_addr: [unclosed\n"))
	if err == nil {
		t.Fatal("Load() should return error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway.yaml", `
eval:
  timeout: "soon"
`))
	if err == nil {
		t.Fatal("Load() should return error for invalid duration")
	}
	if !strings.Contains(err.Error(), "eval.timeout") {
		t.Errorf("error should name the field, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "root prefix",
			mutate:  func(c *Config) { c.Gateway.PathPrefix = "/" },
			wantErr: "path_prefix",
		},
		{
			name:    "upstream without scheme",
			mutate:  func(c *Config) { c.Server.UpstreamURL = "localhost:3000" },
			wantErr: "upstream_url",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "database.driver",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TW_A", "alpha")

	got := expandEnvVars("x=${TW_A} y=${TW_UNSET_VARIABLE}")
	if got != "x=alpha y=" {
		t.Errorf("expandEnvVars() = %q", got)
	}
}
