// Package config handles configuration loading for tidewave-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Files ending in .toml are decoded as TOML, everything else as
// YAML. The package applies defaults after decoding and then validates.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TIDEWAVE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tidewave/gateway.yaml
//  3. ~/.config/tidewave/gateway.yaml
//
// When no file exists the gateway starts from [Default].
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	database:
//	  dsn: "${TIDEWAVE_DB}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	eval:
//	  timeout: "30s"
//	packages:
//	  cache_ttl: "10m"
//
// # Configuration Sections
//
// Server and access control:
//
//	server:
//	  http_addr: "127.0.0.1:4000"
//	  upstream_url: "http://127.0.0.1:3000"
//	gateway:
//	  path_prefix: "/tidewave"
//	  allow_remote_access: false
//	  allowed_ips: ["10.0.0.0/8"]
//	  allowed_origins: []
//
// Project metadata, served by GET /tidewave/config:
//
//	project:
//	  name: "shop"
//	  root: ""            # empty: discovered with git
//	  framework_type: "rails"
//	  team: {}
//
// Tools:
//
//	database:
//	  driver: "sqlite"    # modernc; "sqlite3" selects mattn/go-sqlite3
//	  dsn: "db/development.sqlite3"
//	eval:
//	  command: "ruby -e"
//	lint:
//	  command: "rubocop"
//	  ok_exit_codes: [0, 1]
//	logs:
//	  path: "log/development.log"
//	packages:
//	  search_url: "https://rubygems.org/api/v1/search.json"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text or json
package config
