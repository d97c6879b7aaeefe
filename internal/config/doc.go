// Package config handles configuration loading for lisa-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file (or TOML, by .toml extension)
// with environment variable expansion, duration parsing, defaults, and
// validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from LISA_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/lisa/gateway.yaml
//  3. ~/.config/lisa/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${LISA_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	tools:
//	  call_timeout: "30s"
//	  dedupe_ttl: "5m"
//	  audit_retention: "720h"
//
// # Example
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//	  grpc_addr: "127.0.0.1:50051"
//
//	auth:
//	  jwt_secret: "${LISA_JWT_SECRET}"
//	  admin_username: "admin"
//	  admin_password_hash: "${LISA_ADMIN_PASSWORD_HASH}"
//	  token_ttl: "24h"
//
//	database:
//	  path: "~/.local/share/lisa/lisa.db"
//
//	tools:
//	  timezone: "Asia/Kolkata"
//	  call_timeout: "30s"
//	  hot_reload: true
//	  audit_retention: "720h"
//	  audit_prune_schedule: "15 3 * * *"
//
//	sessions:
//	  max_sessions: 100
//
//	cors:
//	  allowed_origins: ["*"]
//
//	logging:
//	  level: "info"
//	  format: "text"
package config
