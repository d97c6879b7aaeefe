// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and duration parsing

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

const minimalYAML = `
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  admin_password_hash: "$2a$10$abcdefghijklmnopqrstuv"
`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "127.0.0.1:9000"
  grpc_addr: "127.0.0.1:50051"

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  admin_username: "lisa"
  admin_password_hash: "$2a$10$abcdefghijklmnopqrstuv"
  token_ttl: "12h"

database:
  path: "./test.db"

tools:
  timezone: "Europe/London"
  call_timeout: "10s"
  hot_reload: true
  dedupe_ttl: "2m"
  audit_retention: "720h"
  audit_prune_schedule: "0 4 * * *"

sessions:
  max_sessions: 50

cors:
  allowed_origins:
    - "https://lisa.example.com"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.GRPCAddr != "127.0.0.1:50051" {
		t.Errorf("Server.GRPCAddr = %q", cfg.Server.GRPCAddr)
	}
	if cfg.Auth.AdminUsername != "lisa" {
		t.Errorf("Auth.AdminUsername = %q, want %q", cfg.Auth.AdminUsername, "lisa")
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 12h", cfg.Auth.TokenTTL)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Tools.Timezone != "Europe/London" || !cfg.Tools.HotReload {
		t.Errorf("Tools = %+v", cfg.Tools)
	}
	if cfg.Tools.CallTimeout != 10*time.Second {
		t.Errorf("Tools.CallTimeout = %v, want 10s", cfg.Tools.CallTimeout)
	}
	if cfg.Tools.DedupeTTL != 2*time.Minute {
		t.Errorf("Tools.DedupeTTL = %v, want 2m", cfg.Tools.DedupeTTL)
	}
	if cfg.Tools.AuditRetention != 720*time.Hour {
		t.Errorf("Tools.AuditRetention = %v, want 720h", cfg.Tools.AuditRetention)
	}
	if cfg.Tools.AuditPruneSchedule != "0 4 * * *" {
		t.Errorf("Tools.AuditPruneSchedule = %q", cfg.Tools.AuditPruneSchedule)
	}
	if cfg.Sessions.MaxSessions != 50 {
		t.Errorf("Sessions.MaxSessions = %d, want 50", cfg.Sessions.MaxSessions)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://lisa.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "gateway.yaml", minimalYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Auth.AdminUsername != DefaultAdminUsername {
		t.Errorf("Auth.AdminUsername = %q, want %q", cfg.Auth.AdminUsername, DefaultAdminUsername)
	}
	if cfg.Tools.Timezone != DefaultTimezone {
		t.Errorf("Tools.Timezone = %q, want %q", cfg.Tools.Timezone, DefaultTimezone)
	}
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, DefaultDatabasePath)
	}
	if cfg.Tools.CallTimeout != 0 || cfg.Tools.AuditRetention != 0 {
		t.Errorf("unset durations should stay zero, got %+v", cfg.Tools)
	}
	if cfg.Logging.Format != "text" || cfg.Logging.Level != "info" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:9100"

[auth]
jwt_secret = "0123456789abcdef0123456789abcdef"
admin_password_hash = "$2a$10$abcdefghijklmnopqrstuv"
token_ttl = "1h"

[tools]
call_timeout = "5s"

[cors]
allowed_origins = ["*"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9100" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 1h", cfg.Auth.TokenTTL)
	}
	if cfg.Tools.CallTimeout != 5*time.Second {
		t.Errorf("Tools.CallTimeout = %v, want 5s", cfg.Tools.CallTimeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_LISA_SECRET", "env-secret-env-secret-env-secret")
	t.Setenv("TEST_LISA_DB", "/var/lib/lisa/lisa.db")

	path := writeConfig(t, "gateway.yaml", `
auth:
  jwt_secret: "${TEST_LISA_SECRET}"
  admin_password_hash: "$2a$10$abcdefghijklmnopqrstuv"
database:
  path: "${TEST_LISA_DB}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret-env-secret-env-secret" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Path != "/var/lib/lisa/lisa.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
auth:
  jwt_secret: "${TEST_LISA_DEFINITELY_UNSET}"
  admin_password_hash: "$2a$10$abcdefghijklmnopqrstuv"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail when the secret expands to empty")
	}
	if !strings.Contains(err.Error(), "auth.jwt_secret") {
		t.Errorf("error = %v, want mention of auth.jwt_secret", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("Load() should return error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", "auth: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load() should return error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name  string
		extra string
	}{
		{name: "call_timeout", extra: "tools:\n  call_timeout: \"soon\"\n"},
		{name: "dedupe_ttl", extra: "tools:\n  dedupe_ttl: \"5 minutes\"\n"},
		{name: "negative retention", extra: "tools:\n  audit_retention: \"-1h\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, "gateway.yaml", minimalYAML+tt.extra)); err == nil {
				t.Errorf("Load() should fail for invalid %s", tt.name)
			}
		})
	}

	t.Run("token_ttl", func(t *testing.T) {
		content := strings.Replace(minimalYAML, "auth:\n", "auth:\n  token_ttl: \"forever\"\n", 1)
		_, err := Load(writeConfig(t, "gateway.yaml", content))
		if err == nil || !strings.Contains(err.Error(), "auth.token_ttl") {
			t.Errorf("Load() = %v, want auth.token_ttl error", err)
		}
	})
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			content: "auth:\n  admin_password_hash: \"x\"\n",
			wantErr: "auth.jwt_secret",
		},
		{
			name:    "missing password hash",
			content: "auth:\n  jwt_secret: \"s\"\n",
			wantErr: "auth.admin_password_hash",
		},
		{
			name:    "bad timezone",
			content: minimalYAML + "tools:\n  timezone: \"Mars/Olympus\"\n",
			wantErr: "tools.timezone",
		},
		{
			name:    "bad log format",
			content: minimalYAML + "logging:\n  format: \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "negative max sessions",
			content: minimalYAML + "sessions:\n  max_sessions: -1\n",
			wantErr: "sessions.max_sessions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "gateway.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() should have failed")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_A", "alpha")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${TEST_EXPAND_A}", "alpha"},
		{"x-${TEST_EXPAND_A}-y", "x-alpha-y"},
		{"${TEST_EXPAND_UNSET_B}", ""},
		{"$TEST_EXPAND_A", "$TEST_EXPAND_A"},
	}
	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate_TailscaleConfig(t *testing.T) {
	base := func() Config {
		return Config{
			Auth:    AuthConfig{JWTSecret: "s", AdminPasswordHash: "h"},
			Tools:   ToolsConfig{Timezone: DefaultTimezone},
			Logging: LoggingConfig{Format: "text"},
		}
	}

	cfg := base()
	cfg.Tailscale.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "tailscale.hostname") {
		t.Errorf("Validate() = %v, want tailscale.hostname error", err)
	}

	cfg.Tailscale.Hostname = "lisa"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with tailscale and no http_addr = %v, want nil", err)
	}

	cfg = base()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "server.http_addr") {
		t.Errorf("Validate() = %v, want server.http_addr error", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("LISA_CONFIG", "/etc/lisa.yaml")
	if got := DefaultPath(); got != "/etc/lisa.yaml" {
		t.Errorf("DefaultPath() = %q, want LISA_CONFIG value", got)
	}

	t.Setenv("LISA_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultPath(); got != filepath.Join("/tmp/xdg", "lisa", "gateway.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}
