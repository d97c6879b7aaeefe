// ABOUTME: Tests for operator command helpers
// ABOUTME: Covers config rendering, secret generation, and health address rewriting

package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivsinghin/Voice-Assistant/internal/auth"
	"github.com/shivsinghin/Voice-Assistant/internal/config"
)

func TestGenerateSecret(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 48)

	_, err = auth.NewJWTVerifier([]byte(a))
	assert.NoError(t, err)
}

func TestRenderConfig_LoadsBack(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	dbPath := filepath.Join(t.TempDir(), "lisa.db")
	require.NoError(t, os.WriteFile(path, []byte(renderConfig(secret, "operator", hash, dbPath)), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, secret, cfg.Auth.JWTSecret)
	assert.Equal(t, "operator", cfg.Auth.AdminUsername)
	assert.Equal(t, hash, cfg.Auth.AdminPasswordHash)
	assert.Equal(t, auth.DefaultTokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, dbPath, cfg.Database.Path)
	assert.Equal(t, config.DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, config.DefaultTimezone, cfg.Tools.Timezone)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Tools.HotReload)

	a, err := auth.NewAuthenticator(cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash, mustVerifier(t, secret), cfg.Auth.TokenTTL)
	require.NoError(t, err)
	_, err = a.Login("operator", "hunter22")
	assert.NoError(t, err)
}

func mustVerifier(t *testing.T, secret string) *auth.JWTVerifier {
	t.Helper()
	v, err := auth.NewJWTVerifier([]byte(secret))
	require.NoError(t, err)
	return v
}

func TestLocalAddr(t *testing.T) {
	tests := map[string]string{
		"0.0.0.0:8000":   "127.0.0.1:8000",
		":8000":          "127.0.0.1:8000",
		"[::]:8000":      "127.0.0.1:8000",
		"10.0.0.5:9000":  "10.0.0.5:9000",
		"localhost:8000": "localhost:8000",
		"not-an-addr":    "not-an-addr",
	}
	for in, want := range tests {
		assert.Equal(t, want, localAddr(in), "localAddr(%q)", in)
	}
}
