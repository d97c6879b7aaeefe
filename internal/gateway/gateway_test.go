// ABOUTME: Tests for gateway construction, lifecycle, and shutdown
// ABOUTME: Builds real gateways over a temp SQLite database and the built-in capability modules

package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shivsinghin/Voice-Assistant/internal/config"
)

const (
	testSecret   = "gateway-test-secret-that-is-long-enough"
	testUser     = "admin"
	testPassword = "s3cret-pass"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	return &config.Config{
		Server: config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Auth: config.AuthConfig{
			JWTSecret:         testSecret,
			AdminUsername:     testUser,
			AdminPasswordHash: string(hash),
			TokenTTL:          time.Hour,
		},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "lisa.db")},
		Tools: config.ToolsConfig{
			Timezone:    "Asia/Kolkata",
			HotReload:   true,
			CallTimeout: 5 * time.Second,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, mutate ...func(*config.Config)) *Gateway {
	t.Helper()
	t.Setenv("LISA_DB_PATH", "")
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}
	gw, err := New(context.Background(), cfg, "test", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw
}

func TestNew_LoadsCapabilities(t *testing.T) {
	gw := newTestGateway(t)

	require.True(t, gw.registry.Loaded())
	snap, err := gw.registry.Snapshot(context.Background())
	require.NoError(t, err)

	var names []string
	for _, d := range snap.Schema() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"get_weather",
		"get_current_time",
		"get_date_info",
		"fetch_calendar_events",
		"create_calendar_event",
	}, names)
	assert.Empty(t, snap.LoadErrors())
	assert.Nil(t, gw.pruner, "no pruner without audit retention")
	assert.Nil(t, gw.grpcServer, "no gRPC server without grpc_addr")
}

func TestNew_Validation(t *testing.T) {
	t.Setenv("LISA_DB_PATH", "")
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"weak secret", func(c *config.Config) { c.Auth.JWTSecret = "short" }},
		{"bad hash", func(c *config.Config) { c.Auth.AdminPasswordHash = "plaintext" }},
		{"bad timezone", func(c *config.Config) { c.Tools.Timezone = "Mars/Olympus" }},
		{"bad prune schedule", func(c *config.Config) {
			c.Tools.AuditRetention = time.Hour
			c.Tools.AuditPruneSchedule = "not a schedule"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg, "test", quietLogger())
			assert.Error(t, err)
		})
	}
}

func TestNew_OptionalComponents(t *testing.T) {
	gw := newTestGateway(t, func(c *config.Config) {
		c.Server.GRPCAddr = "127.0.0.1:0"
		c.Tools.AuditRetention = 24 * time.Hour
	})
	assert.NotNil(t, gw.pruner)
	assert.NotNil(t, gw.grpcServer)
	assert.NotNil(t, gw.health)
}

func TestRun_StopsOnCancel(t *testing.T) {
	gw := newTestGateway(t, func(c *config.Config) {
		c.Server.GRPCAddr = "127.0.0.1:0"
		c.Tools.AuditRetention = 24 * time.Hour
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ListenFailure(t *testing.T) {
	gw := newTestGateway(t, func(c *config.Config) {
		c.Server.HTTPAddr = "256.0.0.1:bad"
	})
	err := gw.Run(context.Background())
	assert.ErrorContains(t, err, "listening on HTTP address")
}

func TestShutdown_ClosesSessions(t *testing.T) {
	gw := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()
	token := login(t, srv)

	for range 3 {
		offer(t, srv, token, "")
	}
	require.Equal(t, 3, gw.sessions.Count())

	require.NoError(t, gw.Shutdown(context.Background()))
	assert.Equal(t, 0, gw.sessions.Count())
	assert.Equal(t, 0, gw.hub.Count())

	// Second call returns the first result without redoing work.
	assert.NoError(t, gw.Shutdown(context.Background()))

	resp := postJSON(t, srv, "/api/offer", token, map[string]string{"sdp": "v=0", "type": "offer"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
