// ABOUTME: Tests for the slog handlers built by setupLogger
// ABOUTME: Colour is disabled so assertions see plain text

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivsinghin/Voice-Assistant/internal/config"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "parseLevel(%q)", in)
	}
}

func TestColorHandler_Format(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LoggingConfig{Level: "info", Format: "text"}, &buf))

	logger.With("component", "dispatch").Info("tool call", "capability", "get_weather", "ok", true)

	line := buf.String()
	assert.Contains(t, line, "INF tool call")
	assert.Contains(t, line, " component=dispatch")
	assert.Contains(t, line, " capability=get_weather")
	assert.Contains(t, line, " ok=true")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestColorHandler_Levels(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LoggingConfig{Level: "warn"}, &buf))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("careful")
	logger.Error("broken")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN careful")
	assert.Contains(t, out, "ERR broken")
}

func TestColorHandler_Groups(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LoggingConfig{Level: "debug"}, &buf))

	logger.WithGroup("session").With("id", "abc").Debug("attached",
		slog.Group("peer", slog.String("addr", "127.0.0.1")))

	out := buf.String()
	assert.Contains(t, out, "DBG attached")
	assert.Contains(t, out, " session.id=abc")
	assert.Contains(t, out, " session.peer.addr=127.0.0.1")
}

func TestColorHandler_ConcurrentWritesDoNotInterleave(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	root := newHandler(config.LoggingConfig{Level: "info"}, &buf)
	a := slog.New(root.WithAttrs([]slog.Attr{slog.String("w", "a")}))
	b := slog.New(root.WithGroup("g"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); a.Info("line") }()
		go func() { defer wg.Done(); b.Info("line", "k", "v") }()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 100)
	for _, l := range lines {
		assert.True(t, strings.Contains(l, " w=a") || strings.Contains(l, " g.k=v"), "mangled line %q", l)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LoggingConfig{Level: "info", Format: "json"}, &buf))

	logger.Info("ready", "capabilities", 5)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "ready", rec["msg"])
	assert.EqualValues(t, 5, rec["capabilities"])
}
