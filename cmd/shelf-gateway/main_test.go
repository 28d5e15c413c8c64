// ABOUTME: Tests for shelf-gateway CLI helpers: route table, config paths, prompts, log handler
// ABOUTME: Commands that need a running server are not exercised here

package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shelf-gateway/internal/config"
	"github.com/2389/shelf-gateway/internal/gateway"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SHELF_CONFIG", "/etc/shelf.yaml")
	assert.Equal(t, "/etc/shelf.yaml", getConfigPath())

	t.Setenv("SHELF_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "shelf", "gateway.yaml"), getConfigPath())
}

func TestPrintRoutes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRoutes(&buf, gateway.DefaultRules()))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+len(gateway.DefaultRules().Ordered())+2)

	assert.Contains(t, lines[0], "CLASS")
	assert.Regexp(t, `share-api\s+/api/share/\s+continue\s+continue\s+continue`, out)
	assert.Regexp(t, `admin-api\s+/api/admin/\s+status 401\s+status 403\s+continue`, out)
	assert.Regexp(t, `admin-page\s+/admin\s+redirect /login\s+redirect /library\s+continue`, out)
	assert.Contains(t, out, "/robots.txt")
}

func TestRenderConfig_LoadsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	content := renderConfig("localhost:9090", filepath.Join(dir, "lib.db"),
		"0123456789abcdef0123456789abcdef", "desk", true, config.TailscaleConfig{}, "debug", "json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9090", cfg.Server.HTTPAddr)
	assert.True(t, cfg.Desktop.Enabled)
	assert.Equal(t, "desk", cfg.Desktop.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadOrCreateConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	path := filepath.Join(dir, "cfg", "gateway.yaml")

	cfg, created, err := loadOrCreateConfig(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.GreaterOrEqual(t, len(cfg.Auth.JWTSecret), config.MinJWTSecretLength)
	assert.NotEmpty(t, cfg.Desktop.Token)

	again, created, err := loadOrCreateConfig(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cfg.Auth.JWTSecret, again.Auth.JWTSecret)
}

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("custom\n\n"))

	assert.Equal(t, "custom", prompt(r, &out, "Name", "default"))
	assert.Equal(t, "default", prompt(r, &out, "Name", "default"))
	assert.Equal(t, "default", prompt(r, &out, "Name", "default"), "EOF falls back to default")
	assert.Contains(t, out.String(), "Name [default]: ")
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo)).With("component", "live")

	logger.Debug("hidden")
	logger.Info("stream opened", "version", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "stream opened")
	assert.Contains(t, out, "component=")
	assert.Contains(t, out, "42")
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}
