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

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./library.db"

auth:
  jwt_secret: "`+testSecret+`"
  session_ttl: "12h"

desktop:
  enabled: true
  token: "desk-secret"

live:
  poll_interval: "500ms"
  keepalive_interval: "10s"

routes:
  share_page_prefix: "/s/"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./library.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./library.db")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want default %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Auth.SessionTTL != 12*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want 12h", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.CookieName != DefaultCookieName {
		t.Errorf("Auth.CookieName = %q, want %q", cfg.Auth.CookieName, DefaultCookieName)
	}
	if !cfg.Desktop.Enabled || cfg.Desktop.Token != "desk-secret" {
		t.Errorf("Desktop = %+v, want enabled with token", cfg.Desktop)
	}
	if cfg.Live.PollInterval != 500*time.Millisecond {
		t.Errorf("Live.PollInterval = %v, want 500ms", cfg.Live.PollInterval)
	}
	if cfg.Live.KeepaliveInterval != 10*time.Second {
		t.Errorf("Live.KeepaliveInterval = %v, want 10s", cfg.Live.KeepaliveInterval)
	}
	if cfg.Routes.SharePagePrefix != "/s/" {
		t.Errorf("Routes.SharePagePrefix = %q, want %q", cfg.Routes.SharePagePrefix, "/s/")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "localhost:8080"
database:
  path: "./library.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Live.PollInterval != DefaultPollInterval {
		t.Errorf("Live.PollInterval = %v, want %v", cfg.Live.PollInterval, DefaultPollInterval)
	}
	if cfg.Live.KeepaliveInterval != DefaultKeepaliveInterval {
		t.Errorf("Live.KeepaliveInterval = %v, want %v", cfg.Live.KeepaliveInterval, DefaultKeepaliveInterval)
	}
	if cfg.Auth.SessionTTL != DefaultSessionTTL {
		t.Errorf("Auth.SessionTTL = %v, want %v", cfg.Auth.SessionTTL, DefaultSessionTTL)
	}
	if cfg.Desktop.Enabled {
		t.Error("Desktop.Enabled should default to false")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", `
[server]
http_addr = "localhost:9090"

[database]
path = "./library.db"
driver = "sqlite3"

[auth]
jwt_secret = "`+testSecret+`"

[desktop]
enabled = true
token = "toml-desk"

[live]
poll_interval = "3s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "localhost:9090")
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite3")
	}
	if cfg.Desktop.Token != "toml-desk" {
		t.Errorf("Desktop.Token = %q, want %q", cfg.Desktop.Token, "toml-desk")
	}
	if cfg.Live.PollInterval != 3*time.Second {
		t.Errorf("Live.PollInterval = %v, want 3s", cfg.Live.PollInterval)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("SHELF_TEST_SECRET", testSecret)
	t.Setenv("SHELF_TEST_DESKTOP", "from-env")

	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "localhost:8080"
database:
  path: "./library.db"
auth:
  jwt_secret: "${SHELF_TEST_SECRET}"
desktop:
  enabled: true
  token: "${SHELF_TEST_DESKTOP}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want expanded secret", cfg.Auth.JWTSecret)
	}
	if cfg.Desktop.Token != "from-env" {
		t.Errorf("Desktop.Token = %q, want %q", cfg.Desktop.Token, "from-env")
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	os.Unsetenv("SHELF_TEST_UNSET_DESKTOP")

	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "localhost:8080"
database:
  path: "./library.db"
auth:
  jwt_secret: "`+testSecret+`"
desktop:
  enabled: true
  token: "${SHELF_TEST_UNSET_DESKTOP}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Desktop.Token != "" {
		t.Errorf("Desktop.Token = %q, want empty", cfg.Desktop.Token)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing http addr",
			content: `
database:
  path: "./library.db"
auth:
  jwt_secret: "` + testSecret + `"
`,
			wantErr: "server.http_addr",
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: "localhost:8080"
auth:
  jwt_secret: "` + testSecret + `"
`,
			wantErr: "database.path",
		},
		{
			name: "short jwt secret",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./library.db"
auth:
  jwt_secret: "too-short"
`,
			wantErr: "jwt_secret",
		},
		{
			name: "unknown driver",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./library.db"
  driver: "postgres"
auth:
  jwt_secret: "` + testSecret + `"
`,
			wantErr: "database.driver",
		},
		{
			name: "tailscale without hostname",
			content: `
tailscale:
  enabled: true
database:
  path: "./library.db"
auth:
  jwt_secret: "` + testSecret + `"
`,
			wantErr: "tailscale.hostname",
		},
		{
			name: "bad duration",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "./library.db"
auth:
  jwt_secret: "` + testSecret + `"
live:
  poll_interval: "soon"
`,
			wantErr: "live.poll_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "gateway.yaml", tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}
