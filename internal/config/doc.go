// Package config handles configuration loading for shelf-gateway.
//
// # Overview
//
// Configuration is loaded from YAML (default) or TOML (".toml" extension) files
// with environment variable expansion. Load applies defaults and validates.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SHELF_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/shelf/gateway.yaml
//  3. ~/.config/shelf/gateway.yaml
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${SHELF_JWT_SECRET}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//
//	database:
//	  path: "/var/lib/shelf/library.db"
//	  driver: "sqlite"                # sqlite (pure Go) or sqlite3 (cgo)
//
//	auth:
//	  jwt_secret: "${SHELF_JWT_SECRET}"  # at least 32 bytes
//	  cookie_name: "shelf_session"
//	  session_ttl: "720h"
//
//	desktop:
//	  enabled: false
//	  token: "${SHELF_DESKTOP_TOKEN}"
//
//	live:
//	  poll_interval: "2s"
//	  keepalive_interval: "15s"
//
//	routes:                           # optional gateway prefix overrides
//	  share_page_prefix: "/share/"
//
//	tailscale:
//	  enabled: false
//	  hostname: "shelf"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
