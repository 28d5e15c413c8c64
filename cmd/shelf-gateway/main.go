// ABOUTME: Entry point for shelf-gateway, the personal library web server
// ABOUTME: Builds the cobra command tree and runs it under a signal-aware context

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _          _  __                  _
  ___ | |__   ___| |/ _|       __ _  __ _| |_ _____      ____ _ _   _
 / __|| '_ \ / _ \ | |_ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 \__ \| | | |  __/ |  _|_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |___/|_| |_|\___|_|_|        \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                              |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: SHELF_CONFIG env var > XDG_CONFIG_HOME/shelf/gateway.yaml > ~/.config/shelf/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SHELF_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "shelf", "gateway.yaml")
}

// getDataPath returns the path to the shelf data directory.
// Priority: XDG_DATA_HOME/shelf > ~/.local/share/shelf
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "shelf")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
