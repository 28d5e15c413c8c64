// ABOUTME: Server orchestrator that wires the store, authorization gateway, and HTTP routes
// ABOUTME: Manages the HTTP listener (TCP or Tailscale), live streams, and graceful shutdown

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/clock"
	"github.com/2389/shelf-gateway/internal/config"
	"github.com/2389/shelf-gateway/internal/gateway"
	"github.com/2389/shelf-gateway/internal/live"
	"github.com/2389/shelf-gateway/internal/share"
	"github.com/2389/shelf-gateway/internal/store"
	"github.com/2389/shelf-gateway/internal/throttle"
)

// Server orchestrates the shelf-gateway components.
type Server struct {
	config      *config.Config
	store       store.Store
	decoder     *auth.SessionDecoder
	authz       *gateway.Gateway
	resolver    *share.Resolver
	live        *live.Channel
	logins      *throttle.Limiter
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// baseURL prefixes share links handed back to owners
	baseURL string

	// setupMu serializes first-admin creation
	setupMu sync.Mutex

	clock clock.Clock
}

// Option customizes a Server built by NewWithStore.
type Option func(*Server)

// WithClock sets the clock driving live-update streams.
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// determineBaseURL resolves the external base URL from config or environment.
func determineBaseURL(cfg *config.Config, logger *slog.Logger) string {
	if cfg.Server.BaseURL != "" {
		return strings.TrimSuffix(cfg.Server.BaseURL, "/")
	}

	if envURL := os.Getenv("SHELF_BASE_URL"); envURL != "" {
		return strings.TrimSuffix(envURL, "/")
	}

	if !cfg.Tailscale.Enabled {
		return "http://" + cfg.Server.HTTPAddr
	}

	if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
		logger.Warn("server.base_url/SHELF_BASE_URL not set - share links will use the bare tailscale hostname")
		return "https://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Tailscale.Hostname
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// OpenStore creates the store configured by cfg. SHELF_DB_PATH overrides the path.
func OpenStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SHELF_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	driver := cfg.Database.Driver
	if driver == "" {
		driver = config.DefaultDatabaseDriver
	}

	s, err := store.OpenSQLite(driver, expandHome(dbPath))
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Server backed by the SQLite store named in cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	srv, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithStore creates a Server on top of an existing store. The server owns
// the store from here on and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s store.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	decoder, err := auth.NewSessionDecoder([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating session decoder: %w", err)
	}

	cookieName := cfg.Auth.CookieName
	if cookieName == "" {
		cookieName = config.DefaultCookieName
	}
	cfg.Auth.CookieName = cookieName
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = config.DefaultSessionTTL
	}

	srv := &Server{
		config:  cfg,
		store:   s,
		decoder: decoder,
		logger:  logger.With("component", "server"),
		baseURL: determineBaseURL(cfg, logger),
		clock:   clock.Real(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	if cfg.Desktop.Enabled && cfg.Desktop.Token == "" {
		srv.logger.Warn("desktop mode enabled without desktop.token - desktop API will deny every request")
	}

	srv.authz = gateway.New(gateway.RulesFromConfig(cfg.Routes), decoder, cookieName, logger)
	srv.resolver = share.NewResolver(s, logger)
	srv.logins = throttle.New(throttle.Config{Clock: srv.clock})
	srv.live = live.New(s, live.Config{
		PollInterval:      cfg.Live.PollInterval,
		KeepaliveInterval: cfg.Live.KeepaliveInterval,
		Clock:             srv.clock,
		Logger:            logger,
	})

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.authz.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.httpServer.RegisterOnShutdown(srv.live.Close)

	return srv, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (s *Server) setupTCPListener() (net.Listener, error) {
	s.logger.Info("starting server", "http_addr", s.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}
	return s.setupTCPListener()
}

// startServer starts the HTTP server in a goroutine, returning its error channel.
func (s *Server) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := s.startServer(ln)
	serverErr := s.waitForShutdownSignal(ctx, errCh)

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "shelf", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet server and returns its HTTP listener.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	s.logTailscaleStatus(tsCfg.Hostname, status)
	s.updateBaseURLFromStatus(status)

	return s.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// updateBaseURLFromStatus points share links at the node's tailnet DNS name
// unless a base URL was configured explicitly.
func (s *Server) updateBaseURLFromStatus(status *ipnstate.Status) {
	if s.config.Server.BaseURL != "" || os.Getenv("SHELF_BASE_URL") != "" {
		return
	}
	if status.Self == nil || status.Self.DNSName == "" {
		return
	}
	scheme := "http"
	if s.config.Tailscale.HTTPS || s.config.Tailscale.Funnel {
		scheme = "https"
	}
	newURL := scheme + "://" + strings.TrimSuffix(status.Self.DNSName, ".")
	if newURL != s.baseURL {
		s.logger.Info("updated base URL to use Tailscale DNS name", "old", s.baseURL, "new", newURL)
		s.baseURL = newURL
	}
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (s *Server) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return s.createTailscaleTLSListener()
	default:
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (s *Server) createTailscaleTLSListener() (net.Listener, error) {
	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the server and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server", "open_streams", s.live.Open())

	var errs []error
	// Shutdown does not cancel long-lived requests; closing the channel ends them.
	s.live.Close()
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
