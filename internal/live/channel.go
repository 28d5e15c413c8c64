// ABOUTME: Server-Sent Events stream that notifies clients when the library version changes
// ABOUTME: One goroutine per connection polls the version and sends keepalive comments

// Package live streams library change notifications to connected clients.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/shelf-gateway/internal/clock"
)

// Default intervals.
const (
	DefaultPollInterval      = 2 * time.Second
	DefaultKeepaliveInterval = 15 * time.Second
)

// Event types sent on the stream.
const (
	EventConnected     = "connected"
	EventLibraryUpdate = "library-update"
)

// VersionSource reads the current library version.
type VersionSource interface {
	GetLibraryVersion(ctx context.Context) (int64, error)
}

// Config configures a Channel. Zero values select the defaults.
type Config struct {
	PollInterval      time.Duration
	KeepaliveInterval time.Duration
	Clock             clock.Clock
	Logger            *slog.Logger
}

// Channel serves the live-update stream. Each connection is independent;
// the only state shared between them is the open-connection gauge.
type Channel struct {
	versions  VersionSource
	poll      time.Duration
	keepalive time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	open      atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Channel reading versions from vs.
func New(vs VersionSource, cfg Config) *Channel {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Channel{
		versions:  vs,
		poll:      cfg.PollInterval,
		keepalive: cfg.KeepaliveInterval,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With("component", "live"),
		done:      make(chan struct{}),
	}
}

// Open returns the number of streams currently being served.
func (c *Channel) Open() int64 {
	return c.open.Load()
}

// Close ends every open stream. Used on server shutdown, where request
// contexts of long-lived streams are not canceled.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// event is the JSON payload of a data line.
type event struct {
	Type      string `json:"type"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// ServeHTTP streams events until the client goes away, a write fails, or
// the channel is closed.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	c.open.Add(1)
	defer c.open.Add(-1)

	ctx := r.Context()
	s := &stream{w: w, flusher: flusher}

	pollTicker := c.clock.NewTicker(c.poll)
	keepaliveTicker := c.clock.NewTicker(c.keepalive)
	defer func() {
		pollTicker.Stop()
		keepaliveTicker.Stop()
		c.logger.Debug("stream closed", "open", c.open.Load()-1)
	}()

	lastSeen, _ := c.readVersion(ctx)
	if err := s.data(event{Type: EventConnected}); err != nil {
		return
	}
	c.logger.Debug("stream opened", "version", lastSeen)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return

		case <-pollTicker.C:
			v, ok := c.readVersion(ctx)
			if !ok || v == lastSeen {
				continue
			}
			lastSeen = v
			if err := s.data(event{Type: EventLibraryUpdate, Timestamp: &v}); err != nil {
				c.logger.Debug("write failed, dropping stream", "error", err)
				return
			}

		case <-keepaliveTicker.C:
			if err := s.comment("keepalive"); err != nil {
				c.logger.Debug("write failed, dropping stream", "error", err)
				return
			}
		}
	}
}

// readVersion returns the current version. Failures are logged and reported
// as !ok so the stream stays open.
func (c *Channel) readVersion(ctx context.Context) (int64, bool) {
	v, err := c.versions.GetLibraryVersion(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("reading library version", "error", err)
		}
		return 0, false
	}
	return v, true
}

// stream writes SSE frames and flushes after each one.
type stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *stream) data(e event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *stream) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
