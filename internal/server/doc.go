// Package server wires the shelf-gateway HTTP server together.
//
// # Overview
//
// The server package owns the store, the session decoder, the authorization
// gateway, the share-token resolver, and the live-update channel, and mounts
// every route behind the gateway middleware.
//
// # Server Struct
//
//	type Server struct {
//	    config     *config.Config
//	    store      store.Store
//	    decoder    *auth.SessionDecoder
//	    authz      *gateway.Gateway
//	    resolver   *share.Resolver
//	    live       *live.Channel
//	    httpServer *http.Server
//	    // ... and more
//	}
//
// # HTTP Routes
//
// Excluded from the gateway:
//
//   - GET /health, GET /health/ready
//   - GET /static/..., GET /robots.txt
//
// Public pages and identity:
//
//   - GET /login, GET /setup, POST /setup
//   - GET /share/{token}
//   - POST /api/auth/login, POST /api/auth/logout, GET /api/auth/session
//
// Public share API (capability token in the path):
//
//   - GET /api/share/{token}
//   - GET /api/share/{token}/books
//   - GET /api/share/{token}/books/{bookId}
//
// Desktop IPC (loopback plus X-Desktop-Token):
//
//   - GET /api/desktop/status
//   - POST /api/desktop/books, DELETE /api/desktop/books/{id}
//
// Session-authenticated API:
//
//   - GET /api/library/books, DELETE /api/library/books/{id}
//   - PUT /api/library/books/{id}/progress
//   - GET /api/library/version, GET /api/library/events (SSE)
//   - GET/POST /api/collections and membership/share sub-routes
//   - GET/POST /api/admin/users (admin only)
//
// # Lifecycle
//
//	srv, err := server.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go srv.Run(ctx)
//
// Graceful shutdown closes open live-update streams before the HTTP server
// drains:
//
//	cancel()
//	srv.Shutdown(shutdownCtx)
//
// # Key Files
//
//   - server.go: Server struct, listeners, Run/Shutdown
//   - routes.go: route table and JSON helpers
//   - identity.go: login, logout, first-run setup
//   - api.go: library, collection and admin handlers
//   - share_api.go: anonymous share-link API
//   - desktop.go: desktop IPC handlers
//   - pages.go: HTML pages
package server
