// ABOUTME: HTTP route table for shelf-gateway
// ABOUTME: Every route sits behind the authorization gateway middleware

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/shelf-gateway/internal/auth"
)

// maxBodyBytes caps JSON and form request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Excluded from the gateway
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.Handle("GET /static/", staticHandler())
	mux.HandleFunc("GET /robots.txt", handleRobots)

	// Public pages
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("GET /setup", s.handleSetupPage)
	mux.HandleFunc("POST /setup", s.handleSetup)
	mux.HandleFunc("GET /share/{token}", s.handleSharePage)

	// Identity provider
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/session", s.handleSession)

	// Public share API
	mux.HandleFunc("GET /api/share/{token}", s.handleShareCollection)
	mux.HandleFunc("GET /api/share/{token}/books", s.handleShareBooks)
	mux.HandleFunc("GET /api/share/{token}/books/{bookId}", s.handleShareBook)

	// Desktop IPC
	mux.Handle("GET /api/desktop/status", s.requireDesktop(http.HandlerFunc(s.handleDesktopStatus)))
	mux.Handle("POST /api/desktop/books", s.requireDesktop(http.HandlerFunc(s.handleDesktopAddBook)))
	mux.Handle("DELETE /api/desktop/books/{id}", s.requireDesktop(http.HandlerFunc(s.handleDesktopRemoveBook)))

	// Library API
	mux.HandleFunc("GET /api/library/books", s.handleListBooks)
	mux.HandleFunc("DELETE /api/library/books/{id}", s.handleDeleteBook)
	mux.HandleFunc("PUT /api/library/books/{id}/progress", s.handleUpdateProgress)
	mux.HandleFunc("GET /api/library/version", s.handleLibraryVersion)
	mux.Handle("GET /api/library/events", s.live)

	mux.HandleFunc("GET /api/collections", s.handleListCollections)
	mux.HandleFunc("POST /api/collections", s.handleCreateCollection)
	mux.HandleFunc("POST /api/collections/{id}/books", s.handleAddToCollection)
	mux.HandleFunc("DELETE /api/collections/{id}/books/{bookId}", s.handleRemoveFromCollection)
	mux.HandleFunc("POST /api/collections/{id}/share", s.handleShareCollectionCreate)
	mux.HandleFunc("DELETE /api/collections/{id}/share", s.handleShareCollectionRevoke)

	// Admin API
	mux.HandleFunc("GET /api/admin/users", s.handleListUsers)
	mux.HandleFunc("POST /api/admin/users", s.handleCreateUser)

	// Pages
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/library", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /library", s.handleLibraryPage)
	mux.HandleFunc("GET /admin", s.handleAdminPage)
}

// principal returns the principal the gateway attached to r.
func principal(r *http.Request) *auth.Principal {
	return auth.FromContext(r.Context())
}

// writeJSON writes v as a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON decodes a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}
