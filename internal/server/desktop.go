// ABOUTME: Desktop IPC API for the local desktop shell and its file watcher
// ABOUTME: Requires a loopback origin and the shared desktop secret; no session involved

package server

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/store"
)

// DesktopBookRequest is the JSON body for POST /api/desktop/books.
type DesktopBookRequest struct {
	ID        string `json:"id,omitempty"`
	OwnerID   string `json:"ownerId"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Format    string `json:"format,omitempty"`
	FilePath  string `json:"filePath,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// DesktopStatusResponse is the JSON response for GET /api/desktop/status.
type DesktopStatusResponse struct {
	OK          bool  `json:"ok"`
	Version     int64 `json:"version"`
	OpenStreams int64 `json:"openStreams"`
}

// isLoopback reports whether the request arrived from this machine.
func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// requireDesktop admits only loopback callers that present the desktop secret.
// Every refusal is the same 403.
func (s *Server) requireDesktop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := auth.DesktopConfig{Enabled: s.config.Desktop.Enabled, Token: s.config.Desktop.Token}
		if !isLoopback(r) || !auth.IsDesktopAuthorized(r.Header, cfg) {
			s.logger.Debug("desktop request refused", "path", r.URL.Path, "remote", r.RemoteAddr)
			s.sendJSONError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleDesktopStatus handles GET /api/desktop/status.
func (s *Server) handleDesktopStatus(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.GetLibraryVersion(r.Context())
	if err != nil {
		s.logger.Error("failed to read library version", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, DesktopStatusResponse{OK: true, Version: v, OpenStreams: s.live.Open()})
}

// handleDesktopAddBook handles POST /api/desktop/books. The watcher reports
// a newly indexed file; the library version advances with the insert.
func (s *Server) handleDesktopAddBook(w http.ResponseWriter, r *http.Request) {
	var req DesktopBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.OwnerID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "ownerId and title are required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	book := &store.Book{
		ID:        req.ID,
		OwnerID:   req.OwnerID,
		Title:     req.Title,
		Author:    req.Author,
		Format:    strings.ToLower(req.Format),
		FilePath:  req.FilePath,
		SizeBytes: req.SizeBytes,
		AddedAt:   now,
		UpdatedAt: now,
	}

	err := s.store.CreateBook(r.Context(), book)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusBadRequest, "unknown owner")
	case errors.Is(err, store.ErrDuplicate):
		s.sendJSONError(w, http.StatusConflict, "book already exists")
	case err != nil:
		s.logger.Error("failed to add book", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		s.logger.Info("book added by desktop", "book_id", book.ID, "owner", book.OwnerID)
		s.writeJSON(w, http.StatusCreated, book)
	}
}

// handleDesktopRemoveBook handles DELETE /api/desktop/books/{id}.
func (s *Server) handleDesktopRemoveBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.store.DeleteBook(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "book not found")
	case err != nil:
		s.logger.Error("failed to remove book", "book_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		s.logger.Info("book removed by desktop", "book_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}
