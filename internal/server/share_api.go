// ABOUTME: Public, unauthenticated share-link API backed by the share-token resolver
// ABOUTME: Every invalid capability answers the same 404 so probers learn nothing

package server

import (
	"net/http"
	"time"

	"github.com/2389/shelf-gateway/internal/store"
)

// SharedCollection is the anonymous view of a shared collection.
type SharedCollection struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	SharedAt    *time.Time `json:"sharedAt,omitempty"`
	BookCount   int        `json:"bookCount"`
}

// SharedBook is the anonymous view of a book in a shared collection.
type SharedBook struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Format    string `json:"format,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

func toSharedBook(b *store.Book) SharedBook {
	return SharedBook{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Format:    b.Format,
		SizeBytes: b.SizeBytes,
	}
}

// sendShareNotFound is the single response for every unresolvable share request.
func (s *Server) sendShareNotFound(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	s.sendJSONError(w, http.StatusNotFound, "not found")
}

// handleShareCollection handles GET /api/share/{token}.
func (s *Server) handleShareCollection(w http.ResponseWriter, r *http.Request) {
	c, books := s.resolver.ListBooks(r.Context(), r.PathValue("token"))
	if c == nil {
		s.sendShareNotFound(w)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, SharedCollection{
		Name:        c.Name,
		Description: c.Description,
		SharedAt:    c.SharedAt,
		BookCount:   len(books),
	})
}

// handleShareBooks handles GET /api/share/{token}/books.
func (s *Server) handleShareBooks(w http.ResponseWriter, r *http.Request) {
	c, books := s.resolver.ListBooks(r.Context(), r.PathValue("token"))
	if c == nil {
		s.sendShareNotFound(w)
		return
	}
	resp := make([]SharedBook, 0, len(books))
	for _, b := range books {
		resp = append(resp, toSharedBook(b))
	}
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, map[string]any{"books": resp})
}

// handleShareBook handles GET /api/share/{token}/books/{bookId}.
func (s *Server) handleShareBook(w http.ResponseWriter, r *http.Request) {
	book := s.resolver.ResolveBook(r.Context(), r.PathValue("token"), r.PathValue("bookId"))
	if book == nil {
		s.sendShareNotFound(w)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, toSharedBook(book))
}
