// ABOUTME: Authenticated JSON API for the library, collections, share management, and admin
// ABOUTME: Handlers assume the gateway already rejected anonymous and non-admin callers

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/shelf-gateway/internal/share"
	"github.com/2389/shelf-gateway/internal/store"
)

// ProgressRequest is the JSON body for PUT /api/library/books/{id}/progress.
type ProgressRequest struct {
	Progress *float64 `json:"progress"`
}

// CreateCollectionRequest is the JSON body for POST /api/collections.
type CreateCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddBookRequest is the JSON body for POST /api/collections/{id}/books.
type AddBookRequest struct {
	BookID string `json:"bookId"`
}

// ShareLinkResponse is returned when a collection is shared.
type ShareLinkResponse struct {
	Token    string    `json:"token"`
	URL      string    `json:"url"`
	SharedAt time.Time `json:"sharedAt"`
}

// VersionResponse is the JSON response for GET /api/library/version.
type VersionResponse struct {
	Version int64 `json:"version"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Role        store.Role `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toUserResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

// ownedBook loads a book the caller may modify. It writes the error response
// and returns nil when the book is missing or belongs to someone else.
func (s *Server) ownedBook(w http.ResponseWriter, r *http.Request, id string) *store.Book {
	book, err := s.store.GetBook(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "book not found")
		return nil
	}
	if err != nil {
		s.logger.Error("failed to get book", "book_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	p := principal(r)
	if book.OwnerID != p.ID && !p.IsAdmin() {
		s.sendJSONError(w, http.StatusNotFound, "book not found")
		return nil
	}
	return book
}

// ownedCollection loads a collection the caller may modify.
func (s *Server) ownedCollection(w http.ResponseWriter, r *http.Request, id string) *store.Collection {
	c, err := s.store.GetCollection(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "collection not found")
		return nil
	}
	if err != nil {
		s.logger.Error("failed to get collection", "collection_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	p := principal(r)
	if c.OwnerID != p.ID && !p.IsAdmin() {
		s.sendJSONError(w, http.StatusNotFound, "collection not found")
		return nil
	}
	return c
}

// handleListBooks handles GET /api/library/books.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context(), principal(r).ID)
	if err != nil {
		s.logger.Error("failed to list books", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if books == nil {
		books = []*store.Book{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

// handleDeleteBook handles DELETE /api/library/books/{id}.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	book := s.ownedBook(w, r, r.PathValue("id"))
	if book == nil {
		return
	}
	if err := s.store.DeleteBook(r.Context(), book.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to delete book", "book_id", book.ID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateProgress handles PUT /api/library/books/{id}/progress.
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Progress == nil || *req.Progress < 0 || *req.Progress > 1 {
		s.sendJSONError(w, http.StatusBadRequest, "progress must be between 0 and 1")
		return
	}

	book := s.ownedBook(w, r, r.PathValue("id"))
	if book == nil {
		return
	}
	if err := s.store.UpdateProgress(r.Context(), book.ID, *req.Progress); err != nil {
		s.logger.Error("failed to update progress", "book_id", book.ID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLibraryVersion handles GET /api/library/version.
func (s *Server) handleLibraryVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.GetLibraryVersion(r.Context())
	if err != nil {
		s.logger.Error("failed to read library version", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, VersionResponse{Version: v})
}

// handleListCollections handles GET /api/collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.store.ListCollections(r.Context(), principal(r).ID)
	if err != nil {
		s.logger.Error("failed to list collections", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if collections == nil {
		collections = []*store.Collection{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

// handleCreateCollection handles POST /api/collections.
func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	c := &store.Collection{
		ID:          uuid.New().String(),
		OwnerID:     principal(r).ID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateCollection(r.Context(), c); err != nil {
		s.logger.Error("failed to create collection", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

// handleAddToCollection handles POST /api/collections/{id}/books.
func (s *Server) handleAddToCollection(w http.ResponseWriter, r *http.Request) {
	var req AddBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := s.ownedCollection(w, r, r.PathValue("id"))
	if c == nil {
		return
	}
	book := s.ownedBook(w, r, req.BookID)
	if book == nil {
		return
	}

	err := s.store.AddBookToCollection(r.Context(), c.ID, book.ID)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		s.sendJSONError(w, http.StatusConflict, "book already in collection")
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "book not found")
	case err != nil:
		s.logger.Error("failed to add book to collection", "collection_id", c.ID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRemoveFromCollection handles DELETE /api/collections/{id}/books/{bookId}.
func (s *Server) handleRemoveFromCollection(w http.ResponseWriter, r *http.Request) {
	c := s.ownedCollection(w, r, r.PathValue("id"))
	if c == nil {
		return
	}

	err := s.store.RemoveBookFromCollection(r.Context(), c.ID, r.PathValue("bookId"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "book not in collection")
	case err != nil:
		s.logger.Error("failed to remove book from collection", "collection_id", c.ID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleShareCollectionCreate handles POST /api/collections/{id}/share.
// A new token replaces any previous one, so old links stop working.
func (s *Server) handleShareCollectionCreate(w http.ResponseWriter, r *http.Request) {
	c := s.ownedCollection(w, r, r.PathValue("id"))
	if c == nil {
		return
	}

	token, err := share.NewToken()
	if err != nil {
		s.logger.Error("failed to mint share token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sharedAt := time.Now().UTC().Truncate(time.Second)
	if err := s.store.SetShareToken(r.Context(), c.ID, token, sharedAt); err != nil {
		s.logger.Error("failed to share collection", "collection_id", c.ID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.logger.Info("collection shared", "collection_id", c.ID, "user_id", principal(r).ID)

	s.writeJSON(w, http.StatusCreated, ShareLinkResponse{
		Token:    token,
		URL:      s.baseURL + "/share/" + token,
		SharedAt: sharedAt,
	})
}

// handleShareCollectionRevoke handles DELETE /api/collections/{id}/share.
func (s *Server) handleShareCollectionRevoke(w http.ResponseWriter, r *http.Request) {
	c := s.ownedCollection(w, r, r.PathValue("id"))
	if c == nil {
		return
	}
	if err := s.store.RevokeShareToken(r.Context(), c.ID); err != nil {
		s.logger.Error("failed to revoke share", "collection_id", c.ID, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.logger.Info("collection share revoked", "collection_id", c.ID, "user_id", principal(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleListUsers handles GET /api/admin/users.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}

// handleCreateUser handles POST /api/admin/users.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	role := store.Role(req.Role)
	if req.Role == "" {
		role = store.RoleUser
	}

	user, err := CreateUser(r.Context(), s.store, strings.TrimSpace(req.Username), req.Password, strings.TrimSpace(req.DisplayName), role)
	if errors.Is(err, store.ErrDuplicate) {
		s.sendJSONError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("user created", "user_id", user.ID, "role", user.Role, "by", principal(r).ID)
	s.writeJSON(w, http.StatusCreated, toUserResponse(user))
}
