// ABOUTME: Store interfaces and data types for shelf-gateway persistence
// ABOUTME: Defines User, Book, Collection and the library version counter contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint (username, share token,
// collection membership) would be violated
var ErrDuplicate = errors.New("already exists")

// Role is a user's authorization role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a library account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
	Role         Role
	CreatedAt    time.Time
}

// Book is a single item of the library inventory. Progress is the reading
// position as a fraction in [0, 1].
type Book struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Format    string    `json:"format,omitempty"` // "epub", "pdf", ...
	FilePath  string    `json:"-"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
	Progress  float64   `json:"progress"`
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Collection groups books and may be published through a share token.
// ShareToken is nil when the collection is not shared.
type Collection struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"` // markdown
	ShareToken  *string    `json:"-"`
	SharedAt    *time.Time `json:"sharedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)
}

// BookStore persists the book inventory. CreateBook and DeleteBook advance
// the library version in the same transaction.
type BookStore interface {
	CreateBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id string) (*Book, error)
	ListBooks(ctx context.Context, ownerID string) ([]*Book, error)
	DeleteBook(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, progress float64) error
}

// CollectionStore persists collections, their membership, and share tokens.
type CollectionStore interface {
	CreateCollection(ctx context.Context, c *Collection) error
	GetCollection(ctx context.Context, id string) (*Collection, error)
	ListCollections(ctx context.Context, ownerID string) ([]*Collection, error)
	AddBookToCollection(ctx context.Context, collectionID, bookID string) error
	RemoveBookFromCollection(ctx context.Context, collectionID, bookID string) error
	ListCollectionBooks(ctx context.Context, collectionID string) ([]*Book, error)
	IsBookInCollection(ctx context.Context, collectionID, bookID string) (bool, error)

	// SetShareToken binds token to the collection, replacing any previous token.
	SetShareToken(ctx context.Context, collectionID, token string, sharedAt time.Time) error
	// RevokeShareToken nulls the collection's token binding.
	RevokeShareToken(ctx context.Context, collectionID string) error
	// GetCollectionByShareToken returns the collection currently bound to token.
	GetCollectionByShareToken(ctx context.Context, token string) (*Collection, error)
}

// VersionStore exposes the monotonic library version counter.
type VersionStore interface {
	GetLibraryVersion(ctx context.Context) (int64, error)
	BumpLibraryVersion(ctx context.Context) (int64, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	UserStore
	BookStore
	CollectionStore
	VersionStore

	Ping(ctx context.Context) error
	Close() error
}
