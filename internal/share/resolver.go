// ABOUTME: Resolves public share tokens to collections and member books
// ABOUTME: Every lookup re-reads the token binding; storage failures resolve to nil

// Package share resolves opaque share tokens for anonymous callers.
package share

import (
	"context"
	"errors"
	"log/slog"

	"github.com/2389/shelf-gateway/internal/store"
)

// Store is the read surface the resolver needs.
type Store interface {
	GetCollectionByShareToken(ctx context.Context, token string) (*store.Collection, error)
	IsBookInCollection(ctx context.Context, collectionID, bookID string) (bool, error)
	ListCollectionBooks(ctx context.Context, collectionID string) ([]*store.Book, error)
	GetBook(ctx context.Context, id string) (*store.Book, error)
}

// Resolver maps share tokens to the collection they are bound to.
// It keeps no cache: a revoked token stops resolving on the next call.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(s Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, logger: logger.With("component", "share")}
}

// ResolveCollection returns the collection currently bound to token, or nil.
func (r *Resolver) ResolveCollection(ctx context.Context, token string) *store.Collection {
	if token == "" {
		return nil
	}

	c, err := r.store.GetCollectionByShareToken(ctx, token)
	if err != nil {
		r.logLookupError("resolving share token", err)
		return nil
	}
	return c
}

// ResolveBook returns bookID if it is a member of the collection bound to token.
// The token is resolved first; membership is checked only against that
// collection, and the book is fetched only after membership holds.
func (r *Resolver) ResolveBook(ctx context.Context, token, bookID string) *store.Book {
	c := r.ResolveCollection(ctx, token)
	if c == nil || bookID == "" {
		return nil
	}

	member, err := r.store.IsBookInCollection(ctx, c.ID, bookID)
	if err != nil {
		r.logLookupError("checking collection membership", err, "collection_id", c.ID)
		return nil
	}
	if !member {
		return nil
	}

	book, err := r.store.GetBook(ctx, bookID)
	if err != nil {
		r.logLookupError("loading shared book", err, "collection_id", c.ID)
		return nil
	}
	return book
}

// ListBooks returns the collection bound to token with its member books.
// The collection is nil when the token does not resolve.
func (r *Resolver) ListBooks(ctx context.Context, token string) (*store.Collection, []*store.Book) {
	c := r.ResolveCollection(ctx, token)
	if c == nil {
		return nil, nil
	}

	books, err := r.store.ListCollectionBooks(ctx, c.ID)
	if err != nil {
		r.logLookupError("listing shared books", err, "collection_id", c.ID)
		return nil, nil
	}
	return c, books
}

// logLookupError logs infrastructure failures. Not-found is the normal outcome
// of an invalid capability and is not logged.
func (r *Resolver) logLookupError(msg string, err error, args ...any) {
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	r.logger.Warn(msg, append(args, "error", err)...)
}
