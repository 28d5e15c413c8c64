// ABOUTME: SQLite persistence for books, collections, share tokens, and the library version
// ABOUTME: Inventory mutations advance the version counter inside the same transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// bumpVersionTx advances the library version to at least the current unix
// millisecond, and always by at least one, so the value never repeats.
func (s *SQLiteStore) bumpVersionTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	nowMs := s.now().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`UPDATE library_state SET version = MAX(version + 1, ?) WHERE id = 1`, nowMs); err != nil {
		return 0, fmt.Errorf("bumping library version: %w", err)
	}

	var v int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM library_state WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading library version: %w", err)
	}
	return v, nil
}

// withVersionBump runs fn in a transaction and advances the library version
// before committing.
func (s *SQLiteStore) withVersionBump(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	v, err := s.bumpVersionTx(ctx, tx)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("library version advanced", "version", v)
	return nil
}

// GetLibraryVersion returns the current library version.
func (s *SQLiteStore) GetLibraryVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM library_state WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading library version: %w", err)
	}
	return v, nil
}

// BumpLibraryVersion advances the library version outside of a book mutation,
// for example after the external watcher reports a rescan.
func (s *SQLiteStore) BumpLibraryVersion(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	v, err := s.bumpVersionTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return v, nil
}

// CreateBook inserts a book and advances the library version.
func (s *SQLiteStore) CreateBook(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (id, owner_id, title, author, format, file_path, size_bytes, progress, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.withVersionBump(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			book.ID,
			book.OwnerID,
			book.Title,
			nullString(book.Author),
			nullString(book.Format),
			nullString(book.FilePath),
			book.SizeBytes,
			book.Progress,
			formatTime(book.AddedAt),
			formatTime(book.UpdatedAt),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			if isConstraintViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("inserting book: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created book", "id", book.ID, "owner", book.OwnerID)
	return nil
}

const bookColumns = `b.id, b.owner_id, b.title, b.author, b.format, b.file_path, b.size_bytes, b.progress, b.added_at, b.updated_at`

func scanBook(row interface{ Scan(...any) error }) (*Book, error) {
	var b Book
	var author, format, filePath sql.NullString
	var addedAt, updatedAt string

	if err := row.Scan(
		&b.ID,
		&b.OwnerID,
		&b.Title,
		&author,
		&format,
		&filePath,
		&b.SizeBytes,
		&b.Progress,
		&addedAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	b.Author = author.String
	b.Format = format.String
	b.FilePath = filePath.String

	var err error
	if b.AddedAt, err = parseTime("added_at", addedAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBooks(rows *sql.Rows) ([]*Book, error) {
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating books: %w", err)
	}
	return books, nil
}

// GetBook retrieves a book by ID.
func (s *SQLiteStore) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id = ?`, id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying book: %w", err)
	}
	return b, nil
}

// ListBooks returns the books owned by ownerID, most recently added first.
func (s *SQLiteStore) ListBooks(ctx context.Context, ownerID string) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books b WHERE b.owner_id = ? ORDER BY b.added_at DESC, b.title ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying books: %w", err)
	}
	return collectBooks(rows)
}

// DeleteBook removes a book (and its collection memberships) and advances the library version.
func (s *SQLiteStore) DeleteBook(ctx context.Context, id string) error {
	return s.withVersionBump(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting book: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateProgress records the reading position of a book. Progress does not
// change the inventory, so the library version is left alone.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, id string, progress float64) error {
	if progress < 0 || progress > 1 {
		return fmt.Errorf("progress %v out of range [0, 1]", progress)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE books SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCollection inserts a new, unshared collection.
func (s *SQLiteStore) CreateCollection(ctx context.Context, c *Collection) error {
	query := `
		INSERT INTO collections (id, owner_id, name, description, share_token, shared_at, created_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.OwnerID,
		c.Name,
		nullString(c.Description),
		formatTime(c.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting collection: %w", err)
	}

	s.logger.Debug("created collection", "id", c.ID, "owner", c.OwnerID)
	return nil
}

const collectionColumns = `id, owner_id, name, description, share_token, shared_at, created_at`

func scanCollection(row interface{ Scan(...any) error }) (*Collection, error) {
	var c Collection
	var description, shareToken, sharedAt sql.NullString
	var createdAt string

	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &description, &shareToken, &sharedAt, &createdAt); err != nil {
		return nil, err
	}

	c.Description = description.String
	if shareToken.Valid {
		token := shareToken.String
		c.ShareToken = &token
	}
	if sharedAt.Valid {
		t, err := parseTime("shared_at", sharedAt.String)
		if err != nil {
			return nil, err
		}
		c.SharedAt = &t
	}

	var err error
	if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCollection retrieves a collection by ID.
func (s *SQLiteStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	return c, nil
}

// ListCollections returns the collections owned by ownerID ordered by name.
func (s *SQLiteStore) ListCollections(ctx context.Context, ownerID string) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE owner_id = ? ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return out, nil
}

// AddBookToCollection joins a book to a collection and advances the library version.
func (s *SQLiteStore) AddBookToCollection(ctx context.Context, collectionID, bookID string) error {
	return s.withVersionBump(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO collection_books (collection_id, book_id, added_at) VALUES (?, ?, ?)`,
			collectionID, bookID, formatTime(s.now()))
		if err != nil {
			if isConstraintViolation(err) {
				return s.membershipConflict(ctx, tx, collectionID, bookID)
			}
			return fmt.Errorf("inserting collection membership: %w", err)
		}
		return nil
	})
}

// membershipConflict distinguishes a duplicate membership from a reference to a
// missing collection or book (both surface as constraint failures).
func (s *SQLiteStore) membershipConflict(ctx context.Context, tx *sql.Tx, collectionID, bookID string) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM collection_books WHERE collection_id = ? AND book_id = ?`,
		collectionID, bookID).Scan(&exists)
	if err == nil {
		return ErrDuplicate
	}
	return ErrNotFound
}

// RemoveBookFromCollection drops a membership and advances the library version.
func (s *SQLiteStore) RemoveBookFromCollection(ctx context.Context, collectionID, bookID string) error {
	return s.withVersionBump(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM collection_books WHERE collection_id = ? AND book_id = ?`, collectionID, bookID)
		if err != nil {
			return fmt.Errorf("deleting collection membership: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListCollectionBooks returns the member books of a collection ordered by title.
func (s *SQLiteStore) ListCollectionBooks(ctx context.Context, collectionID string) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books b
		JOIN collection_books cb ON cb.book_id = b.id
		WHERE cb.collection_id = ?
		ORDER BY b.title ASC, b.id ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("querying collection books: %w", err)
	}
	return collectBooks(rows)
}

// IsBookInCollection reports whether bookID is joined to collectionID.
func (s *SQLiteStore) IsBookInCollection(ctx context.Context, collectionID, bookID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM collection_books WHERE collection_id = ? AND book_id = ?`,
		collectionID, bookID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying collection membership: %w", err)
	}
	return true, nil
}

// SetShareToken binds token to the collection. Returns ErrDuplicate if the
// token is already bound to another collection.
func (s *SQLiteStore) SetShareToken(ctx context.Context, collectionID, token string, sharedAt time.Time) error {
	if token == "" {
		return fmt.Errorf("share token must not be empty")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE collections SET share_token = ?, shared_at = ? WHERE id = ?`,
		token, formatTime(sharedAt), collectionID)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("setting share token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("collection shared", "id", collectionID)
	return nil
}

// RevokeShareToken nulls the collection's token binding.
func (s *SQLiteStore) RevokeShareToken(ctx context.Context, collectionID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE collections SET share_token = NULL, shared_at = NULL WHERE id = ?`, collectionID)
	if err != nil {
		return fmt.Errorf("revoking share token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("collection share revoked", "id", collectionID)
	return nil
}

// GetCollectionByShareToken returns the collection whose active share token equals token.
func (s *SQLiteStore) GetCollectionByShareToken(ctx context.Context, token string) (*Collection, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE share_token = ?`, token)
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection by share token: %w", err)
	}
	return c, nil
}
