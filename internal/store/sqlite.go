// ABOUTME: SQLite implementation of the Store interface
// ABOUTME: Uses modernc.org/sqlite by default, mattn/go-sqlite3 when driver is "sqlite3"

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path using the pure-Go driver.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return OpenSQLite("sqlite", path)
}

// OpenSQLite opens a store with an explicit driver name: "sqlite" for
// modernc.org/sqlite or "sqlite3" for github.com/mattn/go-sqlite3.
func OpenSQLite(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// foreign_keys is per connection, so it goes in the DSN to cover the whole pool.
	dsn := path
	switch driver {
	case "sqlite":
		if !memory {
			dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
		}
	case "sqlite3":
		if !memory {
			dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to ":memory:" is a distinct database.
	if memory {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			role          TEXT NOT NULL,
			created_at    TEXT NOT NULL,

			CHECK (role IN ('admin', 'user'))
		);

		CREATE TABLE IF NOT EXISTS books (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title      TEXT NOT NULL,
			author     TEXT,
			format     TEXT,
			file_path  TEXT,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			progress   REAL NOT NULL DEFAULT 0,
			added_at   TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_books_owner ON books(owner_id);

		CREATE TABLE IF NOT EXISTS collections (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			description TEXT,
			share_token TEXT UNIQUE,
			shared_at   TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_collections_owner ON collections(owner_id);

		CREATE TABLE IF NOT EXISTS collection_books (
			collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			book_id       TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			added_at      TEXT NOT NULL,

			PRIMARY KEY (collection_id, book_id)
		);

		CREATE INDEX IF NOT EXISTS idx_collection_books_book ON collection_books(book_id);

		-- Single-row library version counter
		CREATE TABLE IF NOT EXISTS library_state (
			id      INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL
		);

		INSERT OR IGNORE INTO library_state (id, version) VALUES (1, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "books",
			column: "progress",
			apply:  `ALTER TABLE books ADD COLUMN progress REAL NOT NULL DEFAULT 0`,
		},
		{
			table:  "collections",
			column: "description",
			apply:  `ALTER TABLE collections ADD COLUMN description TEXT`,
		},
	}

	for _, m := range migrations {
		var exists int
		check := fmt.Sprintf(`SELECT 1 FROM pragma_table_info('%s') WHERE name = ?`, m.table)
		err := s.db.QueryRow(check, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Ping verifies the database connection is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// isForeignKeyViolation checks if the error references a missing parent row
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateUser inserts a new account. Returns ErrDuplicate if the username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, password_hash, display_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		string(user.Role),
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", user.Username, "role", user.Role)
	return nil
}

const userColumns = `id, username, password_hash, display_name, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName, &role, &createdAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)

	var err error
	u.CreatedAt, err = parseTime("created_at", createdAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by login name.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// ListUsers returns all accounts ordered by creation time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, username ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of accounts. Setup is only allowed while it is zero.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
