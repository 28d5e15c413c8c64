// Package store provides persistent storage for shelf-gateway using SQLite.
//
// # Architecture
//
// Persistence is split into narrow interfaces composed by Store:
//
//   - UserStore: Accounts with bcrypt password hashes and roles
//   - BookStore: The book inventory
//   - CollectionStore: Collections, membership, and share tokens
//   - VersionStore: The monotonic library version counter
//
// SQLiteStore implements all of them in a single struct. Consumers accept the
// narrowest interface they need (the share resolver takes a CollectionStore and
// a BookStore, the live channel only reads the version).
//
// # Library Version
//
// Every inventory mutation (CreateBook, DeleteBook, AddBookToCollection,
// RemoveBookFromCollection) advances the version inside the same transaction:
//
//	UPDATE library_state SET version = MAX(version + 1, <unix millis>)
//
// The value is a unix millisecond timestamp in practice and strictly
// increases even when the clock steps backwards.
//
// # Share Tokens
//
// A collection is shared while collections.share_token is non-NULL. The
// column is UNIQUE, so a token resolves to at most one collection. Revoking
// nulls the column and the next lookup of the old token fails.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, pure Go, the
// default) and "sqlite3" (github.com/mattn/go-sqlite3, cgo).
//
// # Testing
//
// Use NewMockStore() for unit tests. Its Err field injects failures into every
// call and Calls reports how often a method ran. Use NewSQLiteStore with a
// path under t.TempDir() for integration tests with real SQLite.
package store
