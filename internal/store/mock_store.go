// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
// Setting Err makes every read and write fail with that error, which lets
// tests exercise transient-infrastructure paths.
type MockStore struct {
	mu          sync.RWMutex
	users       map[string]*User               // keyed by user ID
	books       map[string]*Book               // keyed by book ID
	collections map[string]*Collection         // keyed by collection ID
	members     map[string]map[string]struct{} // collectionID -> set of bookIDs
	version     int64

	Err   error
	calls map[string]int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:       make(map[string]*User),
		books:       make(map[string]*Book),
		collections: make(map[string]*Collection),
		members:     make(map[string]map[string]struct{}),
		calls:       make(map[string]int),
	}
}

// SetErr sets or clears the injected failure.
func (m *MockStore) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Calls returns how many times the named method has been invoked.
func (m *MockStore) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// record must be called with mu held for writing.
func (m *MockStore) record(method string) error {
	m.calls[method]++
	return m.Err
}

// SetLibraryVersion forces the version counter, for tests that script a sequence.
func (m *MockStore) SetLibraryVersion(v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = v
}

func (m *MockStore) bumpLocked() {
	m.version++
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateUser"); err != nil {
		return err
	}

	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrDuplicate
		}
	}
	if _, ok := m.users[user.ID]; ok {
		return ErrDuplicate
	}

	u := *user
	m.users[u.ID] = &u
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetUser"); err != nil {
		return nil, err
	}

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// GetUserByUsername retrieves a user by login name.
func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetUserByUsername"); err != nil {
		return nil, err
	}

	for _, u := range m.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

// ListUsers returns all users ordered by creation time.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListUsers"); err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// CountUsers returns the number of users.
func (m *MockStore) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CountUsers"); err != nil {
		return 0, err
	}
	return len(m.users), nil
}

// CreateBook stores a new book and advances the version.
func (m *MockStore) CreateBook(ctx context.Context, book *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateBook"); err != nil {
		return err
	}

	if _, ok := m.books[book.ID]; ok {
		return ErrDuplicate
	}

	b := *book
	m.books[b.ID] = &b
	m.bumpLocked()
	return nil
}

// GetBook retrieves a book by ID.
func (m *MockStore) GetBook(ctx context.Context, id string) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetBook"); err != nil {
		return nil, err
	}

	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *b
	return &result, nil
}

// ListBooks returns books owned by ownerID, most recently added first.
func (m *MockStore) ListBooks(ctx context.Context, ownerID string) ([]*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListBooks"); err != nil {
		return nil, err
	}

	var books []*Book
	for _, b := range m.books {
		if b.OwnerID == ownerID {
			c := *b
			books = append(books, &c)
		}
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].AddedAt.Equal(books[j].AddedAt) {
			return books[i].Title < books[j].Title
		}
		return books[i].AddedAt.After(books[j].AddedAt)
	})
	return books, nil
}

// DeleteBook removes a book and its memberships and advances the version.
func (m *MockStore) DeleteBook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteBook"); err != nil {
		return err
	}

	if _, ok := m.books[id]; !ok {
		return ErrNotFound
	}
	delete(m.books, id)
	for _, set := range m.members {
		delete(set, id)
	}
	m.bumpLocked()
	return nil
}

// UpdateProgress records the reading position of a book.
func (m *MockStore) UpdateProgress(ctx context.Context, id string, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateProgress"); err != nil {
		return err
	}

	if progress < 0 || progress > 1 {
		return fmt.Errorf("progress %v out of range [0, 1]", progress)
	}
	b, ok := m.books[id]
	if !ok {
		return ErrNotFound
	}
	b.Progress = progress
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateCollection stores a new unshared collection.
func (m *MockStore) CreateCollection(ctx context.Context, c *Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateCollection"); err != nil {
		return err
	}

	if _, ok := m.collections[c.ID]; ok {
		return ErrDuplicate
	}

	stored := *c
	stored.ShareToken = nil
	stored.SharedAt = nil
	m.collections[stored.ID] = &stored
	m.members[stored.ID] = make(map[string]struct{})
	return nil
}

func copyCollection(c *Collection) *Collection {
	result := *c
	if c.ShareToken != nil {
		token := *c.ShareToken
		result.ShareToken = &token
	}
	if c.SharedAt != nil {
		t := *c.SharedAt
		result.SharedAt = &t
	}
	return &result
}

// GetCollection retrieves a collection by ID.
func (m *MockStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetCollection"); err != nil {
		return nil, err
	}

	c, ok := m.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCollection(c), nil
}

// ListCollections returns collections owned by ownerID ordered by name.
func (m *MockStore) ListCollections(ctx context.Context, ownerID string) ([]*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListCollections"); err != nil {
		return nil, err
	}

	var out []*Collection
	for _, c := range m.collections {
		if c.OwnerID == ownerID {
			out = append(out, copyCollection(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddBookToCollection joins a book to a collection and advances the version.
func (m *MockStore) AddBookToCollection(ctx context.Context, collectionID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("AddBookToCollection"); err != nil {
		return err
	}

	set, ok := m.members[collectionID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.books[bookID]; !ok {
		return ErrNotFound
	}
	if _, ok := set[bookID]; ok {
		return ErrDuplicate
	}
	set[bookID] = struct{}{}
	m.bumpLocked()
	return nil
}

// RemoveBookFromCollection drops a membership and advances the version.
func (m *MockStore) RemoveBookFromCollection(ctx context.Context, collectionID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RemoveBookFromCollection"); err != nil {
		return err
	}

	set, ok := m.members[collectionID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := set[bookID]; !ok {
		return ErrNotFound
	}
	delete(set, bookID)
	m.bumpLocked()
	return nil
}

// ListCollectionBooks returns member books ordered by title.
func (m *MockStore) ListCollectionBooks(ctx context.Context, collectionID string) ([]*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListCollectionBooks"); err != nil {
		return nil, err
	}

	var books []*Book
	for bookID := range m.members[collectionID] {
		if b, ok := m.books[bookID]; ok {
			c := *b
			books = append(books, &c)
		}
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title == books[j].Title {
			return books[i].ID < books[j].ID
		}
		return books[i].Title < books[j].Title
	})
	return books, nil
}

// IsBookInCollection reports whether bookID is joined to collectionID.
func (m *MockStore) IsBookInCollection(ctx context.Context, collectionID, bookID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("IsBookInCollection"); err != nil {
		return false, err
	}

	_, ok := m.members[collectionID][bookID]
	return ok, nil
}

// SetShareToken binds token to a collection.
func (m *MockStore) SetShareToken(ctx context.Context, collectionID, token string, sharedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetShareToken"); err != nil {
		return err
	}

	if token == "" {
		return fmt.Errorf("share token must not be empty")
	}
	c, ok := m.collections[collectionID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range m.collections {
		if id != collectionID && other.ShareToken != nil && *other.ShareToken == token {
			return ErrDuplicate
		}
	}

	t := token
	at := sharedAt.UTC()
	c.ShareToken = &t
	c.SharedAt = &at
	return nil
}

// RevokeShareToken nulls a collection's token binding.
func (m *MockStore) RevokeShareToken(ctx context.Context, collectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RevokeShareToken"); err != nil {
		return err
	}

	c, ok := m.collections[collectionID]
	if !ok {
		return ErrNotFound
	}
	c.ShareToken = nil
	c.SharedAt = nil
	return nil
}

// GetCollectionByShareToken returns the collection currently bound to token.
func (m *MockStore) GetCollectionByShareToken(ctx context.Context, token string) (*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetCollectionByShareToken"); err != nil {
		return nil, err
	}

	if token == "" {
		return nil, ErrNotFound
	}
	for _, c := range m.collections {
		if c.ShareToken != nil && *c.ShareToken == token {
			return copyCollection(c), nil
		}
	}
	return nil, ErrNotFound
}

// GetLibraryVersion returns the current version.
func (m *MockStore) GetLibraryVersion(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetLibraryVersion"); err != nil {
		return 0, err
	}
	return m.version, nil
}

// BumpLibraryVersion advances the version by one.
func (m *MockStore) BumpLibraryVersion(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("BumpLibraryVersion"); err != nil {
		return 0, err
	}
	m.bumpLocked()
	return m.version, nil
}

// Ping reports the injected error, if any.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("Ping")
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

var _ Store = (*MockStore)(nil)
var _ Store = (*SQLiteStore)(nil)
