// ABOUTME: Tests for the in-memory MockStore
// ABOUTME: Verifies it mirrors SQLite semantics that callers rely on

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_ShareTokenRevocation(t *testing.T) {
	m := NewMockStore()
	seedLibrary(t, m)
	ctx := context.Background()

	require.NoError(t, m.SetShareToken(ctx, "C1", "abc123", time.Now()))

	c, err := m.GetCollectionByShareToken(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "C1", c.ID)

	// Mutating the returned copy must not leak into the store.
	*c.ShareToken = "tampered"
	c, err = m.GetCollectionByShareToken(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", *c.ShareToken)

	require.NoError(t, m.RevokeShareToken(ctx, "C1"))
	_, err = m.GetCollectionByShareToken(ctx, "abc123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_VersionBumps(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	seedLibrary(t, m)
	v, err := m.GetLibraryVersion(ctx)
	require.NoError(t, err)
	// two books plus two memberships
	assert.Equal(t, int64(4), v)

	require.NoError(t, m.UpdateProgress(ctx, "b1", 0.3))
	v, _ = m.GetLibraryVersion(ctx)
	assert.Equal(t, int64(4), v)

	require.NoError(t, m.DeleteBook(ctx, "b1"))
	v, _ = m.GetLibraryVersion(ctx)
	assert.Equal(t, int64(5), v)

	in, err := m.IsBookInCollection(ctx, "C1", "b1")
	require.NoError(t, err)
	assert.False(t, in)
}

func TestMockStore_ErrInjectionAndCalls(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	boom := errors.New("disk on fire")

	m.SetErr(boom)
	_, err := m.GetCollectionByShareToken(ctx, "abc123")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, m.Ping(ctx), boom)

	m.SetErr(nil)
	_, err = m.GetCollectionByShareToken(ctx, "abc123")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, m.Calls("GetCollectionByShareToken"))
	assert.Equal(t, 0, m.Calls("GetBook"))
}

func TestMockStore_Duplicates(t *testing.T) {
	m := NewMockStore()
	seedLibrary(t, m)
	ctx := context.Background()

	err := m.CreateUser(ctx, &User{ID: "u9", Username: "alice"})
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.ErrorIs(t, m.AddBookToCollection(ctx, "C1", "b1"), ErrDuplicate)
	assert.ErrorIs(t, m.AddBookToCollection(ctx, "C1", "nope"), ErrNotFound)

	require.NoError(t, m.CreateCollection(ctx, &Collection{ID: "C2", OwnerID: "u1", Name: "Other"}))
	require.NoError(t, m.SetShareToken(ctx, "C1", "tok", time.Now()))
	assert.ErrorIs(t, m.SetShareToken(ctx, "C2", "tok", time.Now()), ErrDuplicate)
}
