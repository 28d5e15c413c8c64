// ABOUTME: Tests for session token extraction from HTTP requests
// ABOUTME: Covers cookie, bearer header, precedence, and cookie construction

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shelf-gateway/internal/store"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr bool
	}{
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer ", wantErr: true},
		{header: "Bearer abc.def.ghi", token: "abc.def.ghi"},
	}

	for _, tt := range tests {
		token, errMsg := extractBearerToken(tt.header)
		assert.Equal(t, tt.token, token, "header %q", tt.header)
		assert.Equal(t, tt.wantErr, errMsg != "", "header %q", tt.header)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/library", nil)
	assert.Empty(t, TokenFromRequest(r, "shelf_session"))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r, "shelf_session"))

	r.AddCookie(&http.Cookie{Name: "shelf_session", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r, "shelf_session"))

	// A cookie with another name is ignored.
	assert.Equal(t, "from-header", TokenFromRequest(r, "other"))
}

func TestPrincipalFromRequest(t *testing.T) {
	d := newTestDecoder(t)
	token, err := d.Issue(Principal{ID: "u1", Role: store.RoleUser, DisplayName: "Bo"}, time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/library/books", nil)
	r.AddCookie(SessionCookie("shelf_session", token, 3600, false))

	p := d.PrincipalFromRequest(r, "shelf_session")
	require.NotNil(t, p)
	assert.Equal(t, "u1", p.ID)
	assert.False(t, p.IsAdmin())

	r = httptest.NewRequest(http.MethodGet, "/api/library/books", nil)
	r.AddCookie(&http.Cookie{Name: "shelf_session", Value: "tampered"})
	assert.Nil(t, d.PrincipalFromRequest(r, "shelf_session"))
}

func TestSessionCookie(t *testing.T) {
	c := SessionCookie("shelf_session", "tok", 60, true)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	cleared := ClearSessionCookie("shelf_session", false)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}
