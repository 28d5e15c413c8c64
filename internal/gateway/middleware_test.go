// ABOUTME: Tests for the authorization gateway decisions and middleware
// ABOUTME: Covers every class against anonymous, user, and admin principals

package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/store"
)

var (
	userPrincipal  = &auth.Principal{ID: "u1", Role: store.RoleUser, DisplayName: "User"}
	adminPrincipal = &auth.Principal{ID: "a1", Role: store.RoleAdmin, DisplayName: "Admin"}
)

// countingDecoder maps raw tokens to principals and counts Decode calls.
type countingDecoder struct {
	principals map[string]*auth.Principal
	calls      int
}

func (d *countingDecoder) Decode(raw string) *auth.Principal {
	d.calls++
	return d.principals[raw]
}

func newTestGateway() (*Gateway, *countingDecoder) {
	dec := &countingDecoder{principals: map[string]*auth.Principal{
		"user-token":  userPrincipal,
		"admin-token": adminPrincipal,
	}}
	return New(DefaultRules(), dec, "shelf_session", nil), dec
}

func TestDecide_Table(t *testing.T) {
	cont := Decision{Outcome: Continue}
	unauthorized := Decision{Outcome: Status, StatusCode: http.StatusUnauthorized}
	forbidden := Decision{Outcome: Status, StatusCode: http.StatusForbidden}
	toLogin := Decision{Outcome: Redirect, Location: LoginPath}
	toLibrary := Decision{Outcome: Redirect, Location: LibraryPath}

	tests := []struct {
		class                 RouteClass
		anon, user, adminWant Decision
	}{
		{ClassPublicPage, cont, cont, cont},
		{ClassSharePage, cont, cont, cont},
		{ClassIdentity, cont, cont, cont},
		{ClassShareAPI, cont, cont, cont},
		{ClassDesktopAPI, cont, cont, cont},
		{ClassAPI, unauthorized, cont, cont},
		{ClassAdminAPI, unauthorized, forbidden, cont},
		{ClassPage, toLogin, cont, cont},
		{ClassAdminPage, toLogin, toLibrary, cont},
	}

	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			assert.Equal(t, tt.anon, Decide(tt.class, nil), "anonymous")
			assert.Equal(t, tt.user, Decide(tt.class, userPrincipal), "user")
			assert.Equal(t, tt.adminWant, Decide(tt.class, adminPrincipal), "admin")
		})
	}
}

func TestDecide_APINeverRedirectsAndPagesNeverReturnStatus(t *testing.T) {
	for c := ClassPublicPage; c <= ClassPage; c++ {
		for _, p := range []*auth.Principal{nil, userPrincipal, adminPrincipal} {
			d := Decide(c, p)
			if c.IsAPI() {
				assert.NotEqual(t, Redirect, d.Outcome, "%s must not redirect", c)
			} else {
				assert.NotEqual(t, Status, d.Outcome, "%s must not return a bare status", c)
			}
		}
	}
}

func TestEvaluate_PublicPagesContinueRegardlessOfPrincipal(t *testing.T) {
	gw, _ := newTestGateway()

	for _, path := range []string{"/login", "/setup", "/share/abc123"} {
		for _, token := range []string{"", "user-token", "admin-token", "garbage"} {
			r := httptest.NewRequest(http.MethodGet, path, nil)
			if token != "" {
				r.AddCookie(&http.Cookie{Name: "shelf_session", Value: token})
			}
			d, _ := gw.Evaluate(r)
			assert.Equal(t, Continue, d.Outcome, "path %s token %q", path, token)
		}
	}
}

func TestEvaluate_AnonymousAPIGets401ExceptExemptPrefixes(t *testing.T) {
	gw, _ := newTestGateway()

	protected := []string{"/api/library/books", "/api/library/events", "/api/admin/users", "/api/collections/c1/share", "/api/shared"}
	for _, path := range protected {
		d, _ := gw.Evaluate(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, Decision{Outcome: Status, StatusCode: http.StatusUnauthorized}, d, path)
	}

	exempt := []string{"/api/share/abc123", "/api/share/abc123/books/b1", "/api/desktop/status", "/api/auth/login"}
	for _, path := range exempt {
		d, _ := gw.Evaluate(httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, Continue, d.Outcome, path)
	}
}

func TestEvaluate_AdminPageRedirectsNonAdminToLibrary(t *testing.T) {
	gw, _ := newTestGateway()

	for _, path := range []string{"/admin", "/admin/users", "/admin/settings/x"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.Header.Set("Authorization", "Bearer user-token")
		d, _ := gw.Evaluate(r)
		assert.Equal(t, Decision{Outcome: Redirect, Location: "/library"}, d, path)
	}
}

func TestEvaluate_DecodesAtMostOnce(t *testing.T) {
	gw, dec := newTestGateway()

	r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	r.AddCookie(&http.Cookie{Name: "shelf_session", Value: "admin-token"})
	_, p := gw.Evaluate(r)
	assert.Equal(t, adminPrincipal, p)
	assert.Equal(t, 1, dec.calls)

	// Excluded paths are not decoded at all.
	_, _ = gw.Evaluate(httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, 1, dec.calls)
}

func TestMiddleware(t *testing.T) {
	gw, _ := newTestGateway()

	var seen *auth.Principal
	var reached bool
	handler := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seen = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantLoc    string
		wantReach  bool
	}{
		{name: "anonymous page", path: "/library", wantStatus: http.StatusSeeOther, wantLoc: "/login"},
		{name: "anonymous api", path: "/api/library/books", wantStatus: http.StatusUnauthorized},
		{name: "user admin api", path: "/api/admin/users", token: "user-token", wantStatus: http.StatusForbidden},
		{name: "user admin page", path: "/admin", token: "user-token", wantStatus: http.StatusSeeOther, wantLoc: "/library"},
		{name: "user library", path: "/library", token: "user-token", wantStatus: http.StatusOK, wantReach: true},
		{name: "admin api", path: "/api/admin/users", token: "admin-token", wantStatus: http.StatusOK, wantReach: true},
		{name: "anonymous share api", path: "/api/share/abc123", wantStatus: http.StatusOK, wantReach: true},
		{name: "double slash admin api", path: "//api//admin/users", token: "user-token", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached, seen = false, nil
			r := httptest.NewRequest(http.MethodGet, "http://shelf.local"+tt.path, nil)
			if tt.token != "" {
				r.AddCookie(&http.Cookie{Name: "shelf_session", Value: tt.token})
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantReach, reached)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, w.Header().Get("Location"))
			}
			if w.Code == http.StatusUnauthorized || w.Code == http.StatusForbidden {
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
				assert.Contains(t, w.Body.String(), `"error"`)
			}
			if tt.wantReach && tt.token != "" {
				require.NotNil(t, seen)
			}
		})
	}
}
