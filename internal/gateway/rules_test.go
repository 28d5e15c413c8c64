package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/shelf-gateway/internal/config"
)

func TestClassify(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		path string
		want RouteClass
	}{
		{"/login", ClassPublicPage},
		{"/setup", ClassPublicPage},
		{"/setup/", ClassPublicPage},
		{"/loginx", ClassPage},
		{"/share/abc123", ClassSharePage},
		{"/share", ClassSharePage},
		{"/shared", ClassPage},
		{"/api/auth/login", ClassIdentity},
		{"/api/auth/session", ClassIdentity},
		{"/api/share/abc123/books/b1", ClassShareAPI},
		{"/api/shared/x", ClassAPI},
		{"/api/desktop/status", ClassDesktopAPI},
		{"/api/admin/users", ClassAdminAPI},
		{"/api/administrator", ClassAPI},
		{"/api/library/books", ClassAPI},
		{"/api/library/events", ClassAPI},
		{"/api", ClassAPI},
		{"/admin", ClassAdminPage},
		{"/admin/users", ClassAdminPage},
		{"/administrator", ClassPage},
		{"/library", ClassPage},
		{"/", ClassPage},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Classify(tt.path))
		})
	}
}

func TestClassify_OrderIsFirstMatch(t *testing.T) {
	// A public page placed under the API prefix still wins because it comes first.
	rules := DefaultRules()
	rules.PublicPages = []string{"/api/library/public"}

	assert.Equal(t, ClassPublicPage, rules.Classify("/api/library/public"))
	assert.Equal(t, ClassAPI, rules.Classify("/api/library/private"))

	ordered := rules.Ordered()
	assert.Equal(t, ClassPublicPage, ordered[0].Class)
	assert.Equal(t, ClassAdminAPI, ordered[5].Class)
	assert.Equal(t, ClassAPI, ordered[6].Class)
}

func TestIsExcluded(t *testing.T) {
	rules := DefaultRules()

	for _, p := range []string{"/static/app.css", "/favicon.ico", "/robots.txt", "/.well-known/security.txt", "/health", "/health/ready"} {
		assert.True(t, rules.IsExcluded(p), p)
	}
	for _, p := range []string{"/staticky", "/healthz", "/library", "/api/share/x"} {
		assert.False(t, rules.IsExcluded(p), p)
	}
}

func TestRulesFromConfig(t *testing.T) {
	r := RulesFromConfig(config.RoutesConfig{
		PublicPages:     []string{"/signin"},
		SharePagePrefix: "/s/",
		AdminAPIPrefix:  "/api/manage/",
	})

	assert.Equal(t, ClassPublicPage, r.Classify("/signin"))
	assert.Equal(t, ClassPage, r.Classify("/login"))
	assert.Equal(t, ClassSharePage, r.Classify("/s/tok"))
	assert.Equal(t, ClassAdminAPI, r.Classify("/api/manage/users"))
	assert.Equal(t, ClassAPI, r.Classify("/api/admin/users"))
	// untouched fields keep their defaults
	assert.Equal(t, ClassDesktopAPI, r.Classify("/api/desktop/status"))
}

func TestHasPathPrefix_EmptyPrefixMatchesNothing(t *testing.T) {
	assert.False(t, hasPathPrefix("/anything", ""))
	assert.False(t, hasPathPrefix("/anything", "/"))
}

func TestRouteClass_String(t *testing.T) {
	assert.Equal(t, "admin-api", ClassAdminAPI.String())
	assert.Equal(t, "RouteClass(99)", RouteClass(99).String())
	assert.True(t, ClassShareAPI.IsAPI())
	assert.False(t, ClassSharePage.IsAPI())
}
