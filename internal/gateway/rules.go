// ABOUTME: Route classification rules for the authorization gateway
// ABOUTME: An ordered, first-match-wins list of path prefixes mapped to route classes

package gateway

import (
	"fmt"
	"strings"

	"github.com/2389/shelf-gateway/internal/config"
)

// RouteClass is the category a request path falls into.
type RouteClass int

const (
	ClassPublicPage RouteClass = iota
	ClassSharePage
	ClassIdentity
	ClassShareAPI
	ClassDesktopAPI
	ClassAdminAPI
	ClassAPI
	ClassAdminPage
	ClassPage
)

var classNames = map[RouteClass]string{
	ClassPublicPage: "public-page",
	ClassSharePage:  "share-page",
	ClassIdentity:   "identity",
	ClassShareAPI:   "share-api",
	ClassDesktopAPI: "desktop-api",
	ClassAdminAPI:   "admin-api",
	ClassAPI:        "api",
	ClassAdminPage:  "admin-page",
	ClassPage:       "page",
}

func (c RouteClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("RouteClass(%d)", int(c))
}

// IsAPI reports whether the class is an API surface. API routes answer with
// status codes, never redirects.
func (c RouteClass) IsAPI() bool {
	switch c {
	case ClassIdentity, ClassShareAPI, ClassDesktopAPI, ClassAdminAPI, ClassAPI:
		return true
	}
	return false
}

// Rules holds the path prefixes the gateway classifies requests by.
// A prefix matches whole path segments: "/api/share/" matches "/api/share"
// and "/api/share/x" but not "/api/shared".
type Rules struct {
	PublicPages      []string
	SharePagePrefix  string
	IdentityPrefix   string
	ShareAPIPrefix   string
	DesktopAPIPrefix string
	AdminAPIPrefix   string
	APIPrefix        string
	AdminPagePrefix  string

	// Excluded paths bypass the gateway entirely (static assets, well-known files).
	Excluded []string
}

// DefaultRules returns the built-in classification rules.
func DefaultRules() Rules {
	return Rules{
		PublicPages:      []string{"/login", "/setup"},
		SharePagePrefix:  "/share/",
		IdentityPrefix:   "/api/auth/",
		ShareAPIPrefix:   "/api/share/",
		DesktopAPIPrefix: "/api/desktop/",
		AdminAPIPrefix:   "/api/admin/",
		APIPrefix:        "/api/",
		AdminPagePrefix:  "/admin",
		Excluded:         []string{"/static/", "/favicon.ico", "/robots.txt", "/.well-known/", "/health"},
	}
}

// RulesFromConfig returns DefaultRules with any non-empty overrides applied.
func RulesFromConfig(rc config.RoutesConfig) Rules {
	r := DefaultRules()
	if len(rc.PublicPages) > 0 {
		r.PublicPages = append([]string(nil), rc.PublicPages...)
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&r.SharePagePrefix, rc.SharePagePrefix)
	override(&r.IdentityPrefix, rc.IdentityPrefix)
	override(&r.ShareAPIPrefix, rc.ShareAPIPrefix)
	override(&r.DesktopAPIPrefix, rc.DesktopAPIPrefix)
	override(&r.AdminAPIPrefix, rc.AdminAPIPrefix)
	override(&r.AdminPagePrefix, rc.AdminPagePrefix)
	return r
}

// Rule is one entry of the ordered classification list.
type Rule struct {
	Prefixes []string
	Class    RouteClass
}

// Ordered returns the classification list in evaluation order. The first rule
// with a matching prefix decides the class; paths matching none are pages.
func (r Rules) Ordered() []Rule {
	return []Rule{
		{Prefixes: r.PublicPages, Class: ClassPublicPage},
		{Prefixes: []string{r.SharePagePrefix}, Class: ClassSharePage},
		{Prefixes: []string{r.IdentityPrefix}, Class: ClassIdentity},
		{Prefixes: []string{r.ShareAPIPrefix}, Class: ClassShareAPI},
		{Prefixes: []string{r.DesktopAPIPrefix}, Class: ClassDesktopAPI},
		{Prefixes: []string{r.AdminAPIPrefix}, Class: ClassAdminAPI},
		{Prefixes: []string{r.APIPrefix}, Class: ClassAPI},
		{Prefixes: []string{r.AdminPagePrefix}, Class: ClassAdminPage},
	}
}

// Classify returns the route class of path.
func (r Rules) Classify(path string) RouteClass {
	for _, rule := range r.Ordered() {
		for _, prefix := range rule.Prefixes {
			if hasPathPrefix(path, prefix) {
				return rule.Class
			}
		}
	}
	return ClassPage
}

// IsExcluded reports whether path bypasses the gateway.
func (r Rules) IsExcluded(path string) bool {
	for _, prefix := range r.Excluded {
		if hasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// hasPathPrefix reports whether path equals prefix or lies beneath it,
// comparing whole segments. An empty prefix matches nothing.
func hasPathPrefix(path, prefix string) bool {
	p := strings.TrimSuffix(prefix, "/")
	if p == "" {
		return false
	}
	return path == p || strings.HasPrefix(path, p+"/")
}
