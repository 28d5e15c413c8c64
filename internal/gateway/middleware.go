// ABOUTME: HTTP middleware that applies the authorization gateway to every request
// ABOUTME: Decodes the session once, classifies the path, and continues, redirects, or rejects

package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/shelf-gateway/internal/auth"
)

// Decoder turns a raw session token into a principal, or nil.
type Decoder interface {
	Decode(raw string) *auth.Principal
}

// Gateway is the per-request authorization decision point.
type Gateway struct {
	rules      Rules
	decoder    Decoder
	cookieName string
	logger     *slog.Logger
}

// New creates a Gateway.
func New(rules Rules, decoder Decoder, cookieName string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		rules:      rules,
		decoder:    decoder,
		cookieName: cookieName,
		logger:     logger.With("component", "authz"),
	}
}

// Rules returns the rules this gateway classifies by.
func (g *Gateway) Rules() Rules {
	return g.rules
}

// Evaluate decides r and returns the principal it decoded, if any.
// Excluded paths are not decoded at all.
func (g *Gateway) Evaluate(r *http.Request) (Decision, *auth.Principal) {
	path := cleanPath(r.URL.Path)
	if g.rules.IsExcluded(path) {
		return Decision{Outcome: Continue}, nil
	}

	p := g.decoder.Decode(auth.TokenFromRequest(r, g.cookieName))
	class := g.rules.Classify(path)
	return Decide(class, p), p
}

// Middleware wraps next with the gateway. On Continue the decoded principal
// is attached to the request context.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, p := g.Evaluate(r)

		switch d.Outcome {
		case Continue:
			if p != nil {
				r = r.WithContext(auth.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		case Redirect:
			g.logger.Debug("redirecting", "method", r.Method, "path", r.URL.Path, "to", d.Location)
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
		case Status:
			g.logger.Debug("rejecting", "method", r.Method, "path", r.URL.Path, "status", d.StatusCode)
			writeJSONError(w, d.StatusCode, strings.ToLower(http.StatusText(d.StatusCode)))
		}
	})
}

// cleanPath collapses duplicate slashes so "//api/admin" classifies like "/api/admin".
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
