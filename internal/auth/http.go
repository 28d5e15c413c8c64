// ABOUTME: Session token extraction from HTTP requests
// ABOUTME: Reads the session cookie first, then falls back to an Authorization bearer header

package auth

import (
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// TokenFromRequest returns the raw session token carried by r, or "" if none.
// The cookie wins when both are present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return ""
	}
	return token
}

// PrincipalFromRequest decodes the session carried by r.
// Returns nil when the request is anonymous or the token is unacceptable.
func (d *SessionDecoder) PrincipalFromRequest(r *http.Request, cookieName string) *Principal {
	return d.Decode(TokenFromRequest(r, cookieName))
}

// SessionCookie builds the cookie that carries a session token.
func SessionCookie(name, token string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie builds a cookie that removes the session from the browser.
func ClearSessionCookie(name string, secure bool) *http.Cookie {
	return SessionCookie(name, "", -1, secure)
}
