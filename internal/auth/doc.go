// Package auth provides session decoding and desktop IPC authorization for
// shelf-gateway.
//
// # Session Tokens
//
// Sessions are HS256 JWTs carrying the claims id, role and displayName plus
// the registered exp/iat claims:
//
//	decoder, err := auth.NewSessionDecoder([]byte(cfg.Auth.JWTSecret))
//	principal := decoder.Decode(raw) // nil when the token is unacceptable
//
// Decode fails closed. A bad signature, a non-HMAC algorithm, expiry, a missing
// id, or an unknown role all produce nil. The principal is rebuilt from claims
// alone, so authorizing a request never touches the store.
//
// Tokens are read from the session cookie (default "shelf_session") or from
// an "Authorization: Bearer" header.
//
// # Desktop IPC
//
// The desktop shell calls a small API on the same machine and never carries a
// session. IsDesktopAuthorized checks the X-Desktop-Token header against the
// configured secret:
//
//	ok := auth.IsDesktopAuthorized(r.Header, auth.DesktopConfig{Enabled: true, Token: secret})
//
// Missing configuration, a missing header, and a wrong header all return false.
//
// # Context
//
// The gateway middleware attaches the decoded principal to the request
// context. Handlers retrieve it with FromContext.
package auth
