// ABOUTME: Minimal identity provider: password login, logout, session introspection, first-run setup
// ABOUTME: Issues the session cookie the authorization gateway decodes on every request

package server

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/store"
)

// Credential limits.
const (
	minUsernameLength = 3
	maxUsernameLength = 32
	minPasswordLength = 8
)

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SetupRequest is the body for POST /setup and POST /api/admin/users.
type SetupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role,omitempty"`
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	Principal     *auth.Principal `json:"principal,omitempty"`
}

// validateCredentials checks username and password requirements.
// Returns an error message or empty string if valid.
func validateCredentials(username, password string) string {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return "username must be 3-32 characters"
	}
	for _, r := range username {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '.') {
			return "username may only contain letters, digits, '.', '_' and '-'"
		}
	}
	if len(password) < minPasswordLength {
		return "password must be at least 8 characters"
	}
	return ""
}

// CreateUser hashes the password and stores a new account.
func CreateUser(ctx context.Context, s store.UserStore, username, password, displayName string, role store.Role) (*store.User, error) {
	if msg := validateCredentials(username, password); msg != "" {
		return nil, errors.New(msg)
	}
	if !role.Valid() {
		return nil, errors.New("role must be \"admin\" or \"user\"")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = username
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// isFormPost reports whether r carries an HTML form rather than JSON.
func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// readCredentials reads a login or setup body from either a form or JSON.
func readCredentials(w http.ResponseWriter, r *http.Request) (SetupRequest, error) {
	var req SetupRequest
	if isFormPost(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return req, errors.New("invalid form body")
		}
		req.Username = strings.TrimSpace(r.PostFormValue("username"))
		req.Password = r.PostFormValue("password")
		req.DisplayName = strings.TrimSpace(r.PostFormValue("displayName"))
		return req, nil
	}
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	return req, nil
}

// throttleKey identifies a login attempt by username and client host.
func throttleKey(username string, r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return strings.ToLower(username) + "|" + host
}

// startSession issues a token for user and sets the session cookie.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *store.User) (*auth.Principal, error) {
	p := auth.Principal{ID: user.ID, Role: user.Role, DisplayName: user.DisplayName}
	token, err := s.decoder.Issue(p, s.config.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, auth.SessionCookie(s.config.Auth.CookieName, token, int(s.config.Auth.SessionTTL.Seconds()), r.TLS != nil))
	return &p, nil
}

// handleLogin handles POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := isFormPost(r)
	req, err := readCredentials(w, r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := throttleKey(req.Username, r)
	if blocked, wait := s.logins.Blocked(key); blocked {
		s.logger.Warn("login throttled", "username", req.Username, "remote", r.RemoteAddr)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		s.sendJSONError(w, http.StatusTooManyRequests, "too many failed logins, try again later")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to look up user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		failures := s.logins.Fail(key)
		s.logger.Info("login failed", "username", req.Username, "failures", failures)
		if form {
			http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
			return
		}
		s.sendJSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	s.logins.Reset(key)
	p, err := s.startSession(w, r, user)
	if err != nil {
		s.logger.Error("failed to issue session", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.logger.Info("user logged in", "user_id", user.ID)

	if form {
		http.Redirect(w, r, "/library", http.StatusSeeOther)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, Principal: p})
}

// handleLogout handles POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearSessionCookie(s.config.Auth.CookieName, r.TLS != nil))
	if isFormPost(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSession handles GET /api/auth/session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	s.writeJSON(w, http.StatusOK, SessionResponse{Authenticated: p != nil, Principal: p})
}

// setupOpen reports whether no account exists yet.
func (s *Server) setupOpen(ctx context.Context) (bool, error) {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// handleSetup handles POST /setup. It creates the first admin and is
// refused once any account exists.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()

	open, err := s.setupOpen(r.Context())
	if err != nil {
		s.logger.Error("failed to count users", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !open {
		s.sendJSONError(w, http.StatusForbidden, "setup already completed")
		return
	}

	form := isFormPost(r)
	req, err := readCredentials(w, r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := CreateUser(r.Context(), s.store, req.Username, req.Password, req.DisplayName, store.RoleAdmin)
	if err != nil {
		if form {
			s.renderSetupPage(w, http.StatusBadRequest, err.Error())
			return
		}
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("initial admin created", "user_id", user.ID, "username", user.Username)

	p, err := s.startSession(w, r, user)
	if err != nil {
		s.logger.Error("failed to issue session", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if form {
		http.Redirect(w, r, "/library", http.StatusSeeOther)
		return
	}
	s.writeJSON(w, http.StatusCreated, SessionResponse{Authenticated: true, Principal: p})
}
