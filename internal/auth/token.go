// ABOUTME: Session token decoding and issuing with HS256 JWTs
// ABOUTME: Decode fails closed: any invalid, expired, or malformed token yields nil

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/shelf-gateway/internal/store"
)

// MinSecretLength is the minimum length in bytes for the HMAC signing secret.
const MinSecretLength = 32

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
)

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	UserID      string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// SessionDecoder verifies and issues session tokens signed with a shared secret.
type SessionDecoder struct {
	secret []byte
	now    func() time.Time
}

// NewSessionDecoder creates a decoder for the given secret.
func NewSessionDecoder(secret []byte) (*SessionDecoder, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &SessionDecoder{secret: secret, now: time.Now}, nil
}

// Decode returns the principal carried by raw, or nil if the token is not
// acceptable for any reason.
func (d *SessionDecoder) Decode(raw string) *Principal {
	if raw == "" {
		return nil
	}
	p, err := d.Verify(raw)
	if err != nil {
		return nil
	}
	return p
}

// Verify validates raw and reconstructs the principal from its claims.
func (d *SessionDecoder) Verify(raw string) (*Principal, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return d.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(d.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingClaim)
	}
	role := store.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidToken, claims.Role)
	}

	return &Principal{
		ID:          claims.UserID,
		Role:        role,
		DisplayName: claims.DisplayName,
	}, nil
}

// Issue signs a session token for p that expires after ttl.
func (d *SessionDecoder) Issue(p Principal, ttl time.Duration) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("%w: id", ErrMissingClaim)
	}
	if !p.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", p.Role)
	}

	now := d.now()
	claims := SessionClaims{
		UserID:      p.ID,
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.secret)
}
