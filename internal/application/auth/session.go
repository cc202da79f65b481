package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/biller/internal/domain/entity"
)

const (
	DefaultSessionTTL = 8 * time.Hour

	sessionCookieName     = "biller_session"
	hostSessionCookieName = "__Host-biller_session"
)

// SessionConfig configures token signing and the session cookie
type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	Production bool
}

type sessionClaims struct {
	Methods []string `json:"methods"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims checks
func (c *sessionClaims) Validate() error {
	if c.Methods == nil {
		return errors.New("methods claim missing")
	}
	return nil
}

// SessionManager issues and verifies HS256 session tokens
type SessionManager struct {
	secret     []byte
	ttl        time.Duration
	production bool
	clock      Clock
}

// NewSessionManager creates a SessionManager
func NewSessionManager(cfg SessionConfig, clock Clock) *SessionManager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		secret:     []byte(cfg.Secret),
		ttl:        ttl,
		production: cfg.Production,
		clock:      clock,
	}
}

// Issue signs a new owner token carrying the methods used to log in
func (m *SessionManager) Issue(methods []string) (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("session secret: %w", entity.ErrNotConfigured)
	}

	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}

	now := m.clock.now().Truncate(time.Second)
	claims := &sessionClaims{
		Methods: append([]string{}, methods...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   entity.OwnerKey,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        hex.EncodeToString(jti),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Verify checks the signature, subject and expiry of a token
func (m *SessionManager) Verify(token string) (*entity.SessionClaims, error) {
	if token == "" || len(m.secret) == 0 {
		return nil, entity.ErrUnauthorized
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(entity.OwnerKey),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUnauthorized, err)
	}

	out := &entity.SessionClaims{
		Subject: claims.Subject,
		Methods: claims.Methods,
		ID:      claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		out.Expires = claims.ExpiresAt.Unix()
	}
	return out, nil
}

// CookieName is the session cookie name; production uses the __Host- prefix
func (m *SessionManager) CookieName() string {
	if m.production {
		return hostSessionCookieName
	}
	return sessionCookieName
}

// TTL returns the session lifetime
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Cookie builds the cookie carrying token
func (m *SessionManager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     m.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.production,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie builds a cookie that removes the session
func (m *SessionManager) ClearCookie() *http.Cookie {
	c := m.Cookie("")
	c.MaxAge = -1
	return c
}
