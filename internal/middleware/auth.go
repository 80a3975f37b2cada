// Package middleware provides request-scoped logging, sessions, tracing and rate limiting.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"conduit/internal/htmx"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookie carries the signed session token.
const SessionCookie = "conduit_session"

// LoginURL is where anonymous users are sent by LoginRequired.
const LoginURL = "/accounts/login/"

// ErrSessionRevoked is returned for tokens revoked at logout.
var ErrSessionRevoked = errors.New("session revoked")

// RevocationStore tracks session ids that were explicitly ended.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionClaims are the JWT claims of a browser session.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid session subject %q", c.Subject)
	}
	return uint(id), nil
}

// SessionManager issues and verifies session tokens.
type SessionManager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	secure  bool
}

// NewSessionManager returns a manager signing with secret. revoked may be nil.
func NewSessionManager(secret string, ttl time.Duration, revoked RevocationStore, secureCookie bool) *SessionManager {
	return &SessionManager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
		secure:  secureCookie,
	}
}

// Issue signs a new token for userID.
func (m *SessionManager) Issue(userID uint) (string, *SessionClaims, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, claims, nil
}

// Parse verifies signature, expiry and revocation.
func (m *SessionManager) Parse(ctx context.Context, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	if m.revoked != nil && claims.ID != "" {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			Logger.WarnContext(ctx, "session revocation check failed", slog.String("error", err.Error()))
		} else if revoked {
			return nil, ErrSessionRevoked
		}
	}
	return claims, nil
}

// SetCookie starts a browser session for userID.
func (m *SessionManager) SetCookie(c *fiber.Ctx, userID uint) error {
	token, claims, err := m.Issue(userID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals("userID", userID)
	return nil
}

// End revokes the current token, if any, and clears the cookie.
func (m *SessionManager) End(c *fiber.Ctx) {
	if jti, ok := c.Locals("sessionID").(string); ok && jti != "" && m.revoked != nil {
		ttl := m.ttl
		if exp, ok := c.Locals("sessionExpires").(time.Time); ok {
			ttl = time.Until(exp)
		}
		if ttl > 0 {
			if err := m.revoked.Revoke(c.UserContext(), jti, ttl); err != nil {
				Logger.WarnContext(c.UserContext(), "failed to revoke session", slog.String("error", err.Error()))
			}
		}
	}
	c.ClearCookie(SessionCookie)
}

// LoadSession resolves the session cookie into c.Locals("userID"). Invalid or
// revoked tokens leave the request anonymous and drop the cookie.
func (m *SessionManager) LoadSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(SessionCookie)
		if raw == "" {
			return c.Next()
		}
		claims, err := m.Parse(c.UserContext(), raw)
		if err != nil {
			c.ClearCookie(SessionCookie)
			return c.Next()
		}
		userID, _ := claims.UserID()
		c.Locals("userID", userID)
		c.Locals("sessionID", claims.ID)
		c.Locals("sessionExpires", claims.ExpiresAt.Time)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
		return c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or 0.
func CurrentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// LoginRequired sends anonymous users to the login page with a next parameter.
func LoginRequired(c *fiber.Ctx) error {
	if CurrentUserID(c) != 0 {
		return c.Next()
	}
	target := LoginURL + "?next=" + url.QueryEscape(c.OriginalURL())
	return htmx.Redirect(c, target)
}
