package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aira-metrics/dashboard/internal/logger"
)

// CookieName holds the dashboard session token.
const CookieName = "aira_session"

const claimsKey = "claims"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session expired")
)

// Claims identify a signed-in user.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti"`
}

// Config configures session tokens.
type Config struct {
	Enabled bool
	Secret  string
	TTL     time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

type AuthMiddleware struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewAuthMiddleware returns nil when auth is disabled; a nil middleware lets
// every request through.
func NewAuthMiddleware(cfg Config) (*AuthMiddleware, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("auth.session_secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &AuthMiddleware{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		secure: cfg.Secure,
		now:    time.Now,
	}, nil
}

// Public reports paths that never require a session.
func Public(path string) bool {
	switch path {
	case "/healthz", "/login":
		return true
	}
	return strings.HasPrefix(path, "/auth/") || strings.HasPrefix(path, "/static/")
}

// RequireAuth rejects requests without a valid session. Page requests are
// sent to the login page, API requests get a 401.
func (am *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	if am == nil {
		return c.Next()
	}

	path := c.Path()
	if Public(path) {
		return c.Next()
	}

	token := TokenFrom(c)
	if token == "" {
		return am.reject(c, "authentication required")
	}

	claims, err := am.ValidateToken(token)
	if err != nil {
		logger.Debugf("auth failed for %s: %v", path, err)
		return am.reject(c, "invalid or expired session")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

func (am *AuthMiddleware) reject(c *fiber.Ctx, msg string) error {
	if strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/proxy/") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
	}
	target := "/login"
	if next := c.OriginalURL(); next != "" && next != "/" {
		target += "?next=" + url.QueryEscape(next)
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

// TokenFrom returns the session token of a request: a bearer token when the
// Authorization header carries one, otherwise the session cookie.
func TokenFrom(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return c.Cookies(CookieName)
}

// ClaimsFrom returns the claims RequireAuth stored on the request, or nil.
func ClaimsFrom(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(claimsKey).(*Claims)
	return claims
}

// IssueToken signs a session token for the given user.
func (am *AuthMiddleware) IssueToken(subject, email, name, picture string) (string, *Claims, error) {
	now := am.now()
	claims := &Claims{
		Subject:   subject,
		Email:     email,
		Name:      name,
		Picture:   picture,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(am.ttl).Unix(),
		ID:        uuid.NewString(),
	}

	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", nil, err
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", nil, err
	}

	input := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	return input + "." + am.sign(input), claims, nil
}

// ValidateToken checks a session token's signature and expiry.
func (am *AuthMiddleware) ValidateToken(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}

	expected := am.sign(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if am.now().Unix() > claims.ExpiresAt {
		return nil, ErrExpiredToken
	}
	return &claims, nil
}

// SetSessionCookie stores token in the session cookie until it expires.
func (am *AuthMiddleware) SetSessionCookie(c *fiber.Ctx, token string, claims *Claims) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Unix(claims.ExpiresAt, 0),
		HTTPOnly: true,
		Secure:   am.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie signs the user out.
func ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (am *AuthMiddleware) sign(input string) string {
	h := hmac.New(sha256.New, am.secret)
	h.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
