package handlers

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aira-metrics/dashboard/internal/auth"
	"github.com/aira-metrics/dashboard/internal/logger"
	"github.com/aira-metrics/dashboard/internal/middleware"
)

// csrfCookie is set by Google Identity Services next to the posted form field
// of the same name.
const csrfCookie = "g_csrf_token"

// IDTokenVerifier checks a Google ID token.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.Identity, error)
}

// AuthHandler handles the sign-in flow
type AuthHandler struct {
	auth     *middleware.AuthMiddleware
	verifier IDTokenVerifier
	clientID string
}

// MeResponse describes the signed-in user
// @Description Current session
type MeResponse struct {
	Authenticated bool               `json:"authenticated"`
	AuthEnabled   bool               `json:"auth_enabled"`
	User          *middleware.Claims `json:"user,omitempty"`
}

type loginPage struct {
	Page
	ClientID string
	LoginURI string
	Error    string
}

// NewAuthHandler creates a new auth handler. am is nil when sign-in is
// disabled.
func NewAuthHandler(am *middleware.AuthMiddleware, verifier IDTokenVerifier, clientID string) *AuthHandler {
	return &AuthHandler{auth: am, verifier: verifier, clientID: clientID}
}

// LoginPage renders the Google sign-in button
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	if h.auth == nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	if token := c.Cookies(middleware.CookieName); token != "" {
		if _, err := h.auth.ValidateToken(token); err == nil {
			return c.Redirect(safeNext(c.Query("next")), fiber.StatusSeeOther)
		}
	}
	return h.renderLogin(c, fiber.StatusOK, c.Query("next"), "")
}

func (h *AuthHandler) renderLogin(c *fiber.Ctx, status int, next, errMsg string) error {
	loginURI := "/auth/google"
	if next = safeNext(next); next != "/" {
		loginURI += "?next=" + url.QueryEscape(next)
	}
	return c.Status(status).Render("login", loginPage{
		Page:     newPage(c, "Sign in"),
		ClientID: h.clientID,
		LoginURI: loginURI,
		Error:    errMsg,
	})
}

// GoogleCallback receives the credential Google posts in redirect mode
// @Summary Complete Google sign-in
// @Tags auth
// @Accept x-www-form-urlencoded
// @Param credential formData string true "Google ID token"
// @Param g_csrf_token formData string true "Double-submit CSRF token"
// @Success 303
// @Failure 400,401
// @Router /auth/google [post]
func (h *AuthHandler) GoogleCallback(c *fiber.Ctx) error {
	if h.auth == nil || h.verifier == nil {
		return fiber.ErrNotFound
	}
	next := c.Query("next")

	cookieToken := c.Cookies(csrfCookie)
	if cookieToken == "" || cookieToken != c.FormValue(csrfCookie) {
		logger.Warnf("sign-in rejected from %s: csrf token mismatch", c.IP())
		return h.renderLogin(c, fiber.StatusBadRequest, next, "Sign-in failed. Please try again.")
	}

	credential := c.FormValue("credential")
	if credential == "" {
		return h.renderLogin(c, fiber.StatusBadRequest, next, "Google did not return a credential.")
	}

	id, err := h.verifier.Verify(c.UserContext(), credential)
	if err != nil {
		logger.Warnf("sign-in rejected from %s: %v", c.IP(), err)
		return h.renderLogin(c, fiber.StatusUnauthorized, next, signInError(err))
	}

	token, claims, err := h.auth.IssueToken(id.Subject, id.Email, id.Name, id.Picture)
	if err != nil {
		return err
	}
	h.auth.SetSessionCookie(c, token, claims)
	logger.Infof("%s signed in", id.Email)
	return c.Redirect(safeNext(next), fiber.StatusSeeOther)
}

// Logout clears the session cookie
// @Summary Sign out
// @Tags auth
// @Success 303
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	middleware.ClearSessionCookie(c)
	if h.auth == nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// Me reports the signed-in user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} MeResponse
// @Failure 401 {object} MeResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	if h.auth == nil {
		return c.JSON(MeResponse{Authenticated: false, AuthEnabled: false})
	}
	claims, err := h.auth.ValidateToken(middleware.TokenFrom(c))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(MeResponse{AuthEnabled: true})
	}
	return c.JSON(MeResponse{Authenticated: true, AuthEnabled: true, User: claims})
}

func signInError(err error) string {
	switch {
	case errors.Is(err, auth.ErrDomainNotAllowed), errors.Is(err, auth.ErrEmailNotVerified):
		return "This Google account is not allowed to use the dashboard."
	case errors.Is(err, auth.ErrTokenExpired):
		return "The sign-in attempt expired. Please try again."
	default:
		return "Sign-in failed. Please try again."
	}
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
