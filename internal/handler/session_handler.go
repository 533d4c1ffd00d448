package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/config"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/domain"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/service"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/pkg/validator"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type SessionHandler struct {
	sessionService *service.SessionService
	validator      *validator.Validator
	cfg            *config.Config
}

func NewSessionHandler(sessionService *service.SessionService, validator *validator.Validator, cfg *config.Config) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		validator:      validator,
		cfg:            cfg,
	}
}

// Create exchanges a Google ID token for a local session.
// POST /session
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req service.IssueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.sessionService.Issue(c.Context(), req)
	if err != nil {
		// Verification and store failures alike surface as a plain 500;
		// the client retries from the sign-in flow either way.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	h.setSessionCookies(c, resp.Tokens.AccessToken, resp.Tokens.RefreshToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"identity": resp.Identity,
	})
}

// Refresh rotates the token pair presented via the refresh cookie.
// POST /session/refresh
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshTokenCookie)
	if refreshToken == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No refresh token",
		})
	}

	tokens, err := h.sessionService.Refresh(c.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrRotationConflict):
			// Stale and raced look identical to the client: both mean
			// sign in again.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session expired",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to refresh session",
			})
		}
	}

	h.setSessionCookies(c, tokens.AccessToken, tokens.RefreshToken)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Session refreshed",
	})
}

// Invalidate logs the caller out. The session record is deleted; the
// cookies are expired client-side. Repeating the call is fine.
// POST /session/invalidate
func (h *SessionHandler) Invalidate(c *fiber.Ctx) error {
	accessToken := c.Cookies(AccessTokenCookie)
	if accessToken == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No access token",
		})
	}

	if err := h.sessionService.Invalidate(c.Context(), accessToken); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to invalidate session",
		})
	}

	h.clearSessionCookies(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Session invalidated",
	})
}

// Me reports the authenticated identity. Sits behind the authorize
// middleware; the frontend uses it to decide whether a sign-in is needed.
// GET /session/me
func (h *SessionHandler) Me(c *fiber.Ctx) error {
	ident, ok := c.Locals("identity").(string)
	if !ok || ident == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"identity": ident,
	})
}

// setSessionCookies transports the pair as two HttpOnly cookies. SameSite
// None because the SPA and this service live on different origins.
func (h *SessionHandler) setSessionCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	now := time.Now()

	c.Cookie(&fiber.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Expires:  now.Add(h.cfg.JWT.AccessTokenExpiry),
		MaxAge:   int(h.cfg.JWT.AccessTokenExpiry.Seconds()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})

	c.Cookie(&fiber.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		Expires:  now.Add(h.cfg.JWT.RefreshTokenExpiry),
		MaxAge:   int(h.cfg.JWT.RefreshTokenExpiry.Seconds()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

// clearSessionCookies expires both cookies immediately.
func (h *SessionHandler) clearSessionCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)

	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  expired,
			MaxAge:   -1,
			HTTPOnly: true,
			Secure:   true,
			SameSite: fiber.CookieSameSiteNoneMode,
		})
	}
}
