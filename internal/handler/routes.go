package handler

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(
	app *fiber.App,
	sessionHandler *SessionHandler,
	healthHandler *HealthHandler,
	jwksHandler *JWKSHandler,
	authorizeMiddleware fiber.Handler,
) {
	// Health checks (public)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)

	// Key set for sibling services (public)
	app.Get("/.well-known/jwks.json", jwksHandler.GetJWKS)

	// Session lifecycle (public - these ARE the auth surface)
	app.Post("/session", sessionHandler.Create)
	app.Post("/session/refresh", sessionHandler.Refresh)
	app.Post("/session/invalidate", sessionHandler.Invalidate)

	// Authenticated probe for the SPA
	app.Get("/session/me", authorizeMiddleware, sessionHandler.Me)
}
