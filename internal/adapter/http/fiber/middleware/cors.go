package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/seu-repo/parkflow/pkg/config"
)

// NewCORS builds the CORS middleware. Empty lists fall back to what the
// browser clients of the API need, which includes the bearer header for the
// realtime handshake.
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 600
	}
	c := fibercors.Config{
		AllowOrigins:  joinOr(cfg.AllowedOrigins, "*"),
		AllowMethods:  joinOr(cfg.AllowedMethods, "GET,POST,PATCH,OPTIONS"),
		AllowHeaders:  joinOr(cfg.AllowedHeaders, "Origin,Content-Type,Accept,Authorization,Stripe-Signature"),
		ExposeHeaders: joinOr(cfg.ExposeHeaders, "Retry-After"),
		MaxAge:        maxAge,
	}
	// fiber rejects credentials with a wildcard origin
	c.AllowCredentials = cfg.Credentials && c.AllowOrigins != "*"
	return fibercors.New(c)
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ",")
}
