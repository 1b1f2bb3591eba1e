package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/service/auth"
)

const (
	LocalUserID    = "user_id"
	localUserRole  = "user_role"
	localPrincipal = "principal"
)

// TokenValidator turns a bearer token into the calling principal
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Principal, error)
}

// PermissionChecker decides role access to a resource/action pair
type PermissionChecker interface {
	CheckPermission(role domain.UserRole, resource, action string) bool
}

// AuthRequired verifies the bearer token. Websocket upgrades may pass the
// token as the "token" query parameter since browsers cannot set headers.
func AuthRequired(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		p, err := validator.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals(LocalUserID, p.UserID)
		c.Locals(localUserRole, p.Role)
		c.Locals(localPrincipal, p)

		return c.Next()
	}
}

// RequirePermission rejects callers whose role lacks resource:action
func RequirePermission(checker PermissionChecker, resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !checker.CheckPermission(UserRole(c), resource, action) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside AuthRequired
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// UserRole returns the authenticated user's role
func UserRole(c *fiber.Ctx) domain.UserRole {
	role, _ := c.Locals(localUserRole).(domain.UserRole)
	return role
}

// CurrentPrincipal returns the verified token of the request
func CurrentPrincipal(c *fiber.Ctx) *auth.Principal {
	p, _ := c.Locals(localPrincipal).(*auth.Principal)
	return p
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if websocket.IsWebSocketUpgrade(c) && c.Query("token") != "" {
			return c.Query("token"), true
		}
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
