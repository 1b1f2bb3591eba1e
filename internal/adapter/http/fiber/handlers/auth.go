package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/parkflow/internal/service/auth"
)

type TokenRevoker interface {
	RevokeToken(ctx context.Context, p *auth.Principal) error
}

type AuthHandler struct {
	revoker TokenRevoker
	log     *zap.Logger
}

func NewAuthHandler(revoker TokenRevoker, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		revoker: revoker,
		log:     log,
	}
}

// Me echoes the verified identity of the caller
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"user_id": middleware.UserID(c),
		"role":    middleware.UserRole(c),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		return fiber.ErrUnauthorized
	}
	if err := h.revoker.RevokeToken(c.UserContext(), p); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
