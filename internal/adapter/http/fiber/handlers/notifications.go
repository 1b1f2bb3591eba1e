package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/parkflow/internal/domain"
)

type NotificationService interface {
	ListMine(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type NotificationHandler struct {
	service NotificationService
	log     *zap.Logger
}

func NewNotificationHandler(service NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

func (h *NotificationHandler) ListMine(c *fiber.Ctx) error {
	items, err := h.service.ListMine(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.service.MarkRead(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
