package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/parkflow/internal/domain"
)

type SubscriptionService interface {
	Purchase(ctx context.Context, req domain.PurchaseSubscriptionRequest) (*domain.PendingSubscription, error)
	Confirm(ctx context.Context, userID, paymentRef string) (*domain.Subscription, error)
	Cancel(ctx context.Context, userID, id string) (*domain.Subscription, error)
	ListMine(ctx context.Context, userID string) ([]domain.Subscription, error)
}

type SubscriptionHandler struct {
	service SubscriptionService
	log     *zap.Logger
}

func NewSubscriptionHandler(service SubscriptionService, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		log:     log,
	}
}

func (h *SubscriptionHandler) Purchase(c *fiber.Ctx) error {
	var req domain.PurchaseSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid body")
	}
	req.UserID = middleware.UserID(c)

	pending, err := h.service.Purchase(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(pending)
}

type ConfirmSubscriptionRequest struct {
	PaymentRef string `json:"payment_ref"`
}

func (h *SubscriptionHandler) Confirm(c *fiber.Ctx) error {
	var req ConfirmSubscriptionRequest
	if err := c.BodyParser(&req); err != nil || req.PaymentRef == "" {
		return fiber.NewError(fiber.StatusBadRequest, "payment_ref is required")
	}

	sub, err := h.service.Confirm(c.UserContext(), middleware.UserID(c), req.PaymentRef)
	if err != nil {
		return err
	}
	return c.JSON(sub)
}

func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	sub, err := h.service.Cancel(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sub)
}

func (h *SubscriptionHandler) ListMine(c *fiber.Ctx) error {
	subs, err := h.service.ListMine(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(subs)
}
