package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

const stripeSignatureHeader = "Stripe-Signature"

// WebhookHandlerService verifies and routes provider webhooks
type WebhookHandlerService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type PaymentHandler struct {
	service WebhookHandlerService
	log     *zap.Logger
}

func NewPaymentHandler(service WebhookHandlerService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log,
	}
}

// Webhook acknowledges every verified event so the provider stops retrying
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	// The body buffer is reused by fasthttp after the handler returns.
	payload := append([]byte(nil), c.Body()...)

	err := h.service.HandleWebhook(c.UserContext(), payload, c.Get(stripeSignatureHeader))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) || errors.Is(err, domain.ErrInvalidInput) {
			h.log.Warn("Rejected payment webhook", zap.Error(err))
			return fiber.NewError(fiber.StatusBadRequest, "invalid webhook")
		}
		return err
	}
	return c.JSON(fiber.Map{"received": true})
}
