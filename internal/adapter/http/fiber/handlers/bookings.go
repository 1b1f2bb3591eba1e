package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/parkflow/internal/domain"
)

// BookingService is the booking lifecycle used by the HTTP API
type BookingService interface {
	Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.PendingBooking, error)
	ConfirmPayment(ctx context.Context, userID, bookingID, intentID string) (*domain.Booking, error)
	Cancel(ctx context.Context, userID, bookingID string) (*domain.Booking, error)
	ListMine(ctx context.Context, userID string) ([]domain.Booking, error)
	Get(ctx context.Context, userID string, role domain.UserRole, bookingID string) (*domain.Booking, error)
	Scan(ctx context.Context, token string, action domain.ScanAction) (*domain.ScanResult, error)
	SecurityScans(ctx context.Context) ([]domain.Booking, error)
}

type BookingHandler struct {
	service BookingService
	log     *zap.Logger
}

func NewBookingHandler(service BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	var req domain.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid body")
	}
	req.UserID = middleware.UserID(c)

	pending, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(pending)
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

func (h *BookingHandler) ConfirmPayment(c *fiber.Ctx) error {
	var req ConfirmPaymentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid body")
		}
	}

	b, err := h.service.ConfirmPayment(c.UserContext(), middleware.UserID(c), c.Params("id"), req.PaymentIntentID)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	b, err := h.service.Cancel(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(b)
}

func (h *BookingHandler) ListMine(c *fiber.Ctx) error {
	bookings, err := h.service.ListMine(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(bookings)
}

func (h *BookingHandler) Get(c *fiber.Ctx) error {
	b, err := h.service.Get(c.UserContext(), middleware.UserID(c), middleware.UserRole(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(b)
}

type ScanRequest struct {
	Token  string            `json:"token"`
	Action domain.ScanAction `json:"action"`
}

// Scan is the gate operator's entry/exit endpoint. Token failures are 401 here.
func (h *BookingHandler) Scan(c *fiber.Ctx) error {
	var req ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid body")
	}
	if req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token is required")
	}
	if req.Action != domain.ScanActionEntry && req.Action != domain.ScanActionExit {
		return fiber.NewError(fiber.StatusBadRequest, "action must be entry or exit")
	}

	result, err := h.service.Scan(c.UserContext(), req.Token, req.Action)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrInvalidSignature) {
			h.log.Warn("Rejected gate token",
				zap.String("operator_id", middleware.UserID(c)),
				zap.Error(err),
			)
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return err
	}
	return c.JSON(result)
}

func (h *BookingHandler) ScanLog(c *fiber.Ctx) error {
	bookings, err := h.service.SecurityScans(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(bookings)
}
