package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

type SlotService interface {
	Get(ctx context.Context, slotID string) (*domain.Slot, error)
	List(ctx context.Context, filter ports.SlotFilter) ([]domain.Slot, error)
}

type SlotHandler struct {
	service SlotService
	log     *zap.Logger
}

func NewSlotHandler(service SlotService, log *zap.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

func (h *SlotHandler) List(c *fiber.Ctx) error {
	slots, err := h.service.List(c.UserContext(), ports.SlotFilter{
		Status:      domain.SlotStatus(c.Query("status")),
		VehicleType: domain.VehicleType(c.Query("vehicle_type")),
		Zone:        c.Query("zone"),
	})
	if err != nil {
		return err
	}
	return c.JSON(slots)
}

func (h *SlotHandler) Get(c *fiber.Ctx) error {
	s, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(s)
}
