package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

type AnalyticsService interface {
	Dashboard(ctx context.Context) (*domain.DashboardReport, error)
	Occupancy(ctx context.Context) (*domain.OccupancySummary, error)
	Revenue(ctx context.Context) (*domain.RevenueSummary, error)
	PeakHours(ctx context.Context) ([]domain.HourCount, error)
}

type AnalyticsHandler struct {
	service AnalyticsService
	log     *zap.Logger
}

func NewAnalyticsHandler(service AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		log:     log,
	}
}

func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	report, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *AnalyticsHandler) Occupancy(c *fiber.Ctx) error {
	summary, err := h.service.Occupancy(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (h *AnalyticsHandler) Revenue(c *fiber.Ctx) error {
	summary, err := h.service.Revenue(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (h *AnalyticsHandler) PeakHours(c *fiber.Ctx) error {
	hours, err := h.service.PeakHours(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(hours)
}
