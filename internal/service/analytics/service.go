// Package analytics computes the staff dashboard: occupancy, revenue and
// peak check-in hours.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

const (
	dashboardKey = "analytics:dashboard"
	peakHours    = 5
)

// Reader is the aggregate query surface of the stores
type Reader interface {
	CountSlotsByStatus(ctx context.Context) (map[domain.SlotStatus]int64, error)
	CountCheckInsByHour(ctx context.Context) ([]domain.HourCount, error)
	SumCheckedOutAmount(ctx context.Context) (float64, error)
	SumPaidSubscriptions(ctx context.Context) (float64, error)
}

// Repositories adapts the slot, booking and subscription stores to Reader
type Repositories struct {
	Slots         ports.SlotRepository
	Bookings      ports.BookingRepository
	Subscriptions ports.SubscriptionRepository
}

func (r Repositories) CountSlotsByStatus(ctx context.Context) (map[domain.SlotStatus]int64, error) {
	return r.Slots.CountByStatus(ctx)
}

func (r Repositories) CountCheckInsByHour(ctx context.Context) ([]domain.HourCount, error) {
	return r.Bookings.CountCheckInsByHour(ctx)
}

func (r Repositories) SumCheckedOutAmount(ctx context.Context) (float64, error) {
	return r.Bookings.SumCheckedOutAmount(ctx)
}

func (r Repositories) SumPaidSubscriptions(ctx context.Context) (float64, error) {
	return r.Subscriptions.SumPaidAmount(ctx)
}

type Service struct {
	reader Reader
	cache  ports.Cache
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewService returns an analytics service. A nil cache disables caching.
func NewService(reader Reader, cache ports.Cache, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		reader: reader,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
}

// Dashboard returns the cached report, recomputing it when stale. Cache
// failures degrade to a direct computation.
func (s *Service) Dashboard(ctx context.Context) (*domain.DashboardReport, error) {
	if report := s.cached(ctx); report != nil {
		return report, nil
	}

	report, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		raw, err := json.Marshal(report)
		if err == nil {
			err = s.cache.Set(ctx, dashboardKey, string(raw), s.ttl)
		}
		if err != nil {
			s.log.Warn("Failed to cache dashboard", zap.Error(err))
		}
	}
	return report, nil
}

// Invalidate drops the cached report
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardKey); err != nil {
		s.log.Warn("Failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *Service) cached(ctx context.Context) *domain.DashboardReport {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, dashboardKey)
	if err != nil {
		s.log.Warn("Dashboard cache unavailable", zap.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}
	var report domain.DashboardReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		s.log.Warn("Discarding corrupt dashboard cache entry", zap.Error(err))
		return nil
	}
	return &report
}

func (s *Service) compute(ctx context.Context) (*domain.DashboardReport, error) {
	occupancy, err := s.Occupancy(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.Revenue(ctx)
	if err != nil {
		return nil, err
	}
	peaks, err := s.PeakHours(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.DashboardReport{
		Occupancy:   *occupancy,
		Revenue:     *revenue,
		PeakHours:   peaks,
		GeneratedAt: s.now(),
	}, nil
}

// Occupancy counts slots per status. The rate is reserved plus occupied over
// all slots, as a percentage rounded to two decimals.
func (s *Service) Occupancy(ctx context.Context) (*domain.OccupancySummary, error) {
	counts, err := s.reader.CountSlotsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count slots: %w", err)
	}

	summary := &domain.OccupancySummary{
		Available:   counts[domain.SlotStatusAvailable],
		Reserved:    counts[domain.SlotStatusReserved],
		Occupied:    counts[domain.SlotStatusOccupied],
		Maintenance: counts[domain.SlotStatusMaintenance],
	}
	for _, n := range counts {
		summary.Total += n
	}
	if summary.Total > 0 {
		summary.Rate = round2(float64(summary.Reserved+summary.Occupied) / float64(summary.Total) * 100)
	}
	return summary, nil
}

func (s *Service) Revenue(ctx context.Context) (*domain.RevenueSummary, error) {
	bookings, err := s.reader.SumCheckedOutAmount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum booking revenue: %w", err)
	}
	subs, err := s.reader.SumPaidSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum subscription revenue: %w", err)
	}
	return &domain.RevenueSummary{
		Bookings:      round2(bookings),
		Subscriptions: round2(subs),
		Total:         round2(bookings + subs),
	}, nil
}

// PeakHours returns the busiest check-in hours, busiest first
func (s *Service) PeakHours(ctx context.Context) ([]domain.HourCount, error) {
	counts, err := s.reader.CountCheckInsByHour(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count check-ins: %w", err)
	}
	if len(counts) > peakHours {
		counts = counts[:peakHours]
	}
	return counts, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
