package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/storage/memory"
	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type countingReader struct {
	Reader
	calls int
}

func (r *countingReader) CountSlotsByStatus(ctx context.Context) (map[domain.SlotStatus]int64, error) {
	r.calls++
	return r.Reader.CountSlotsByStatus(ctx)
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()

	statuses := []domain.SlotStatus{
		domain.SlotStatusAvailable, domain.SlotStatusAvailable, domain.SlotStatusAvailable,
		domain.SlotStatusReserved, domain.SlotStatusOccupied, domain.SlotStatusMaintenance,
	}
	for i, st := range statuses {
		id := string(rune('A' + i))
		if err := store.Slots().Save(ctx, &domain.Slot{ID: id, Code: id, VehicleType: domain.VehicleTypeCar, Status: st, HourlyRate: 10, OvertimeMultiplier: 1}); err != nil {
			t.Fatalf("seed slot: %v", err)
		}
	}

	at := func(hour int) *time.Time {
		ts := time.Date(2026, 5, 1, hour, 15, 0, 0, time.UTC)
		return &ts
	}
	bookings := []domain.Booking{
		{ID: "b1", Status: domain.BookingStatusCheckedOut, Amount: 120.5, CheckInAt: at(9)},
		{ID: "b2", Status: domain.BookingStatusCheckedOut, Amount: 80, CheckInAt: at(9)},
		{ID: "b3", Status: domain.BookingStatusCheckedIn, Amount: 40, CheckInAt: at(18)},
		{ID: "b4", Status: domain.BookingStatusCancelled, Amount: 60},
	}
	for i := range bookings {
		if err := store.Bookings().Create(ctx, &bookings[i]); err != nil {
			t.Fatalf("seed booking: %v", err)
		}
	}
	if err := store.Subscriptions().Create(ctx, &domain.Subscription{
		ID: "s1", PaymentRef: "pi_s1", MonthlyAmount: 3000, PaymentStatus: domain.PaymentStatusPaid, Status: domain.SubscriptionStatusActive,
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return store
}

func repositories(store *memory.Store) Repositories {
	return Repositories{Slots: store.Slots(), Bookings: store.Bookings(), Subscriptions: store.Subscriptions()}
}

func TestDashboard_Computes(t *testing.T) {
	// Arrange
	svc := NewService(repositories(seededStore(t)), nil, time.Minute, newTestLogger())

	// Act
	report, err := svc.Dashboard(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	occ := report.Occupancy
	if occ.Total != 6 || occ.Available != 3 || occ.Reserved != 1 || occ.Occupied != 1 || occ.Maintenance != 1 {
		t.Errorf("unexpected occupancy counts: %+v", occ)
	}
	if occ.Rate != 33.33 {
		t.Errorf("expected rate 33.33, got %v", occ.Rate)
	}
	if report.Revenue.Bookings != 200.5 || report.Revenue.Subscriptions != 3000 || report.Revenue.Total != 3200.5 {
		t.Errorf("unexpected revenue: %+v", report.Revenue)
	}
	if len(report.PeakHours) != 2 || report.PeakHours[0].Hour != 9 || report.PeakHours[0].Count != 2 {
		t.Errorf("unexpected peak hours: %+v", report.PeakHours)
	}
}

func TestDashboard_EmptyFacility(t *testing.T) {
	svc := NewService(repositories(memory.NewStore()), nil, time.Minute, newTestLogger())

	report, err := svc.Dashboard(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Occupancy.Rate != 0 || report.Revenue.Total != 0 || len(report.PeakHours) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestDashboard_ServesFromCacheUntilInvalidated(t *testing.T) {
	// Arrange
	reader := &countingReader{Reader: repositories(seededStore(t))}
	cache := mocks.NewMockCache()
	svc := NewService(reader, cache, time.Minute, newTestLogger())
	ctx := context.Background()

	// Act
	first, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	svc.Invalidate(ctx)
	_, err = svc.Dashboard(ctx)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if reader.calls != 2 {
		t.Errorf("expected 2 computations, got %d", reader.calls)
	}
	if second.Revenue != first.Revenue || second.Occupancy != first.Occupancy {
		t.Errorf("cached report differs: %+v vs %+v", second, first)
	}
}

func TestDashboard_CacheFailureFallsBack(t *testing.T) {
	// Arrange
	reader := &countingReader{Reader: repositories(seededStore(t))}
	cache := mocks.NewMockCache()
	cache.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", errors.New("redis down")
	}
	svc := NewService(reader, cache, time.Minute, newTestLogger())

	// Act
	report, err := svc.Dashboard(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Occupancy.Total != 6 {
		t.Errorf("expected computed report, got %+v", report.Occupancy)
	}
}

func TestPeakHours_Limited(t *testing.T) {
	// Arrange
	store := memory.NewStore()
	ctx := context.Background()
	for h := 0; h < 8; h++ {
		ts := time.Date(2026, 5, 1, h, 0, 0, 0, time.UTC)
		if err := store.Bookings().Create(ctx, &domain.Booking{ID: string(rune('a' + h)), Status: domain.BookingStatusCheckedOut, CheckInAt: &ts}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	svc := NewService(repositories(store), nil, time.Minute, newTestLogger())

	// Act
	peaks, err := svc.PeakHours(ctx)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(peaks) != peakHours {
		t.Errorf("expected %d hours, got %d", peakHours, len(peaks))
	}
}
