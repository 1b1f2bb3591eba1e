package mocks

import (
	"context"
	"time"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

// MockBookingRepository wraps a real repository and lets tests override
// individual methods to inject failures.
type MockBookingRepository struct {
	ports.BookingRepository

	TransitionFunc   func(ctx context.Context, id string, t domain.BookingTransition) (*domain.Booking, error)
	ClaimFlagFunc    func(ctx context.Context, id string, flag domain.BookingFlag) (bool, error)
	FindForSweepFunc func(ctx context.Context, q ports.BookingSweepQuery) ([]domain.Booking, error)
}

func (m *MockBookingRepository) Transition(ctx context.Context, id string, t domain.BookingTransition) (*domain.Booking, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, t)
	}
	return m.BookingRepository.Transition(ctx, id, t)
}

func (m *MockBookingRepository) ClaimFlag(ctx context.Context, id string, flag domain.BookingFlag) (bool, error) {
	if m.ClaimFlagFunc != nil {
		return m.ClaimFlagFunc(ctx, id, flag)
	}
	return m.BookingRepository.ClaimFlag(ctx, id, flag)
}

func (m *MockBookingRepository) FindForSweep(ctx context.Context, q ports.BookingSweepQuery) ([]domain.Booking, error) {
	if m.FindForSweepFunc != nil {
		return m.FindForSweepFunc(ctx, q)
	}
	return m.BookingRepository.FindForSweep(ctx, q)
}

// MockSlotRepository wraps a real repository with overridable methods
type MockSlotRepository struct {
	ports.SlotRepository

	ClaimMatchingFunc func(ctx context.Context, criteria domain.SlotCriteria, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, error)
	ReleaseFunc       func(ctx context.Context, slotID, expectedBookingID string) (*domain.Slot, error)
}

func (m *MockSlotRepository) ClaimMatching(ctx context.Context, criteria domain.SlotCriteria, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, error) {
	if m.ClaimMatchingFunc != nil {
		return m.ClaimMatchingFunc(ctx, criteria, bookingID, status, at)
	}
	return m.SlotRepository.ClaimMatching(ctx, criteria, bookingID, status, at)
}

func (m *MockSlotRepository) Release(ctx context.Context, slotID, expectedBookingID string) (*domain.Slot, error) {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, slotID, expectedBookingID)
	}
	return m.SlotRepository.Release(ctx, slotID, expectedBookingID)
}
