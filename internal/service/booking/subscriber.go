package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

func (s *Service) activeSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.subs.FindActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil || !sub.IsActiveAt(s.now()) {
		return nil, fmt.Errorf("%w: no active subscription for user %s", domain.ErrNotFound, userID)
	}
	return sub, nil
}

// subscriberEntry opens a zero-cost session for a pass holder. A dedicated
// slot is taken over even if another booking holds it.
func (s *Service) subscriberEntry(ctx context.Context, userID string) (*domain.ScanResult, error) {
	sub, err := s.activeSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	inside, err := s.bookings.CountCheckedIn(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check presence: %w", err)
	}
	if inside > 0 {
		return nil, fmt.Errorf("%w: user %s is already checked in", domain.ErrInvalidTransition, userID)
	}

	bookingID := s.newID()
	var parkedAt *domain.Slot
	if sub.HasDedicatedSlot() {
		var displaced string
		parkedAt, displaced, err = s.slots.ForceClaim(ctx, *sub.SlotID, bookingID)
		if err != nil {
			return nil, err
		}
		if displaced != "" {
			s.log.Warn("Subscriber entry displaced a booking from the dedicated slot",
				zap.String("subscription_id", sub.ID),
				zap.String("displaced_booking_id", displaced),
			)
		}
	} else {
		criteria := domain.SlotCriteria{}
		if v, err := s.vehicles.FindByID(ctx, sub.VehicleID); err == nil && v != nil {
			criteria.VehicleType = v.VehicleType
		}
		parkedAt, err = s.slots.ClaimForEntry(ctx, criteria, bookingID)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	b := &domain.Booking{
		ID:              bookingID,
		UserID:          userID,
		VehicleID:       sub.VehicleID,
		SlotID:          parkedAt.ID,
		Kind:            domain.BookingKindSubscription,
		StartsAt:        now,
		EndsAt:          now.Add(subscriberDay),
		DurationMinutes: int(subscriberDay.Minutes()),
		Status:          domain.BookingStatusCheckedIn,
		CheckInAt:       &now,
		PaymentStatus:   domain.PaymentStatusPaid,
		PaymentRef:      sub.PaymentRef,
		WarningSent:     true,
		AlertSent:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		s.release(ctx, b)
		return nil, fmt.Errorf("failed to save subscriber session: %w", err)
	}

	s.transitioned(ctx, b)
	s.notifyOwner(ctx, b, domain.NotificationCategoryBooking, "Subscription Entry",
		fmt.Sprintf("Welcome back! Checked into slot %s", parkedAt.Code))

	return &domain.ScanResult{
		BookingID: b.ID,
		Status:    b.Status,
		Message:   fmt.Sprintf("Subscriber entry to slot %s", parkedAt.Code),
	}, nil
}

// subscriberExit closes the holder's latest subscriber session at zero cost
func (s *Service) subscriberExit(ctx context.Context, userID string) (*domain.ScanResult, error) {
	if _, err := s.activeSubscription(ctx, userID); err != nil {
		return nil, err
	}

	b, err := s.bookings.FindLatestCheckedIn(ctx, userID, domain.BookingKindSubscription)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: no active check-in for user %s", domain.ErrNotFound, userID)
	}

	now := s.now()
	zero := 0.0
	updated, err := s.bookings.Transition(ctx, b.ID, domain.BookingTransition{
		From:       domain.BookingStatusCheckedIn,
		To:         domain.BookingStatusCheckedOut,
		At:         now,
		CheckOutAt: &now,
		SetAmount:  &zero,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check out: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: session %s changed state concurrently", domain.ErrInvalidTransition, b.ID)
	}

	s.release(ctx, updated)
	s.writeLedger(ctx, &domain.LedgerEntry{
		ID:              s.newID(),
		BookingID:       updated.ID,
		UserID:          updated.UserID,
		SlotID:          updated.SlotID,
		DurationMinutes: updated.ParkedMinutes(now),
		CreatedAt:       now,
	})

	s.transitioned(ctx, updated)
	s.notifyOwner(ctx, updated, domain.NotificationCategoryBooking, "Subscription Exit", "Have a safe drive! Visit again.")

	return &domain.ScanResult{
		BookingID: updated.ID,
		Status:    updated.Status,
		Message:   "Subscriber exit recorded",
	}, nil
}
