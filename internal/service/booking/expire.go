package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/service/email"
)

// Expire moves a reserved booking whose window passed without a check-in to
// expired and frees its slot. It returns false when the booking already left
// reserved.
func (s *Service) Expire(ctx context.Context, b *domain.Booking) (bool, error) {
	updated, err := s.bookings.Transition(ctx, b.ID, domain.BookingTransition{
		From: domain.BookingStatusReserved,
		To:   domain.BookingStatusExpired,
		At:   s.now(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to expire booking: %w", err)
	}
	if updated == nil {
		return false, nil
	}

	if _, err := s.slots.Release(ctx, updated.SlotID, updated.ID); err != nil {
		// the orphaned hold sweep retries slots whose booking is gone or terminal
		s.log.Error("Failed to release slot of expired booking",
			zap.String("booking_id", updated.ID),
			zap.String("slot_id", updated.SlotID),
			zap.Error(err),
		)
	}

	s.transitioned(ctx, updated)
	s.notifyOwner(ctx, updated, domain.NotificationCategoryBooking, "Booking Expired",
		fmt.Sprintf("Booking #%s expired because the vehicle did not check in before %s.", updated.ID, formatTime(updated.EndsAt)))
	s.emailOwner(ctx, updated.UserID, "Booking Expired", email.TemplateBookingExpired, map[string]interface{}{
		"BookingID": updated.ID,
		"EndsAt":    formatTime(updated.EndsAt),
	})
	s.webhook(ctx, domain.WebhookBookingExpired, updated)

	return true, nil
}

// WarnEndingSoon notifies the owner once that the booking window is closing
func (s *Service) WarnEndingSoon(ctx context.Context, b *domain.Booking) (bool, error) {
	claimed, err := s.bookings.ClaimFlag(ctx, b.ID, domain.BookingFlagWarning)
	if err != nil || !claimed {
		return false, err
	}
	s.notifyOwner(ctx, b, domain.NotificationCategoryBooking, "Parking Ending Soon",
		fmt.Sprintf("Your booking #%s ends at %s.", b.ID, formatTime(b.EndsAt)))
	return true, nil
}

// AlertOvertime notifies the owner once that overtime billing has started
func (s *Service) AlertOvertime(ctx context.Context, b *domain.Booking) (bool, error) {
	claimed, err := s.bookings.ClaimFlag(ctx, b.ID, domain.BookingFlagAlert)
	if err != nil || !claimed {
		return false, err
	}
	s.notifyOwner(ctx, b, domain.NotificationCategoryBilling, "Overtime Started",
		fmt.Sprintf("Booking #%s passed its end time. Overtime and penalty charges now apply.", b.ID))
	return true, nil
}
