package booking

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/service/billing"
	"github.com/seu-repo/parkflow/internal/service/email"
)

// Cancel cancels a reserved booking of its owner and releases the slot. A
// captured payment is partially refunded; refund failures never block the
// cancellation.
func (s *Service) Cancel(ctx context.Context, userID, bookingID string) (_ *domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "Cancel", attribute.String("booking_id", bookingID))
	defer func() { finishSpan(span, err) }()

	b, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, fmt.Errorf("%w: booking %s", domain.ErrNotFound, bookingID)
	}
	if b.Status != domain.BookingStatusReserved {
		return nil, fmt.Errorf("%w: cannot cancel booking %s from %s", domain.ErrInvalidTransition, b.ID, b.Status)
	}

	updated, err := s.bookings.Transition(ctx, b.ID, domain.BookingTransition{
		From: domain.BookingStatusReserved,
		To:   domain.BookingStatusCancelled,
		At:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: booking %s changed state concurrently", domain.ErrInvalidTransition, b.ID)
	}

	s.release(ctx, updated)
	refunded := s.refundCancellation(ctx, updated)

	s.transitioned(ctx, updated)
	s.notifyOwner(ctx, updated, domain.NotificationCategoryBooking, "Booking Cancelled",
		fmt.Sprintf("Your booking #%s has been cancelled.", updated.ID))
	data := map[string]interface{}{"BookingID": updated.ID}
	if refunded > 0 {
		data["RefundAmount"] = fmt.Sprintf("%.2f", refunded)
	}
	s.emailOwner(ctx, updated.UserID, "Booking Cancelled", email.TemplateBookingCancelled, data)
	s.webhook(ctx, domain.WebhookBookingCancelled, updated)

	return updated, nil
}

// refundCancellation requests the partial refund of a paid booking and
// returns the amount requested, or 0 when nothing was refunded.
func (s *Service) refundCancellation(ctx context.Context, b *domain.Booking) float64 {
	if !b.IsPaid() || b.PaymentRef == "" {
		return 0
	}
	minor := billing.RefundMinorUnits(b.Amount, s.cfg.RefundRate)
	if minor <= 0 {
		return 0
	}

	refund, err := s.payments.Refund(ctx, b.PaymentRef, minor, refundReason)
	if err != nil {
		s.log.Error("Refund failed for booking cancellation",
			zap.String("booking_id", b.ID),
			zap.String("payment_ref", b.PaymentRef),
			zap.Int64("amount_minor", minor),
			zap.Error(err),
		)
		return 0
	}

	s.log.Info("Cancellation refund requested",
		zap.String("booking_id", b.ID),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount_minor", minor),
	)
	return billing.FromMinorUnits(minor)
}
