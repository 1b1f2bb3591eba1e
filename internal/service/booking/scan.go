package booking

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
	"github.com/seu-repo/parkflow/internal/service/billing"
	"github.com/seu-repo/parkflow/internal/service/email"
	"github.com/seu-repo/parkflow/internal/service/qrtoken"
)

// Scan verifies a gate token and applies the entry or exit transition
func (s *Service) Scan(ctx context.Context, token string, action domain.ScanAction) (_ *domain.ScanResult, err error) {
	ctx, span := s.startSpan(ctx, "Scan", attribute.String("action", string(action)))
	defer func() { finishSpan(span, err) }()

	if action != domain.ScanActionEntry && action != domain.ScanActionExit {
		return nil, fmt.Errorf("%w: unknown scan action %q", domain.ErrInvalidInput, action)
	}

	payload, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	switch payload.Kind {
	case qrtoken.KindSubscriber:
		if action == domain.ScanActionEntry {
			return s.subscriberEntry(ctx, payload.UserID)
		}
		return s.subscriberExit(ctx, payload.UserID)
	default:
		span.SetAttributes(attribute.String("booking_id", payload.BookingID))
		b, err := s.findBooking(ctx, payload.BookingID)
		if err != nil {
			return nil, err
		}
		if action == domain.ScanActionEntry {
			return s.entry(ctx, b)
		}
		return s.exit(ctx, b)
	}
}

func (s *Service) entry(ctx context.Context, b *domain.Booking) (*domain.ScanResult, error) {
	if !b.IsPaid() {
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrPaymentIncomplete, b.ID, b.PaymentStatus)
	}
	if b.Status != domain.BookingStatusReserved {
		return nil, fmt.Errorf("%w: cannot check in booking %s from %s", domain.ErrInvalidTransition, b.ID, b.Status)
	}

	now := s.now()
	updated, err := s.bookings.Transition(ctx, b.ID, domain.BookingTransition{
		From:      domain.BookingStatusReserved,
		To:        domain.BookingStatusCheckedIn,
		At:        now,
		CheckInAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check in: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: booking %s changed state concurrently", domain.ErrInvalidTransition, b.ID)
	}

	if _, err := s.slots.Occupy(ctx, updated.SlotID, updated.ID); err != nil {
		s.log.Error("Checked-in booking does not hold its slot",
			zap.String("booking_id", updated.ID),
			zap.String("slot_id", updated.SlotID),
			zap.Error(err),
		)
	}

	s.transitioned(ctx, updated)
	s.notifyOwner(ctx, updated, domain.NotificationCategoryBooking, "Checked In",
		fmt.Sprintf("You have checked into slot %s", s.slotCode(ctx, updated.SlotID)))
	s.webhook(ctx, domain.WebhookBookingCheckedIn, updated)

	return &domain.ScanResult{
		BookingID: updated.ID,
		Status:    updated.Status,
		Amount:    updated.Amount,
		Message:   "Entry recorded",
	}, nil
}

func (s *Service) exit(ctx context.Context, b *domain.Booking) (*domain.ScanResult, error) {
	if b.Status != domain.BookingStatusCheckedIn {
		return nil, fmt.Errorf("%w: cannot check out booking %s from %s", domain.ErrInvalidTransition, b.ID, b.Status)
	}

	parkedAt, err := s.slots.Get(ctx, b.SlotID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	bill, err := billing.ComputeBill(billing.InputFor(b.DurationMinutes, b.ParkedMinutes(now), parkedAt.RateCard()))
	if err != nil {
		return nil, err
	}

	due := bill.Extra()
	if !b.IsPaid() {
		s.log.Warn("Unpaid booking at exit, charging the full bill",
			zap.String("booking_id", b.ID),
			zap.Float64("total", bill.TotalAmount),
		)
		due = bill.TotalAmount
	}

	charged, waived := due, false
	if due > 0 && billing.BelowMinimum(due, s.cfg.MinimumAmount) {
		charged, waived = 0, true
		telemetry.WaivedChargesTotal.Inc()
		s.log.Warn("Waived charge below payment minimum",
			zap.String("booking_id", b.ID),
			zap.Float64("amount", due),
		)
	}

	var pi *domain.PaymentIntent
	if charged > 0 {
		pi, err = s.payments.CreateAuthorization(ctx, billing.ToMinorUnits(charged), s.cfg.Currency, map[string]string{
			domain.MetaType:      string(domain.PaymentPurposeOvertime),
			domain.MetaBookingID: b.ID,
			domain.MetaSlotID:    b.SlotID,
			domain.MetaUserID:    b.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create overtime payment: %w", err)
		}
	}

	updated, err := s.bookings.Transition(ctx, b.ID, domain.BookingTransition{
		From:            domain.BookingStatusCheckedIn,
		To:              domain.BookingStatusCheckedOut,
		At:              now,
		CheckOutAt:      &now,
		AddAmount:       charged,
		OvertimeMinutes: bill.OvertimeMinutes,
		PenaltyAmount:   bill.PenaltyAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check out: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: booking %s changed state concurrently", domain.ErrInvalidTransition, b.ID)
	}

	s.release(ctx, updated)

	paymentRef := ""
	if pi != nil {
		paymentRef = pi.ID
	}
	s.writeLedger(ctx, domain.NewLedgerEntry(s.newID(), updated, bill, charged, waived, paymentRef, now))

	s.transitioned(ctx, updated)
	s.notifyOwner(ctx, updated, domain.NotificationCategoryBilling, "Booking Completed",
		fmt.Sprintf("Checked out. Total amount: %s (No refunds for early exit).", s.money(updated.Amount)))
	s.emailOwner(ctx, updated.UserID, "Parking Receipt", email.TemplateBookingCheckedOut, map[string]interface{}{
		"BookingID":      updated.ID,
		"ParkedMinutes":  bill.ParkedMinutes,
		"BookedMinutes":  bill.BookedMinutes,
		"OvertimeAmount": fmt.Sprintf("%.2f", bill.OvertimeAmount),
		"PenaltyAmount":  fmt.Sprintf("%.2f", bill.PenaltyAmount),
		"TotalAmount":    fmt.Sprintf("%.2f", updated.Amount),
	})
	s.webhook(ctx, domain.WebhookBookingCheckedOut, updated)

	return &domain.ScanResult{
		BookingID:      updated.ID,
		Status:         updated.Status,
		Amount:         updated.Amount,
		Bill:           &bill,
		AdditionalDue:  charged,
		Waived:         waived,
		PaymentDetails: pi,
		Message:        "Exit recorded. No refunds for early exit.",
	}, nil
}

// writeLedger stores the checkout record. The checkout itself is already
// durable, so a failure is logged.
func (s *Service) writeLedger(ctx context.Context, entry *domain.LedgerEntry) {
	if err := s.ledger.Create(ctx, entry); err != nil {
		s.log.Error("Failed to write ledger entry",
			zap.String("booking_id", entry.BookingID),
			zap.Float64("total", entry.TotalAmount),
			zap.Error(err),
		)
	}
}
