package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/service/billing"
	"github.com/seu-repo/parkflow/internal/service/email"
	"github.com/seu-repo/parkflow/internal/service/notification"
	"github.com/seu-repo/parkflow/internal/service/qrtoken"
)

// Create claims a slot for the request and opens a payment authorization for
// the booked duration. Only the slot hold is durable until the payment is
// fulfilled.
func (s *Service) Create(ctx context.Context, req domain.CreateBookingRequest) (_ *domain.PendingBooking, err error) {
	ctx, span := s.startSpan(ctx, "Create", attribute.String("user_id", req.UserID))
	defer func() { finishSpan(span, err) }()

	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	if req.VehicleType != "" && !req.VehicleType.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle type %s", domain.ErrInvalidInput, req.VehicleType)
	}
	startsAt := req.StartsAt
	if startsAt.IsZero() {
		startsAt = s.now()
	}

	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle: %w", err)
	}
	if vehicle == nil || vehicle.OwnerID != req.UserID {
		return nil, fmt.Errorf("%w: vehicle %s", domain.ErrNotFound, req.VehicleID)
	}

	if req.VehicleType != "" && req.VehicleType != vehicle.VehicleType {
		return nil, fmt.Errorf("%w: vehicle %s is a %s, not a %s", domain.ErrInvalidInput, vehicle.ID, vehicle.VehicleType, req.VehicleType)
	}
	criteria := domain.SlotCriteria{SlotID: req.SlotID, VehicleType: vehicle.VehicleType}

	bookingID := s.newID()
	held, err := s.slots.Claim(ctx, criteria, bookingID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("booking_id", bookingID), attribute.String("slot_id", held.ID))

	amount, err := billing.BaseAmount(req.DurationMinutes, held.HourlyRate)
	if err != nil {
		s.releaseHold(ctx, held.ID, bookingID)
		return nil, err
	}
	if billing.BelowMinimum(amount, s.cfg.MinimumAmount) {
		s.releaseHold(ctx, held.ID, bookingID)
		return nil, fmt.Errorf("%w: %s is below the minimum of %s", domain.ErrAmountTooLow, s.money(amount), s.money(s.cfg.MinimumAmount))
	}

	pi, err := s.payments.CreateAuthorization(ctx, billing.ToMinorUnits(amount), s.cfg.Currency, map[string]string{
		domain.MetaType:            string(domain.PaymentPurposeBooking),
		domain.MetaBookingID:       bookingID,
		domain.MetaSlotID:          held.ID,
		domain.MetaUserID:          req.UserID,
		domain.MetaVehicleID:       vehicle.ID,
		domain.MetaStartsAt:        startsAt.UTC().Format(time.RFC3339),
		domain.MetaDurationMinutes: strconv.Itoa(req.DurationMinutes),
	})
	if err != nil {
		s.releaseHold(ctx, held.ID, bookingID)
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.log.Info("Booking pending payment",
		zap.String("booking_id", bookingID),
		zap.String("slot_id", held.ID),
		zap.String("payment_ref", pi.ID),
		zap.Float64("amount", amount),
	)

	return &domain.PendingBooking{
		ID:           bookingID,
		SlotID:       held.ID,
		Amount:       amount,
		Currency:     s.cfg.Currency,
		ClientSecret: pi.ClientSecret,
		PaymentRef:   pi.ID,
		Status:       "pending_payment",
	}, nil
}

func (s *Service) releaseHold(ctx context.Context, slotID, bookingID string) {
	if _, err := s.slots.Release(ctx, slotID, bookingID); err != nil {
		s.log.Error("Failed to release slot hold", zap.String("slot_id", slotID), zap.String("booking_id", bookingID), zap.Error(err))
	}
}

// ConfirmPayment is the client-side confirmation path. Without an explicit
// intent id the latest authorization carrying the booking id is used.
func (s *Service) ConfirmPayment(ctx context.Context, userID, bookingID, intentID string) (*domain.Booking, error) {
	var (
		pi  *domain.PaymentIntent
		err error
	)
	if intentID != "" {
		pi, err = s.payments.Retrieve(ctx, intentID)
	} else {
		pi, err = s.payments.SearchByMetadata(ctx, domain.MetaBookingID, bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}
	if pi == nil {
		return nil, fmt.Errorf("%w: no payment for booking %s", domain.ErrNotFound, bookingID)
	}
	if pi.Metadata[domain.MetaUserID] != userID {
		return nil, fmt.Errorf("%w: payment belongs to another user", domain.ErrForbidden)
	}
	if bookingID != "" && pi.Metadata[domain.MetaBookingID] != bookingID {
		return nil, fmt.Errorf("%w: payment %s is not for booking %s", domain.ErrInvalidInput, pi.ID, bookingID)
	}
	if !pi.Succeeded() {
		return nil, fmt.Errorf("%w: payment status is %s", domain.ErrPaymentIncomplete, pi.Status)
	}

	return s.FulfillPayment(ctx, pi)
}

// FulfillPayment materializes the booking of a captured payment. It is
// idempotent: the webhook and the client confirmation may both call it.
func (s *Service) FulfillPayment(ctx context.Context, pi *domain.PaymentIntent) (_ *domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "FulfillPayment", attribute.String("payment_ref", pi.ID))
	defer func() { finishSpan(span, err) }()

	if !pi.Succeeded() {
		return nil, fmt.Errorf("%w: payment status is %s", domain.ErrPaymentIncomplete, pi.Status)
	}
	meta := pi.Metadata
	bookingID := meta[domain.MetaBookingID]
	if bookingID == "" {
		return nil, fmt.Errorf("%w: payment %s has no booking id", domain.ErrInvalidInput, pi.ID)
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	existing, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if existing != nil {
		return s.alreadyFulfilled(ctx, existing, pi.ID)
	}

	startsAt, err := time.Parse(time.RFC3339, meta[domain.MetaStartsAt])
	if err != nil {
		return nil, fmt.Errorf("%w: bad start time in payment metadata", domain.ErrInvalidInput)
	}
	duration, err := strconv.Atoi(meta[domain.MetaDurationMinutes])
	if err != nil || duration <= 0 {
		return nil, fmt.Errorf("%w: bad duration in payment metadata", domain.ErrInvalidInput)
	}

	now := s.now()
	b := &domain.Booking{
		ID:              bookingID,
		UserID:          meta[domain.MetaUserID],
		VehicleID:       meta[domain.MetaVehicleID],
		SlotID:          meta[domain.MetaSlotID],
		Kind:            domain.BookingKindStandard,
		StartsAt:        startsAt,
		EndsAt:          startsAt.Add(time.Duration(duration) * time.Minute),
		DurationMinutes: duration,
		Status:          domain.BookingStatusReserved,
		Amount:          pi.Amount,
		PaymentStatus:   domain.PaymentStatusPaid,
		PaymentRef:      pi.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if !s.holdStillValid(ctx, b) {
		return s.fulfillLostHold(ctx, b, pi)
	}

	token, err := s.codec.Create(qrtoken.NewBookingPayload(b.ID, b.SlotID, b.UserID, now))
	if err != nil {
		return nil, fmt.Errorf("failed to create qr token: %w", err)
	}
	b.QRToken = token.Value
	b.QRImage = token.Image

	if err := s.bookings.Create(ctx, b); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// lost the race against a concurrent fulfilment
			return s.findBooking(ctx, bookingID)
		}
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.transitioned(ctx, b)
	s.notifyOwner(ctx, b, domain.NotificationCategoryBooking, "Booking Confirmed",
		fmt.Sprintf("Your booking #%s is confirmed and paid. Amount: %s", b.ID, s.money(b.Amount)))
	if err := s.alerts.NotifyStaff(ctx, notification.Draft{
		Category:  domain.NotificationCategoryBooking,
		Title:     "New Booking",
		Message:   fmt.Sprintf("Booking #%s reserved slot %s from %s", b.ID, b.SlotID, formatTime(b.StartsAt)),
		BookingID: b.ID,
	}); err != nil {
		s.log.Error("Failed to notify staff", zap.String("booking_id", b.ID), zap.Error(err))
	}
	s.emailOwner(ctx, b.UserID, "Booking Confirmed", email.TemplateBookingConfirmed, map[string]interface{}{
		"BookingID": b.ID,
		"SlotCode":  s.slotCode(ctx, b.SlotID),
		"StartsAt":  formatTime(b.StartsAt),
		"EndsAt":    formatTime(b.EndsAt),
		"Amount":    fmt.Sprintf("%.2f", b.Amount),
		"QRImage":   b.QRImage,
	})
	s.webhook(ctx, domain.WebhookBookingCreated, b)

	return b, nil
}

func (s *Service) alreadyFulfilled(ctx context.Context, b *domain.Booking, paymentRef string) (*domain.Booking, error) {
	if b.IsPaid() {
		return b, nil
	}
	paid, err := s.bookings.MarkPaid(ctx, b.ID, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to mark booking paid: %w", err)
	}
	if paid == nil {
		return b, nil
	}
	return paid, nil
}

// holdStillValid reports whether the booking's slot still references it,
// re-claiming the slot when it was released in the meantime.
func (s *Service) holdStillValid(ctx context.Context, b *domain.Booking) bool {
	held, err := s.slots.Get(ctx, b.SlotID)
	if err == nil && held.IsHeldBy(b.ID) {
		return true
	}
	if _, err := s.slots.Claim(ctx, domain.SlotCriteria{SlotID: b.SlotID}, b.ID); err != nil {
		return false
	}
	s.log.Info("Re-claimed released slot for paid booking",
		zap.String("slot_id", b.SlotID),
		zap.String("booking_id", b.ID),
	)
	return true
}

// fulfillLostHold records a paid booking whose slot was taken while payment
// was in flight. The booking is stored as cancelled and fully refunded.
func (s *Service) fulfillLostHold(ctx context.Context, b *domain.Booking, pi *domain.PaymentIntent) (*domain.Booking, error) {
	s.log.Warn("Slot hold lost before payment was confirmed",
		zap.String("booking_id", b.ID),
		zap.String("slot_id", b.SlotID),
		zap.String("payment_ref", pi.ID),
	)

	b.Status = domain.BookingStatusCancelled
	if err := s.bookings.Create(ctx, b); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return s.findBooking(ctx, b.ID)
		}
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}
	s.transitioned(ctx, b)

	refunded := ""
	if _, err := s.payments.Refund(ctx, pi.ID, pi.AmountMinor, refundReason); err != nil {
		s.log.Error("Refund failed for lost slot hold", zap.String("booking_id", b.ID), zap.Error(err))
	} else {
		refunded = fmt.Sprintf("%.2f", pi.Amount)
	}

	s.notifyOwner(ctx, b, domain.NotificationCategoryPayment, "Booking Cancelled",
		fmt.Sprintf("Slot %s was no longer available when your payment arrived. Booking #%s was cancelled and refunded.", b.SlotID, b.ID))
	s.emailOwner(ctx, b.UserID, "Booking Cancelled", email.TemplateBookingCancelled, map[string]interface{}{
		"BookingID":    b.ID,
		"RefundAmount": refunded,
	})
	s.webhook(ctx, domain.WebhookBookingCancelled, b)

	return b, nil
}

func (s *Service) slotCode(ctx context.Context, slotID string) string {
	if held, err := s.slots.Get(ctx, slotID); err == nil && held.Code != "" {
		return held.Code
	}
	return slotID
}
