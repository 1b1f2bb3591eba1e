// Package booking implements the booking lifecycle: create, payment
// fulfilment, gate scans, cancellation and expiry.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
	"github.com/seu-repo/parkflow/internal/ports"
	"github.com/seu-repo/parkflow/internal/service/notification"
	"github.com/seu-repo/parkflow/internal/service/qrtoken"
	"github.com/seu-repo/parkflow/internal/service/slot"
)

const (
	listLimit     = 50
	scanLogLimit  = 100
	refundReason  = "requested_by_customer"
	subscriberDay = 24 * time.Hour
)

// Config holds the payment policy of the booking lifecycle
type Config struct {
	Currency      string
	MinimumAmount float64
	RefundRate    float64
}

func DefaultConfig() Config {
	return Config{
		Currency:      "inr",
		MinimumAmount: 50,
		RefundRate:    0.5,
	}
}

// Alerts stores in-app notifications
type Alerts interface {
	Notify(ctx context.Context, userID string, d notification.Draft) error
	NotifyStaff(ctx context.Context, d notification.Draft) error
}

// Deps are the collaborators of the booking service
type Deps struct {
	Bookings      ports.BookingRepository
	Ledger        ports.LedgerRepository
	Subscriptions ports.SubscriptionRepository
	Vehicles      ports.VehicleRepository
	Users         ports.UserRepository
	Slots         *slot.Allocator
	Codec         *qrtoken.Codec
	Payments      ports.PaymentGateway
	Notifier      ports.Notifier
	Alerts        Alerts
	Push          ports.Publisher
}

type Service struct {
	bookings ports.BookingRepository
	ledger   ports.LedgerRepository
	subs     ports.SubscriptionRepository
	vehicles ports.VehicleRepository
	users    ports.UserRepository
	slots    *slot.Allocator
	codec    *qrtoken.Codec
	payments ports.PaymentGateway
	notifier ports.Notifier
	alerts   Alerts
	push     ports.Publisher

	cfg    Config
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
	log    *zap.Logger
}

func NewService(deps Deps, cfg Config, log *zap.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = DefaultConfig().Currency
	}
	return &Service{
		bookings: deps.Bookings,
		ledger:   deps.Ledger,
		subs:     deps.Subscriptions,
		vehicles: deps.Vehicles,
		users:    deps.Users,
		slots:    deps.Slots,
		codec:    deps.Codec,
		payments: deps.Payments,
		notifier: deps.Notifier,
		alerts:   deps.Alerts,
		push:     deps.Push,
		cfg:      cfg,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		tracer:   telemetry.Tracer(),
		log:      log,
	}
}

// ListMine returns the latest bookings of a user
func (s *Service) ListMine(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.bookings.FindByUser(ctx, userID, listLimit)
}

// Get returns a booking visible to the requester: its owner or staff
func (s *Service) Get(ctx context.Context, userID string, role domain.UserRole, bookingID string) (*domain.Booking, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil || (b.UserID != userID && !role.IsStaff()) {
		return nil, fmt.Errorf("%w: booking %s", domain.ErrNotFound, bookingID)
	}
	return b, nil
}

// SecurityScans returns the latest bookings that passed a gate
func (s *Service) SecurityScans(ctx context.Context) ([]domain.Booking, error) {
	return s.bookings.FindScanned(ctx, scanLogLimit)
}

func (s *Service) findBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: booking %s", domain.ErrNotFound, id)
	}
	return b, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "booking."+name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// transitioned records a state change and pushes it to the owner
func (s *Service) transitioned(ctx context.Context, b *domain.Booking) {
	telemetry.BookingTransitionsTotal.WithLabelValues(string(b.Status)).Inc()
	s.push.PublishBookingChanged(ctx, b.UserID, b.ID, b.Status)
	s.log.Info("Booking transitioned",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("status", string(b.Status)),
	)
}

func (s *Service) notifyOwner(ctx context.Context, b *domain.Booking, category domain.NotificationCategory, title, message string) {
	// failures are logged by the notification service
	_ = s.alerts.Notify(ctx, b.UserID, notification.Draft{
		Category:  category,
		Title:     title,
		Message:   message,
		BookingID: b.ID,
	})
}

// emailOwner enqueues a templated email to the booking owner
func (s *Service) emailOwner(ctx context.Context, userID, subject, template string, data map[string]interface{}) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || user == nil || user.Email == "" {
		s.log.Warn("Skipping email, recipient unknown", zap.String("user_id", userID), zap.Error(err))
		return
	}
	data["UserName"] = user.Name
	data["Currency"] = strings.ToUpper(s.cfg.Currency)

	if err := s.notifier.SendEmail(ctx, domain.OutboundEmail{
		To:       user.Email,
		Subject:  subject,
		Template: template,
		Data:     data,
	}); err != nil {
		s.log.Error("Failed to enqueue email",
			zap.String("user_id", userID),
			zap.String("template", template),
			zap.Error(err),
		)
	}
}

func (s *Service) webhook(ctx context.Context, event string, b *domain.Booking) {
	if err := s.notifier.TriggerWebhook(ctx, event, map[string]interface{}{
		"bookingId": b.ID,
		"userId":    b.UserID,
		"slotId":    b.SlotID,
		"status":    string(b.Status),
		"amount":    b.Amount,
	}); err != nil {
		s.log.Error("Failed to enqueue webhook", zap.String("event", event), zap.String("booking_id", b.ID), zap.Error(err))
	}
}

// release frees the booking's slot; a failure leaves the hold to the sweeper
func (s *Service) release(ctx context.Context, b *domain.Booking) {
	if _, err := s.slots.Release(ctx, b.SlotID, b.ID); err != nil {
		s.log.Error("Failed to release slot",
			zap.String("slot_id", b.SlotID),
			zap.String("booking_id", b.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) money(amount float64) string {
	return fmt.Sprintf("%s %.2f", strings.ToUpper(s.cfg.Currency), amount)
}

func formatTime(t time.Time) string {
	return t.Format("02 Jan 2006 15:04")
}
