// Package payment routes verified provider webhook events to the flows that
// own each kind of payment.
package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
	"github.com/seu-repo/parkflow/internal/ports"
)

// WebhookParser verifies and decodes a provider webhook
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*domain.PaymentEvent, error)
}

// BookingFulfiller materializes the booking of a captured payment
type BookingFulfiller interface {
	FulfillPayment(ctx context.Context, pi *domain.PaymentIntent) (*domain.Booking, error)
}

// SubscriptionFulfiller activates the pass of a captured payment
type SubscriptionFulfiller interface {
	Fulfill(ctx context.Context, pi *domain.PaymentIntent) (*domain.Subscription, error)
}

// Service implements the webhook entry point of the payment provider
type Service struct {
	parser        WebhookParser
	bookings      BookingFulfiller
	subscriptions SubscriptionFulfiller
	ledger        ports.LedgerRepository
	now           func() time.Time
	log           *zap.Logger
}

func NewService(parser WebhookParser, bookings BookingFulfiller, subscriptions SubscriptionFulfiller, ledger ports.LedgerRepository, log *zap.Logger) *Service {
	return &Service{
		parser:        parser,
		bookings:      bookings,
		subscriptions: subscriptions,
		ledger:        ledger,
		now:           time.Now,
		log:           log,
	}
}

// HandleWebhook verifies the event and dispatches it. Only a bad signature or
// payload is returned as an error; fulfilment failures are logged and the
// event is still acknowledged so the provider does not retry forever.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.parser.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn("Invalid webhook", zap.Error(err))
		return err
	}

	s.log.Info("Webhook received",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
	)

	switch event.Type {
	case domain.PaymentEventSucceeded:
		if event.Intent == nil {
			return fmt.Errorf("%w: event %s has no payment intent", domain.ErrInvalidInput, event.ID)
		}
		s.route(ctx, event.Intent)
	case domain.PaymentEventFailed:
		if event.Intent != nil {
			s.log.Warn("Payment failed",
				zap.String("payment_ref", event.Intent.ID),
				zap.String("purpose", string(event.Intent.Purpose())),
				zap.String("booking_id", event.Intent.Metadata[domain.MetaBookingID]),
			)
		}
	default:
		s.log.Debug("Ignoring webhook event", zap.String("type", event.Type))
	}
	return nil
}

func (s *Service) route(ctx context.Context, pi *domain.PaymentIntent) {
	purpose := pi.Purpose()
	var err error

	switch purpose {
	case domain.PaymentPurposeSubscription:
		_, err = s.subscriptions.Fulfill(ctx, pi)
	case domain.PaymentPurposeOvertime:
		err = s.settleOvertime(ctx, pi)
	default:
		_, err = s.bookings.FulfillPayment(ctx, pi)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.log.Error("Failed to fulfil payment",
			zap.String("payment_ref", pi.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
	}
	telemetry.PaymentCallsTotal.WithLabelValues("webhook_"+string(purpose), outcome).Inc()
}

func (s *Service) settleOvertime(ctx context.Context, pi *domain.PaymentIntent) error {
	entry, err := s.ledger.MarkPaid(ctx, pi.ID, s.now())
	if err != nil {
		return fmt.Errorf("failed to mark ledger paid: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("%w: no ledger entry for payment %s", domain.ErrNotFound, pi.ID)
	}
	s.log.Info("Overtime settled",
		zap.String("booking_id", entry.BookingID),
		zap.String("payment_ref", pi.ID),
		zap.Float64("amount", entry.ChargedAmount),
	)
	return nil
}
