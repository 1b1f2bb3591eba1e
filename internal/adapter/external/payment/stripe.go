package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
)

// StripeGateway implements ports.PaymentGateway on Stripe payment intents.
// Calls go through a circuit breaker; client errors (4xx) do not trip it.
type StripeGateway struct {
	webhookSecret string
	cb            *gobreaker.CircuitBreaker
	log           *zap.Logger
}

func NewStripeGateway(secretKey, webhookSecret string, log *zap.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "stripe",
			MaxRequests: 2,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				var se *stripe.Error
				if errors.As(err, &se) {
					return se.HTTPStatusCode < 500
				}
				return err == nil
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		log: log,
	}
}

func (s *StripeGateway) CreateAuthorization(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error) {
	if amountMinor <= 0 {
		return nil, errors.New("invalid amount")
	}

	s.log.Info("Creating payment intent",
		zap.Int64("amount_minor", amountMinor),
		zap.String("currency", currency),
		zap.String("type", metadata[domain.MetaType]),
	)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := s.call("create", func() (*stripe.PaymentIntent, error) {
		return paymentintent.New(params)
	})
	if err != nil {
		s.log.Error("Failed to create payment intent", zap.Error(err))
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	s.log.Info("Payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("status", string(pi.Status)),
	)
	return toDomainIntent(pi), nil
}

func (s *StripeGateway) Retrieve(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	if id == "" {
		return nil, errors.New("payment intent ID is required")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.call("retrieve", func() (*stripe.PaymentIntent, error) {
		return paymentintent.Get(id, params)
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: get payment intent: %w", err)
	}
	return toDomainIntent(pi), nil
}

func (s *StripeGateway) SearchByMetadata(ctx context.Context, key, value string) (*domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", key, value)
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	pi, err := s.call("search", func() (*stripe.PaymentIntent, error) {
		iter := paymentintent.Search(params)
		if iter.Next() {
			return iter.PaymentIntent(), nil
		}
		return nil, iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: search payment intents: %w", err)
	}
	if pi == nil {
		return nil, nil
	}
	return toDomainIntent(pi), nil
}

func (s *StripeGateway) Refund(ctx context.Context, intentID string, amountMinor int64, reason string) (*domain.Refund, error) {
	if intentID == "" {
		return nil, errors.New("payment intent ID is required")
	}

	s.log.Info("Refunding payment",
		zap.String("payment_intent_id", intentID),
		zap.Int64("amount_minor", amountMinor),
	)

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	if amountMinor > 0 {
		params.Amount = stripe.Int64(amountMinor)
	}
	if reason != "" {
		params.Reason = stripe.String(reason)
	}
	params.Context = ctx

	out, err := s.cb.Execute(func() (interface{}, error) {
		return refund.New(params)
	})
	if err != nil {
		telemetry.PaymentCallsTotal.WithLabelValues("refund", "error").Inc()
		s.log.Error("Failed to refund payment", zap.String("payment_intent_id", intentID), zap.Error(err))
		return nil, fmt.Errorf("stripe: refund payment: %w", err)
	}
	telemetry.PaymentCallsTotal.WithLabelValues("refund", "ok").Inc()

	r := out.(*stripe.Refund)
	s.log.Info("Payment refunded",
		zap.String("refund_id", r.ID),
		zap.String("status", string(r.Status)),
	)
	return &domain.Refund{
		ID:          r.ID,
		PaymentRef:  intentID,
		Amount:      fromMinor(r.Amount),
		AmountMinor: r.Amount,
		Status:      string(r.Status),
		Reason:      string(r.Reason),
		CreatedAt:   time.Unix(r.Created, 0),
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event
func (s *StripeGateway) ParseWebhook(payload []byte, signature string) (*domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := &domain.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case domain.PaymentEventSucceeded, domain.PaymentEventFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent payload: %v", domain.ErrInvalidInput, err)
		}
		out.Intent = toDomainIntent(&pi)
	}
	return out, nil
}

func (s *StripeGateway) call(op string, fn func() (*stripe.PaymentIntent, error)) (*stripe.PaymentIntent, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		telemetry.PaymentCallsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	telemetry.PaymentCallsTotal.WithLabelValues(op, "ok").Inc()
	pi, _ := out.(*stripe.PaymentIntent)
	return pi, nil
}

func toDomainIntent(pi *stripe.PaymentIntent) *domain.PaymentIntent {
	meta := make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		meta[k] = v
	}
	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       fromMinor(pi.Amount),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       domain.PaymentIntentStatus(pi.Status),
		Metadata:     meta,
	}
}

func fromMinor(minor int64) float64 {
	f, _ := decimal.New(minor, -2).Float64()
	return f
}
