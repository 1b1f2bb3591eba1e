package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/seu-repo/parkflow/internal/domain"
)

// MockPaymentGateway is a mock implementation of PaymentGateway interface.
// Without overrides it behaves like an in-memory provider: created intents
// can be retrieved, searched and refunded.
type MockPaymentGateway struct {
	CreateAuthorizationFunc func(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error)
	RetrieveFunc            func(ctx context.Context, id string) (*domain.PaymentIntent, error)
	SearchByMetadataFunc    func(ctx context.Context, key, value string) (*domain.PaymentIntent, error)
	RefundFunc              func(ctx context.Context, intentID string, amountMinor int64, reason string) (*domain.Refund, error)

	mu      sync.Mutex
	seq     int
	Intents []*domain.PaymentIntent
	Refunds []domain.Refund
}

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) CreateAuthorization(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error) {
	if m.CreateAuthorizationFunc != nil {
		return m.CreateAuthorizationFunc(ctx, amountMinor, currency, metadata)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	pi := &domain.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", m.seq),
		ClientSecret: fmt.Sprintf("pi_%d_secret", m.seq),
		Amount:       float64(amountMinor) / 100,
		AmountMinor:  amountMinor,
		Currency:     currency,
		Status:       domain.PaymentIntentRequiresPayment,
		Metadata:     meta,
	}
	m.Intents = append(m.Intents, pi)
	copied := *pi
	return &copied, nil
}

func (m *MockPaymentGateway) Retrieve(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pi := range m.Intents {
		if pi.ID == id {
			copied := *pi
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no such payment intent: %s", id)
}

func (m *MockPaymentGateway) SearchByMetadata(ctx context.Context, key, value string) (*domain.PaymentIntent, error) {
	if m.SearchByMetadataFunc != nil {
		return m.SearchByMetadataFunc(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.Intents) - 1; i >= 0; i-- {
		if m.Intents[i].Metadata[key] == value {
			copied := *m.Intents[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentGateway) Refund(ctx context.Context, intentID string, amountMinor int64, reason string) (*domain.Refund, error) {
	m.mu.Lock()
	refund := domain.Refund{
		ID:          fmt.Sprintf("re_%d", len(m.Refunds)+1),
		PaymentRef:  intentID,
		Amount:      float64(amountMinor) / 100,
		AmountMinor: amountMinor,
		Reason:      reason,
		Status:      "succeeded",
	}
	m.Refunds = append(m.Refunds, refund)
	m.mu.Unlock()

	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, intentID, amountMinor, reason)
	}
	return &refund, nil
}

// Succeed marks an intent as captured, as the provider would after the
// customer completes payment.
func (m *MockPaymentGateway) Succeed(id string) *domain.PaymentIntent {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pi := range m.Intents {
		if pi.ID == id {
			pi.Status = domain.PaymentIntentSucceeded
			copied := *pi
			return &copied
		}
	}
	return nil
}

// RefundCalls returns the refund requests seen so far, including failed ones
func (m *MockPaymentGateway) RefundCalls() []domain.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Refund(nil), m.Refunds...)
}

// PushEvent is one call recorded by MockPublisher
type PushEvent struct {
	Event     string
	UserID    string
	SlotID    string
	BookingID string
	Status    string
}

// MockPublisher records realtime events
type MockPublisher struct {
	mu     sync.Mutex
	Events []PushEvent
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishSlotChanged(ctx context.Context, slotID string, status domain.SlotStatus) {
	m.record(PushEvent{Event: domain.EventSlotChanged, SlotID: slotID, Status: string(status)})
}

func (m *MockPublisher) PublishBookingChanged(ctx context.Context, userID, bookingID string, status domain.BookingStatus) {
	m.record(PushEvent{Event: domain.EventBookingChanged, UserID: userID, BookingID: bookingID, Status: string(status)})
}

func (m *MockPublisher) PublishNotificationCreated(ctx context.Context, userID string) {
	m.record(PushEvent{Event: domain.EventNotificationCreated, UserID: userID})
}

func (m *MockPublisher) record(e PushEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
}

// EventsNamed returns recorded events of one kind
func (m *MockPublisher) EventsNamed(name string) []PushEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PushEvent
	for _, e := range m.Events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// MockNotifier is a mock implementation of Notifier interface
type MockNotifier struct {
	SendEmailFunc      func(ctx context.Context, email domain.OutboundEmail) error
	TriggerWebhookFunc func(ctx context.Context, event string, payload map[string]interface{}) error

	mu       sync.Mutex
	Emails   []domain.OutboundEmail
	Webhooks []domain.OutboundWebhook
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) SendEmail(ctx context.Context, email domain.OutboundEmail) error {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, email)
	return nil
}

func (m *MockNotifier) TriggerWebhook(ctx context.Context, event string, payload map[string]interface{}) error {
	if m.TriggerWebhookFunc != nil {
		return m.TriggerWebhookFunc(ctx, event, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Webhooks = append(m.Webhooks, domain.OutboundWebhook{Event: event, Payload: payload})
	return nil
}

// WebhookEvents returns the names of triggered webhooks in order
func (m *MockNotifier) WebhookEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.Webhooks))
	for _, w := range m.Webhooks {
		out = append(out, w.Event)
	}
	return out
}
