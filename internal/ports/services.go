package ports

import (
	"context"
	"time"

	"github.com/seu-repo/parkflow/internal/domain"
)

// PaymentGateway is the payment-capture provider. Amounts are minor units.
type PaymentGateway interface {
	CreateAuthorization(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error)
	Retrieve(ctx context.Context, id string) (*domain.PaymentIntent, error)

	// SearchByMetadata returns the most recent authorization whose metadata
	// key equals value, or (nil, nil).
	SearchByMetadata(ctx context.Context, key, value string) (*domain.PaymentIntent, error)

	Refund(ctx context.Context, intentID string, amountMinor int64, reason string) (*domain.Refund, error)
}

// Publisher pushes realtime state changes to connected clients. Delivery is
// at-most-once and never awaited.
type Publisher interface {
	PublishSlotChanged(ctx context.Context, slotID string, status domain.SlotStatus)
	PublishBookingChanged(ctx context.Context, userID, bookingID string, status domain.BookingStatus)
	PublishNotificationCreated(ctx context.Context, userID string)
}

// Notifier hands best-effort outbound tasks to a non-blocking transport.
// A returned error means the task was not enqueued; it is never retried
// synchronously.
type Notifier interface {
	SendEmail(ctx context.Context, email domain.OutboundEmail) error
	TriggerWebhook(ctx context.Context, event string, payload map[string]interface{}) error
}

// Cache is a string key/value store with expiry. Get returns ("", nil) on miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}

// Clock returns the current time
type Clock func() time.Time
