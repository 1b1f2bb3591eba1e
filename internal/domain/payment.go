package domain

import (
	"time"
)

// PaymentIntentStatus mirrors the provider's authorization states we act on
type PaymentIntentStatus string

const (
	PaymentIntentSucceeded       PaymentIntentStatus = "succeeded"
	PaymentIntentProcessing      PaymentIntentStatus = "processing"
	PaymentIntentRequiresPayment PaymentIntentStatus = "requires_payment_method"
	PaymentIntentCanceled        PaymentIntentStatus = "canceled"
)

// PaymentPurpose is carried in the authorization metadata under MetaType
type PaymentPurpose string

const (
	PaymentPurposeBooking      PaymentPurpose = "booking"
	PaymentPurposeOvertime     PaymentPurpose = "overtime"
	PaymentPurposeSubscription PaymentPurpose = "subscription"
)

// Authorization metadata keys
const (
	MetaType            = "type"
	MetaBookingID       = "bookingId"
	MetaSlotID          = "slotId"
	MetaUserID          = "userId"
	MetaVehicleID       = "vehicleId"
	MetaStartsAt        = "startsAt"
	MetaDurationMinutes = "durationMinutes"
	MetaPlanName        = "planName"
)

// JSONMap is a helper type for JSONB columns
type JSONMap map[string]interface{}

// PaymentIntent represents a payment authorization at the provider
type PaymentIntent struct {
	ID           string              `json:"id"`
	ClientSecret string              `json:"client_secret,omitempty"`
	Amount       float64             `json:"amount"`
	AmountMinor  int64               `json:"-"`
	Currency     string              `json:"currency"`
	Status       PaymentIntentStatus `json:"status"`
	Metadata     map[string]string   `json:"-"`
}

// Succeeded returns true if the provider captured the payment
func (p *PaymentIntent) Succeeded() bool {
	return p.Status == PaymentIntentSucceeded
}

// Purpose returns the purpose recorded in the metadata, defaulting to booking
func (p *PaymentIntent) Purpose() PaymentPurpose {
	if v, ok := p.Metadata[MetaType]; ok && v != "" {
		return PaymentPurpose(v)
	}
	return PaymentPurposeBooking
}

// Refund represents a payment refund
type Refund struct {
	ID          string     `json:"id"`
	PaymentRef  string     `json:"payment_ref"`
	Amount      float64    `json:"amount"`
	AmountMinor int64      `json:"-"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PaymentEvent is a verified provider webhook event
type PaymentEvent struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Intent *PaymentIntent `json:"intent,omitempty"`
}

// Provider webhook event types we act on
const (
	PaymentEventSucceeded = "payment_intent.succeeded"
	PaymentEventFailed    = "payment_intent.payment_failed"
)
