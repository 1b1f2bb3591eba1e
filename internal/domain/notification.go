package domain

import (
	"time"
)

// NotificationCategory groups in-app notifications
type NotificationCategory string

const (
	NotificationCategoryBooking NotificationCategory = "booking"
	NotificationCategoryBilling NotificationCategory = "billing"
	NotificationCategorySystem  NotificationCategory = "system"
	NotificationCategoryPayment NotificationCategory = "payment"
)

// Notification is an in-app message stored for a user
type Notification struct {
	ID        string               `json:"id" gorm:"primaryKey"`
	UserID    string               `json:"user_id" gorm:"index"`
	BookingID *string              `json:"booking_id,omitempty"`
	Category  NotificationCategory `json:"category"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	IsRead    bool                 `json:"is_read"`
	CreatedAt time.Time            `json:"created_at"`
}

// OutboundEmail is a best-effort email task
type OutboundEmail struct {
	To       string                 `json:"to"`
	Subject  string                 `json:"subject"`
	Template string                 `json:"template,omitempty"`
	Body     string                 `json:"body,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// OutboundWebhook is a best-effort integration signal
type OutboundWebhook struct {
	Event      string                 `json:"event"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Realtime event names pushed to connected clients
const (
	EventSlotChanged         = "parking:slot"
	EventBookingChanged      = "parking:booking"
	EventNotificationCreated = "parking:notification"
)

// Integration webhook event names
const (
	WebhookBookingCreated    = "booking.created"
	WebhookBookingCheckedIn  = "booking.checked_in"
	WebhookBookingCheckedOut = "booking.checked_out"
	WebhookBookingCancelled  = "booking.cancelled"
	WebhookBookingExpired    = "booking.expired"

	WebhookSubscriptionActivated = "subscription.activated"
	WebhookSubscriptionCancelled = "subscription.cancelled"
)
