package domain

import (
	"time"
)

// SubscriptionStatus represents the state of a monthly pass
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a recurring entitlement to park, optionally at a dedicated slot
type Subscription struct {
	ID            string             `json:"id" gorm:"primaryKey"`
	UserID        string             `json:"user_id" gorm:"index"`
	VehicleID     string             `json:"vehicle_id" gorm:"index"`
	SlotID        *string            `json:"slot_id,omitempty"`
	PlanName      string             `json:"plan_name"`
	MonthlyAmount float64            `json:"monthly_amount"`
	StartsAt      time.Time          `json:"starts_at"`
	EndsAt        time.Time          `json:"ends_at" gorm:"index"`
	Status        SubscriptionStatus `json:"status" gorm:"index"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	PaymentRef    string             `json:"payment_ref,omitempty" gorm:"uniqueIndex"`
	PassToken     string             `json:"pass_token,omitempty"`
	PassImage     string             `json:"pass_image,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// IsActiveAt returns true if the subscription entitles its holder to park at t
func (s *Subscription) IsActiveAt(t time.Time) bool {
	return s.Status == SubscriptionStatusActive && t.Before(s.EndsAt)
}

// HasDedicatedSlot returns true if the subscription is bound to one slot
func (s *Subscription) HasDedicatedSlot() bool {
	return s.SlotID != nil && *s.SlotID != ""
}

// PurchaseSubscriptionRequest is the input of a subscription purchase
type PurchaseSubscriptionRequest struct {
	UserID    string `json:"-"`
	VehicleID string `json:"vehicle_id"`
	SlotID    string `json:"slot_id,omitempty"`
}

// PendingSubscription is returned by purchase while payment is outstanding
type PendingSubscription struct {
	PaymentRef   string  `json:"payment_ref"`
	ClientSecret string  `json:"client_secret"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
}
