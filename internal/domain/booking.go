package domain

import (
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusReserved   BookingStatus = "reserved"
	BookingStatusCheckedIn  BookingStatus = "checked_in"
	BookingStatusCheckedOut BookingStatus = "checked_out" // terminal
	BookingStatusCancelled  BookingStatus = "cancelled"   // terminal
	BookingStatusExpired    BookingStatus = "expired"     // terminal, sweeper only
)

// BookingKind distinguishes pay-per-session bookings from subscriber sessions
type BookingKind string

const (
	BookingKindStandard     BookingKind = "standard"
	BookingKindSubscription BookingKind = "subscription"
)

// PaymentStatus represents the payment state of a booking or subscription
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// bookingTransitions lists the allowed next states for each status.
// No transition re-enters reserved.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusReserved:  {BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusCheckedIn: {BookingStatusCheckedOut},
}

// CanTransition reports whether a booking may move from one status to another
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transition is possible from s
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Booking represents one reservation-to-completion cycle for a vehicle at a slot
type Booking struct {
	ID              string        `json:"id" gorm:"primaryKey"`
	UserID          string        `json:"user_id" gorm:"index"`
	VehicleID       string        `json:"vehicle_id" gorm:"index"`
	SlotID          string        `json:"slot_id" gorm:"index"`
	Kind            BookingKind   `json:"kind" gorm:"default:standard"`
	StartsAt        time.Time     `json:"starts_at"`
	EndsAt          time.Time     `json:"ends_at" gorm:"index"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status" gorm:"index"`
	QRToken         string        `json:"qr_token"`
	QRImage         string        `json:"qr_image,omitempty"`
	CheckInAt       *time.Time    `json:"check_in_at,omitempty"`
	CheckOutAt      *time.Time    `json:"check_out_at,omitempty"`
	Amount          float64       `json:"amount"`
	OvertimeMinutes int           `json:"overtime_minutes"`
	PenaltyAmount   float64       `json:"penalty_amount"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentRef      string        `json:"payment_ref,omitempty" gorm:"index"`
	WarningSent     bool          `json:"warning_sent"`
	AlertSent       bool          `json:"alert_sent"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsPaid returns true if the booking's payment was captured
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusPaid
}

// ParkedMinutes returns the whole minutes between check-in and at, rounded up
func (b *Booking) ParkedMinutes(at time.Time) int {
	if b.CheckInAt == nil || !at.After(*b.CheckInAt) {
		return 0
	}
	d := at.Sub(*b.CheckInAt)
	minutes := int(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// BookingTransition describes a conditional status update: it applies only
// while the booking is still in From.
type BookingTransition struct {
	From BookingStatus
	To   BookingStatus
	At   time.Time

	// Optional fields applied together with the status change
	CheckInAt       *time.Time
	CheckOutAt      *time.Time
	AddAmount       float64
	SetAmount       *float64
	OvertimeMinutes int
	PenaltyAmount   float64
}

// BookingFlag names a one-shot notification flag on a booking
type BookingFlag string

const (
	BookingFlagWarning BookingFlag = "warning_sent"
	BookingFlagAlert   BookingFlag = "alert_sent"
)

// CreateBookingRequest is the input of the booking create operation
type CreateBookingRequest struct {
	UserID          string      `json:"-"`
	VehicleID       string      `json:"vehicle_id"`
	SlotID          string      `json:"slot_id,omitempty"`
	VehicleType     VehicleType `json:"vehicle_type,omitempty"`
	StartsAt        time.Time   `json:"starts_at"`
	DurationMinutes int         `json:"duration_minutes"`
}

// PendingBooking is returned by create while payment is outstanding
type PendingBooking struct {
	ID           string  `json:"id"`
	SlotID       string  `json:"slot_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ClientSecret string  `json:"client_secret"`
	PaymentRef   string  `json:"payment_ref"`
	Status       string  `json:"status"`
}

// ScanAction is the gate action requested by a scan
type ScanAction string

const (
	ScanActionEntry ScanAction = "entry"
	ScanActionExit  ScanAction = "exit"
)

// ScanResult is returned to the gate operator
type ScanResult struct {
	BookingID      string         `json:"booking_id"`
	Status         BookingStatus  `json:"status"`
	Amount         float64        `json:"amount"`
	Bill           *Bill          `json:"bill,omitempty"`
	AdditionalDue  float64        `json:"additional_due,omitempty"`
	Waived         bool           `json:"waived,omitempty"`
	PaymentDetails *PaymentIntent `json:"payment_details,omitempty"`
	Message        string         `json:"message,omitempty"`
}
