package domain

import (
	"time"
)

// LedgerEntry is the immutable financial record of a completed parking session
type LedgerEntry struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	BookingID        string     `json:"booking_id" gorm:"uniqueIndex"`
	UserID           string     `json:"user_id" gorm:"index"`
	SlotID           string     `json:"slot_id" gorm:"index"`
	BaseAmount       float64    `json:"base_amount"`
	OvertimeAmount   float64    `json:"overtime_amount"`
	PenaltyAmount    float64    `json:"penalty_amount"`
	TotalAmount      float64    `json:"total_amount"`
	ChargedAmount    float64    `json:"charged_amount"`
	Waived           bool       `json:"waived"`
	DurationMinutes  int        `json:"duration_minutes"`
	BookedMinutes    int        `json:"booked_minutes"`
	PaymentReference string     `json:"payment_reference,omitempty" gorm:"index"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewLedgerEntry builds the ledger record of a checkout from its bill
func NewLedgerEntry(id string, b *Booking, bill Bill, charged float64, waived bool, paymentRef string, at time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:               id,
		BookingID:        b.ID,
		UserID:           b.UserID,
		SlotID:           b.SlotID,
		BaseAmount:       bill.BaseAmount,
		OvertimeAmount:   bill.OvertimeAmount,
		PenaltyAmount:    bill.PenaltyAmount,
		TotalAmount:      bill.TotalAmount,
		ChargedAmount:    charged,
		Waived:           waived,
		DurationMinutes:  bill.ParkedMinutes,
		BookedMinutes:    bill.BookedMinutes,
		PaymentReference: paymentRef,
		CreatedAt:        at,
	}
}
