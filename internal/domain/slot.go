package domain

import (
	"time"
)

// SlotStatus represents the occupancy state of a parking slot
type SlotStatus string

const (
	SlotStatusAvailable   SlotStatus = "available"
	SlotStatusReserved    SlotStatus = "reserved"
	SlotStatusOccupied    SlotStatus = "occupied"
	SlotStatusMaintenance SlotStatus = "maintenance"
)

// VehicleType is the vehicle class a slot accepts
type VehicleType string

const (
	VehicleTypeCar  VehicleType = "car"
	VehicleTypeBike VehicleType = "bike"
	VehicleTypeSUV  VehicleType = "suv"
	VehicleTypeEV   VehicleType = "ev"
)

// Valid reports whether t is a known vehicle class
func (t VehicleType) Valid() bool {
	switch t {
	case VehicleTypeCar, VehicleTypeBike, VehicleTypeSUV, VehicleTypeEV:
		return true
	}
	return false
}

// Slot represents a physical parking space
type Slot struct {
	ID                 string      `json:"id" gorm:"primaryKey"`
	Code               string      `json:"code" gorm:"uniqueIndex"`
	Zone               string      `json:"zone"`
	Level              string      `json:"level"`
	LotName            string      `json:"lot_name"`
	VehicleType        VehicleType `json:"vehicle_type" gorm:"index"`
	Status             SlotStatus  `json:"status" gorm:"index"`
	ActiveBookingID    *string     `json:"active_booking_id,omitempty" gorm:"index"`
	HourlyRate         float64     `json:"hourly_rate"`
	OvertimeMultiplier float64     `json:"overtime_multiplier" gorm:"default:1.5"`
	PenaltyPerHour     float64     `json:"penalty_per_hour"`
	HeldAt             *time.Time  `json:"held_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// IsHeldBy returns true if the slot's active booking reference equals bookingID
func (s *Slot) IsHeldBy(bookingID string) bool {
	return s.ActiveBookingID != nil && *s.ActiveBookingID == bookingID
}

// IsClaimable returns true if the slot can be claimed by a new booking
func (s *Slot) IsClaimable() bool {
	return s.Status == SlotStatusAvailable && s.ActiveBookingID == nil
}

// SlotCriteria selects the slot a claim targets: a specific slot id, or any
// slot of the given vehicle class.
type SlotCriteria struct {
	SlotID      string
	VehicleType VehicleType
}

// Matches reports whether s satisfies the criteria, ignoring its status
func (c SlotCriteria) Matches(s *Slot) bool {
	if c.SlotID != "" && s.ID != c.SlotID {
		return false
	}
	return c.VehicleType == "" || s.VehicleType == c.VehicleType
}

// RateCard returns the billing parameters of the slot
func (s *Slot) RateCard() RateCard {
	return RateCard{
		HourlyRate:         s.HourlyRate,
		OvertimeMultiplier: s.OvertimeMultiplier,
		PenaltyPerHour:     s.PenaltyPerHour,
	}
}

// RateCard holds the pricing parameters applied to a parking session
type RateCard struct {
	HourlyRate         float64 `json:"hourly_rate"`
	OvertimeMultiplier float64 `json:"overtime_multiplier"`
	PenaltyPerHour     float64 `json:"penalty_per_hour"`
}
