package domain

import "errors"

var (
	// ErrNotFound is returned when a booking, slot, subscription or user is absent
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable is returned when no eligible slot could be claimed
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrAmountTooLow is returned when a charge is below the payable minimum
	ErrAmountTooLow = errors.New("amount below payable minimum")

	// ErrInvalidTransition is returned when a booking is not in the state an operation requires
	ErrInvalidTransition = errors.New("invalid booking transition")

	// ErrPaymentIncomplete is returned when a booking exists but is not paid
	ErrPaymentIncomplete = errors.New("payment incomplete")

	// ErrInvalidToken is returned for malformed QR tokens
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidSignature is returned when a QR token's MAC does not match
	ErrInvalidSignature = errors.New("invalid token signature")

	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")

	// ErrDuplicate is returned by stores when a unique key already exists
	ErrDuplicate = errors.New("duplicate record")
)
