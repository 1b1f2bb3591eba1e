package billing

import (
	"fmt"

	"github.com/seu-repo/parkflow/internal/domain"
)

// Input holds the parameters of one billing computation
type Input struct {
	BookedMinutes      int
	ParkedMinutes      int
	HourlyRate         float64
	OvertimeMultiplier float64
	PenaltyPerHour     float64
}

// InputFor builds an Input from a slot's rate card
func InputFor(bookedMinutes, parkedMinutes int, rates domain.RateCard) Input {
	return Input{
		BookedMinutes:      bookedMinutes,
		ParkedMinutes:      parkedMinutes,
		HourlyRate:         rates.HourlyRate,
		OvertimeMultiplier: rates.OvertimeMultiplier,
		PenaltyPerHour:     rates.PenaltyPerHour,
	}
}

// Validate rejects negative durations and non-positive rates
func (in Input) Validate() error {
	switch {
	case in.BookedMinutes < 0:
		return fmt.Errorf("%w: booked minutes must not be negative, got %d", domain.ErrInvalidInput, in.BookedMinutes)
	case in.ParkedMinutes < 0:
		return fmt.Errorf("%w: parked minutes must not be negative, got %d", domain.ErrInvalidInput, in.ParkedMinutes)
	case in.HourlyRate <= 0:
		return fmt.Errorf("%w: hourly rate must be positive, got %v", domain.ErrInvalidInput, in.HourlyRate)
	case in.OvertimeMultiplier <= 0:
		return fmt.Errorf("%w: overtime multiplier must be positive, got %v", domain.ErrInvalidInput, in.OvertimeMultiplier)
	case in.PenaltyPerHour < 0:
		return fmt.Errorf("%w: penalty per hour must not be negative, got %v", domain.ErrInvalidInput, in.PenaltyPerHour)
	}
	return nil
}

// ComputeBill converts booked and parked durations into a cost breakdown.
// Partial hours always round up, both for the base and for overtime.
func ComputeBill(in Input) (domain.Bill, error) {
	if err := in.Validate(); err != nil {
		return domain.Bill{}, err
	}

	bill := domain.Bill{
		BookedMinutes: in.BookedMinutes,
		ParkedMinutes: in.ParkedMinutes,
		BaseAmount:    float64(ceilHours(in.BookedMinutes)) * in.HourlyRate,
	}

	overtime := in.ParkedMinutes - in.BookedMinutes
	if overtime <= 0 {
		bill.TotalAmount = bill.BaseAmount
		return bill, nil
	}

	hours := ceilHours(overtime)
	bill.OvertimeMinutes = overtime
	bill.OvertimeHours = hours
	bill.OvertimeAmount = float64(hours) * in.HourlyRate * in.OvertimeMultiplier
	bill.PenaltyAmount = float64(hours) * in.PenaltyPerHour
	bill.TotalAmount = bill.BaseAmount + bill.OvertimeAmount + bill.PenaltyAmount

	return bill, nil
}

// BaseAmount returns the upfront charge for a booked duration
func BaseAmount(bookedMinutes int, hourlyRate float64) (float64, error) {
	bill, err := ComputeBill(Input{
		BookedMinutes:      bookedMinutes,
		ParkedMinutes:      0,
		HourlyRate:         hourlyRate,
		OvertimeMultiplier: 1,
	})
	if err != nil {
		return 0, err
	}
	return bill.BaseAmount, nil
}

func ceilHours(minutes int) int {
	return (minutes + 59) / 60
}
