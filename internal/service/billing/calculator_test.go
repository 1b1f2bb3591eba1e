package billing

import (
	"errors"
	"testing"

	"github.com/seu-repo/parkflow/internal/domain"
)

func TestComputeBill_BaseRoundsUpPartialHours(t *testing.T) {
	bill, err := ComputeBill(Input{BookedMinutes: 90, ParkedMinutes: 45, HourlyRate: 20, OvertimeMultiplier: 1.5, PenaltyPerHour: 10})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bill.BaseAmount != 40 {
		t.Errorf("expected base 40, got %v", bill.BaseAmount)
	}
	if bill.OvertimeMinutes != 0 || bill.OvertimeAmount != 0 || bill.PenaltyAmount != 0 {
		t.Errorf("expected no overtime, got %+v", bill)
	}
	if bill.TotalAmount != 40 {
		t.Errorf("expected total 40, got %v", bill.TotalAmount)
	}
}

func TestComputeBill_Overtime(t *testing.T) {
	tests := []struct {
		name         string
		in           Input
		wantBase     float64
		wantMinutes  int
		wantHours    int
		wantOvertime float64
		wantPenalty  float64
		wantTotal    float64
	}{
		{
			name:         "one booked hour, seventy minutes over",
			in:           Input{BookedMinutes: 60, ParkedMinutes: 130, HourlyRate: 20, OvertimeMultiplier: 1.5, PenaltyPerHour: 10},
			wantBase:     20,
			wantMinutes:  70,
			wantHours:    2,
			wantOvertime: 60,
			wantPenalty:  20,
			wantTotal:    100,
		},
		{
			name:         "ninety booked minutes, seventy over",
			in:           Input{BookedMinutes: 90, ParkedMinutes: 160, HourlyRate: 20, OvertimeMultiplier: 1.5, PenaltyPerHour: 10},
			wantBase:     40,
			wantMinutes:  70,
			wantHours:    2,
			wantOvertime: 60,
			wantPenalty:  20,
			wantTotal:    120,
		},
		{
			name:         "one minute over is a full hour",
			in:           Input{BookedMinutes: 120, ParkedMinutes: 121, HourlyRate: 30, OvertimeMultiplier: 2, PenaltyPerHour: 0},
			wantBase:     60,
			wantMinutes:  1,
			wantHours:    1,
			wantOvertime: 60,
			wantPenalty:  0,
			wantTotal:    120,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill, err := ComputeBill(tt.in)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if bill.BaseAmount != tt.wantBase {
				t.Errorf("base: expected %v, got %v", tt.wantBase, bill.BaseAmount)
			}
			if bill.OvertimeMinutes != tt.wantMinutes {
				t.Errorf("overtime minutes: expected %d, got %d", tt.wantMinutes, bill.OvertimeMinutes)
			}
			if bill.OvertimeHours != tt.wantHours {
				t.Errorf("overtime hours: expected %d, got %d", tt.wantHours, bill.OvertimeHours)
			}
			if bill.OvertimeAmount != tt.wantOvertime {
				t.Errorf("overtime amount: expected %v, got %v", tt.wantOvertime, bill.OvertimeAmount)
			}
			if bill.PenaltyAmount != tt.wantPenalty {
				t.Errorf("penalty: expected %v, got %v", tt.wantPenalty, bill.PenaltyAmount)
			}
			if bill.TotalAmount != tt.wantTotal {
				t.Errorf("total: expected %v, got %v", tt.wantTotal, bill.TotalAmount)
			}
		})
	}
}

func TestComputeBill_TotalIsSumOfParts(t *testing.T) {
	for booked := 0; booked <= 300; booked += 17 {
		for parked := 0; parked <= 400; parked += 23 {
			in := Input{BookedMinutes: booked, ParkedMinutes: parked, HourlyRate: 25, OvertimeMultiplier: 1.25, PenaltyPerHour: 8}
			first, err := ComputeBill(in)
			if err != nil {
				t.Fatalf("booked=%d parked=%d: unexpected error %v", booked, parked, err)
			}
			second, _ := ComputeBill(in)
			if first != second {
				t.Fatalf("booked=%d parked=%d: not deterministic: %+v vs %+v", booked, parked, first, second)
			}
			if first.TotalAmount != first.BaseAmount+first.OvertimeAmount+first.PenaltyAmount {
				t.Fatalf("booked=%d parked=%d: total %v is not base+overtime+penalty", booked, parked, first.TotalAmount)
			}
			if parked <= booked && (first.OvertimeMinutes != 0 || first.Extra() != 0) {
				t.Fatalf("booked=%d parked=%d: expected no overtime, got %+v", booked, parked, first)
			}
		}
	}
}

func TestComputeBill_RejectsInvalidInput(t *testing.T) {
	cases := map[string]Input{
		"negative booked":  {BookedMinutes: -1, HourlyRate: 10, OvertimeMultiplier: 1},
		"negative parked":  {ParkedMinutes: -5, HourlyRate: 10, OvertimeMultiplier: 1},
		"zero rate":        {BookedMinutes: 60, HourlyRate: 0, OvertimeMultiplier: 1},
		"zero multiplier":  {BookedMinutes: 60, HourlyRate: 10, OvertimeMultiplier: 0},
		"negative penalty": {BookedMinutes: 60, HourlyRate: 10, OvertimeMultiplier: 1, PenaltyPerHour: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeBill(in)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestMoneyConversions(t *testing.T) {
	if got := ToMinorUnits(40); got != 4000 {
		t.Errorf("expected 4000, got %d", got)
	}
	if got := ToMinorUnits(12.345); got != 1235 {
		t.Errorf("expected 1235, got %d", got)
	}
	if got := FromMinorUnits(4550); got != 45.5 {
		t.Errorf("expected 45.5, got %v", got)
	}
	if got := RefundMinorUnits(100, 0.5); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
	if got := RefundMinorUnits(45.55, 0.5); got != 2277 {
		t.Errorf("expected 2277, got %d", got)
	}
	if !BelowMinimum(49.99, 50) || BelowMinimum(50, 50) {
		t.Error("unexpected minimum comparison")
	}
}
