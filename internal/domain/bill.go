package domain

// Bill is the cost breakdown of a parking session
type Bill struct {
	BookedMinutes   int     `json:"booked_minutes"`
	ParkedMinutes   int     `json:"parked_minutes"`
	BaseAmount      float64 `json:"base_amount"`
	OvertimeMinutes int     `json:"overtime_minutes"`
	OvertimeHours   int     `json:"overtime_hours"`
	OvertimeAmount  float64 `json:"overtime_amount"`
	PenaltyAmount   float64 `json:"penalty_amount"`
	TotalAmount     float64 `json:"total_amount"`
}

// Extra returns the overtime and penalty charges on top of the base amount
func (b Bill) Extra() float64 {
	return b.OvertimeAmount + b.PenaltyAmount
}
