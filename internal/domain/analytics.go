package domain

import "time"

// OccupancySummary counts slots per status
type OccupancySummary struct {
	Total       int64   `json:"total"`
	Available   int64   `json:"available"`
	Reserved    int64   `json:"reserved"`
	Occupied    int64   `json:"occupied"`
	Maintenance int64   `json:"maintenance"`
	Rate        float64 `json:"occupancy_rate"` // percentage of reserved+occupied
}

// HourCount is the number of check-ins observed in one hour of day
type HourCount struct {
	Hour  int   `json:"hour"` // 0-23
	Count int64 `json:"count"`
}

// RevenueSummary splits revenue by source
type RevenueSummary struct {
	Bookings      float64 `json:"bookings"`
	Subscriptions float64 `json:"subscriptions"`
	Total         float64 `json:"total"`
}

// DashboardReport is the staff analytics snapshot
type DashboardReport struct {
	Occupancy   OccupancySummary `json:"occupancy"`
	Revenue     RevenueSummary   `json:"revenue"`
	PeakHours   []HourCount      `json:"peak_hours"`
	GeneratedAt time.Time        `json:"generated_at"`
}
