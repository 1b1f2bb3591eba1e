package domain

import (
	"time"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleSecurity UserRole = "security"
	UserRoleUser     UserRole = "user"
)

// IsStaff returns true for roles that operate the facility
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleSecurity
}

type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	Phone     string    `json:"phone,omitempty"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Vehicle struct {
	ID          string      `json:"id" gorm:"primaryKey"`
	OwnerID     string      `json:"owner_id" gorm:"index"`
	PlateNumber string      `json:"plate_number" gorm:"uniqueIndex"`
	VehicleType VehicleType `json:"vehicle_type"`
	Make        string      `json:"make,omitempty"`
	Model       string      `json:"model,omitempty"`
	Color       string      `json:"color,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
