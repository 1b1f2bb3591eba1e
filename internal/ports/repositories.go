package ports

import (
	"context"
	"time"

	"github.com/seu-repo/parkflow/internal/domain"
)

// Repositories return (nil, nil) when a record does not exist. Conditional
// writes return (nil, nil) when their precondition no longer holds.

// SlotRepository persists slots. The claim, occupy and release methods are
// single conditional writes; they are the only cross-request exclusion the
// allocator relies on.
type SlotRepository interface {
	Save(ctx context.Context, slot *domain.Slot) error
	FindByID(ctx context.Context, id string) (*domain.Slot, error)
	FindAll(ctx context.Context, filter SlotFilter) ([]domain.Slot, error)

	// ClaimMatching atomically moves one available, unreferenced slot that
	// satisfies criteria to status, referencing bookingID.
	ClaimMatching(ctx context.Context, criteria domain.SlotCriteria, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, error)

	// ForceClaim points a non-maintenance slot at bookingID regardless of its
	// current occupant and returns the booking id it displaced, if any.
	ForceClaim(ctx context.Context, slotID, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, *string, error)

	// Occupy flips a reserved slot held by bookingID to occupied.
	Occupy(ctx context.Context, slotID, bookingID string) (*domain.Slot, error)

	// Release clears the slot only while it still references expectedBookingID.
	Release(ctx context.Context, slotID, expectedBookingID string) (*domain.Slot, error)

	// FindOrphanedHolds lists held slots, claimed before heldBefore, whose
	// booking reference has no booking record or points at a finished booking.
	FindOrphanedHolds(ctx context.Context, heldBefore time.Time, limit int) ([]domain.Slot, error)

	CountByStatus(ctx context.Context) (map[domain.SlotStatus]int64, error)
}

// SlotFilter narrows slot listings
type SlotFilter struct {
	Status      domain.SlotStatus
	VehicleType domain.VehicleType
	Zone        string
}

// BookingSweepQuery selects bookings for one sweeper pass. Both end-time
// bounds are inclusive.
type BookingSweepQuery struct {
	Statuses  []domain.BookingStatus
	EndsFrom  *time.Time
	EndsUntil time.Time
	FlagUnset domain.BookingFlag
	Limit     int
}

type BookingRepository interface {
	// Create returns domain.ErrDuplicate when the id already exists.
	Create(ctx context.Context, booking *domain.Booking) error
	FindByID(ctx context.Context, id string) (*domain.Booking, error)
	FindByUser(ctx context.Context, userID string, limit int) ([]domain.Booking, error)
	FindLatestCheckedIn(ctx context.Context, userID string, kind domain.BookingKind) (*domain.Booking, error)
	CountCheckedIn(ctx context.Context, userID string) (int64, error)
	FindScanned(ctx context.Context, limit int) ([]domain.Booking, error)
	FindForSweep(ctx context.Context, q BookingSweepQuery) ([]domain.Booking, error)

	// Transition applies t only while the booking is still in t.From.
	Transition(ctx context.Context, id string, t domain.BookingTransition) (*domain.Booking, error)

	MarkPaid(ctx context.Context, id, paymentRef string) (*domain.Booking, error)

	// ClaimFlag sets a one-shot flag and reports whether this call set it.
	ClaimFlag(ctx context.Context, id string, flag domain.BookingFlag) (bool, error)

	CountCheckInsByHour(ctx context.Context) ([]domain.HourCount, error)
	SumCheckedOutAmount(ctx context.Context) (float64, error)
}

type LedgerRepository interface {
	// Create returns domain.ErrDuplicate when the booking already has an entry.
	Create(ctx context.Context, entry *domain.LedgerEntry) error
	FindByBookingID(ctx context.Context, bookingID string) (*domain.LedgerEntry, error)
	MarkPaid(ctx context.Context, paymentRef string, at time.Time) (*domain.LedgerEntry, error)
}

type SubscriptionRepository interface {
	// Create returns domain.ErrDuplicate when the payment reference was already used.
	Create(ctx context.Context, sub *domain.Subscription) error
	FindByID(ctx context.Context, id string) (*domain.Subscription, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*domain.Subscription, error)
	FindActiveByUser(ctx context.Context, userID string, at time.Time) (*domain.Subscription, error)
	FindActiveByVehicle(ctx context.Context, vehicleID string, at time.Time) (*domain.Subscription, error)
	FindByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	UpdatePass(ctx context.Context, id, token, image string) error
	Transition(ctx context.Context, id string, from, to domain.SubscriptionStatus) (*domain.Subscription, error)
	ExpireLapsed(ctx context.Context, at time.Time) (int64, error)
	SumPaidAmount(ctx context.Context) (float64, error)
}

type VehicleRepository interface {
	Save(ctx context.Context, vehicle *domain.Vehicle) error
	FindByID(ctx context.Context, id string) (*domain.Vehicle, error)
}

type UserRepository interface {
	Save(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByRoles(ctx context.Context, roles ...domain.UserRole) ([]domain.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	FindByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}
