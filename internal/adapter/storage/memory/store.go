// Package memory is a process-local store implementing the repository ports.
// Every conditional write runs under one mutex, which gives it the same
// compare-and-set semantics as the single-statement updates of the postgres
// adapter. It backs the memory database driver and the service tests.
package memory

import (
	"sync"
	"time"

	"github.com/seu-repo/parkflow/internal/domain"
)

// Store holds all records
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	slots         map[string]domain.Slot
	bookings      map[string]domain.Booking
	ledger        map[string]domain.LedgerEntry // by booking id
	subscriptions map[string]domain.Subscription
	vehicles      map[string]domain.Vehicle
	users         map[string]domain.User
	notifications map[string]domain.Notification
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		slots:         make(map[string]domain.Slot),
		bookings:      make(map[string]domain.Booking),
		ledger:        make(map[string]domain.LedgerEntry),
		subscriptions: make(map[string]domain.Subscription),
		vehicles:      make(map[string]domain.Vehicle),
		users:         make(map[string]domain.User),
		notifications: make(map[string]domain.Notification),
	}
}

// WithClock overrides the clock used for record timestamps
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Slots() *SlotRepository                 { return &SlotRepository{s} }
func (s *Store) Bookings() *BookingRepository           { return &BookingRepository{s} }
func (s *Store) Ledger() *LedgerRepository              { return &LedgerRepository{s} }
func (s *Store) Subscriptions() *SubscriptionRepository { return &SubscriptionRepository{s} }
func (s *Store) Vehicles() *VehicleRepository           { return &VehicleRepository{s} }
func (s *Store) Users() *UserRepository                 { return &UserRepository{s} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s} }

func strPtr(v string) *string {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}
