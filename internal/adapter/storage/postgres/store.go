// Package postgres implements the repositories on PostgreSQL with GORM.
// Every conditional write is a single UPDATE ... RETURNING statement, so the
// row lock taken by PostgreSQL is the only exclusion between instances.
package postgres

import (
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Slots() *SlotRepository                 { return &SlotRepository{db: s.db, log: s.log} }
func (s *Store) Bookings() *BookingRepository           { return &BookingRepository{db: s.db, log: s.log} }
func (s *Store) Ledger() *LedgerRepository              { return &LedgerRepository{db: s.db} }
func (s *Store) Subscriptions() *SubscriptionRepository { return &SubscriptionRepository{db: s.db} }
func (s *Store) Vehicles() *VehicleRepository           { return &VehicleRepository{db: s.db} }
func (s *Store) Users() *UserRepository                 { return &UserRepository{db: s.db} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{db: s.db} }
