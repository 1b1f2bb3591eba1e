package memory

import (
	"context"
	"time"

	"github.com/seu-repo/parkflow/internal/domain"
)

type LedgerRepository struct {
	s *Store
}

func (r *LedgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.ledger[entry.BookingID]; ok {
		return domain.ErrDuplicate
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.s.now()
	}
	r.s.ledger[entry.BookingID] = *entry
	return nil
}

func (r *LedgerRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entry, ok := r.s.ledger[bookingID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *LedgerRepository) MarkPaid(ctx context.Context, paymentRef string, at time.Time) (*domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, entry := range r.s.ledger {
		if entry.PaymentReference != paymentRef || paymentRef == "" {
			continue
		}
		if entry.PaidAt == nil {
			entry.PaidAt = timePtr(at)
			r.s.ledger[id] = entry
		}
		return &entry, nil
	}
	return nil, nil
}
