package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seu-repo/parkflow/internal/domain"
)

type LedgerRepository struct {
	db *gorm.DB
}

func (r *LedgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *LedgerRepository) FindByBookingID(ctx context.Context, bookingID string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "booking_id = ?", bookingID).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// MarkPaid stamps the entry billed under paymentRef. A second call keeps the
// first timestamp.
func (r *LedgerRepository) MarkPaid(ctx context.Context, paymentRef string, at time.Time) (*domain.LedgerEntry, error) {
	if paymentRef == "" {
		return nil, nil
	}
	var entry domain.LedgerEntry
	result := r.db.WithContext(ctx).Model(&entry).
		Clauses(clause.Returning{}).
		Where("payment_reference = ?", paymentRef).
		Update("paid_at", gorm.Expr("COALESCE(paid_at, ?)", at))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &entry, nil
}
