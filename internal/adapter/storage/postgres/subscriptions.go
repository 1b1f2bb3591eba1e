package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seu-repo/parkflow/internal/domain"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	return translate(r.db.WithContext(ctx).Create(sub).Error)
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *SubscriptionRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (*domain.Subscription, error) {
	return r.first(r.db.WithContext(ctx).Where("payment_ref = ?", paymentRef))
}

func (r *SubscriptionRepository) FindActiveByUser(ctx context.Context, userID string, at time.Time) (*domain.Subscription, error) {
	return r.first(r.active(ctx, at).Where("user_id = ?", userID))
}

func (r *SubscriptionRepository) FindActiveByVehicle(ctx context.Context, vehicleID string, at time.Time) (*domain.Subscription, error) {
	return r.first(r.active(ctx, at).Where("vehicle_id = ?", vehicleID))
}

func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *SubscriptionRepository) UpdatePass(ctx context.Context, id, token, image string) error {
	return r.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"pass_token": token, "pass_image": image}).Error
}

func (r *SubscriptionRepository) Transition(ctx context.Context, id string, from, to domain.SubscriptionStatus) (*domain.Subscription, error) {
	var sub domain.Subscription
	result := r.db.WithContext(ctx).Model(&sub).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ExpireLapsed(ctx context.Context, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("status = ? AND ends_at <= ?", domain.SubscriptionStatusActive, at).
		Update("status", domain.SubscriptionStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *SubscriptionRepository) SumPaidAmount(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&domain.Subscription{}).
		Select("COALESCE(SUM(monthly_amount), 0)").
		Where("payment_status = ?", domain.PaymentStatusPaid).
		Scan(&total).Error
	return total, err
}

func (r *SubscriptionRepository) active(ctx context.Context, at time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("status = ? AND ends_at > ?", domain.SubscriptionStatusActive, at).
		Order("created_at DESC")
}

func (r *SubscriptionRepository) first(query *gorm.DB) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := query.First(&sub).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}
