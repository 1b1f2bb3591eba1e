package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

var terminalStatuses = []domain.BookingStatus{
	domain.BookingStatusCheckedOut,
	domain.BookingStatusCancelled,
	domain.BookingStatusExpired,
}

type BookingRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) FindByUser(ctx context.Context, userID string, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) FindLatestCheckedIn(ctx context.Context, userID string, kind domain.BookingKind) (*domain.Booking, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.BookingStatusCheckedIn)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var b domain.Booking
	if err := query.Order("check_in_at DESC NULLS LAST").First(&b).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) CountCheckedIn(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("user_id = ? AND status = ?", userID, domain.BookingStatusCheckedIn).
		Count(&n).Error
	return n, err
}

func (r *BookingRepository) FindScanned(ctx context.Context, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.db.WithContext(ctx).
		Where("check_in_at IS NOT NULL OR check_out_at IS NOT NULL").
		Order("updated_at DESC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) FindForSweep(ctx context.Context, q ports.BookingSweepQuery) ([]domain.Booking, error) {
	query := r.db.WithContext(ctx).
		Where("status IN ?", q.Statuses).
		Where("ends_at <= ?", q.EndsUntil)
	if q.EndsFrom != nil {
		query = query.Where("ends_at >= ?", *q.EndsFrom)
	}
	if column, ok := flagColumn(q.FlagUnset); ok {
		query = query.Where(column + " = false")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var bookings []domain.Booking
	err := query.Order("ends_at").Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) Transition(ctx context.Context, id string, t domain.BookingTransition) (*domain.Booking, error) {
	if !domain.CanTransition(t.From, t.To) {
		return nil, nil
	}

	updates := map[string]interface{}{
		"status":     t.To,
		"updated_at": t.At,
	}
	if t.CheckInAt != nil {
		updates["check_in_at"] = *t.CheckInAt
	}
	if t.CheckOutAt != nil {
		updates["check_out_at"] = *t.CheckOutAt
	}
	switch {
	case t.SetAmount != nil:
		updates["amount"] = *t.SetAmount + t.AddAmount
	case t.AddAmount != 0:
		updates["amount"] = gorm.Expr("amount + ?", t.AddAmount)
	}
	if t.OvertimeMinutes != 0 {
		updates["overtime_minutes"] = gorm.Expr("overtime_minutes + ?", t.OvertimeMinutes)
	}
	if t.PenaltyAmount != 0 {
		updates["penalty_amount"] = gorm.Expr("penalty_amount + ?", t.PenaltyAmount)
	}

	var b domain.Booking
	result := r.db.WithContext(ctx).Model(&b).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, t.From).
		Updates(updates)
	if result.Error != nil {
		r.log.Error("Failed to transition booking",
			zap.String("booking_id", id),
			zap.String("to", string(t.To)),
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &b, nil
}

func (r *BookingRepository) MarkPaid(ctx context.Context, id, paymentRef string) (*domain.Booking, error) {
	var b domain.Booking
	result := r.db.WithContext(ctx).Model(&b).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status": domain.PaymentStatusPaid,
			"payment_ref":    gorm.Expr("COALESCE(NULLIF(payment_ref, ''), ?)", paymentRef),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &b, nil
}

func (r *BookingRepository) ClaimFlag(ctx context.Context, id string, flag domain.BookingFlag) (bool, error) {
	column, ok := flagColumn(flag)
	if !ok {
		return false, nil
	}
	result := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ? AND "+column+" = false", id).
		Update(column, true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *BookingRepository) CountCheckInsByHour(ctx context.Context) ([]domain.HourCount, error) {
	var rows []domain.HourCount
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Select("EXTRACT(HOUR FROM check_in_at AT TIME ZONE 'UTC')::int AS hour, count(*) AS count").
		Where("check_in_at IS NOT NULL").
		Group("1").
		Order("count DESC, hour").
		Scan(&rows).Error
	return rows, err
}

func (r *BookingRepository) SumCheckedOutAmount(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", domain.BookingStatusCheckedOut).
		Scan(&total).Error
	return total, err
}

// flagColumn maps a flag to its column; only known flags reach SQL
func flagColumn(flag domain.BookingFlag) (string, bool) {
	switch flag {
	case domain.BookingFlagWarning:
		return "warning_sent", true
	case domain.BookingFlagAlert:
		return "alert_sent", true
	}
	return "", false
}
