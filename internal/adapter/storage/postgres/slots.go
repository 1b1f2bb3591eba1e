package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

type SlotRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func (r *SlotRepository) Save(ctx context.Context, slot *domain.Slot) error {
	if slot.Status == "" {
		slot.Status = domain.SlotStatusAvailable
	}
	if err := r.db.WithContext(ctx).Save(slot).Error; err != nil {
		r.log.Error("Failed to save slot", zap.String("slot_id", slot.ID), zap.Error(err))
		return translate(err)
	}
	return nil
}

func (r *SlotRepository) FindByID(ctx context.Context, id string) (*domain.Slot, error) {
	var slot domain.Slot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &slot, nil
}

func (r *SlotRepository) FindAll(ctx context.Context, filter ports.SlotFilter) ([]domain.Slot, error) {
	var slots []domain.Slot
	query := r.db.WithContext(ctx).Order("code, id")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.VehicleType != "" {
		query = query.Where("vehicle_type = ?", filter.VehicleType)
	}
	if filter.Zone != "" {
		query = query.Where("zone = ?", filter.Zone)
	}
	if err := query.Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// ClaimMatching picks the first claimable slot in code order. SKIP LOCKED
// lets concurrent claims move on to the next slot instead of queueing; the
// outer predicate is re-checked after the row lock is taken.
func (r *SlotRepository) ClaimMatching(ctx context.Context, criteria domain.SlotCriteria, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, error) {
	const claimSQL = `
		UPDATE slots SET status = @status, active_booking_id = @booking, held_at = @at, updated_at = @now
		WHERE id = (
			SELECT id FROM slots
			WHERE status = 'available' AND active_booking_id IS NULL
			  AND (@slot_id = '' OR id = @slot_id)
			  AND (@vehicle_type = '' OR vehicle_type = @vehicle_type)
			ORDER BY code, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND status = 'available' AND active_booking_id IS NULL
		RETURNING *`

	return r.returningOne(ctx, claimSQL, map[string]interface{}{
		"status":       status,
		"booking":      bookingID,
		"at":           at,
		"now":          time.Now().UTC(),
		"slot_id":      criteria.SlotID,
		"vehicle_type": string(criteria.VehicleType),
	})
}

type forcedSlot struct {
	domain.Slot
	DisplacedBookingID *string
}

func (r *SlotRepository) ForceClaim(ctx context.Context, slotID, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, *string, error) {
	const forceSQL = `
		WITH prev AS (
			SELECT id, active_booking_id FROM slots
			WHERE id = @slot_id AND status <> 'maintenance'
			FOR UPDATE
		)
		UPDATE slots s SET status = @status, active_booking_id = @booking, held_at = @at, updated_at = @now
		FROM prev
		WHERE s.id = prev.id
		RETURNING s.*, NULLIF(prev.active_booking_id, @booking) AS displaced_booking_id`

	var rows []forcedSlot
	err := r.db.WithContext(ctx).Raw(forceSQL, map[string]interface{}{
		"slot_id": slotID,
		"status":  status,
		"booking": bookingID,
		"at":      at,
		"now":     time.Now().UTC(),
	}).Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	slot := rows[0].Slot
	return &slot, rows[0].DisplacedBookingID, nil
}

func (r *SlotRepository) Occupy(ctx context.Context, slotID, bookingID string) (*domain.Slot, error) {
	const occupySQL = `
		UPDATE slots SET status = 'occupied', updated_at = @now
		WHERE id = @slot_id AND active_booking_id = @booking AND status = 'reserved'
		RETURNING *`

	return r.returningOne(ctx, occupySQL, map[string]interface{}{
		"slot_id": slotID,
		"booking": bookingID,
		"now":     time.Now().UTC(),
	})
}

func (r *SlotRepository) Release(ctx context.Context, slotID, expectedBookingID string) (*domain.Slot, error) {
	const releaseSQL = `
		UPDATE slots
		SET status = CASE WHEN status = 'maintenance' THEN status ELSE 'available' END,
		    active_booking_id = NULL, held_at = NULL, updated_at = @now
		WHERE id = @slot_id AND active_booking_id = @booking
		RETURNING *`

	return r.returningOne(ctx, releaseSQL, map[string]interface{}{
		"slot_id": slotID,
		"booking": expectedBookingID,
		"now":     time.Now().UTC(),
	})
}

func (r *SlotRepository) FindOrphanedHolds(ctx context.Context, heldBefore time.Time, limit int) ([]domain.Slot, error) {
	const orphanSQL = `
		SELECT s.* FROM slots s
		LEFT JOIN bookings b ON b.id = s.active_booking_id
		WHERE s.active_booking_id IS NOT NULL
		  AND s.status IN ('reserved', 'occupied')
		  AND s.held_at < @held_before
		  AND (b.id IS NULL OR b.status IN @terminal)
		ORDER BY s.code, s.id
		LIMIT @limit`

	if limit <= 0 {
		limit = 100
	}
	var slots []domain.Slot
	err := r.db.WithContext(ctx).Raw(orphanSQL, map[string]interface{}{
		"held_before": heldBefore,
		"terminal":    terminalStatuses,
		"limit":       limit,
	}).Scan(&slots).Error
	return slots, err
}

func (r *SlotRepository) CountByStatus(ctx context.Context) (map[domain.SlotStatus]int64, error) {
	var rows []struct {
		Status domain.SlotStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Slot{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.SlotStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *SlotRepository) returningOne(ctx context.Context, query string, args map[string]interface{}) (*domain.Slot, error) {
	var slots []domain.Slot
	if err := r.db.WithContext(ctx).Raw(query, args).Scan(&slots).Error; err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return &slots[0], nil
}
