package slot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
	"github.com/seu-repo/parkflow/internal/ports"
)

// Allocator is the only component that moves a slot between available and
// reserved/occupied. Each operation is one conditional write in the store;
// no in-process locking is involved.
type Allocator struct {
	repo ports.SlotRepository
	push ports.Publisher
	now  func() time.Time
	log  *zap.Logger
}

// NewAllocator creates a new slot allocator
func NewAllocator(repo ports.SlotRepository, push ports.Publisher, log *zap.Logger) *Allocator {
	return &Allocator{
		repo: repo,
		push: push,
		now:  time.Now,
		log:  log,
	}
}

// Claim reserves a slot matching criteria for bookingID
func (a *Allocator) Claim(ctx context.Context, criteria domain.SlotCriteria, bookingID string) (*domain.Slot, error) {
	return a.claim(ctx, criteria, bookingID, domain.SlotStatusReserved)
}

// ClaimForEntry claims a slot matching criteria directly as occupied, for
// sessions that start at the gate.
func (a *Allocator) ClaimForEntry(ctx context.Context, criteria domain.SlotCriteria, bookingID string) (*domain.Slot, error) {
	return a.claim(ctx, criteria, bookingID, domain.SlotStatusOccupied)
}

func (a *Allocator) claim(ctx context.Context, criteria domain.SlotCriteria, bookingID string, status domain.SlotStatus) (*domain.Slot, error) {
	if bookingID == "" {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrInvalidInput)
	}

	slot, err := a.repo.ClaimMatching(ctx, criteria, bookingID, status, a.now())
	if err != nil {
		telemetry.SlotClaimsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}
	if slot == nil {
		telemetry.SlotClaimsTotal.WithLabelValues("unavailable").Inc()
		return nil, unavailable(criteria)
	}

	telemetry.SlotClaimsTotal.WithLabelValues("claimed").Inc()
	a.log.Info("Slot claimed",
		zap.String("slot_id", slot.ID),
		zap.String("booking_id", bookingID),
		zap.String("status", string(slot.Status)),
	)
	a.push.PublishSlotChanged(ctx, slot.ID, slot.Status)
	return slot, nil
}

// ForceClaim points a dedicated slot at bookingID as occupied even if another
// booking holds it, and returns the displaced booking id ("" if none). Slots
// in maintenance are never claimed.
func (a *Allocator) ForceClaim(ctx context.Context, slotID, bookingID string) (*domain.Slot, string, error) {
	slot, displaced, err := a.repo.ForceClaim(ctx, slotID, bookingID, domain.SlotStatusOccupied, a.now())
	if err != nil {
		telemetry.SlotClaimsTotal.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("failed to force claim slot: %w", err)
	}
	if slot == nil {
		telemetry.SlotClaimsTotal.WithLabelValues("unavailable").Inc()
		return nil, "", fmt.Errorf("%w: slot %s is missing or under maintenance", domain.ErrSlotUnavailable, slotID)
	}

	telemetry.SlotClaimsTotal.WithLabelValues("forced").Inc()
	var displacedID string
	if displaced != nil {
		displacedID = *displaced
		telemetry.SlotDisplacementsTotal.Inc()
		a.log.Warn("Dedicated slot taken over from another booking",
			zap.String("slot_id", slotID),
			zap.String("booking_id", bookingID),
			zap.String("displaced_booking_id", displacedID),
		)
	}
	a.push.PublishSlotChanged(ctx, slot.ID, slot.Status)
	return slot, displacedID, nil
}

// Occupy flips the slot reserved by bookingID to occupied
func (a *Allocator) Occupy(ctx context.Context, slotID, bookingID string) (*domain.Slot, error) {
	slot, err := a.repo.Occupy(ctx, slotID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to occupy slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %s is not reserved for booking %s", domain.ErrConflict, slotID, bookingID)
	}
	a.push.PublishSlotChanged(ctx, slot.ID, slot.Status)
	return slot, nil
}

// Release frees the slot if it is still held by expectedBookingID. It
// returns false without error when the slot has moved on.
func (a *Allocator) Release(ctx context.Context, slotID, expectedBookingID string) (bool, error) {
	slot, err := a.repo.Release(ctx, slotID, expectedBookingID)
	if err != nil {
		telemetry.SlotReleasesTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to release slot: %w", err)
	}
	if slot == nil {
		telemetry.SlotReleasesTotal.WithLabelValues("stale").Inc()
		a.log.Debug("Slot release skipped, held by another booking",
			zap.String("slot_id", slotID),
			zap.String("expected_booking_id", expectedBookingID),
		)
		return false, nil
	}

	telemetry.SlotReleasesTotal.WithLabelValues("released").Inc()
	a.log.Info("Slot released",
		zap.String("slot_id", slotID),
		zap.String("booking_id", expectedBookingID),
	)
	a.push.PublishSlotChanged(ctx, slot.ID, slot.Status)
	return true, nil
}

// Get returns a slot or ErrNotFound
func (a *Allocator) Get(ctx context.Context, slotID string) (*domain.Slot, error) {
	slot, err := a.repo.FindByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: slot %s", domain.ErrNotFound, slotID)
	}
	return slot, nil
}

// List returns slots matching filter
func (a *Allocator) List(ctx context.Context, filter ports.SlotFilter) ([]domain.Slot, error) {
	slots, err := a.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

func unavailable(criteria domain.SlotCriteria) error {
	switch {
	case criteria.SlotID != "":
		return fmt.Errorf("%w: slot %s is not available", domain.ErrSlotUnavailable, criteria.SlotID)
	case criteria.VehicleType != "":
		return fmt.Errorf("%w: no available slot for vehicle type %s", domain.ErrSlotUnavailable, criteria.VehicleType)
	default:
		return fmt.Errorf("%w: no available slot", domain.ErrSlotUnavailable)
	}
}
