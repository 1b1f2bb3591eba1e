package memory

import (
	"context"
	"sort"
	"time"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

type SlotRepository struct {
	s *Store
}

func (r *SlotRepository) Save(ctx context.Context, slot *domain.Slot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if existing, ok := r.s.slots[slot.ID]; ok {
		slot.CreatedAt = existing.CreatedAt
	} else if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	if slot.Status == "" {
		slot.Status = domain.SlotStatusAvailable
	}
	slot.UpdatedAt = now
	r.s.slots[slot.ID] = *slot
	return nil
}

func (r *SlotRepository) FindByID(ctx context.Context, id string) (*domain.Slot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	slot, ok := r.s.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r *SlotRepository) FindAll(ctx context.Context, filter ports.SlotFilter) ([]domain.Slot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Slot
	for _, slot := range r.sortedSlots() {
		if filter.Status != "" && slot.Status != filter.Status {
			continue
		}
		if filter.VehicleType != "" && slot.VehicleType != filter.VehicleType {
			continue
		}
		if filter.Zone != "" && slot.Zone != filter.Zone {
			continue
		}
		out = append(out, slot)
	}
	return out, nil
}

func (r *SlotRepository) ClaimMatching(ctx context.Context, criteria domain.SlotCriteria, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, slot := range r.sortedSlots() {
		if !criteria.Matches(&slot) || !slot.IsClaimable() {
			continue
		}
		slot.Status = status
		slot.ActiveBookingID = strPtr(bookingID)
		slot.HeldAt = timePtr(at)
		slot.UpdatedAt = r.s.now()
		r.s.slots[slot.ID] = slot
		return &slot, nil
	}
	return nil, nil
}

func (r *SlotRepository) ForceClaim(ctx context.Context, slotID, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, *string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot, ok := r.s.slots[slotID]
	if !ok || slot.Status == domain.SlotStatusMaintenance {
		return nil, nil, nil
	}

	var displaced *string
	if slot.ActiveBookingID != nil && *slot.ActiveBookingID != bookingID {
		displaced = strPtr(*slot.ActiveBookingID)
	}
	slot.Status = status
	slot.ActiveBookingID = strPtr(bookingID)
	slot.HeldAt = timePtr(at)
	slot.UpdatedAt = r.s.now()
	r.s.slots[slotID] = slot
	return &slot, displaced, nil
}

func (r *SlotRepository) Occupy(ctx context.Context, slotID, bookingID string) (*domain.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot, ok := r.s.slots[slotID]
	if !ok || !slot.IsHeldBy(bookingID) || slot.Status != domain.SlotStatusReserved {
		return nil, nil
	}
	slot.Status = domain.SlotStatusOccupied
	slot.UpdatedAt = r.s.now()
	r.s.slots[slotID] = slot
	return &slot, nil
}

func (r *SlotRepository) Release(ctx context.Context, slotID, expectedBookingID string) (*domain.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slot, ok := r.s.slots[slotID]
	if !ok || !slot.IsHeldBy(expectedBookingID) {
		return nil, nil
	}
	if slot.Status != domain.SlotStatusMaintenance {
		slot.Status = domain.SlotStatusAvailable
	}
	slot.ActiveBookingID = nil
	slot.HeldAt = nil
	slot.UpdatedAt = r.s.now()
	r.s.slots[slotID] = slot
	return &slot, nil
}

func (r *SlotRepository) FindOrphanedHolds(ctx context.Context, heldBefore time.Time, limit int) ([]domain.Slot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Slot
	for _, slot := range r.sortedSlots() {
		if slot.ActiveBookingID == nil || (slot.Status != domain.SlotStatusReserved && slot.Status != domain.SlotStatusOccupied) {
			continue
		}
		if slot.HeldAt == nil || !slot.HeldAt.Before(heldBefore) {
			continue
		}
		if b, ok := r.s.bookings[*slot.ActiveBookingID]; ok && !b.Status.IsTerminal() {
			continue
		}
		out = append(out, slot)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *SlotRepository) CountByStatus(ctx context.Context) (map[domain.SlotStatus]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[domain.SlotStatus]int64)
	for _, slot := range r.s.slots {
		counts[slot.Status]++
	}
	return counts, nil
}

// sortedSlots returns slots ordered by code so claims are deterministic.
// Callers must hold the lock.
func (r *SlotRepository) sortedSlots() []domain.Slot {
	out := make([]domain.Slot, 0, len(r.s.slots))
	for _, slot := range r.s.slots {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code == out[j].Code {
			return out[i].ID < out[j].ID
		}
		return out[i].Code < out[j].Code
	})
	return out
}
