package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/storage/memory"
	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestAllocator(t *testing.T, slots ...domain.Slot) (*Allocator, *memory.Store, *mocks.MockPublisher) {
	t.Helper()
	store := memory.NewStore()
	for i := range slots {
		if err := store.Slots().Save(context.Background(), &slots[i]); err != nil {
			t.Fatalf("seed slot: %v", err)
		}
	}
	push := mocks.NewMockPublisher()
	return NewAllocator(store.Slots(), push, newTestLogger()), store, push
}

func carSlot(id string) domain.Slot {
	return domain.Slot{ID: id, Code: id, VehicleType: domain.VehicleTypeCar, Status: domain.SlotStatusAvailable, HourlyRate: 20, OvertimeMultiplier: 1.5}
}

func TestClaim_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	// Arrange
	alloc, store, _ := newTestAllocator(t, carSlot("A1"))
	ctx := context.Background()

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup

	// Act
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = alloc.Claim(ctx, domain.SlotCriteria{SlotID: "A1"}, fmt.Sprintf("booking-%d", i))
		}(i)
	}
	wg.Wait()

	// Assert
	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case !errors.Is(err, domain.ErrSlotUnavailable):
			t.Fatalf("expected ErrSlotUnavailable, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	slot, _ := store.Slots().FindByID(ctx, "A1")
	if slot.Status != domain.SlotStatusReserved || slot.ActiveBookingID == nil {
		t.Errorf("expected reserved slot with a booking reference, got %+v", slot)
	}
}

func TestClaim_UnavailableNamesTheSlot(t *testing.T) {
	alloc, _, push := newTestAllocator(t)

	_, err := alloc.Claim(context.Background(), domain.SlotCriteria{SlotID: "Z9"}, "booking-1")
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if err.Error() != "slot unavailable: slot Z9 is not available" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if len(push.Events) != 0 {
		t.Errorf("expected no push events, got %d", len(push.Events))
	}
}

func TestRelease_StaleBookingIsNoOp(t *testing.T) {
	alloc, store, push := newTestAllocator(t, carSlot("A1"))
	ctx := context.Background()

	if _, err := alloc.Claim(ctx, domain.SlotCriteria{SlotID: "A1"}, "booking-b"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	released, err := alloc.Release(ctx, "A1", "booking-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if released {
		t.Fatal("expected release to be a no-op")
	}

	slot, _ := store.Slots().FindByID(ctx, "A1")
	if !slot.IsHeldBy("booking-b") || slot.Status != domain.SlotStatusReserved {
		t.Errorf("slot changed by stale release: %+v", slot)
	}
	if got := len(push.EventsNamed(domain.EventSlotChanged)); got != 1 {
		t.Errorf("expected 1 slot event (the claim), got %d", got)
	}
}

func TestOccupyAndRelease_EmitEvents(t *testing.T) {
	alloc, _, push := newTestAllocator(t, carSlot("A1"))
	ctx := context.Background()

	if _, err := alloc.Claim(ctx, domain.SlotCriteria{VehicleType: domain.VehicleTypeCar}, "booking-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := alloc.Occupy(ctx, "A1", "booking-2"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for foreign booking, got %v", err)
	}
	if _, err := alloc.Occupy(ctx, "A1", "booking-1"); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if ok, err := alloc.Release(ctx, "A1", "booking-1"); err != nil || !ok {
		t.Fatalf("release: ok=%v err=%v", ok, err)
	}

	events := push.EventsNamed(domain.EventSlotChanged)
	want := []domain.SlotStatus{domain.SlotStatusReserved, domain.SlotStatusOccupied, domain.SlotStatusAvailable}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, status := range want {
		if events[i].Status != string(status) {
			t.Errorf("event %d: expected %s, got %s", i, status, events[i].Status)
		}
	}
}

func TestForceClaim_ReturnsDisplacedBooking(t *testing.T) {
	alloc, _, _ := newTestAllocator(t, carSlot("A1"))
	ctx := context.Background()

	if _, err := alloc.Claim(ctx, domain.SlotCriteria{SlotID: "A1"}, "pooled-booking"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	slot, displaced, err := alloc.ForceClaim(ctx, "A1", "subscriber-booking")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if displaced != "pooled-booking" {
		t.Errorf("expected displaced pooled-booking, got %q", displaced)
	}
	if !slot.IsHeldBy("subscriber-booking") {
		t.Errorf("expected slot held by subscriber booking, got %+v", slot.ActiveBookingID)
	}
}

func TestStoreFailures_AreWrappedAndSilent(t *testing.T) {
	store := memory.NewStore()
	storeErr := errors.New("connection reset")
	repo := &mocks.MockSlotRepository{
		SlotRepository: store.Slots(),
		ClaimMatchingFunc: func(ctx context.Context, criteria domain.SlotCriteria, bookingID string, status domain.SlotStatus, at time.Time) (*domain.Slot, error) {
			return nil, storeErr
		},
		ReleaseFunc: func(ctx context.Context, slotID, expectedBookingID string) (*domain.Slot, error) {
			return nil, storeErr
		},
	}
	push := mocks.NewMockPublisher()
	alloc := NewAllocator(repo, push, newTestLogger())
	ctx := context.Background()

	_, err := alloc.Claim(ctx, domain.SlotCriteria{SlotID: "A1"}, "b1")
	if !errors.Is(err, storeErr) {
		t.Errorf("expected claim to wrap the store error, got %v", err)
	}
	if errors.Is(err, domain.ErrSlotUnavailable) {
		t.Error("a store failure must not read as an unavailable slot")
	}

	released, err := alloc.Release(ctx, "A1", "b1")
	if !errors.Is(err, storeErr) || released {
		t.Errorf("expected release failure, got released=%v err=%v", released, err)
	}

	if len(push.Events) != 0 {
		t.Errorf("expected no push events on failure, got %d", len(push.Events))
	}
}
