package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/storage/memory"
	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/mocks"
	"github.com/seu-repo/parkflow/internal/service/notification"
	"github.com/seu-repo/parkflow/internal/service/qrtoken"
	"github.com/seu-repo/parkflow/internal/service/slot"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type harness struct {
	store    *memory.Store
	svc      *Service
	gw       *mocks.MockPaymentGateway
	push     *mocks.MockPublisher
	notifier *mocks.MockNotifier
	codec    *qrtoken.Codec
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{
		store:    memory.NewStore(),
		gw:       mocks.NewMockPaymentGateway(),
		push:     mocks.NewMockPublisher(),
		notifier: mocks.NewMockNotifier(),
		clock:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	codec, err := qrtoken.NewCodec("test-qr-secret")
	require.NoError(t, err)
	h.codec = codec

	for _, u := range []domain.User{
		{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: domain.UserRoleUser},
		{ID: "u2", Name: "Ravi", Email: "ravi@example.com", Role: domain.UserRoleUser},
		{ID: "admin", Name: "Admin", Email: "admin@example.com", Role: domain.UserRoleAdmin},
		{ID: "guard", Name: "Guard", Email: "guard@example.com", Role: domain.UserRoleSecurity},
	} {
		u := u
		require.NoError(t, h.store.Users().Save(ctx, &u))
	}
	require.NoError(t, h.store.Vehicles().Save(ctx, &domain.Vehicle{ID: "v1", OwnerID: "u1", PlateNumber: "KA01AB1234", VehicleType: domain.VehicleTypeCar}))
	require.NoError(t, h.store.Vehicles().Save(ctx, &domain.Vehicle{ID: "v2", OwnerID: "u2", PlateNumber: "KA01CD5678", VehicleType: domain.VehicleTypeCar}))
	require.NoError(t, h.store.Vehicles().Save(ctx, &domain.Vehicle{ID: "bike", OwnerID: "u1", PlateNumber: "KA01EF0001", VehicleType: domain.VehicleTypeBike}))

	for _, sl := range []domain.Slot{
		{ID: "A1", Code: "A-01", VehicleType: domain.VehicleTypeCar, HourlyRate: 50, OvertimeMultiplier: 1.5, PenaltyPerHour: 10},
		{ID: "B1", Code: "B-01", VehicleType: domain.VehicleTypeBike, HourlyRate: 10, OvertimeMultiplier: 1.5, PenaltyPerHour: 5},
		{ID: "E1", Code: "E-01", VehicleType: domain.VehicleTypeEV, HourlyRate: 60, OvertimeMultiplier: 0.5, PenaltyPerHour: 0},
	} {
		sl := sl
		sl.Status = domain.SlotStatusAvailable
		require.NoError(t, h.store.Slots().Save(ctx, &sl))
	}

	log := newTestLogger()
	alerts := notification.NewService(h.store.Notifications(), h.store.Users(), h.push, log)
	h.svc = NewService(Deps{
		Bookings:      h.store.Bookings(),
		Ledger:        h.store.Ledger(),
		Subscriptions: h.store.Subscriptions(),
		Vehicles:      h.store.Vehicles(),
		Users:         h.store.Users(),
		Slots:         slot.NewAllocator(h.store.Slots(), h.push, log),
		Codec:         codec,
		Payments:      h.gw,
		Notifier:      h.notifier,
		Alerts:        alerts,
		Push:          h.push,
	}, DefaultConfig(), log)
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) slot(t *testing.T, id string) *domain.Slot {
	t.Helper()
	s, err := h.store.Slots().FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func (h *harness) booking(t *testing.T, id string) *domain.Booking {
	t.Helper()
	b, err := h.store.Bookings().FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

// book creates and pays for a booking on slotID
func (h *harness) book(t *testing.T, userID, vehicleID, slotID string, minutes int) *domain.Booking {
	t.Helper()
	ctx := context.Background()
	pending, err := h.svc.Create(ctx, domain.CreateBookingRequest{
		UserID: userID, VehicleID: vehicleID, SlotID: slotID, StartsAt: h.clock, DurationMinutes: minutes,
	})
	require.NoError(t, err)
	pi := h.gw.Succeed(pending.PaymentRef)
	require.NotNil(t, pi)
	b, err := h.svc.FulfillPayment(ctx, pi)
	require.NoError(t, err)
	return b
}

func TestCreate_HoldsSlotAndOpensPayment(t *testing.T) {
	// Arrange
	h := newHarness(t)

	// Act
	pending, err := h.svc.Create(context.Background(), domain.CreateBookingRequest{
		UserID: "u1", VehicleID: "v1", StartsAt: h.clock, DurationMinutes: 90,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "A1", pending.SlotID)
	assert.Equal(t, 100.0, pending.Amount)
	assert.NotEmpty(t, pending.ClientSecret)

	held := h.slot(t, "A1")
	assert.Equal(t, domain.SlotStatusReserved, held.Status)
	assert.True(t, held.IsHeldBy(pending.ID))

	require.Len(t, h.gw.Intents, 1)
	pi := h.gw.Intents[0]
	assert.Equal(t, int64(10000), pi.AmountMinor)
	assert.Equal(t, "inr", pi.Currency)
	assert.Equal(t, pending.ID, pi.Metadata[domain.MetaBookingID])
	assert.Equal(t, "A1", pi.Metadata[domain.MetaSlotID])
	assert.Equal(t, "v1", pi.Metadata[domain.MetaVehicleID])
	assert.Equal(t, "90", pi.Metadata[domain.MetaDurationMinutes])
	assert.Equal(t, string(domain.PaymentPurposeBooking), pi.Metadata[domain.MetaType])

	// the booking is not stored before payment
	b, err := h.store.Bookings().FindByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Len(t, h.push.EventsNamed(domain.EventSlotChanged), 1)
}

func TestCreate_AmountTooLowReleasesSlot(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), domain.CreateBookingRequest{
		UserID: "u1", VehicleID: "bike", DurationMinutes: 60,
	})

	assert.True(t, errors.Is(err, domain.ErrAmountTooLow))
	held := h.slot(t, "B1")
	assert.Equal(t, domain.SlotStatusAvailable, held.Status)
	assert.Nil(t, held.ActiveBookingID)
	assert.Empty(t, h.gw.Intents)
}

func TestCreate_SlotUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := domain.CreateBookingRequest{UserID: "u1", VehicleID: "v1", SlotID: "A1", DurationMinutes: 60}

	_, err := h.svc.Create(ctx, req)
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, req)

	require.True(t, errors.Is(err, domain.ErrSlotUnavailable))
	assert.Contains(t, err.Error(), "A1")
}

func TestCreate_ConcurrentClaimsOneWinner(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []struct{ user, vehicle string }{{"u1", "v1"}, {"u2", "v2"}} {
		wg.Add(1)
		go func(i int, user, vehicle string) {
			defer wg.Done()
			_, errs[i] = h.svc.Create(context.Background(), domain.CreateBookingRequest{
				UserID: user, VehicleID: vehicle, SlotID: "A1", DurationMinutes: 60,
			})
		}(i, user.user, user.vehicle)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, domain.ErrSlotUnavailable))
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	held := h.slot(t, "A1")
	assert.Equal(t, domain.SlotStatusReserved, held.Status)
	require.NotNil(t, held.ActiveBookingID)
	assert.Equal(t, *held.ActiveBookingID, h.gw.Intents[0].Metadata[domain.MetaBookingID])
}

func TestCreate_RejectsForeignVehicle(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), domain.CreateBookingRequest{UserID: "u1", VehicleID: "v2", DurationMinutes: 60})

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.SlotStatusAvailable, h.slot(t, "A1").Status)
}

func TestCreate_RejectsMismatchedVehicleType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, domain.CreateBookingRequest{UserID: "u1", VehicleID: "bike", VehicleType: domain.VehicleTypeEV, DurationMinutes: 60})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, domain.SlotStatusAvailable, h.slot(t, "E1").Status)

	_, err = h.svc.Create(ctx, domain.CreateBookingRequest{UserID: "u1", VehicleID: "bike", SlotID: "E1", DurationMinutes: 60})
	assert.True(t, errors.Is(err, domain.ErrSlotUnavailable))
	assert.Equal(t, domain.SlotStatusAvailable, h.slot(t, "E1").Status)

	pending, err := h.svc.Create(ctx, domain.CreateBookingRequest{UserID: "u1", VehicleID: "bike", VehicleType: domain.VehicleTypeBike, DurationMinutes: 300})
	require.NoError(t, err)
	assert.Equal(t, "B1", pending.SlotID)
}

func TestCreate_PaymentFailureReleasesSlot(t *testing.T) {
	h := newHarness(t)
	h.gw.CreateAuthorizationFunc = func(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*domain.PaymentIntent, error) {
		return nil, errors.New("stripe down")
	}

	_, err := h.svc.Create(context.Background(), domain.CreateBookingRequest{UserID: "u1", VehicleID: "v1", DurationMinutes: 60})

	assert.Error(t, err)
	assert.Equal(t, domain.SlotStatusAvailable, h.slot(t, "A1").Status)
}

func TestFulfillPayment_IsIdempotent(t *testing.T) {
	// Arrange
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.svc.Create(ctx, domain.CreateBookingRequest{UserID: "u1", VehicleID: "v1", StartsAt: h.clock, DurationMinutes: 120})
	require.NoError(t, err)
	pi := h.gw.Succeed(pending.PaymentRef)

	// Act
	first, err := h.svc.FulfillPayment(ctx, pi)
	require.NoError(t, err)
	second, err := h.svc.FulfillPayment(ctx, pi)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.QRToken, second.QRToken)
	assert.Equal(t, domain.BookingStatusReserved, second.Status)
	assert.Equal(t, domain.PaymentStatusPaid, second.PaymentStatus)
	assert.Equal(t, 100.0, second.Amount)
	assert.Equal(t, h.clock.Add(2*time.Hour), second.EndsAt)

	all, _ := h.svc.ListMine(ctx, "u1")
	assert.Len(t, all, 1)
	assert.Equal(t, []string{domain.WebhookBookingCreated}, h.notifier.WebhookEvents())
	require.Len(t, h.notifier.Emails, 1)
	assert.Equal(t, "asha@example.com", h.notifier.Emails[0].To)
	assert.Len(t, h.push.EventsNamed(domain.EventBookingChanged), 1)

	staff, _ := h.store.Notifications().FindByUser(ctx, "guard", 10)
	assert.Len(t, staff, 1)

	payload, err := h.codec.Verify(first.QRToken)
	require.NoError(t, err)
	assert.Equal(t, first.ID, payload.BookingID)
	assert.Equal(t, "A1", payload.SlotID)
}

func TestFulfillPayment_SideEffectFailureKeepsBooking(t *testing.T) {
	h := newHarness(t)
	h.notifier.SendEmailFunc = func(ctx context.Context, email domain.OutboundEmail) error { return errors.New("queue down") }
	h.notifier.TriggerWebhookFunc = func(ctx context.Context, event string, payload map[string]interface{}) error {
		return errors.New("queue down")
	}

	b := h.book(t, "u1", "v1", "A1", 60)

	assert.Equal(t, domain.BookingStatusReserved, h.booking(t, b.ID).Status)
}

func TestConfirmPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.svc.Create(ctx, domain.CreateBookingRequest{UserID: "u1", VehicleID: "v1", DurationMinutes: 60})
	require.NoError(t, err)

	_, err = h.svc.ConfirmPayment(ctx, "u1", pending.ID, "")
	assert.True(t, errors.Is(err, domain.ErrPaymentIncomplete))

	_, err = h.svc.ConfirmPayment(ctx, "u2", pending.ID, "")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	h.gw.Succeed(pending.PaymentRef)
	b, err := h.svc.ConfirmPayment(ctx, "u1", pending.ID, "")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, b.ID)

	again, err := h.svc.ConfirmPayment(ctx, "u1", pending.ID, pending.PaymentRef)
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)
}

func TestFulfillPayment_LostHoldCancelsAndRefunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.svc.Create(ctx, domain.CreateBookingRequest{UserID: "u1", VehicleID: "v1", SlotID: "A1", DurationMinutes: 60})
	require.NoError(t, err)

	// the hold was swept and another booking took the slot
	_, err = h.store.Slots().Release(ctx, "A1", pending.ID)
	require.NoError(t, err)
	_, err = h.store.Slots().ClaimMatching(ctx, domain.SlotCriteria{SlotID: "A1"}, "someone-else", domain.SlotStatusReserved, h.clock)
	require.NoError(t, err)

	b, err := h.svc.FulfillPayment(ctx, h.gw.Succeed(pending.PaymentRef))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, b.Status)
	assert.True(t, h.slot(t, "A1").IsHeldBy("someone-else"))
	refunds := h.gw.RefundCalls()
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(5000), refunds[0].AmountMinor)
	assert.Equal(t, []string{domain.WebhookBookingCancelled}, h.notifier.WebhookEvents())
}

func TestFulfillPayment_ReclaimsReleasedSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.svc.Create(ctx, domain.CreateBookingRequest{UserID: "u1", VehicleID: "v1", SlotID: "A1", DurationMinutes: 60})
	require.NoError(t, err)
	_, err = h.store.Slots().Release(ctx, "A1", pending.ID)
	require.NoError(t, err)

	b, err := h.svc.FulfillPayment(ctx, h.gw.Succeed(pending.PaymentRef))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusReserved, b.Status)
	assert.True(t, h.slot(t, "A1").IsHeldBy(b.ID))
}

func TestScanEntry(t *testing.T) {
	// Arrange
	h := newHarness(t)
	b := h.book(t, "u1", "v1", "A1", 60)

	// Act
	result, err := h.svc.Scan(context.Background(), b.QRToken, domain.ScanActionEntry)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCheckedIn, result.Status)
	stored := h.booking(t, b.ID)
	require.NotNil(t, stored.CheckInAt)
	assert.Equal(t, h.clock, *stored.CheckInAt)
	assert.Equal(t, domain.SlotStatusOccupied, h.slot(t, "A1").Status)
	assert.Contains(t, h.notifier.WebhookEvents(), domain.WebhookBookingCheckedIn)
}

func TestScanEntry_TwiceIsInvalidTransition(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, "u1", "v1", "A1", 60)
	ctx := context.Background()
	_, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionEntry)
	require.NoError(t, err)
	before := h.booking(t, b.ID)

	h.clock = h.clock.Add(10 * time.Minute)
	_, err = h.svc.Scan(ctx, b.QRToken, domain.ScanActionEntry)

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	after := h.booking(t, b.ID)
	assert.Equal(t, before.CheckInAt, after.CheckInAt)
	assert.Equal(t, domain.SlotStatusOccupied, h.slot(t, "A1").Status)
}

func TestScanEntry_Unpaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Bookings().Create(ctx, &domain.Booking{
		ID: "unpaid", UserID: "u1", SlotID: "A1", Status: domain.BookingStatusReserved, PaymentStatus: domain.PaymentStatusPending,
	}))
	token, err := h.codec.Sign(qrtoken.NewBookingPayload("unpaid", "A1", "u1", h.clock))
	require.NoError(t, err)

	_, err = h.svc.Scan(ctx, token, domain.ScanActionEntry)

	assert.True(t, errors.Is(err, domain.ErrPaymentIncomplete))
	assert.Equal(t, domain.BookingStatusReserved, h.booking(t, "unpaid").Status)
}

func TestScan_RejectsTamperedToken(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, "u1", "v1", "A1", 60)

	tampered := b.QRToken[:len(b.QRToken)-1] + "0"
	if tampered == b.QRToken {
		tampered = b.QRToken[:len(b.QRToken)-1] + "1"
	}
	_, err := h.svc.Scan(context.Background(), tampered, domain.ScanActionEntry)
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))

	_, err = h.svc.Scan(context.Background(), "not-a-token", domain.ScanActionEntry)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestScanExit_ChargesOvertime(t *testing.T) {
	// Arrange
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "u1", "v1", "A1", 60)
	_, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionEntry)
	require.NoError(t, err)
	h.clock = h.clock.Add(130 * time.Minute)

	// Act
	result, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionExit)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCheckedOut, result.Status)
	require.NotNil(t, result.Bill)
	assert.Equal(t, 70, result.Bill.OvertimeMinutes)
	assert.Equal(t, 150.0, result.Bill.OvertimeAmount)
	assert.Equal(t, 20.0, result.Bill.PenaltyAmount)
	assert.Equal(t, 170.0, result.AdditionalDue)
	assert.False(t, result.Waived)
	require.NotNil(t, result.PaymentDetails)
	assert.Equal(t, int64(17000), result.PaymentDetails.AmountMinor)
	assert.Equal(t, string(domain.PaymentPurposeOvertime), result.PaymentDetails.Metadata[domain.MetaType])

	stored := h.booking(t, b.ID)
	assert.Equal(t, 220.0, stored.Amount)
	assert.Equal(t, 70, stored.OvertimeMinutes)
	assert.Equal(t, 20.0, stored.PenaltyAmount)
	slotAfter := h.slot(t, "A1")
	assert.Equal(t, domain.SlotStatusAvailable, slotAfter.Status)
	assert.Nil(t, slotAfter.ActiveBookingID)

	entry, err := h.store.Ledger().FindByBookingID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 50.0, entry.BaseAmount)
	assert.Equal(t, 220.0, entry.TotalAmount)
	assert.Equal(t, 170.0, entry.ChargedAmount)
	assert.Equal(t, 130, entry.DurationMinutes)
	assert.Equal(t, 60, entry.BookedMinutes)
	assert.Equal(t, result.PaymentDetails.ID, entry.PaymentReference)

	notes, _ := h.store.Notifications().FindByUser(ctx, "u1", 10)
	found := false
	for _, n := range notes {
		if n.Category == domain.NotificationCategoryBilling && strings.Contains(n.Message, "No refunds for early exit") {
			found = true
		}
	}
	assert.True(t, found, "expected a checkout notification")
}

func TestScanExit_WaivesSmallExtra(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Vehicles().Save(ctx, &domain.Vehicle{ID: "ev", OwnerID: "u1", VehicleType: domain.VehicleTypeEV}))
	b := h.book(t, "u1", "ev", "E1", 60)
	_, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionEntry)
	require.NoError(t, err)
	h.clock = h.clock.Add(61 * time.Minute)

	result, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionExit)

	require.NoError(t, err)
	assert.True(t, result.Waived)
	assert.Zero(t, result.AdditionalDue)
	assert.Nil(t, result.PaymentDetails)
	assert.Equal(t, 60.0, h.booking(t, b.ID).Amount)
	assert.Len(t, h.gw.Intents, 1)

	entry, _ := h.store.Ledger().FindByBookingID(ctx, b.ID)
	require.NotNil(t, entry)
	assert.True(t, entry.Waived)
	assert.Equal(t, 30.0, entry.OvertimeAmount)
}

func TestScanExit_EarlyExitChargesNothingMore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "u1", "v1", "A1", 120)
	_, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionEntry)
	require.NoError(t, err)
	h.clock = h.clock.Add(30 * time.Minute)

	result, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionExit)

	require.NoError(t, err)
	assert.Zero(t, result.AdditionalDue)
	assert.False(t, result.Waived)
	assert.Equal(t, 100.0, result.Amount)
}

func TestScanExit_RequiresCheckIn(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, "u1", "v1", "A1", 60)

	_, err := h.svc.Scan(context.Background(), b.QRToken, domain.ScanActionExit)

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, domain.SlotStatusReserved, h.slot(t, "A1").Status)
}

func TestCancel_RefundsHalf(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, "u1", "v1", "A1", 120)
	require.Equal(t, 100.0, b.Amount)

	cancelled, err := h.svc.Cancel(context.Background(), "u1", b.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, domain.SlotStatusAvailable, h.slot(t, "A1").Status)
	refunds := h.gw.RefundCalls()
	require.Len(t, refunds, 1)
	assert.Equal(t, b.PaymentRef, refunds[0].PaymentRef)
	assert.Equal(t, int64(5000), refunds[0].AmountMinor)
	assert.Equal(t, refundReason, refunds[0].Reason)
}

func TestCancel_SucceedsWhenRefundFails(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, "u1", "v1", "A1", 120)
	h.gw.RefundFunc = func(ctx context.Context, intentID string, amountMinor int64, reason string) (*domain.Refund, error) {
		return nil, errors.New("refund rejected")
	}

	cancelled, err := h.svc.Cancel(context.Background(), "u1", b.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	require.Len(t, h.gw.RefundCalls(), 1)
	assert.Equal(t, int64(5000), h.gw.RefundCalls()[0].AmountMinor)
	assert.Contains(t, h.notifier.WebhookEvents(), domain.WebhookBookingCancelled)
}

func TestCancel_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "u1", "v1", "A1", 60)

	_, err := h.svc.Cancel(ctx, "u2", b.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = h.svc.Scan(ctx, b.QRToken, domain.ScanActionEntry)
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, "u1", b.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Empty(t, h.gw.RefundCalls())
}

func seedSubscription(t *testing.T, h *harness, userID, vehicleID string, slotID *string) {
	t.Helper()
	require.NoError(t, h.store.Subscriptions().Create(context.Background(), &domain.Subscription{
		ID: "sub-" + userID, UserID: userID, VehicleID: vehicleID, SlotID: slotID, PlanName: "monthly",
		MonthlyAmount: 3000, StartsAt: h.clock.Add(-24 * time.Hour), EndsAt: h.clock.Add(29 * 24 * time.Hour),
		Status: domain.SubscriptionStatusActive, PaymentStatus: domain.PaymentStatusPaid, PaymentRef: "pi_sub_" + userID,
	}))
}

func TestSubscriberScan_EntryAndExit(t *testing.T) {
	// Arrange
	h := newHarness(t)
	ctx := context.Background()
	seedSubscription(t, h, "u1", "v1", nil)
	token, err := h.codec.Sign(qrtoken.NewSubscriberPayload("u1", domain.UserRoleUser, h.clock))
	require.NoError(t, err)

	// Act
	in, err := h.svc.Scan(ctx, token, domain.ScanActionEntry)
	require.NoError(t, err)
	_, again := h.svc.Scan(ctx, token, domain.ScanActionEntry)
	h.clock = h.clock.Add(3 * time.Hour)
	out, err := h.svc.Scan(ctx, token, domain.ScanActionExit)
	require.NoError(t, err)

	// Assert
	assert.True(t, errors.Is(again, domain.ErrInvalidTransition))
	assert.Equal(t, in.BookingID, out.BookingID)
	assert.Equal(t, domain.BookingStatusCheckedOut, out.Status)

	session := h.booking(t, in.BookingID)
	assert.Equal(t, domain.BookingKindSubscription, session.Kind)
	assert.True(t, session.WarningSent)
	assert.True(t, session.AlertSent)
	assert.Zero(t, session.Amount)
	assert.Equal(t, "A1", session.SlotID)
	assert.Equal(t, domain.SlotStatusAvailable, h.slot(t, "A1").Status)

	entry, _ := h.store.Ledger().FindByBookingID(ctx, in.BookingID)
	require.NotNil(t, entry)
	assert.Zero(t, entry.TotalAmount)
	assert.Equal(t, 180, entry.DurationMinutes)
	assert.Empty(t, h.gw.Intents)
}

func TestSubscriberScan_ExitLeavesStandardBookingAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedSubscription(t, h, "u1", "v1", nil)
	b := h.book(t, "u1", "v1", "A1", 60)
	_, err := h.svc.Scan(ctx, b.QRToken, domain.ScanActionEntry)
	require.NoError(t, err)
	token, err := h.codec.Sign(qrtoken.NewSubscriberPayload("u1", domain.UserRoleUser, h.clock))
	require.NoError(t, err)

	_, err = h.svc.Scan(ctx, token, domain.ScanActionExit)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	kept := h.booking(t, b.ID)
	assert.Equal(t, domain.BookingStatusCheckedIn, kept.Status)
	assert.Equal(t, b.Amount, kept.Amount)
	assert.Equal(t, domain.SlotStatusOccupied, h.slot(t, "A1").Status)
}

func TestSubscriberScan_DedicatedSlotDisplacesHold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dedicated := "A1"
	seedSubscription(t, h, "u1", "v1", &dedicated)
	_, err := h.store.Slots().ClaimMatching(ctx, domain.SlotCriteria{SlotID: "A1"}, "pooled-hold", domain.SlotStatusReserved, h.clock)
	require.NoError(t, err)
	token, _ := h.codec.Sign(qrtoken.NewSubscriberPayload("u1", domain.UserRoleUser, h.clock))

	result, err := h.svc.Scan(ctx, token, domain.ScanActionEntry)

	require.NoError(t, err)
	held := h.slot(t, "A1")
	assert.True(t, held.IsHeldBy(result.BookingID))
	assert.Equal(t, domain.SlotStatusOccupied, held.Status)
}

func TestSubscriberScan_RequiresActiveSubscription(t *testing.T) {
	h := newHarness(t)
	token, _ := h.codec.Sign(qrtoken.NewSubscriberPayload("u2", domain.UserRoleUser, h.clock))

	_, err := h.svc.Scan(context.Background(), token, domain.ScanActionEntry)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestExpire_ReleasesSlotOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "u1", "v1", "A1", 60)

	first, err := h.svc.Expire(ctx, b)
	require.NoError(t, err)
	second, err := h.svc.Expire(ctx, b)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, domain.BookingStatusExpired, h.booking(t, b.ID).Status)
	assert.Equal(t, domain.SlotStatusAvailable, h.slot(t, "A1").Status)
	assert.Equal(t, []string{domain.WebhookBookingCreated, domain.WebhookBookingExpired}, h.notifier.WebhookEvents())
}

func TestExpire_DoesNotReleaseReclaimedSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "u1", "v1", "A1", 60)
	_, err := h.store.Slots().Release(ctx, "A1", b.ID)
	require.NoError(t, err)
	_, err = h.store.Slots().ClaimMatching(ctx, domain.SlotCriteria{SlotID: "A1"}, "next", domain.SlotStatusReserved, h.clock)
	require.NoError(t, err)

	expired, err := h.svc.Expire(ctx, b)

	require.NoError(t, err)
	assert.True(t, expired)
	assert.True(t, h.slot(t, "A1").IsHeldBy("next"))
}

func TestGet_OwnerOrStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "u1", "v1", "A1", 60)

	_, err := h.svc.Get(ctx, "u1", domain.UserRoleUser, b.ID)
	assert.NoError(t, err)
	_, err = h.svc.Get(ctx, "guard", domain.UserRoleSecurity, b.ID)
	assert.NoError(t, err)
	_, err = h.svc.Get(ctx, "u2", domain.UserRoleUser, b.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSecurityScans_ListsScannedBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	scanned := h.book(t, "u1", "v1", "A1", 60)
	require.NoError(t, h.store.Vehicles().Save(ctx, &domain.Vehicle{ID: "ev", OwnerID: "u1", VehicleType: domain.VehicleTypeEV}))
	h.book(t, "u1", "ev", "E1", 60)
	_, err := h.svc.Scan(ctx, scanned.QRToken, domain.ScanActionEntry)
	require.NoError(t, err)

	list, err := h.svc.SecurityScans(ctx)

	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, scanned.ID, list[0].ID)
}
