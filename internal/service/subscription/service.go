// Package subscription sells and manages monthly parking passes.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
	"github.com/seu-repo/parkflow/internal/service/billing"
	"github.com/seu-repo/parkflow/internal/service/email"
	"github.com/seu-repo/parkflow/internal/service/notification"
	"github.com/seu-repo/parkflow/internal/service/qrtoken"
)

type Config struct {
	Fee      float64
	Currency string
	PlanName string
}

func DefaultConfig() Config {
	return Config{
		Fee:      3000,
		Currency: "inr",
		PlanName: "Monthly Pass",
	}
}

// Alerts stores in-app notifications
type Alerts interface {
	Notify(ctx context.Context, userID string, d notification.Draft) error
}

type Deps struct {
	Subscriptions ports.SubscriptionRepository
	Vehicles      ports.VehicleRepository
	Users         ports.UserRepository
	Slots         ports.SlotRepository
	Codec         *qrtoken.Codec
	Payments      ports.PaymentGateway
	Notifier      ports.Notifier
	Alerts        Alerts
}

type Service struct {
	subs     ports.SubscriptionRepository
	vehicles ports.VehicleRepository
	users    ports.UserRepository
	slots    ports.SlotRepository
	codec    *qrtoken.Codec
	payments ports.PaymentGateway
	notifier ports.Notifier
	alerts   Alerts

	cfg   Config
	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

func NewService(deps Deps, cfg Config, log *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.Fee <= 0 {
		cfg.Fee = def.Fee
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.PlanName == "" {
		cfg.PlanName = def.PlanName
	}
	return &Service{
		subs:     deps.Subscriptions,
		vehicles: deps.Vehicles,
		users:    deps.Users,
		slots:    deps.Slots,
		codec:    deps.Codec,
		payments: deps.Payments,
		notifier: deps.Notifier,
		alerts:   deps.Alerts,
		cfg:      cfg,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		log:      log,
	}
}

// Purchase opens a payment authorization for a new pass. Nothing is stored
// until the payment is fulfilled.
func (s *Service) Purchase(ctx context.Context, req domain.PurchaseSubscriptionRequest) (*domain.PendingSubscription, error) {
	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle: %w", err)
	}
	if vehicle == nil || vehicle.OwnerID != req.UserID {
		return nil, fmt.Errorf("%w: vehicle %s", domain.ErrNotFound, req.VehicleID)
	}

	active, err := s.subs.FindActiveByVehicle(ctx, vehicle.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to check subscriptions: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: vehicle %s already has an active subscription", domain.ErrConflict, vehicle.ID)
	}

	if req.SlotID != "" {
		if err := s.checkDedicatedSlot(ctx, req.SlotID, vehicle.VehicleType); err != nil {
			return nil, err
		}
	}

	pi, err := s.payments.CreateAuthorization(ctx, billing.ToMinorUnits(s.cfg.Fee), s.cfg.Currency, map[string]string{
		domain.MetaType:      string(domain.PaymentPurposeSubscription),
		domain.MetaUserID:    req.UserID,
		domain.MetaVehicleID: vehicle.ID,
		domain.MetaSlotID:    req.SlotID,
		domain.MetaPlanName:  s.cfg.PlanName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.log.Info("Subscription pending payment",
		zap.String("user_id", req.UserID),
		zap.String("vehicle_id", vehicle.ID),
		zap.String("payment_ref", pi.ID),
	)

	return &domain.PendingSubscription{
		PaymentRef:   pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       s.cfg.Fee,
		Currency:     s.cfg.Currency,
	}, nil
}

func (s *Service) checkDedicatedSlot(ctx context.Context, slotID string, vt domain.VehicleType) error {
	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("failed to load slot: %w", err)
	}
	if slot == nil {
		return fmt.Errorf("%w: slot %s", domain.ErrNotFound, slotID)
	}
	if slot.Status != domain.SlotStatusAvailable {
		return fmt.Errorf("%w: slot %s is %s", domain.ErrSlotUnavailable, slotID, slot.Status)
	}
	if slot.VehicleType != vt {
		return fmt.Errorf("%w: slot %s is for %s", domain.ErrInvalidInput, slotID, slot.VehicleType)
	}
	return nil
}

// Confirm is the client-side confirmation path for a purchase
func (s *Service) Confirm(ctx context.Context, userID, paymentRef string) (*domain.Subscription, error) {
	pi, err := s.payments.Retrieve(ctx, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}
	if pi == nil || pi.Purpose() != domain.PaymentPurposeSubscription {
		return nil, fmt.Errorf("%w: subscription payment %s", domain.ErrNotFound, paymentRef)
	}
	if pi.Metadata[domain.MetaUserID] != userID {
		return nil, fmt.Errorf("%w: payment belongs to another user", domain.ErrForbidden)
	}
	return s.Fulfill(ctx, pi)
}

// Fulfill activates the pass bought by a captured payment. The payment
// reference is the idempotency key.
func (s *Service) Fulfill(ctx context.Context, pi *domain.PaymentIntent) (*domain.Subscription, error) {
	if !pi.Succeeded() {
		return nil, fmt.Errorf("%w: payment status is %s", domain.ErrPaymentIncomplete, pi.Status)
	}
	existing, err := s.subs.FindByPaymentRef(ctx, pi.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	meta := pi.Metadata
	userID := meta[domain.MetaUserID]
	if userID == "" || meta[domain.MetaVehicleID] == "" {
		return nil, fmt.Errorf("%w: payment %s has no subscriber", domain.ErrInvalidInput, pi.ID)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}

	now := s.now()
	sub := &domain.Subscription{
		ID:            s.newID(),
		UserID:        userID,
		VehicleID:     meta[domain.MetaVehicleID],
		PlanName:      meta[domain.MetaPlanName],
		MonthlyAmount: pi.Amount,
		StartsAt:      now,
		EndsAt:        now.AddDate(0, 1, 0),
		Status:        domain.SubscriptionStatusActive,
		PaymentStatus: domain.PaymentStatusPaid,
		PaymentRef:    pi.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sub.PlanName == "" {
		sub.PlanName = s.cfg.PlanName
	}
	if slotID := meta[domain.MetaSlotID]; slotID != "" {
		sub.SlotID = &slotID
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return s.subs.FindByPaymentRef(ctx, pi.ID)
		}
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	// the pass can be reissued, so a failure here does not undo the purchase
	pass, err := s.codec.Create(qrtoken.NewSubscriberPayload(user.ID, user.Role, now))
	if err != nil {
		s.log.Error("Failed to mint subscriber pass", zap.String("subscription_id", sub.ID), zap.Error(err))
	} else if err := s.subs.UpdatePass(ctx, sub.ID, pass.Value, pass.Image); err != nil {
		s.log.Error("Failed to store subscriber pass", zap.String("subscription_id", sub.ID), zap.Error(err))
	} else {
		sub.PassToken = pass.Value
		sub.PassImage = pass.Image
	}

	s.log.Info("Subscription activated",
		zap.String("subscription_id", sub.ID),
		zap.String("user_id", sub.UserID),
		zap.Time("ends_at", sub.EndsAt),
	)

	_ = s.alerts.Notify(ctx, sub.UserID, notification.Draft{
		Category: domain.NotificationCategoryPayment,
		Title:    "Subscription Active",
		Message:  fmt.Sprintf("Your %s is active until %s.", sub.PlanName, sub.EndsAt.Format("02 Jan 2006")),
	})
	if user.Email != "" {
		if err := s.notifier.SendEmail(ctx, domain.OutboundEmail{
			To:       user.Email,
			Subject:  "Your parking pass is active",
			Template: email.TemplateSubscriptionActive,
			Data: map[string]interface{}{
				"UserName": user.Name,
				"PlanName": sub.PlanName,
				"EndsAt":   sub.EndsAt.Format("02 Jan 2006"),
				"QRImage":  sub.PassImage,
			},
		}); err != nil {
			s.log.Error("Failed to enqueue email", zap.String("subscription_id", sub.ID), zap.Error(err))
		}
	}
	s.webhook(ctx, domain.WebhookSubscriptionActivated, sub)

	return sub, nil
}

// Cancel ends an active pass owned by userID. No refund is issued.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil || sub.UserID != userID {
		return nil, fmt.Errorf("%w: subscription %s", domain.ErrNotFound, id)
	}

	updated, err := s.subs.Transition(ctx, id, domain.SubscriptionStatusActive, domain.SubscriptionStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: subscription %s is %s", domain.ErrConflict, id, sub.Status)
	}

	s.log.Info("Subscription cancelled", zap.String("subscription_id", id), zap.String("user_id", userID))
	s.webhook(ctx, domain.WebhookSubscriptionCancelled, updated)
	return updated, nil
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.subs.FindByUser(ctx, userID)
}

func (s *Service) webhook(ctx context.Context, event string, sub *domain.Subscription) {
	payload := map[string]interface{}{
		"subscriptionId": sub.ID,
		"userId":         sub.UserID,
		"vehicleId":      sub.VehicleID,
		"status":         string(sub.Status),
		"amount":         sub.MonthlyAmount,
		"currency":       strings.ToUpper(s.cfg.Currency),
	}
	if sub.SlotID != nil {
		payload["slotId"] = *sub.SlotID
	}
	if err := s.notifier.TriggerWebhook(ctx, event, payload); err != nil {
		s.log.Error("Failed to enqueue webhook", zap.String("event", event), zap.String("subscription_id", sub.ID), zap.Error(err))
	}
}
