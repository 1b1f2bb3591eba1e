package memory

import (
	"context"
	"sort"
	"time"

	"github.com/seu-repo/parkflow/internal/domain"
)

type SubscriptionRepository struct {
	s *Store
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.subscriptions[sub.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, existing := range r.s.subscriptions {
		if sub.PaymentRef != "" && existing.PaymentRef == sub.PaymentRef {
			return domain.ErrDuplicate
		}
	}
	now := r.s.now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	r.s.subscriptions[sub.ID] = *sub
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r *SubscriptionRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (*domain.Subscription, error) {
	return r.first(func(s *domain.Subscription) bool { return s.PaymentRef == paymentRef })
}

func (r *SubscriptionRepository) FindActiveByUser(ctx context.Context, userID string, at time.Time) (*domain.Subscription, error) {
	return r.first(func(s *domain.Subscription) bool { return s.UserID == userID && s.IsActiveAt(at) })
}

func (r *SubscriptionRepository) FindActiveByVehicle(ctx context.Context, vehicleID string, at time.Time) (*domain.Subscription, error) {
	return r.first(func(s *domain.Subscription) bool { return s.VehicleID == vehicleID && s.IsActiveAt(at) })
}

func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return r.list(func(s *domain.Subscription) bool { return s.UserID == userID }), nil
}

func (r *SubscriptionRepository) UpdatePass(ctx context.Context, id, token, image string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subscriptions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.PassToken = token
	sub.PassImage = image
	sub.UpdatedAt = r.s.now()
	r.s.subscriptions[id] = sub
	return nil
}

func (r *SubscriptionRepository) Transition(ctx context.Context, id string, from, to domain.SubscriptionStatus) (*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subscriptions[id]
	if !ok || sub.Status != from {
		return nil, nil
	}
	sub.Status = to
	sub.UpdatedAt = r.s.now()
	r.s.subscriptions[id] = sub
	return &sub, nil
}

func (r *SubscriptionRepository) ExpireLapsed(ctx context.Context, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sub := range r.s.subscriptions {
		if sub.Status == domain.SubscriptionStatusActive && !at.Before(sub.EndsAt) {
			sub.Status = domain.SubscriptionStatusExpired
			sub.UpdatedAt = r.s.now()
			r.s.subscriptions[id] = sub
			n++
		}
	}
	return n, nil
}

func (r *SubscriptionRepository) SumPaidAmount(ctx context.Context) (float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var total float64
	for _, sub := range r.s.subscriptions {
		if sub.PaymentStatus == domain.PaymentStatusPaid {
			total += sub.MonthlyAmount
		}
	}
	return total, nil
}

func (r *SubscriptionRepository) first(keep func(*domain.Subscription) bool) (*domain.Subscription, error) {
	found := r.list(keep)
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// list returns matching subscriptions, newest first
func (r *SubscriptionRepository) list(keep func(*domain.Subscription) bool) []domain.Subscription {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Subscription
	for _, sub := range r.s.subscriptions {
		if keep(&sub) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
