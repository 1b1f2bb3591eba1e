package memory

import (
	"context"
	"sort"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

type BookingRepository struct {
	s *Store
}

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.bookings[booking.ID]; ok {
		return domain.ErrDuplicate
	}
	now := r.s.now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	r.s.bookings[booking.ID] = *booking
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BookingRepository) FindByUser(ctx context.Context, userID string, limit int) ([]domain.Booking, error) {
	return r.filter(func(b *domain.Booking) bool { return b.UserID == userID }, byCreatedDesc, limit), nil
}

func (r *BookingRepository) FindLatestCheckedIn(ctx context.Context, userID string, kind domain.BookingKind) (*domain.Booking, error) {
	found := r.filter(func(b *domain.Booking) bool {
		return b.UserID == userID &&
			b.Status == domain.BookingStatusCheckedIn &&
			(kind == "" || b.Kind == kind)
	}, func(a, b *domain.Booking) bool {
		return a.CheckInAt != nil && (b.CheckInAt == nil || a.CheckInAt.After(*b.CheckInAt))
	}, 1)
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *BookingRepository) CountCheckedIn(ctx context.Context, userID string) (int64, error) {
	found := r.filter(func(b *domain.Booking) bool {
		return b.UserID == userID && b.Status == domain.BookingStatusCheckedIn
	}, nil, 0)
	return int64(len(found)), nil
}

func (r *BookingRepository) FindScanned(ctx context.Context, limit int) ([]domain.Booking, error) {
	return r.filter(func(b *domain.Booking) bool {
		return b.CheckInAt != nil || b.CheckOutAt != nil
	}, func(a, b *domain.Booking) bool {
		return a.UpdatedAt.After(b.UpdatedAt)
	}, limit), nil
}

func (r *BookingRepository) FindForSweep(ctx context.Context, q ports.BookingSweepQuery) ([]domain.Booking, error) {
	return r.filter(func(b *domain.Booking) bool {
		if !hasStatus(q.Statuses, b.Status) {
			return false
		}
		if q.EndsFrom != nil && b.EndsAt.Before(*q.EndsFrom) {
			return false
		}
		if b.EndsAt.After(q.EndsUntil) {
			return false
		}
		switch q.FlagUnset {
		case domain.BookingFlagWarning:
			return !b.WarningSent
		case domain.BookingFlagAlert:
			return !b.AlertSent
		}
		return true
	}, func(a, b *domain.Booking) bool {
		return a.EndsAt.Before(b.EndsAt)
	}, q.Limit), nil
}

func (r *BookingRepository) Transition(ctx context.Context, id string, t domain.BookingTransition) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok || b.Status != t.From || !domain.CanTransition(t.From, t.To) {
		return nil, nil
	}

	b.Status = t.To
	if t.CheckInAt != nil {
		b.CheckInAt = timePtr(*t.CheckInAt)
	}
	if t.CheckOutAt != nil {
		b.CheckOutAt = timePtr(*t.CheckOutAt)
	}
	if t.SetAmount != nil {
		b.Amount = *t.SetAmount
	}
	b.Amount += t.AddAmount
	b.OvertimeMinutes += t.OvertimeMinutes
	b.PenaltyAmount += t.PenaltyAmount
	b.UpdatedAt = t.At
	r.s.bookings[id] = b
	return &b, nil
}

func (r *BookingRepository) MarkPaid(ctx context.Context, id, paymentRef string) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	if b.PaymentStatus != domain.PaymentStatusPaid {
		b.PaymentStatus = domain.PaymentStatusPaid
		b.UpdatedAt = r.s.now()
	}
	if b.PaymentRef == "" {
		b.PaymentRef = paymentRef
	}
	r.s.bookings[id] = b
	return &b, nil
}

func (r *BookingRepository) ClaimFlag(ctx context.Context, id string, flag domain.BookingFlag) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return false, nil
	}
	switch flag {
	case domain.BookingFlagWarning:
		if b.WarningSent {
			return false, nil
		}
		b.WarningSent = true
	case domain.BookingFlagAlert:
		if b.AlertSent {
			return false, nil
		}
		b.AlertSent = true
	default:
		return false, nil
	}
	r.s.bookings[id] = b
	return true, nil
}

func (r *BookingRepository) CountCheckInsByHour(ctx context.Context) ([]domain.HourCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[int]int64)
	for _, b := range r.s.bookings {
		if b.CheckInAt != nil {
			counts[b.CheckInAt.UTC().Hour()]++
		}
	}
	out := make([]domain.HourCount, 0, len(counts))
	for hour, n := range counts {
		out = append(out, domain.HourCount{Hour: hour, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func (r *BookingRepository) SumCheckedOutAmount(ctx context.Context) (float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var total float64
	for _, b := range r.s.bookings {
		if b.Status == domain.BookingStatusCheckedOut {
			total += b.Amount
		}
	}
	return total, nil
}

func (r *BookingRepository) filter(keep func(*domain.Booking) bool, less func(a, b *domain.Booking) bool, limit int) []domain.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Booking
	for _, b := range r.s.bookings {
		if keep(&b) {
			out = append(out, b)
		}
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byCreatedDesc(a, b *domain.Booking) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

func hasStatus(statuses []domain.BookingStatus, s domain.BookingStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
