// Package expiry runs the periodic sweep that reconciles time-based booking
// state: ending-soon warnings, overtime alerts, expiry of reservations nobody
// used, and slot holds whose payment never completed.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
	"github.com/seu-repo/parkflow/internal/ports"
)

// Lifecycle applies the per-booking transitions of a sweep
type Lifecycle interface {
	WarnEndingSoon(ctx context.Context, b *domain.Booking) (bool, error)
	AlertOvertime(ctx context.Context, b *domain.Booking) (bool, error)
	Expire(ctx context.Context, b *domain.Booking) (bool, error)
}

// HoldReleaser frees a slot still held by a booking
type HoldReleaser interface {
	Release(ctx context.Context, slotID, expectedBookingID string) (bool, error)
}

type Config struct {
	Interval      time.Duration
	WarningWindow time.Duration
	BatchSize     int
	HoldTTL       time.Duration

	// UnhealthyAfter is the number of consecutive failed cycles after which
	// Healthy reports false
	UnhealthyAfter int
}

func DefaultConfig() Config {
	return Config{
		Interval:       time.Minute,
		WarningWindow:  15 * time.Minute,
		BatchSize:      100,
		HoldTTL:        30 * time.Minute,
		UnhealthyAfter: 3,
	}
}

// Report summarizes one sweep cycle
type Report struct {
	Warned               int
	Alerted              int
	Expired              int
	ReleasedHolds        int
	ExpiredSubscriptions int64
	Failed               int
}

type Sweeper struct {
	bookings  ports.BookingRepository
	slots     ports.SlotRepository
	subs      ports.SubscriptionRepository
	lifecycle Lifecycle
	holds     HoldReleaser
	cfg       Config
	now       func() time.Time
	log       *zap.Logger

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	failedCycles int
	lastRun      time.Time
}

func NewSweeper(bookings ports.BookingRepository, slots ports.SlotRepository, subs ports.SubscriptionRepository, lifecycle Lifecycle, holds HoldReleaser, cfg Config, log *zap.Logger) *Sweeper {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.WarningWindow <= 0 {
		cfg.WarningWindow = def.WarningWindow
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = def.HoldTTL
	}
	if cfg.UnhealthyAfter <= 0 {
		cfg.UnhealthyAfter = def.UnhealthyAfter
	}
	return &Sweeper{
		bookings:  bookings,
		slots:     slots,
		subs:      subs,
		lifecycle: lifecycle,
		holds:     holds,
		cfg:       cfg,
		now:       time.Now,
		log:       log,
	}
}

// Start runs a sweep every interval until ctx is done or Stop is called.
// It blocks; run it in its own goroutine. A stopped sweeper can be started
// again.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.stopCh == stopCh {
			s.running = false
			s.stopCh = nil
		}
		s.mu.Unlock()
	}()

	s.log.Info("Expiry sweeper started", zap.Duration("interval", s.cfg.Interval))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiry sweeper stopped by context")
			return
		case <-stopCh:
			s.log.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		close(s.stopCh)
		s.stopCh = nil
	}
}

// Healthy reports whether recent cycles could query the store
func (s *Sweeper) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedCycles < s.cfg.UnhealthyAfter
}

// LastRun returns when the last cycle finished
func (s *Sweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// RunOnce performs all sweeps once. A failure on one record never stops the
// rest of the batch; the returned error only covers failed queries.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	now := s.now()
	var report Report

	errs := []error{
		s.sweepWarnings(ctx, now, &report),
		s.sweepOvertime(ctx, now, &report),
		s.sweepExpired(ctx, now, &report),
		s.sweepOrphanedHolds(ctx, now, &report),
		s.sweepSubscriptions(ctx, now, &report),
	}
	err := errors.Join(errs...)

	telemetry.SweepDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	if err != nil {
		s.failedCycles++
	} else {
		s.failedCycles = 0
	}
	s.lastRun = now
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Expiry sweep failed", zap.Error(err))
	}
	if report != (Report{}) {
		s.log.Info("Expiry sweep completed",
			zap.Int("warned", report.Warned),
			zap.Int("alerted", report.Alerted),
			zap.Int("expired", report.Expired),
			zap.Int("released_holds", report.ReleasedHolds),
			zap.Int64("expired_subscriptions", report.ExpiredSubscriptions),
			zap.Int("failed", report.Failed),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return report, err
}

func (s *Sweeper) sweepWarnings(ctx context.Context, now time.Time, report *Report) error {
	batch, err := s.bookings.FindForSweep(ctx, ports.BookingSweepQuery{
		Statuses:  []domain.BookingStatus{domain.BookingStatusReserved, domain.BookingStatusCheckedIn},
		EndsFrom:  &now,
		EndsUntil: now.Add(s.cfg.WarningWindow),
		FlagUnset: domain.BookingFlagWarning,
		Limit:     s.cfg.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("warning sweep: %w", err)
	}
	report.Warned += s.each(ctx, "warning", batch, &report.Failed, s.lifecycle.WarnEndingSoon)
	return nil
}

func (s *Sweeper) sweepOvertime(ctx context.Context, now time.Time, report *Report) error {
	batch, err := s.bookings.FindForSweep(ctx, ports.BookingSweepQuery{
		Statuses:  []domain.BookingStatus{domain.BookingStatusCheckedIn},
		EndsUntil: now,
		FlagUnset: domain.BookingFlagAlert,
		Limit:     s.cfg.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("overtime sweep: %w", err)
	}
	report.Alerted += s.each(ctx, "overtime", batch, &report.Failed, s.lifecycle.AlertOvertime)
	return nil
}

func (s *Sweeper) sweepExpired(ctx context.Context, now time.Time, report *Report) error {
	batch, err := s.bookings.FindForSweep(ctx, ports.BookingSweepQuery{
		Statuses:  []domain.BookingStatus{domain.BookingStatusReserved},
		EndsUntil: now,
		Limit:     s.cfg.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}
	report.Expired += s.each(ctx, "expire", batch, &report.Failed, s.lifecycle.Expire)
	return nil
}

func (s *Sweeper) sweepOrphanedHolds(ctx context.Context, now time.Time, report *Report) error {
	held, err := s.slots.FindOrphanedHolds(ctx, now.Add(-s.cfg.HoldTTL), s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("orphaned hold sweep: %w", err)
	}
	for _, slot := range held {
		if slot.ActiveBookingID == nil {
			continue
		}
		released, err := s.holds.Release(ctx, slot.ID, *slot.ActiveBookingID)
		if err != nil {
			report.Failed++
			telemetry.SweepProcessedTotal.WithLabelValues("orphaned_hold", "failed").Inc()
			s.log.Error("Failed to release orphaned hold", zap.String("slot_id", slot.ID), zap.Error(err))
			continue
		}
		if released {
			report.ReleasedHolds++
			telemetry.SweepProcessedTotal.WithLabelValues("orphaned_hold", "processed").Inc()
			s.log.Warn("Released orphaned slot hold",
				zap.String("slot_id", slot.ID),
				zap.String("booking_id", *slot.ActiveBookingID),
			)
		}
	}
	return nil
}

func (s *Sweeper) sweepSubscriptions(ctx context.Context, now time.Time, report *Report) error {
	n, err := s.subs.ExpireLapsed(ctx, now)
	if err != nil {
		return fmt.Errorf("subscription sweep: %w", err)
	}
	report.ExpiredSubscriptions = n
	if n > 0 {
		telemetry.SweepProcessedTotal.WithLabelValues("subscription", "processed").Add(float64(n))
	}
	return nil
}

// each applies fn to every booking of the batch, isolating failures and
// panics per record. It returns how many calls reported a change.
func (s *Sweeper) each(ctx context.Context, sweep string, batch []domain.Booking, failed *int, fn func(context.Context, *domain.Booking) (bool, error)) int {
	changed := 0
	for i := range batch {
		b := &batch[i]
		ok, err := s.apply(ctx, b, fn)
		switch {
		case err != nil:
			*failed++
			telemetry.SweepProcessedTotal.WithLabelValues(sweep, "failed").Inc()
			s.log.Error("Sweep failed for booking",
				zap.String("sweep", sweep),
				zap.String("booking_id", b.ID),
				zap.Error(err),
			)
		case ok:
			changed++
			telemetry.SweepProcessedTotal.WithLabelValues(sweep, "processed").Inc()
		default:
			telemetry.SweepProcessedTotal.WithLabelValues(sweep, "skipped").Inc()
		}
	}
	return changed
}

func (s *Sweeper) apply(ctx context.Context, b *domain.Booking, fn func(context.Context, *domain.Booking) (bool, error)) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, b)
}
