// Package health aggregates dependency and background-worker checks into the
// liveness and readiness probes served over HTTP and gRPC.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity orders statuses from best to worst
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

type CheckResult struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is ready unless some check is unhealthy. A degraded check
// lowers Status but keeps the instance in rotation.
type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type Checker func(ctx context.Context) CheckResult

type Config struct {
	Version string
	DB      *sql.DB
	Redis   *redis.Client
	Timeout time.Duration
}

type Service struct {
	started time.Time
	version string
	timeout time.Duration
	log     *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewService registers ping checks for the database and Redis when present
func NewService(config *Config, log *zap.Logger) *Service {
	s := &Service{
		started:  time.Now(),
		version:  config.Version,
		timeout:  config.Timeout,
		log:      log,
		checkers: make(map[string]Checker),
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	if config.DB != nil {
		s.RegisterChecker("database", PingChecker("database", config.DB.PingContext, log))
	}
	if config.Redis != nil {
		client := config.Redis
		s.RegisterChecker("redis", PingChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}, log))
	}
	return s
}

func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	s.checkers[name] = checker
	s.mu.Unlock()
	s.log.Debug("Registered health checker", zap.String("name", name))
}

// Health reports liveness; it never inspects dependencies
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Ready runs every checker concurrently, each under the service timeout
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for name, c := range s.checkers {
		checkers[name] = c
	}
	s.mu.RUnlock()

	type named struct {
		name   string
		result CheckResult
	}
	out := make(chan named, len(checkers))
	for name, c := range checkers {
		go func(name string, c Checker) {
			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			out <- named{name, c(checkCtx)}
		}(name, c)
	}

	resp := &ReadyResponse{
		Ready:  true,
		Status: StatusHealthy,
		Checks: make(map[string]CheckResult, len(checkers)),
	}
	for range checkers {
		n := <-out
		resp.Checks[n.name] = n.result
		if n.result.Status.severity() > resp.Status.severity() {
			resp.Status = n.result.Status
		}
	}
	resp.Ready = resp.Status != StatusUnhealthy
	resp.Timestamp = time.Now()
	return resp
}

// PingChecker reports unhealthy when ping fails
func PingChecker(name string, ping func(ctx context.Context) error, log *zap.Logger) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		err := ping(ctx)
		result := CheckResult{
			Name:       name,
			Status:     StatusHealthy,
			Message:    "ok",
			DurationMS: time.Since(start).Milliseconds(),
			Timestamp:  start,
		}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = fmt.Sprintf("ping failed: %v", err)
			log.Warn("Health check failed", zap.String("name", name), zap.Error(err))
		}
		return result
	}
}

// FlagChecker maps a background component's own health flag to a result.
// An unhealthy flag degrades the service without failing readiness.
func FlagChecker(name string, healthy func() bool) Checker {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{
			Name:      name,
			Status:    StatusHealthy,
			Message:   "running",
			Timestamp: time.Now(),
		}
		if !healthy() {
			result.Status = StatusDegraded
			result.Message = "consecutive cycles failed"
		}
		return result
	}
}
