// Package server exposes the internal gRPC port: the standard health service
// backed by the readiness checks, plus reflection for grpcurl.
package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/seu-repo/parkflow/internal/adapter/grpc/interceptors"
	"github.com/seu-repo/parkflow/internal/service/health"
)

// ReadinessChecker runs the registered health checks
type ReadinessChecker interface {
	Ready(ctx context.Context) *health.ReadyResponse
}

type GRPCServer struct {
	server    *grpc.Server
	health    *grpchealth.Server
	readiness ReadinessChecker
	interval  time.Duration
	log       *zap.Logger
}

func NewGRPCServer(readiness ReadinessChecker, interval time.Duration, log *zap.Logger) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptors.UnaryLoggingInterceptor(log),
		interceptors.UnaryMetricsInterceptor(),
	))

	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Enable reflection for debugging (e.g. grpcurl)
	reflection.Register(s)

	return &GRPCServer{
		server:    s,
		health:    hs,
		readiness: readiness,
		interval:  interval,
		log:       log,
	}
}

// Watch mirrors the readiness checks into serving statuses until ctx is done.
// The empty service name carries overall readiness; each check is also
// published under its own name, where degraded counts as NOT_SERVING.
func (s *GRPCServer) Watch(ctx context.Context) {
	s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Refresh runs the checks once and updates the serving statuses
func (s *GRPCServer) Refresh(ctx context.Context) {
	ready := s.readiness.Ready(ctx)

	overall := healthpb.HealthCheckResponse_SERVING
	if !ready.Ready {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)

	for name, check := range ready.Checks {
		st := healthpb.HealthCheckResponse_SERVING
		if check.Status != health.StatusHealthy {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.Warn("Component not serving",
				zap.String("component", name),
				zap.String("status", string(check.Status)),
				zap.String("message", check.Message),
			)
		}
		s.health.SetServingStatus(name, st)
	}
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
