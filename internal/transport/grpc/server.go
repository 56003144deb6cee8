package grpc

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type ServerConfig struct {
	RequestTimeout time.Duration
}

// NewServer builds a gRPC server exposing SchedulingService and the standard health
// service. The returned health server lets the caller flip serving status on shutdown.
func NewServer(svc schedulingService, log *slog.Logger, cfg ServerConfig, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			requestIDInterceptor(),
			defaultRequestTimeoutInterceptor(cfg.RequestTimeout),
		),
	}, opts...)

	s := grpc.NewServer(opts...)
	RegisterSchedulingServiceServer(s, NewSchedulingServer(svc, log))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s, hs
}
