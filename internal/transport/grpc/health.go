package grpc_server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name probes pass in HealthCheckRequest.Service.
const ServiceName = "cardvault.Discovery"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer reports SERVING while the store answers pings.
type HealthServer struct {
	health *health.Server
	store  Pinger
	log    *zap.Logger
}

func NewHealthServer(store Pinger, log *zap.Logger) *HealthServer {
	return &HealthServer{health: health.NewServer(), store: store, log: log.Named("grpc-health")}
}

// NewServer builds a gRPC server with health and reflection registered.
func (h *HealthServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.health)
	reflection.Register(s)
	return s
}

// Refresh pings the store once and updates both the overall and the
// named service status.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch refreshes the status every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Shutdown marks everything NOT_SERVING so probes stop routing here.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}

func (h *HealthServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
