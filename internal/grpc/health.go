package grpc

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"classroom-chat/internal/observability"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "classroom-chat"

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 and keeps its status in step with the
// registered dependency checks.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHealthServer builds the server. interval <= 0 defaults to 15s.
func NewHealthServer(checks map[string]Check, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &HealthServer{
		server:   server,
		health:   hs,
		checks:   checks,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Refresh runs every check once and publishes the resulting status.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			log.Printf("health check failed name=%s: %v", name, err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve listens on lis until Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.Refresh(context.Background())
	go h.watch()

	log.Printf("grpc health listening addr=%s", lis.Addr())
	if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// ListenAndServe is Serve on a new TCP listener.
func (h *HealthServer) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return h.Serve(lis)
}

// Stop marks the service as not serving and stops the server gracefully.
func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.health.Shutdown()
		h.server.GracefulStop()
	})
}

func (h *HealthServer) watch() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), h.interval)
			h.Refresh(ctx)
			cancel()
		}
	}
}
