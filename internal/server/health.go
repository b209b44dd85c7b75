package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// WorkerService is the health service name reported for the batch worker.
const WorkerService = "nomina.worker"

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

// HealthServer exposes grpc.health.v1 and flips the worker status from a periodic probe.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	probe    Probe
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthServer(probe Probe, interval time.Duration, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(WorkerService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{grpc: gs, health: hs, probe: probe, interval: interval, logger: logger}
}

// Health returns the underlying health service.
func (h *HealthServer) Health() grpc_health_v1.HealthServer {
	return h.health
}

// Check runs the probe once and records the worker status.
func (h *HealthServer) Check(ctx context.Context) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if h.probe != nil {
		if err := h.probe(ctx); err != nil {
			h.logger.Warn("health.probe.failed", "error", err)
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus(WorkerService, status)
}

// Serve listens on addr and probes until ctx is done, then stops gracefully.
func (h *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	h.logger.Info("health server listening", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- h.grpc.Serve(lis) }()

	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			h.grpc.GracefulStop()
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
