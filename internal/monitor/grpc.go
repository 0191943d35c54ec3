package monitor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/banshee-data/planemesh/internal/monitoring"
)

// PipelineService is the health service name that tracks the stage.
const PipelineService = "planemesh.pipeline"

// HealthServer exposes the standard gRPC health service. The overall
// server is SERVING while it runs; PipelineService follows the stage's
// Running flag.
type HealthServer struct {
	address  string
	source   Source
	interval time.Duration

	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHealthServer creates a health server polling source every interval.
func NewHealthServer(address string, source Source, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = time.Second
	}
	hs := &HealthServer{
		address:  address,
		source:   source,
		interval: interval,
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		stopCh:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	reflection.Register(hs.server)
	return hs
}

// Addr returns the bound address once Start has succeeded.
func (hs *HealthServer) Addr() net.Addr {
	if hs.listener == nil {
		return nil
	}
	return hs.listener.Addr()
}

// Start binds the listener and serves in the background until ctx is
// cancelled or Stop is called.
func (hs *HealthServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", hs.address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	hs.listener = lis
	hs.update()

	hs.wg.Add(2)
	go func() {
		defer hs.wg.Done()
		monitoring.Opsf("[monitor] gRPC health listening on %s", lis.Addr())
		if err := hs.server.Serve(lis); err != nil {
			monitoring.Opsf("[monitor] gRPC server error: %v", err)
		}
	}()
	go func() {
		defer hs.wg.Done()
		ticker := time.NewTicker(hs.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.shutdown()
				return
			case <-hs.stopCh:
				return
			case <-ticker.C:
				hs.update()
			}
		}
	}()
	return nil
}

func (hs *HealthServer) update() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if hs.source.Status().Running {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.health.SetServingStatus(PipelineService, st)
}

func (hs *HealthServer) shutdown() {
	hs.stopOnce.Do(func() {
		close(hs.stopCh)
		hs.health.Shutdown()
		hs.server.GracefulStop()
	})
}

// Stop shuts the server down and waits for its goroutines.
func (hs *HealthServer) Stop() {
	hs.shutdown()
	hs.wg.Wait()
	monitoring.Opsf("[monitor] gRPC health server stopped")
}
