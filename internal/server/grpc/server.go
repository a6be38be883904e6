// Package grpc serves the standard gRPC health service (grpc.health.v1),
// backed by the same dependency probes as the HTTP /health endpoint.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/bloghub/internal/logging"
	"github.com/dmitrijs2005/bloghub/internal/server/health"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported besides the overall "".
const ServiceName = "bloghub"

type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

type GRPCServer struct {
	address  string
	logger   logging.Logger
	checker  HealthChecker
	interval time.Duration
	health   *grpchealth.Server
}

// NewGRPCServer builds a health server that re-runs the probes every interval.
func NewGRPCServer(a string, l logging.Logger, hc HealthChecker, interval time.Duration) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		checker:  hc,
		interval: interval,
		health:   grpchealth.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))

	// registers service
	healthpb.RegisterHealthServer(srv, s.health)

	s.refresh(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections; a stop that wins the race with
	// Serve is a normal shutdown
	if err := srv.Serve(listen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}

// refresh runs the probes and publishes the result: the overall status under
// "" and ServiceName, and one status per probe under "bloghub.<probe>".
func (s *GRPCServer) refresh(ctx context.Context) {
	r := s.checker.Check(ctx)

	s.health.SetServingStatus("", servingStatus(r.Healthy))
	s.health.SetServingStatus(ServiceName, servingStatus(r.Healthy))
	for name, result := range r.Checks {
		s.health.SetServingStatus(ServiceName+"."+name, servingStatus(result == "ok"))
	}

	if !r.Healthy {
		s.logger.Warn(ctx, "health check failed", "checks", r.Checks)
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
