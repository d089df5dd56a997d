// Package health exposes the standard gRPC health service so orchestrators
// can tell whether the relay's scheduler is running.
package health

import (
	"context"
	"net"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the server-wide "" entry.
const ServiceName = "tweetrelay.Relay"

type Server struct {
	address string
	health  *health.Server
	logger  logging.Logger
}

// NewServer returns a server that reports NOT_SERVING until SetServing(true).
func NewServer(address string, l logging.Logger) *Server {
	s := &Server{
		address: address,
		health:  health.NewServer(),
		logger:  l.With("module", "health"),
	}
	s.SetServing(false)
	return s
}

func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping health server")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "starting health server", "address", listen.Addr().String())
	return srv.Serve(listen)
}
