package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Health service names reported by the server, one per subsystem.
const (
	ServiceCatalog    = "keplerhub.catalog"
	ServiceClassifier = "keplerhub.classifier"
	ServiceLightCurve = "keplerhub.lightcurve"
)

var Services = []string{ServiceCatalog, ServiceClassifier, ServiceLightCurve}

type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	logger zerolog.Logger
}

// NewServer builds a gRPC server exposing grpc.health.v1 and reflection.
// All subsystems start NOT_SERVING; the overall "" status starts SERVING.
func NewServer(logger zerolog.Logger) *Server {
	s := &Server{
		Health: health.NewServer(),
		logger: logger.With().Str("component", "grpc").Logger(),
	}
	s.GRPC = grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverUnary, s.logUnary))

	healthpb.RegisterHealthServer(s.GRPC, s.Health)
	reflection.Register(s.GRPC)

	for _, svc := range Services {
		s.Health.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// SetServing flips one subsystem's health status.
func (s *Server) SetServing(service string, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus(service, st)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("gRPC server listening")
	return s.GRPC.Serve(ln)
}

// Stop marks everything NOT_SERVING and drains in-flight calls, bounded by
// ctx.
func (s *Server) Stop(ctx context.Context) {
	s.Health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.GRPC.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.GRPC.Stop()
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("took", time.Since(start)).
		Msg("grpc call")
	return resp, err
}

func (s *Server) recoverUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("grpc handler panicked")
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
