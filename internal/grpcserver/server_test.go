package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewServer(zerolog.Nop())
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth(t *testing.T) {
	s, c := startServer(t)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ""))
	for _, svc := range Services {
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, svc))
	}

	s.SetServing(ServiceCatalog, true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ServiceCatalog))

	s.SetServing(ServiceCatalog, false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, ServiceCatalog))
}

func TestHealth_UnknownService(t *testing.T) {
	_, c := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: "keplerhub.nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
