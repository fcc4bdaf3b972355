package platform

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCHealthChecker(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	checker, err := NewGRPCHealthChecker(lis.Addr().String(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = checker.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, checker.Check(ctx))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	assert.ErrorIs(t, checker.Check(ctx), ErrUnavailable)
}
