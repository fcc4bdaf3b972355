package platform

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthChecker queries the platform's grpc.health.v1 endpoint
type GRPCHealthChecker struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
}

// NewGRPCHealthChecker connects lazily to address
func NewGRPCHealthChecker(address, service string) (*GRPCHealthChecker, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc health client: %w", err)
	}
	return &GRPCHealthChecker{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		service: service,
	}, nil
}

// Check returns nil when the platform reports SERVING
func (g *GRPCHealthChecker) Check(ctx context.Context) error {
	resp, err := g.client.Check(ctx, &healthpb.HealthCheckRequest{Service: g.service})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: status %s", ErrUnavailable, resp.GetStatus())
	}
	return nil
}

// Close closes the connection
func (g *GRPCHealthChecker) Close() error {
	return g.conn.Close()
}
