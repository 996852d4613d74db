package server

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startAdminServer(t *testing.T) (*AdminServer, healthpb.HealthClient) {
	admin := NewAdminServer(slog.Default())
	listener := bufconn.Listen(1024 * 1024)
	go func() { _ = admin.Serve(listener) }()
	t.Cleanup(admin.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return admin, healthpb.NewHealthClient(conn)
}

func TestAdminServer_Health(t *testing.T) {
	req := require.New(t)
	admin, client := startAdminServer(t)
	ctx := context.Background()

	// Given a gateway not ready yet
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: GatewayService})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	// When it becomes ready
	admin.SetServing(true)

	// Then both the gateway and the overall status are serving
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: GatewayService})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, resp.Status)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestAdminServer_Unknown_Service(t *testing.T) {
	req := require.New(t)
	_, client := startAdminServer(t)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown"})

	req.Error(err)
}
