package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GatewayService is the name under which the readiness of the chat gateway is reported.
const GatewayService = "groupchat.Gateway"

// AdminServer is the operator plane: gRPC health checks and server reflection.
// It carries no chat traffic.
type AdminServer struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

func NewAdminServer(log *slog.Logger) *AdminServer {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)

	// Not serving until the gateway reports ready
	h.SetServingStatus(GatewayService, healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &AdminServer{log: log, server: s, health: h}
}

// SetServing flips both the overall and the gateway status.
func (a *AdminServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus(GatewayService, status)
	a.health.SetServingStatus("", status)
	a.log.Info("Health status changed", "status", status.String())
}

// Serve blocks until the listener fails or the server is stopped.
func (a *AdminServer) Serve(listener net.Listener) error {
	for serviceName := range a.server.GetServiceInfo() {
		a.log.Debug("gRPC exposed service", "name", serviceName)
	}
	if err := a.server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("admin server error: %w", err)
	}
	return nil
}

// GracefulStop reports not serving first, so watchers see the drain before the server leaves.
func (a *AdminServer) GracefulStop() {
	a.health.Shutdown()
	a.server.GracefulStop()
}
