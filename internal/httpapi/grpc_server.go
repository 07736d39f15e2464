package httpapi

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const grpcServiceName = "permatrix.api"

// GRPCServer exposes the standard gRPC health service so orchestrators
// can probe the API over gRPC as well as HTTP.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
}

// NewGRPCServer creates the gRPC service wrapper.
func NewGRPCServer() *GRPCServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	return &GRPCServer{server: s, health: h}
}

// SetServing flips the advertised health status.
func (g *GRPCServer) SetServing(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(grpcServiceName, status)
	g.health.SetServingStatus("", status)
}

// Serve blocks serving gRPC on the listener.
func (g *GRPCServer) Serve(lis net.Listener) error {
	return g.server.Serve(lis)
}

// GracefulStop drains in-flight RPCs and stops the server.
func (g *GRPCServer) GracefulStop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
