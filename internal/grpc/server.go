package grpc

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"marketdash/internal/auth"
)

// NewServer builds a gRPC server exposing the market data service, the
// standard health service and reflection.
func NewServer(svc *MarketDataService, gate *auth.Gate, logger *zap.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(logger), UnaryAuthInterceptor(gate)),
		grpc.ChainStreamInterceptor(StreamLoggingInterceptor(logger), StreamAuthInterceptor(gate)),
	)

	RegisterMarketDataServer(s, svc)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	reflection.Register(s)

	return s, healthServer
}
