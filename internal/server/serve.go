package server

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Serve listens on addr and serves svc until ctx is done, then stops gracefully.
func Serve(ctx context.Context, addr string, svc ScreeningServer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("grpc.listen_failed", "addr", addr, "error", err)
		return err
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(logger)))
	RegisterScreeningServer(grpcServer, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	// grpcurl
	reflection.Register(grpcServer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("grpc.listening", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("grpc.shutting_down")
		hs.Shutdown()
		grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		logger.Error("grpc.serve_failed", "error", err)
		return err
	}
}
