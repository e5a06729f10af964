package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/oggyb/arena-signals/internal/config"
	"github.com/oggyb/arena-signals/internal/logger"
)

// Server is a gRPC server with health and reflection registered.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	log    *slog.Logger
}

// New builds the server and registers all provided services.
func New(log *slog.Logger, registrars ...Registrar) *Server {
	if log == nil {
		log = slog.Default()
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(logUnary(log)),
		grpc.ChainStreamInterceptor(logStream(log)),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)

	return &Server{GRPC: grpcServer, Health: hs, log: log}
}

// Serve accepts connections on lis until ctx is done, then drains
// in-flight calls.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	stop := context.AfterFunc(ctx, func() {
		s.Health.Shutdown()
		s.GRPC.GracefulStop()
	})
	defer stop()

	if err := s.GRPC.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// StartGRPCServer boots a gRPC server on the configured address and
// registers all provided services. It returns once ctx is done.
func StartGRPCServer(ctx context.Context, cfg *config.Config, log *slog.Logger, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return New(log, registrars...).Serve(ctx, lis)
}

// requestLogger tags every log line of a call with its method and a
// fresh request id. Handlers reach it through logger.FromContext.
func requestLogger(log *slog.Logger, method string) *slog.Logger {
	return log.With("method", method, "request_id", uuid.NewString())
}

func logUnary(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rl := requestLogger(log, info.FullMethod)
		resp, err := handler(logger.IntoContext(ctx, rl), req)
		logCall(rl, start, err)
		return resp, err
	}
}

type scopedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *scopedStream) Context() context.Context { return s.ctx }

func logStream(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		rl := requestLogger(log, info.FullMethod)
		err := handler(srv, &scopedStream{ServerStream: ss, ctx: logger.IntoContext(ss.Context(), rl)})
		logCall(rl, start, err)
		return err
	}
}

func logCall(log *slog.Logger, start time.Time, err error) {
	code := status.Code(err)
	args := []any{"code", code.String(), "duration", time.Since(start)}
	if code == codes.Internal || code == codes.Unknown {
		log.Error("rpc failed", append(args, "err", err)...)
		return
	}
	log.Debug("rpc", args...)
}
