package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName gRPC 健康检查中本服务的名字
const HealthServiceName = "tempshare.FileService"

// HealthProbe 返回 nil 表示服务可用
type HealthProbe func(ctx context.Context) error

// GRPCServer 只提供标准健康检查协议，供负载均衡与编排系统探测
type GRPCServer struct {
	addr       string
	interval   time.Duration
	probe      HealthProbe
	logger     *logger.Logger
	grpcServer *grpc.Server
	health     *health.Server

	stopOnce sync.Once
	done     chan struct{}
}

// NewGRPCServer 创建 gRPC 服务器，interval 为探测周期
func NewGRPCServer(addr string, probe HealthProbe, interval time.Duration, log *logger.Logger) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RecoveryInterceptor(log),
			logger.UnaryServerInterceptor(log, healthpb.Health_Check_FullMethodName),
		),
		grpc.ChainStreamInterceptor(
			logger.RecoveryStreamInterceptor(log),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// 启用反射（用于 grpcurl 等工具）
	reflection.Register(grpcServer)

	return &GRPCServer{
		addr:       addr,
		interval:   interval,
		probe:      probe,
		logger:     log,
		grpcServer: grpcServer,
		health:     hs,
		done:       make(chan struct{}),
	}
}

// Start 监听 addr 并阻塞直到服务停止
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("starting gRPC server", zap.String("addr", s.addr))
	return s.Serve(lis)
}

// Serve 在已有的 listener 上提供服务
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.refresh(context.Background())
	go s.watch()

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop 标记为不可用后优雅停止
func (s *GRPCServer) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping gRPC server")
		close(s.done)
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	})
}

func (s *GRPCServer) watch() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.refresh(context.Background())
		}
	}
}

func (s *GRPCServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(ctx, s.interval)
		defer cancel()
		if err := s.probe(ctx); err != nil {
			s.logger.Warn("health probe failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthServiceName, status)
}
