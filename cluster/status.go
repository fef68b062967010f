// Package cluster exposes the progress of a generation job over gRPC, as a health service
// per stage. A stage reports NOT_SERVING while it runs and SERVING once it has persisted.
package cluster

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// JobService is the health service name describing the job as a whole
const JobService = ""

// StatusOptions configure a StatusServer
type StatusOptions struct {
	Host string // hostname to bind to
	Port int    // port to bind to
}

func (o *StatusOptions) connectionString() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// StatusServer serves stage statuses through the standard gRPC health protocol
type StatusServer struct {
	opts    *StatusOptions
	logger  *zap.Logger
	health  *health.Server
	server  *grpc.Server
	stopped bool
	lock    sync.Mutex
}

// NewStatusServer creates a StatusServer. The job service reports NOT_SERVING until JobFinished.
func NewStatusServer(opts *StatusOptions, logger *zap.Logger) *StatusServer {
	if opts == nil {
		opts = &StatusOptions{}
	}
	if len(opts.Host) == 0 {
		opts.Host = "0.0.0.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := health.NewServer()
	hs.SetServingStatus(JobService, healthpb.HealthCheckResponse_NOT_SERVING)
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	return &StatusServer{opts: opts, logger: logger.Named("status"), health: hs, server: server}
}

// StageStarted marks a stage as running
func (s *StatusServer) StageStarted(stage string) {
	s.health.SetServingStatus(stage, healthpb.HealthCheckResponse_NOT_SERVING)
}

// StagePersisted marks a stage as durable
func (s *StatusServer) StagePersisted(stage string) {
	s.health.SetServingStatus(stage, healthpb.HealthCheckResponse_SERVING)
}

// JobFinished reports the outcome of the job on the job service
func (s *StatusServer) JobFinished(err error) {
	if err != nil {
		s.health.SetServingStatus(JobService, healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.health.SetServingStatus(JobService, healthpb.HealthCheckResponse_SERVING)
}

// Start listens on the configured address and serves - blocking unless run in a goroutine
func (s *StatusServer) Start() error {
	lis, err := net.Listen("tcp", s.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener - blocking unless run in a goroutine
func (s *StatusServer) Serve(lis net.Listener) error {
	s.logger.Info("Starting stage status service", zap.String("address", lis.Addr().String()))
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve: %v", err)
	}
	return nil
}

// GracefulStop stops the server, waiting for RPCs to finish
func (s *StatusServer) GracefulStop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.health.Shutdown()
	s.server.GracefulStop()
}

// Stop stops the server immediately
func (s *StatusServer) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.health.Shutdown()
	s.server.Stop()
}
