// internal/gateway/server.go
// Package gateway exposes the gRPC ingest front-door described in spec.md
// §6: a unary Report, a bidirectional-streaming StreamReport, and a Heartbeat
// RPC, all backed by the ingest façade (C5). Optional bearer/JWT auth
// gates every call, mirroring the original gateway's interceptor wiring.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/ingestpb"
	"github.com/ablate-ai/iris/internal/logging"
)

// Server implements ingestpb.IngestServiceServer over an ingest façade.
type Server struct {
	ingestpb.UnimplementedIngestServiceServer

	cfg     Config
	facade  *ingest.Facade
	grpcSrv *grpc.Server
	jwt     jwtHelper
}

// New returns a ready-to-serve Server. The caller must invoke
// ListenAndServe.
func New(cfg Config, facade *ingest.Facade) (*Server, error) {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:    cfg,
		facade: facade,
		jwt:    newJWTHelper(cfg.JWT),
	}

	var opts []grpc.ServerOption
	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(&tls.Config{Certificates: []tls.Certificate{cert}})))
	}
	opts = append(opts,
		grpc.StreamInterceptor(s.streamAuthInterceptor()),
		grpc.UnaryInterceptor(s.unaryAuthInterceptor()),
	)

	s.grpcSrv = grpc.NewServer(opts...)
	ingestpb.RegisterIngestServiceServer(s.grpcSrv, s)
	return s, nil
}

// ListenAndServe blocks, serving the gRPC ingest API until ctx is
// cancelled, at which point it gracefully drains in-flight RPCs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.grpcSrv.GracefulStop()
	}()

	logging.Sugar().Infow("ingest gateway listening", "addr", ln.Addr().String())
	return s.grpcSrv.Serve(ln)
}

// Report handles the unary ingest RPC: one sample in, one ack out
// (spec.md §6 "Handler calls save_sync and maps error to a transport-level
// internal error with a textual reason").
func (s *Server) Report(ctx context.Context, in *ingestpb.MetricsSample) (*ingestpb.ReportAck, error) {
	if err := s.facade.SaveSync(ctx, in.ToModel()); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &ingestpb.ReportAck{Success: true}, nil
}

// StreamReport handles the streaming ingest RPC. The server sends one
// ReportAck as soon as the stream is established (spec.md §6), then
// processes samples until the client disconnects; persistence failures
// are logged but never tear down the stream — agents retry from their
// side.
func (s *Server) StreamReport(stream ingestpb.IngestService_StreamReportServer) error {
	if err := stream.Send(&ingestpb.ReportAck{Success: true, Message: "stream established"}); err != nil {
		return err
	}

	log := logging.Sugar()
	for {
		in, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		sample := in.ToModel()
		if err := s.facade.SaveSync(stream.Context(), sample); err != nil {
			log.Warnw("stream_report: persist failed", "agent_id", sample.AgentID, "err", err)
		}
	}
}

// Heartbeat returns the server's wall clock and touches no storage
// (spec.md §6).
func (s *Server) Heartbeat(ctx context.Context, in *ingestpb.HeartbeatRequest) (*ingestpb.HeartbeatResponse, error) {
	return &ingestpb.HeartbeatResponse{ServerTimeMs: time.Now().UnixMilli()}, nil
}
