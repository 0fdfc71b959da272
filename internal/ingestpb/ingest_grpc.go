// internal/ingestpb/ingest_grpc.go
//
// Hand-written in the shape protoc-gen-go-grpc v1.5.1 would emit from an
// ingest.proto defining the IngestService named in spec.md §6 (Report,
// StreamReport, Heartbeat). No protoc toolchain is available in this
// environment, so this file is written by hand against the same
// grpc.GenericClientStream / grpc.GenericServerStream generics other
// generated code in this codebase's lineage already uses, rather than
// faking protoreflect/protoimpl message machinery.
package ingestpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Compile-time assertion that this file is compatible with the grpc
// package it is built against, mirroring generated code's own guard.
const _ = grpc.SupportPackageIsVersion9

const (
	IngestService_Report_FullMethodName       = "/ingestpb.IngestService/Report"
	IngestService_StreamReport_FullMethodName = "/ingestpb.IngestService/StreamReport"
	IngestService_Heartbeat_FullMethodName    = "/ingestpb.IngestService/Heartbeat"
)

// IngestServiceClient is the client API for IngestService.
type IngestServiceClient interface {
	// Report sends one sample and awaits save_sync's result.
	Report(ctx context.Context, in *MetricsSample, opts ...grpc.CallOption) (*ReportAck, error)
	// StreamReport opens a bidirectional stream: the server sends one
	// ReportAck as soon as the stream is established (spec.md §6), then
	// the client pushes any number of samples until it closes the stream.
	// It is modeled as bidi (rather than a plain client-streaming RPC) so
	// the server can emit that initial ack without waiting for EOF.
	StreamReport(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[MetricsSample, ReportAck], error)
	// Heartbeat returns the server's wall clock and touches no storage.
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
}

type ingestServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewIngestServiceClient wraps cc. Callers that want the msgpack codec
// (rather than the connection's default) should pass
// grpc.CallContentSubtype(ingestpb.CallContentSubtype) via opts on each call.
func NewIngestServiceClient(cc grpc.ClientConnInterface) IngestServiceClient {
	return &ingestServiceClient{cc}
}

func (c *ingestServiceClient) Report(ctx context.Context, in *MetricsSample, opts ...grpc.CallOption) (*ReportAck, error) {
	out := new(ReportAck)
	err := c.cc.Invoke(ctx, IngestService_Report_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ingestServiceClient) StreamReport(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[MetricsSample, ReportAck], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &IngestService_ServiceDesc.Streams[0], IngestService_StreamReport_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[MetricsSample, ReportAck]{ClientStream: stream}
	return x, nil
}

// IngestService_StreamReportClient is kept for readers used to the
// non-generic naming generated code historically used.
type IngestService_StreamReportClient = grpc.BidiStreamingClient[MetricsSample, ReportAck]

func (c *ingestServiceClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	err := c.cc.Invoke(ctx, IngestService_Heartbeat_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IngestServiceServer is the server API for IngestService. All
// implementations must embed UnimplementedIngestServiceServer for forward
// compatibility.
type IngestServiceServer interface {
	Report(context.Context, *MetricsSample) (*ReportAck, error)
	StreamReport(grpc.BidiStreamingServer[MetricsSample, ReportAck]) error
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	mustEmbedUnimplementedIngestServiceServer()
}

// UnimplementedIngestServiceServer must be embedded by value to have
// forward-compatible implementations.
type UnimplementedIngestServiceServer struct{}

func (UnimplementedIngestServiceServer) Report(context.Context, *MetricsSample) (*ReportAck, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Report not implemented")
}
func (UnimplementedIngestServiceServer) StreamReport(grpc.BidiStreamingServer[MetricsSample, ReportAck]) error {
	return status.Errorf(codes.Unimplemented, "method StreamReport not implemented")
}
func (UnimplementedIngestServiceServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedIngestServiceServer) mustEmbedUnimplementedIngestServiceServer() {}
func (UnimplementedIngestServiceServer) testEmbeddedByValue()                       {}

// UnsafeIngestServiceServer may be embedded to opt out of forward
// compatibility for this service.
type UnsafeIngestServiceServer interface {
	mustEmbedUnimplementedIngestServiceServer()
}

func RegisterIngestServiceServer(s grpc.ServiceRegistrar, srv IngestServiceServer) {
	if t, ok := srv.(interface{ testEmbeddedByValue() }); ok {
		t.testEmbeddedByValue()
	}
	s.RegisterService(&IngestService_ServiceDesc, srv)
}

func _IngestService_Report_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MetricsSample)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServiceServer).Report(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: IngestService_Report_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServiceServer).Report(ctx, req.(*MetricsSample))
	}
	return interceptor(ctx, in, info, handler)
}

func _IngestService_StreamReport_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(IngestServiceServer).StreamReport(&grpc.GenericServerStream[MetricsSample, ReportAck]{ServerStream: stream})
}

// IngestService_StreamReportServer is kept for readers used to the
// non-generic naming generated code historically used.
type IngestService_StreamReportServer = grpc.BidiStreamingServer[MetricsSample, ReportAck]

func _IngestService_Heartbeat_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServiceServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: IngestService_Heartbeat_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IngestServiceServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// IngestService_ServiceDesc is the grpc.ServiceDesc for IngestService.
var IngestService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ingestpb.IngestService",
	HandlerType: (*IngestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Report",
			Handler:    _IngestService_Report_Handler,
		},
		{
			MethodName: "Heartbeat",
			Handler:    _IngestService_Heartbeat_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamReport",
			Handler:       _IngestService_StreamReport_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "ingest.proto",
}
