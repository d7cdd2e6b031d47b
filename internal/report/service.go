package report

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// Reports and acks travel as google.protobuf.Struct so the sink needs no
// generated stubs beyond the well-known types.
const (
	ServiceName   = "covid.analysis.ReportSink"
	publishMethod = "/" + ServiceName + "/Publish"
)

// ReportSinkClient is the client API of the report sink.
type ReportSinkClient interface {
	Publish(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type reportSinkClient struct {
	cc grpc.ClientConnInterface
}

// NewReportSinkClient binds a client to a connection.
func NewReportSinkClient(cc grpc.ClientConnInterface) ReportSinkClient {
	return &reportSinkClient{cc: cc}
}

func (c *reportSinkClient) Publish(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, publishMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportSinkServer is the server API of the report sink.
type ReportSinkServer interface {
	Publish(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// RegisterReportSinkServer registers srv on s.
func RegisterReportSinkServer(s grpc.ServiceRegistrar, srv ReportSinkServer) {
	s.RegisterService(&reportSinkServiceDesc, srv)
}

func publishHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReportSinkServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReportSinkServer).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var reportSinkServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReportSinkServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "covid/analysis/report.proto",
}

// #endregion service-desc
