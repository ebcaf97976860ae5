package hyperpb

import (
	"context"

	"google.golang.org/grpc"
)

// HyperServiceServer is the server-side counterpart of HyperServiceClient,
// in the shape protoc-gen-go-grpc would emit. Production code never
// implements this interface — Hyper itself is the server — but an
// in-process fake implementing it lets tests exercise the Gateway/FSM/
// paginators/poller over a real grpc.Server+bufconn pair instead of the
// hyperpbtest stub-level fakes.
type HyperServiceServer interface {
	ExecuteQuery(req *ExecuteQueryRequest, stream grpc.ServerStreamingServer[ExecuteQueryResponse]) error
	GetQueryInfo(req *GetQueryInfoRequest, stream grpc.ServerStreamingServer[QueryInfo]) error
	GetQueryResult(req *GetQueryResultRequest, stream grpc.ServerStreamingServer[QueryResult]) error
	CancelQuery(ctx context.Context, req *CancelQueryRequest) (*CancelQueryResponse, error)
}

// RegisterHyperServiceServer registers srv with s under ServiceName, using
// the hyperwire codec's content subtype.
func RegisterHyperServiceServer(s grpc.ServiceRegistrar, srv HyperServiceServer) {
	s.RegisterService(&hyperServiceDesc, srv)
}

func executeQueryHandler(srv any, stream grpc.ServerStream) error {
	req := new(ExecuteQueryRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(HyperServiceServer).ExecuteQuery(req, &genServerStreamingServer[ExecuteQueryResponse]{stream})
}

func getQueryInfoHandler(srv any, stream grpc.ServerStream) error {
	req := new(GetQueryInfoRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(HyperServiceServer).GetQueryInfo(req, &genServerStreamingServer[QueryInfo]{stream})
}

func getQueryResultHandler(srv any, stream grpc.ServerStream) error {
	req := new(GetQueryResultRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(HyperServiceServer).GetQueryResult(req, &genServerStreamingServer[QueryResult]{stream})
}

func cancelQueryHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(CancelQueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(HyperServiceServer).CancelQuery(ctx, req)
}

var hyperServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HyperServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CancelQuery", Handler: cancelQueryHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ExecuteQuery", Handler: executeQueryHandler, ServerStreams: true},
		{StreamName: "GetQueryInfo", Handler: getQueryInfoHandler, ServerStreams: true},
		{StreamName: "GetQueryResult", Handler: getQueryResultHandler, ServerStreams: true},
	},
}

// genServerStreamingServer adapts a raw grpc.ServerStream to the typed
// grpc.ServerStreamingServer[Msg] interface generated code normally
// provides, the server-side mirror of genServerStream in service.go.
type genServerStreamingServer[Msg any] struct {
	grpc.ServerStream
}

func (s *genServerStreamingServer[Msg]) Send(m *Msg) error {
	return s.ServerStream.SendMsg(m)
}
