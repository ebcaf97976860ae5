package hyperpb

import (
	"context"

	"google.golang.org/grpc"
)

// Service and method names form the grpc method path
// "/hyperdb.HyperService/<Method>", matching the five RPCs of spec.md §6.
const (
	ServiceName = "hyperdb.HyperService"

	MethodExecuteQuery    = "/" + ServiceName + "/ExecuteQuery"
	MethodGetQueryInfo    = "/" + ServiceName + "/GetQueryInfo"
	MethodGetQueryResult  = "/" + ServiceName + "/GetQueryResult"
	MethodCancelQuery     = "/" + ServiceName + "/CancelQuery"
)

// HyperServiceClient is a hand-authored client stub in the shape
// protoc-gen-go-grpc would emit for this service (see DESIGN.md): three
// server-streaming RPCs and one unary RPC, all carried over the
// "hyperwire" codec registered in codec.go.
type HyperServiceClient interface {
	ExecuteQuery(ctx context.Context, req *ExecuteQueryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ExecuteQueryResponse], error)
	GetQueryInfo(ctx context.Context, req *GetQueryInfoRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[QueryInfo], error)
	GetQueryResult(ctx context.Context, req *GetQueryResultRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[QueryResult], error)
	CancelQuery(ctx context.Context, req *CancelQueryRequest, opts ...grpc.CallOption) (*CancelQueryResponse, error)
}

type hyperServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewHyperServiceClient builds a HyperServiceClient over cc. Callers should
// dial cc with grpc.CallContentSubtype(hyperpb.CodecName()) (or set it as a
// default call option at DialContext time) so every RPC uses the codec
// registered in codec.go.
func NewHyperServiceClient(cc grpc.ClientConnInterface) HyperServiceClient {
	return &hyperServiceClient{cc: cc}
}

var executeQueryStreamDesc = grpc.StreamDesc{
	StreamName:    "ExecuteQuery",
	ServerStreams: true,
}

var getQueryInfoStreamDesc = grpc.StreamDesc{
	StreamName:    "GetQueryInfo",
	ServerStreams: true,
}

var getQueryResultStreamDesc = grpc.StreamDesc{
	StreamName:    "GetQueryResult",
	ServerStreams: true,
}

func (c *hyperServiceClient) ExecuteQuery(ctx context.Context, req *ExecuteQueryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ExecuteQueryResponse], error) {
	stream, err := c.cc.NewStream(ctx, &executeQueryStreamDesc, MethodExecuteQuery, opts...)
	if err != nil {
		return nil, err
	}
	s := &genServerStream[ExecuteQueryResponse]{ClientStream: stream}
	if err := s.SendMsg(req); err != nil {
		return nil, err
	}
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *hyperServiceClient) GetQueryInfo(ctx context.Context, req *GetQueryInfoRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[QueryInfo], error) {
	stream, err := c.cc.NewStream(ctx, &getQueryInfoStreamDesc, MethodGetQueryInfo, opts...)
	if err != nil {
		return nil, err
	}
	s := &genServerStream[QueryInfo]{ClientStream: stream}
	if err := s.SendMsg(req); err != nil {
		return nil, err
	}
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *hyperServiceClient) GetQueryResult(ctx context.Context, req *GetQueryResultRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[QueryResult], error) {
	stream, err := c.cc.NewStream(ctx, &getQueryResultStreamDesc, MethodGetQueryResult, opts...)
	if err != nil {
		return nil, err
	}
	s := &genServerStream[QueryResult]{ClientStream: stream}
	if err := s.SendMsg(req); err != nil {
		return nil, err
	}
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *hyperServiceClient) CancelQuery(ctx context.Context, req *CancelQueryRequest, opts ...grpc.CallOption) (*CancelQueryResponse, error) {
	resp := new(CancelQueryResponse)
	if err := c.cc.Invoke(ctx, MethodCancelQuery, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// genServerStream adapts a raw grpc.ClientStream to the typed
// grpc.ServerStreamingClient[Msg] interface generated code normally
// provides.
type genServerStream[Msg any] struct {
	grpc.ClientStream
}

func (s *genServerStream[Msg]) Recv() (*Msg, error) {
	m := new(Msg)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
