// Package hyperpbtest provides fakes for hyperpb.HyperServiceClient, for
// use by other packages' tests that need a Gateway without a real grpc
// connection — the role google.golang.org/grpc/test/bufconn plays at the
// transport level, but in-process at the stub level so FSM/paginator/poller
// tests can script exact message sequences and benign-CANCELLED endings.
package hyperpbtest

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"hyperdb-go/internal/hyperpb"
)

// Stream is a scripted grpc.ServerStreamingClient[Msg]: it replays Msgs in
// order, then returns Err (io.EOF if nil) on every subsequent Recv.
type Stream[Msg any] struct {
	Msgs []*Msg
	Err  error

	idx             int
	CloseSendCalled bool
}

func (s *Stream[Msg]) Recv() (*Msg, error) {
	if s.idx < len(s.Msgs) {
		m := s.Msgs[s.idx]
		s.idx++
		return m, nil
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return nil, io.EOF
}

func (s *Stream[Msg]) Header() (metadata.MD, error) { return nil, nil }
func (s *Stream[Msg]) Trailer() metadata.MD         { return nil }
func (s *Stream[Msg]) CloseSend() error             { s.CloseSendCalled = true; return nil }
func (s *Stream[Msg]) Context() context.Context     { return context.Background() }
func (s *Stream[Msg]) SendMsg(m any) error           { return nil }
func (s *Stream[Msg]) RecvMsg(m any) error           { return nil }

// Client is a scripted hyperpb.HyperServiceClient: each Func field, if
// set, handles the corresponding RPC; a nil streaming Func is a test bug
// (it panics rather than silently returning zero values). A nil
// CancelQueryFunc is the exception: CancelQuery then succeeds with an
// empty response.
type Client struct {
	ExecuteQueryFunc  func(ctx context.Context, req *hyperpb.ExecuteQueryRequest) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], error)
	GetQueryInfoFunc  func(ctx context.Context, req *hyperpb.GetQueryInfoRequest) (grpc.ServerStreamingClient[hyperpb.QueryInfo], error)
	GetQueryResultFunc func(ctx context.Context, req *hyperpb.GetQueryResultRequest) (grpc.ServerStreamingClient[hyperpb.QueryResult], error)
	CancelQueryFunc   func(ctx context.Context, req *hyperpb.CancelQueryRequest) (*hyperpb.CancelQueryResponse, error)
}

func (c *Client) ExecuteQuery(ctx context.Context, req *hyperpb.ExecuteQueryRequest, _ ...grpc.CallOption) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], error) {
	return c.ExecuteQueryFunc(ctx, req)
}

func (c *Client) GetQueryInfo(ctx context.Context, req *hyperpb.GetQueryInfoRequest, _ ...grpc.CallOption) (grpc.ServerStreamingClient[hyperpb.QueryInfo], error) {
	return c.GetQueryInfoFunc(ctx, req)
}

func (c *Client) GetQueryResult(ctx context.Context, req *hyperpb.GetQueryResultRequest, _ ...grpc.CallOption) (grpc.ServerStreamingClient[hyperpb.QueryResult], error) {
	return c.GetQueryResultFunc(ctx, req)
}

func (c *Client) CancelQuery(ctx context.Context, req *hyperpb.CancelQueryRequest, _ ...grpc.CallOption) (*hyperpb.CancelQueryResponse, error) {
	if c.CancelQueryFunc == nil {
		return &hyperpb.CancelQueryResponse{}, nil
	}
	return c.CancelQueryFunc(ctx, req)
}
