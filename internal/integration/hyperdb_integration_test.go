// Package integration exercises the Gateway/FSM/paginators/poller
// together over a real grpc.Server reachable only through an in-process
// bufconn listener — the bufconn-based analogue of the teacher's
// testcontainers-backed RethinkDB suite, without a real network socket
// or external process.
package integration

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"hyperdb-go/internal/fsm"
	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/paginate"
	"hyperdb-go/internal/rpc"
	"hyperdb-go/internal/statuspoll"
	"hyperdb-go/internal/telemetry"
)

// fakeHyperServer is a minimal, single-query HyperServiceServer: one
// inline chunk on ExecuteQuery, any chunk id fetchable by id (the status
// reports 3 chunks), three one-row windows by row range, and a QueryInfo
// stream that reports the query as finished immediately.
type fakeHyperServer struct {
	mu    sync.Mutex
	calls map[uint64]int
}

func (s *fakeHyperServer) status() *hyperpb.QueryStatusMsg {
	return &hyperpb.QueryStatusMsg{QueryID: "q-int-1", ChunkCount: 3, CompletionStatus: hyperpb.CompletionStatusFinished}
}

func (s *fakeHyperServer) ExecuteQuery(req *hyperpb.ExecuteQueryRequest, stream grpc.ServerStreamingServer[hyperpb.ExecuteQueryResponse]) error {
	if err := stream.Send(&hyperpb.ExecuteQueryResponse{Info: &hyperpb.QueryInfo{Status: s.status()}}); err != nil {
		return err
	}
	return stream.Send(&hyperpb.ExecuteQueryResponse{Result: &hyperpb.QueryResult{Data: []byte{0}, RowCount: 1}})
}

func (s *fakeHyperServer) GetQueryInfo(req *hyperpb.GetQueryInfoRequest, stream grpc.ServerStreamingServer[hyperpb.QueryInfo]) error {
	return stream.Send(&hyperpb.QueryInfo{Status: s.status()})
}

func (s *fakeHyperServer) GetQueryResult(req *hyperpb.GetQueryResultRequest, stream grpc.ServerStreamingServer[hyperpb.QueryResult]) error {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[uint64]int{}
	}
	s.mu.Unlock()

	if req.ChunkID != nil {
		id := *req.ChunkID
		s.mu.Lock()
		s.calls[id]++
		s.mu.Unlock()
		return stream.Send(&hyperpb.QueryResult{Data: []byte{byte(id)}, RowCount: 1})
	}

	// row-range path: 3 total rows, one row per chunk
	if req.ResultRange.RowOffset >= 3 {
		return nil // clean end, no more rows
	}
	return stream.Send(&hyperpb.QueryResult{
		Data:     []byte{byte(req.ResultRange.RowOffset)},
		RowCount: 1,
	})
}

func (s *fakeHyperServer) CancelQuery(ctx context.Context, req *hyperpb.CancelQueryRequest) (*hyperpb.CancelQueryResponse, error) {
	return &hyperpb.CancelQueryResponse{}, nil
}

func dialBufconn(t *testing.T, srv hyperpb.HyperServiceServer) hyperpb.HyperServiceClient {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer()
	hyperpb.RegisterHyperServiceServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(hyperpb.CodecName())),
	)
	if err != nil {
		t.Fatalf("dialing bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return hyperpb.NewHyperServiceClient(conn)
}

func TestFSM_OverRealGRPCTransport(t *testing.T) {
	t.Parallel()
	stub := dialBufconn(t, &fakeHyperServer{})
	gw := rpc.New(stub, "", rpc.NoDeadline(), rpc.DefaultConfig(), telemetry.New())

	it, err := fsm.New(context.Background(), gw, "select * from t", rpc.NoDeadline(), fsm.Options{Mode: hyperpb.TransferModeAdaptive})
	if err != nil {
		t.Fatalf("fsm.New: %v", err)
	}
	defer it.Close()

	if it.QueryID() != "q-int-1" {
		t.Fatalf("got query id %q, want q-int-1", it.QueryID())
	}

	batch, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if batch == nil || len(batch.Data) != 1 || batch.Data[0] != 0 {
		t.Fatalf("got %v, want the inline chunk 0", batch)
	}
}

func TestChunkPaginator_OverRealGRPCTransport(t *testing.T) {
	t.Parallel()
	srv := &fakeHyperServer{}
	stub := dialBufconn(t, srv)
	gw := rpc.New(stub, "q-int-1", rpc.NoDeadline(), rpc.DefaultConfig(), telemetry.New())

	p := paginate.NewChunkPaginator(gw, 0, 3)
	defer p.Close()

	var got []byte
	for {
		batch, err := p.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if batch == nil {
			break
		}
		got = append(got, batch.Data...)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("got chunks %v, want [0 1 2]", got)
	}
}

func TestRowPaginator_OverRealGRPCTransport(t *testing.T) {
	t.Parallel()
	stub := dialBufconn(t, &fakeHyperServer{})
	gw := rpc.New(stub, "q-int-1", rpc.NoDeadline(), rpc.DefaultConfig(), telemetry.New())

	p, err := paginate.NewRowPaginator(gw, 0, 3, paginate.MinRowLimitByteSize)
	if err != nil {
		t.Fatalf("NewRowPaginator: %v", err)
	}
	defer p.Close()

	var rows int
	for {
		batch, err := p.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if batch == nil {
			break
		}
		rows += int(batch.RowCount)
	}
	if rows != 3 {
		t.Fatalf("got %d rows, want 3", rows)
	}
}

func TestStatusPoll_OverRealGRPCTransport(t *testing.T) {
	t.Parallel()
	stub := dialBufconn(t, &fakeHyperServer{})
	gw := rpc.New(stub, "q-int-1", rpc.NoDeadline(), rpc.DefaultConfig(), telemetry.New())

	status, err := statuspoll.WaitFor(context.Background(), gw, rpc.NewDeadline(5*time.Second), func(s *hyperpb.QueryStatusMsg) bool {
		return s.CompletionStatus == hyperpb.CompletionStatusFinished
	})
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	if status.ChunkCount != 3 {
		t.Fatalf("got chunk count %d, want 3", status.ChunkCount)
	}
}
