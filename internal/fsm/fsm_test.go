package fsm

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/hyperpb/hyperpbtest"
	"hyperdb-go/internal/rpc"
	"hyperdb-go/internal/telemetry"
)

func newTestGateway(t *testing.T, stub *hyperpbtest.Client) *rpc.Gateway {
	t.Helper()
	return rpc.New(stub, "", rpc.NoDeadline(), rpc.DefaultConfig(), telemetry.New())
}

func TestIterator_InlineResultThenFinished(t *testing.T) {
	t.Parallel()
	status := &hyperpb.QueryStatusMsg{QueryID: "q1", ChunkCount: 1, CompletionStatus: hyperpb.CompletionStatusFinished}
	execStream := &hyperpbtest.Stream[hyperpb.ExecuteQueryResponse]{
		Msgs: []*hyperpb.ExecuteQueryResponse{
			{Info: &hyperpb.QueryInfo{Status: status}},
			{Result: &hyperpb.QueryResult{Data: []byte("chunk0"), RowCount: 1}},
		},
	}
	stub := &hyperpbtest.Client{
		ExecuteQueryFunc: func(ctx context.Context, req *hyperpb.ExecuteQueryRequest) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], error) {
			return execStream, nil
		},
	}
	gw := newTestGateway(t, stub)

	it, err := New(context.Background(), gw, "select 1", rpc.NoDeadline(), Options{Mode: hyperpb.TransferModeAdaptive})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if it.QueryID() != "q1" {
		t.Fatalf("got query id %q, want q1", it.QueryID())
	}

	batch, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if batch == nil || string(batch.Data) != "chunk0" {
		t.Fatalf("got %v, want inline chunk0", batch)
	}

	// chunkCount=1, highWater seeded to 1 (chunk 0 arrived inline), and
	// CompletionStatus is already terminal, so the iterator must end here.
	batch, err = it.Next(context.Background())
	if err != nil || batch != nil {
		t.Fatalf("expected exhaustion, got batch=%v err=%v", batch, err)
	}
}

func TestIterator_FetchesMissingChunkViaCheckForMoreData(t *testing.T) {
	t.Parallel()
	firstStatus := &hyperpb.QueryStatusMsg{QueryID: "q1", ChunkCount: 1, CompletionStatus: hyperpb.CompletionStatusFinished}
	execStream := &hyperpbtest.Stream[hyperpb.ExecuteQueryResponse]{
		Msgs: []*hyperpb.ExecuteQueryResponse{
			{Info: &hyperpb.QueryInfo{Status: firstStatus}},
		},
	}
	resultStream := &hyperpbtest.Stream[hyperpb.QueryResult]{
		Msgs: []*hyperpb.QueryResult{{Data: []byte("chunk0"), RowCount: 1}},
	}
	var gotChunkID uint64 = 99 // sentinel, overwritten by the call below
	stub := &hyperpbtest.Client{
		ExecuteQueryFunc: func(ctx context.Context, req *hyperpb.ExecuteQueryRequest) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], error) {
			return execStream, nil
		},
		GetQueryResultFunc: func(ctx context.Context, req *hyperpb.GetQueryResultRequest) (grpc.ServerStreamingClient[hyperpb.QueryResult], error) {
			if req.ChunkID != nil {
				gotChunkID = *req.ChunkID
			}
			return resultStream, nil
		},
	}
	gw := newTestGateway(t, stub)

	it, err := New(context.Background(), gw, "select 1", rpc.NoDeadline(), Options{Mode: hyperpb.TransferModeAdaptive})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	batch, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if batch == nil || string(batch.Data) != "chunk0" {
		t.Fatalf("got %v, want chunk0 fetched via GetQueryResult", batch)
	}
	if gotChunkID != 0 {
		t.Fatalf("expected chunk id 0 to be requested, got %d", gotChunkID)
	}

	if batch, err := it.Next(context.Background()); err != nil || batch != nil {
		t.Fatalf("expected exhaustion after the only chunk, got batch=%v err=%v", batch, err)
	}
}

func TestIterator_PollsQueryInfoUntilNewChunkAvailable(t *testing.T) {
	t.Parallel()
	running := &hyperpb.QueryStatusMsg{QueryID: "q1", ChunkCount: 0, CompletionStatus: hyperpb.CompletionStatusRunning}
	execStream := &hyperpbtest.Stream[hyperpb.ExecuteQueryResponse]{
		Msgs: []*hyperpb.ExecuteQueryResponse{{Info: &hyperpb.QueryInfo{Status: running}}},
	}
	progressed := &hyperpb.QueryStatusMsg{QueryID: "q1", ChunkCount: 1, CompletionStatus: hyperpb.CompletionStatusFinished}
	infoStream := &hyperpbtest.Stream[hyperpb.QueryInfo]{
		Msgs: []*hyperpb.QueryInfo{{Status: progressed}},
	}
	resultStream := &hyperpbtest.Stream[hyperpb.QueryResult]{
		Msgs: []*hyperpb.QueryResult{{Data: []byte("chunk0"), RowCount: 1}},
	}
	stub := &hyperpbtest.Client{
		ExecuteQueryFunc: func(ctx context.Context, req *hyperpb.ExecuteQueryRequest) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], error) {
			return execStream, nil
		},
		GetQueryInfoFunc: func(ctx context.Context, req *hyperpb.GetQueryInfoRequest) (grpc.ServerStreamingClient[hyperpb.QueryInfo], error) {
			return infoStream, nil
		},
		GetQueryResultFunc: func(ctx context.Context, req *hyperpb.GetQueryResultRequest) (grpc.ServerStreamingClient[hyperpb.QueryResult], error) {
			return resultStream, nil
		},
	}
	gw := newTestGateway(t, stub)

	it, err := New(context.Background(), gw, "select 1", rpc.NoDeadline(), Options{Mode: hyperpb.TransferModeAdaptive})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	batch, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if batch == nil || string(batch.Data) != "chunk0" {
		t.Fatalf("got %v, want chunk0 after polling QueryInfo", batch)
	}
}

func TestIterator_SubmissionErrorSurfacesWithSQL(t *testing.T) {
	t.Parallel()
	stub := &hyperpbtest.Client{
		ExecuteQueryFunc: func(ctx context.Context, req *hyperpb.ExecuteQueryRequest) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], error) {
			return nil, status.Error(codes.InvalidArgument, "syntax error at or near \"selct\"")
		},
	}
	gw := newTestGateway(t, stub)

	_, err := New(context.Background(), gw, "selct 1", rpc.NoDeadline(), Options{Mode: hyperpb.TransferModeAdaptive})
	if err == nil {
		t.Fatal("expected a submission error")
	}
}

func TestIterator_BenignCancelOnInfoStreamReopensThenFatalAfterBound(t *testing.T) {
	t.Parallel()
	running := &hyperpb.QueryStatusMsg{QueryID: "q1", ChunkCount: 0, CompletionStatus: hyperpb.CompletionStatusRunning}
	execStream := &hyperpbtest.Stream[hyperpb.ExecuteQueryResponse]{
		Msgs: []*hyperpb.ExecuteQueryResponse{{Info: &hyperpb.QueryInfo{Status: running}}},
	}
	var infoCalls int
	stub := &hyperpbtest.Client{
		ExecuteQueryFunc: func(ctx context.Context, req *hyperpb.ExecuteQueryRequest) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], error) {
			return execStream, nil
		},
		GetQueryInfoFunc: func(ctx context.Context, req *hyperpb.GetQueryInfoRequest) (grpc.ServerStreamingClient[hyperpb.QueryInfo], error) {
			infoCalls++
			// every reopen ends immediately with a benign CANCELLED and no progress
			return &hyperpbtest.Stream[hyperpb.QueryInfo]{Err: status.Error(codes.Canceled, "reopen")}, nil
		},
	}
	gw := newTestGateway(t, stub)

	it, err := New(context.Background(), gw, "select 1", rpc.NoDeadline(), Options{Mode: hyperpb.TransferModeAdaptive})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = it.Next(context.Background())
	if err == nil {
		t.Fatal("expected a transport-fatal error once the reopen bound is exceeded")
	}
	if infoCalls <= maxInfoReopenAttempts {
		t.Fatalf("expected more than %d reopen attempts before giving up, got %d", maxInfoReopenAttempts, infoCalls)
	}
}
