// Package rpc is the RPC Gateway of spec.md §4.A: it binds a query id to
// a grpc stub, attaches the required headers and per-call deadlines, and
// exposes the five Hyper RPCs. It does not retry — retry policy lives in
// the FSM (internal/fsm) and poller (internal/statuspoll).
package rpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/durationpb"

	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/hypererr"
	"hyperdb-go/internal/telemetry"
)

// queryIDHeader is the header every call except the initial ExecuteQuery
// attaches, per spec.md §4.A/§6.
const queryIDHeader = "x-hyperdb-query-id"

// requestIDHeader correlates a single RPC across client and server logs;
// the grpc analogue of the teacher's per-query wire token in conn.Send.
const requestIDHeader = "x-hyperdb-client-request-id"

// Gateway binds a query id to a preconfigured HyperServiceClient and a
// Deadline, per spec.md §4.A.
type Gateway struct {
	stub     hyperpb.HyperServiceClient
	queryID  string
	deadline Deadline
	cfg      Config
	tel      *telemetry.Telemetry
}

// New creates a Gateway. queryID may be empty only for the initial
// ExecuteQuery call, which is how a query id first becomes known.
func New(stub hyperpb.HyperServiceClient, queryID string, deadline Deadline, cfg Config, tel *telemetry.Telemetry) *Gateway {
	return &Gateway{stub: stub, queryID: queryID, deadline: deadline, cfg: cfg, tel: tel}
}

// WithQueryID returns a copy of g bound to queryID, used once the
// ExecuteQuery stream's first message reveals the server-assigned id.
func (g *Gateway) WithQueryID(queryID string) *Gateway {
	g2 := *g
	g2.queryID = queryID
	return &g2
}

// QueryID returns the query id this gateway is bound to.
func (g *Gateway) QueryID() string { return g.queryID }

// callContext derives the per-RPC deadline from g.deadline and attaches
// the required headers, per spec.md §4.A/§6. method is not used: the
// requestIDHeader value is a fresh UUID for every call.
func (g *Gateway) callContext(ctx context.Context, method string) (context.Context, context.CancelFunc) {
	timeout := g.deadline.PerCallTimeout(g.cfg.NetworkTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)

	md := metadata.Pairs(requestIDHeader, uuid.NewString())
	if g.queryID != "" {
		md.Set(queryIDHeader, g.queryID)
	}
	ctx = metadata.NewOutgoingContext(ctx, md)
	return ctx, cancel
}

// ExecuteQuery opens the initial execution stream, per spec.md §4.A. It
// returns the call's context.CancelFunc alongside the stream: the stream
// outlives the call that created it, so the caller (internal/streaming's
// Observer, via its Canceler) owns cancelling it on close instead of the
// deferred-cancel pattern a unary call would use.
func (g *Gateway) ExecuteQuery(ctx context.Context, sql string, mode hyperpb.TransferMode, rowLimit, byteLimit *uint64) (grpc.ServerStreamingClient[hyperpb.ExecuteQueryResponse], context.CancelFunc, error) {
	ctx, span := g.tel.StartRPC(ctx, hyperpb.MethodExecuteQuery, g.queryID)
	callCtx, cancel := g.callContext(ctx, hyperpb.MethodExecuteQuery)

	req := &hyperpb.ExecuteQueryRequest{
		Query:        sql,
		OutputFormat: "binary",
		TransferMode: mode,
		Settings:     g.cfg.QuerySettings,
	}
	if rowLimit != nil || byteLimit != nil {
		rr := &hyperpb.ResultRange{}
		if rowLimit != nil {
			rr.RowLimit = *rowLimit
		}
		if byteLimit != nil {
			rr.ByteLimit = *byteLimit
		}
		req.ResultRange = rr
	}
	// query_timeout is both a server-side session setting and a
	// client-side RPC deadline, per spec.md §5; a zero Deadline duration
	// means no timeout, so QueryTimeout is left unset in that case.
	if d := g.deadline.Duration(); d > 0 {
		req.QueryTimeout = durationpb.New(d)
	}

	stream, err := g.stub.ExecuteQuery(callCtx, req)
	telemetry.EndRPC(span, err)
	if err != nil {
		cancel()
		return nil, nil, hypererr.Wrap(hypererr.KindSubmission, err, g.queryID, "")
	}
	return stream, cancel, nil
}

// GetQueryInfo opens a status-streaming call, per spec.md §4.A/§4.E.
func (g *Gateway) GetQueryInfo(ctx context.Context) (grpc.ServerStreamingClient[hyperpb.QueryInfo], context.CancelFunc, error) {
	if g.queryID == "" {
		return nil, nil, hypererr.InvalidArgument("GetQueryInfo: missing query id")
	}
	ctx, span := g.tel.StartRPC(ctx, hyperpb.MethodGetQueryInfo, g.queryID)
	callCtx, cancel := g.callContext(ctx, hyperpb.MethodGetQueryInfo)

	stream, err := g.stub.GetQueryInfo(callCtx, &hyperpb.GetQueryInfoRequest{QueryID: g.queryID, Streaming: true})
	telemetry.EndRPC(span, err)
	if err != nil {
		cancel()
		return nil, nil, hypererr.Wrap(hypererr.KindTransportFatal, err, g.queryID, "")
	}
	return stream, cancel, nil
}

// GetQuerySchema fetches schema metadata only, per spec.md §4.A.
func (g *Gateway) GetQuerySchema(ctx context.Context, outputFormat string) (grpc.ServerStreamingClient[hyperpb.QueryInfo], context.CancelFunc, error) {
	if g.queryID == "" {
		return nil, nil, hypererr.InvalidArgument("GetQuerySchema: missing query id")
	}
	ctx, span := g.tel.StartRPC(ctx, hyperpb.MethodGetQueryInfo, g.queryID)
	callCtx, cancel := g.callContext(ctx, hyperpb.MethodGetQueryInfo)

	stream, err := g.stub.GetQueryInfo(callCtx, &hyperpb.GetQueryInfoRequest{
		QueryID:            g.queryID,
		Streaming:          false,
		SchemaOutputFormat: outputFormat,
	})
	telemetry.EndRPC(span, err)
	if err != nil {
		cancel()
		return nil, nil, hypererr.Wrap(hypererr.KindTransportFatal, err, g.queryID, "")
	}
	return stream, cancel, nil
}

// GetQueryResultByChunk fetches one chunk by id, per spec.md §4.A/§4.D.
func (g *Gateway) GetQueryResultByChunk(ctx context.Context, chunkID uint64, omitSchema bool) (grpc.ServerStreamingClient[hyperpb.QueryResult], context.CancelFunc, error) {
	if g.queryID == "" {
		return nil, nil, hypererr.InvalidArgument("GetQueryResult: missing query id")
	}
	ctx, span := g.tel.StartRPC(ctx, hyperpb.MethodGetQueryResult, g.queryID)
	callCtx, cancel := g.callContext(ctx, hyperpb.MethodGetQueryResult)

	stream, err := g.stub.GetQueryResult(callCtx, &hyperpb.GetQueryResultRequest{
		QueryID:      g.queryID,
		ChunkID:      &chunkID,
		OmitSchema:   omitSchema,
		OutputFormat: "binary",
	})
	telemetry.EndRPC(span, err)
	if err != nil {
		cancel()
		return nil, nil, hypererr.Wrap(hypererr.KindTransportFatal, err, g.queryID, "")
	}
	g.tel.RecordChunkFetched(ctx, g.queryID)
	return stream, cancel, nil
}

// GetQueryResultByRange fetches a row-offset window, per spec.md
// §4.A/§4.D's row-based paginator.
func (g *Gateway) GetQueryResultByRange(ctx context.Context, rowOffset, rowLimit, byteLimit uint64, omitSchema bool) (grpc.ServerStreamingClient[hyperpb.QueryResult], context.CancelFunc, error) {
	if g.queryID == "" {
		return nil, nil, hypererr.InvalidArgument("GetQueryResult: missing query id")
	}
	ctx, span := g.tel.StartRPC(ctx, hyperpb.MethodGetQueryResult, g.queryID)
	callCtx, cancel := g.callContext(ctx, hyperpb.MethodGetQueryResult)

	stream, err := g.stub.GetQueryResult(callCtx, &hyperpb.GetQueryResultRequest{
		QueryID: g.queryID,
		ResultRange: &hyperpb.ResultRange{
			RowOffset: rowOffset,
			RowLimit:  rowLimit,
			ByteLimit: byteLimit,
		},
		OmitSchema:   omitSchema,
		OutputFormat: "binary",
	})
	telemetry.EndRPC(span, err)
	if err != nil {
		cancel()
		return nil, nil, hypererr.Wrap(hypererr.KindTransportFatal, err, g.queryID, "")
	}
	return stream, cancel, nil
}

// Cancel issues the out-of-band CancelQuery RPC of spec.md §5 item (iii).
func (g *Gateway) Cancel(ctx context.Context) error {
	if g.queryID == "" {
		return hypererr.InvalidArgument("Cancel: missing query id")
	}
	ctx, span := g.tel.StartRPC(ctx, hyperpb.MethodCancelQuery, g.queryID)
	callCtx, cancel := g.callContext(ctx, hyperpb.MethodCancelQuery)
	defer cancel()

	_, err := g.stub.CancelQuery(callCtx, &hyperpb.CancelQueryRequest{QueryID: g.queryID})
	telemetry.EndRPC(span, err)
	if err != nil {
		return hypererr.Wrap(hypererr.KindTransportFatal, err, g.queryID, "")
	}
	return nil
}

// GatewayDeadline returns the gateway's logical deadline, so the FSM/poller can
// check it directly without duplicating the PerCallTimeout arithmetic.
func (g *Gateway) GatewayDeadline() Deadline { return g.deadline }
