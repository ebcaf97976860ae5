// Package hyperdb is the public client core of spec.md §6: a Client
// submits SQL over a managed grpc.ClientConn and returns a QueryHandle,
// an async iterator over result batches driven by the Adaptive Query
// FSM, plus standalone status-wait and range-fetch entry points that
// work against a query id alone.
//
// Grounded on the teacher's internal/query/executor.go Executor merged
// with internal/connmgr/connmgr.go's lazily-dialed, mutex-guarded
// connection manager into a single Client that owns one internal/rpc.Gateway
// per Submit call.
package hyperdb

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"google.golang.org/grpc"

	"hyperdb-go/internal/fsm"
	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/hypererr"
	"hyperdb-go/internal/logging"
	"hyperdb-go/internal/paginate"
	"hyperdb-go/internal/rpc"
	"hyperdb-go/internal/statuspoll"
	"hyperdb-go/internal/telemetry"

	"go.uber.org/zap"
)

// Config is re-exported so callers configure a Client without importing
// internal/rpc directly.
type Config = rpc.Config

// DefaultConfig returns spec.md §9's defaults (see internal/rpc.DefaultConfig).
func DefaultConfig() Config { return rpc.DefaultConfig() }

// TransferMode selects how ExecuteQuery paces inline result delivery,
// per spec.md §4.A.
type TransferMode = hyperpb.TransferMode

const (
	TransferModeAdaptive = hyperpb.TransferModeAdaptive
	TransferModeSync     = hyperpb.TransferModeSync
	TransferModeAsync    = hyperpb.TransferModeAsync
)

// QueryStatus is re-exported for callers of WaitFor/QueryHandle.Status.
type QueryStatus = hyperpb.QueryStatusMsg

// QueryResult is a single decoded-upstream, opaque result batch: the
// columnar bytes are handed back uninterpreted, per spec.md §3.
type QueryResult = hyperpb.QueryResult

// Client owns a grpc connection and mints Gateways bound to individual
// queries. It is safe for concurrent use.
type Client struct {
	cfg Config
	log *zap.Logger
	tel *telemetry.Telemetry

	mu      sync.Mutex
	conn    *grpc.ClientConn
	ownConn bool
	stub    hyperpb.HyperServiceClient
}

// Dial creates a Client that owns its connection to addr. Client.Close
// closes it.
func Dial(ctx context.Context, addr string, cfg Config, tlsCfg *tls.Config) (*Client, error) {
	conn, err := rpc.Dial(ctx, addr, cfg, tlsCfg)
	if err != nil {
		return nil, hypererr.Wrap(hypererr.KindTransportFatal, err, "", "")
	}
	return &Client{cfg: cfg, conn: conn, ownConn: true, stub: hyperpb.NewHyperServiceClient(conn), log: logging.NewNop(), tel: telemetry.New()}, nil
}

// NewFromConn creates a Client over a caller-supplied connection. Client.Close
// never closes conn, per spec.md §5.
func NewFromConn(conn *grpc.ClientConn, cfg Config) *Client {
	return &Client{cfg: cfg, conn: conn, ownConn: false, stub: hyperpb.NewHyperServiceClient(conn), log: logging.NewNop(), tel: telemetry.New()}
}

// WithLogger attaches a zap logger to subsequent QueryHandles.
func (c *Client) WithLogger(log *zap.Logger) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = log
	return c
}

func (c *Client) gateway(queryID string) *rpc.Gateway {
	c.mu.Lock()
	defer c.mu.Unlock()
	return rpc.New(c.stub, queryID, rpc.NewDeadline(c.cfg.QueryTimeout), c.cfg, c.tel)
}

// QueryHandle is the async-iterator handle spec.md §6 surfaces to an
// external collaborator: Next() drives the FSM one batch at a time.
type QueryHandle struct {
	it *fsm.Iterator
}

// Submit executes sql and returns a QueryHandle, per spec.md §4.A/§6. The
// query id is known as soon as Submit returns (no error means the
// server has accepted the query and assigned an id).
func (c *Client) Submit(ctx context.Context, sql string, mode TransferMode) (*QueryHandle, error) {
	return c.SubmitRange(ctx, sql, mode, nil, nil)
}

// SubmitRange is Submit with an initial ResultRange cap, per spec.md §4.A.
func (c *Client) SubmitRange(ctx context.Context, sql string, mode TransferMode, rowLimit, byteLimit *uint64) (*QueryHandle, error) {
	gw := c.gateway("")
	it, err := fsm.New(ctx, gw, sql, rpc.NewDeadline(c.cfg.QueryTimeout), fsm.Options{
		Mode: mode, RowLimit: rowLimit, ByteLimit: byteLimit, Logger: c.log, Telemetry: c.tel,
	})
	if err != nil {
		return nil, err
	}
	return &QueryHandle{it: it}, nil
}

// QueryID returns the server-assigned query id.
func (h *QueryHandle) QueryID() string { return h.it.QueryID() }

// Status returns the most recently observed QueryStatus, or nil before
// the first has been seen.
func (h *QueryHandle) Status() *QueryStatus { return h.it.Status() }

// Next returns the next result batch, or (nil, nil) once the query is
// exhausted, per spec.md §8.
func (h *QueryHandle) Next(ctx context.Context) (*QueryResult, error) { return h.it.Next(ctx) }

// Cancel issues the out-of-band CancelQuery RPC, per spec.md §5 (iii).
func (h *QueryHandle) Cancel(ctx context.Context) error { return h.it.Cancel(ctx) }

// Close releases the handle's open streams without cancelling the query
// server-side, per spec.md §5 (i).
func (h *QueryHandle) Close() { h.it.Close() }

// WaitFor blocks until predicate(status) holds for queryId, the deadline
// elapses, or the query finishes without ever satisfying predicate, per
// spec.md §4.E.
func (c *Client) WaitFor(ctx context.Context, queryID string, timeout rpc.Deadline, predicate statuspoll.Predicate) (*QueryStatus, error) {
	return statuspoll.WaitFor(ctx, c.gateway(queryID), timeout, predicate)
}

// ResultIterator is the common surface of FetchChunks/FetchRows.
type ResultIterator interface {
	Next(ctx context.Context) (*QueryResult, error)
	Close()
}

// FetchChunks returns a ResultIterator over [chunkID, chunkID+count),
// per spec.md §4.D.
func (c *Client) FetchChunks(queryID string, chunkID, count uint64) ResultIterator {
	return paginate.NewChunkPaginator(c.gateway(queryID), chunkID, count)
}

// FetchRows returns a ResultIterator over [rowOffset, rowOffset+rowLimit)
// capped at byteLimit bytes per fetch, per spec.md §4.D. byteLimit must
// be within [paginate.MinRowLimitByteSize, paginate.MaxRowLimitByteSize].
func (c *Client) FetchRows(queryID string, rowOffset, rowLimit, byteLimit uint64) (ResultIterator, error) {
	return paginate.NewRowPaginator(c.gateway(queryID), rowOffset, rowLimit, byteLimit)
}

// Close releases the Client. It closes the underlying grpc.ClientConn
// only if the Client dialed it itself (via Dial, not NewFromConn), per
// spec.md §5.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ownConn || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("hyperdb: close: %w", err)
	}
	return nil
}
