// Package fsm is the Adaptive Query FSM of spec.md §4.C, the most
// intricate component: it multiplexes the execute, info, and result
// streams behind a single-consumer Next() iterator.
//
// Grounded on the teacher's internal/cursor/cursor.go streamCursor
// (buffer-then-fetch driver loop, partial/done/err fields) and
// internal/query/executor.go's makeCursor/isFeed dispatch, generalized
// from a two-way (sequence vs. partial) pivot into the spec's five
// explicit states.
package fsm

import (
	"context"
	"sync/atomic"

	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/hypererr"
	"hyperdb-go/internal/logging"
	"hyperdb-go/internal/rpc"
	"hyperdb-go/internal/streaming"
	"hyperdb-go/internal/telemetry"

	"go.uber.org/zap"
)

// maxInfoReopenAttempts bounds the number of times PROCESS_QUERY_INFO_STREAM
// may be reopened after a benign CANCELLED with no observed progress,
// resolving the open question in spec.md §9.
const maxInfoReopenAttempts = 3

// Iterator drives the Iterator Context of spec.md §3 through the state
// machine of spec.md §4.C. It is not re-entrant: only one logical
// consumer may call Next.
type Iterator struct {
	gw       *rpc.Gateway
	deadline rpc.Deadline
	queryID  string
	log      *zap.Logger
	tel      *telemetry.Telemetry

	status    atomic.Pointer[hyperpb.QueryStatusMsg]
	highWater atomic.Uint64

	state  State
	buffer *hyperpb.QueryResult

	executeObs *streaming.Observer[hyperpb.ExecuteQueryResponse]
	resultObs  *streaming.Observer[hyperpb.QueryResult]
	infoObs    *streaming.Observer[hyperpb.QueryInfo]

	sawResultOnExecute bool
	highWaterSeeded    bool

	infoReopenAttempts int
	lastProgressChunks uint64
}

// Options configures New.
type Options struct {
	Mode      hyperpb.TransferMode
	RowLimit  *uint64
	ByteLimit *uint64
	Logger    *zap.Logger
	Telemetry *telemetry.Telemetry
}

// New submits sql via gw.ExecuteQuery and consumes the first message
// synchronously, so the query id is available immediately and a
// submission error (invalid SQL, auth) surfaces at submission time
// rather than at first Next() call, per spec.md §4.C.
func New(ctx context.Context, gw *rpc.Gateway, sql string, deadline rpc.Deadline, opts Options) (*Iterator, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	stream, cancel, err := gw.ExecuteQuery(ctx, sql, opts.Mode, opts.RowLimit, opts.ByteLimit)
	if err != nil {
		e := hypererr.Wrap(hypererr.KindSubmission, err, "", StateProcessExecuteQueryStream.String())
		e.SQL = sql
		return nil, e
	}

	obs := streaming.New[hyperpb.ExecuteQueryResponse](stream, func(string) { cancel(); _ = stream.CloseSend() })

	it := &Iterator{
		gw:         gw,
		deadline:   deadline,
		log:        log,
		tel:        opts.Telemetry,
		state:      StateProcessExecuteQueryStream,
		executeObs: obs,
	}

	fut, err := obs.NextElement()
	if err != nil {
		obs.Close()
		return nil, hypererr.Wrap(hypererr.KindSubmission, err, "", StateProcessExecuteQueryStream.String())
	}
	msg, err := fut.Await(ctx)
	if err != nil {
		obs.Close()
		e := hypererr.Wrap(hypererr.KindSubmission, err, "", StateProcessExecuteQueryStream.String())
		e.SQL = sql
		return nil, e
	}
	if msg == nil {
		obs.Close()
		return nil, hypererr.Protocol("", "execute stream ended before the first message")
	}
	if msg.Optional {
		obs.Close()
		return nil, hypererr.Protocol("", "first message of ExecuteQuery stream must not be optional")
	}
	if msg.Info == nil || msg.Info.Status == nil || msg.Info.Status.QueryID == "" {
		obs.Close()
		return nil, hypererr.Protocol("", "first message of ExecuteQuery stream must carry the query id")
	}

	it.queryID = msg.Info.Status.QueryID
	it.gw = gw.WithQueryID(it.queryID)
	it.setStatus(msg.Info.Status)
	return it, nil
}

// QueryID returns the server-assigned query id, known from construction.
func (it *Iterator) QueryID() string { return it.queryID }

// Status returns the most recently observed QueryStatus.
func (it *Iterator) Status() *hyperpb.QueryStatusMsg { return it.status.Load() }

func (it *Iterator) setStatus(s *hyperpb.QueryStatusMsg) {
	it.status.Store(s)
}

func allResultsProduced(s *hyperpb.QueryStatusMsg) bool {
	return s != nil && (s.CompletionStatus == hyperpb.CompletionStatusResultsProduced || s.CompletionStatus == hyperpb.CompletionStatusFinished)
}

// Next returns the next QueryResult batch, or (nil, nil) once the query
// is exhausted, per spec.md §4.C/§8. It terminates exactly when
// status.allResultsProduced ∧ highWater = status.chunkCount ∧ buffer
// empty.
func (it *Iterator) Next(ctx context.Context) (*hyperpb.QueryResult, error) {
	for {
		if it.buffer != nil {
			r := it.buffer
			it.buffer = nil
			it.tel.RecordBatch(ctx, it.queryID, len(r.Data))
			return r, nil
		}
		if it.state == StateCompleted {
			return nil, nil
		}
		if it.deadline.HasPassed() {
			return nil, hypererr.Deadline(it.queryID, it.state.String(), it.status.Load())
		}
		if err := it.step(ctx); err != nil {
			it.closeAll()
			return nil, err
		}
	}
}

func (it *Iterator) step(ctx context.Context) error {
	switch it.state {
	case StateProcessExecuteQueryStream:
		return it.stepExecute(ctx)
	case StateCheckForMoreData:
		return it.stepCheck(ctx)
	case StateProcessQueryResultStream:
		return it.stepResult(ctx)
	case StateProcessQueryInfoStream:
		return it.stepInfo(ctx)
	default:
		it.state = StateCompleted
		return nil
	}
}

func (it *Iterator) stepExecute(ctx context.Context) error {
	fut, err := it.executeObs.NextElement()
	if err != nil {
		return hypererr.Wrap(hypererr.KindTransportFatal, err, it.queryID, it.state.String())
	}
	msg, err := fut.Await(ctx)
	if err != nil {
		if hypererr.IsBenignCancel(err) {
			it.log.Debug("execute stream ended with benign CANCELLED", logging.QueryField(it.queryID))
			it.executeObs = nil
			it.finishExecutePhase()
			return nil
		}
		return hypererr.Wrap(hypererr.KindTransportFatal, err, it.queryID, it.state.String())
	}
	if msg == nil {
		it.executeObs = nil
		it.finishExecutePhase()
		return nil
	}
	switch {
	case msg.Optional:
		// forward-compat skip, per spec.md §3
	case msg.Info != nil:
		if msg.Info.Status != nil {
			it.setStatus(msg.Info.Status)
		}
	case msg.Result != nil:
		it.buffer = msg.Result
		it.sawResultOnExecute = true
	default:
		return hypererr.Protocol(it.queryID, "unexpected empty ExecuteQueryResponse envelope")
	}
	return nil
}

// finishExecutePhase transitions out of PROCESS_EXECUTE_QUERY_STREAM,
// seeding highWater per the resolved open question in spec.md §9: 1 if
// the execute stream delivered chunk 0 inline, 0 if it did not (so
// CHECK_FOR_MORE_DATA fetches chunk 0 via GetQueryResult instead).
func (it *Iterator) finishExecutePhase() {
	if !it.highWaterSeeded {
		if it.sawResultOnExecute {
			it.highWater.Store(1)
		} else {
			it.highWater.Store(0)
		}
		it.highWaterSeeded = true
	}
	it.state = StateCheckForMoreData
}

func (it *Iterator) stepCheck(ctx context.Context) error {
	status := it.status.Load()
	next := it.highWater.Load()

	if status != nil && next < status.ChunkCount {
		if !it.highWater.CompareAndSwap(next, next+1) {
			// single consumer invariant (spec.md §3); a failed CAS means a
			// bug elsewhere, not a race to recover from.
			return hypererr.Protocol(it.queryID, "concurrent highWater mutation detected")
		}
		stream, cancel, err := it.gw.GetQueryResultByChunk(ctx, next, true)
		if err != nil {
			return err
		}
		it.resultObs = streaming.New[hyperpb.QueryResult](stream, func(string) { cancel(); _ = stream.CloseSend() })
		it.state = StateProcessQueryResultStream
		return nil
	}

	if !allResultsProduced(status) {
		stream, cancel, err := it.gw.GetQueryInfo(ctx)
		if err != nil {
			return err
		}
		it.infoObs = streaming.New[hyperpb.QueryInfo](stream, func(string) { cancel(); _ = stream.CloseSend() })
		it.state = StateProcessQueryInfoStream
		return nil
	}

	it.state = StateCompleted
	return nil
}

func (it *Iterator) stepResult(ctx context.Context) error {
	fut, err := it.resultObs.NextElement()
	if err != nil {
		return hypererr.Wrap(hypererr.KindTransportFatal, err, it.queryID, it.state.String())
	}
	msg, err := fut.Await(ctx)
	if err != nil {
		return hypererr.Wrap(hypererr.KindTransportFatal, err, it.queryID, it.state.String())
	}
	if msg == nil {
		it.resultObs = nil
		it.state = StateCheckForMoreData
		return nil
	}
	it.buffer = msg
	return nil
}

func (it *Iterator) stepInfo(ctx context.Context) error {
	fut, err := it.infoObs.NextElement()
	if err != nil {
		return hypererr.Wrap(hypererr.KindTransportFatal, err, it.queryID, it.state.String())
	}
	msg, err := fut.Await(ctx)
	if err != nil {
		if hypererr.IsBenignCancel(err) {
			it.tel.RecordReopen(ctx, it.queryID)
			it.infoObs = nil
			it.trackBenignReopen()
			if it.infoReopenAttempts > maxInfoReopenAttempts {
				e := hypererr.Wrap(hypererr.KindTransportFatal, err, it.queryID, it.state.String())
				e.Message = "status stream repeated CANCELLED without progress beyond the retry bound"
				return e
			}
			it.state = StateCheckForMoreData
			return nil
		}
		return hypererr.Wrap(hypererr.KindTransportFatal, err, it.queryID, it.state.String())
	}
	if msg == nil {
		it.infoObs = nil
		it.state = StateCheckForMoreData
		return nil
	}
	if msg.Optional || msg.Status == nil {
		return nil
	}
	it.setStatus(msg.Status)
	if msg.Status.ChunkCount > it.highWater.Load() {
		it.infoObs.Close()
		it.infoObs = nil
		it.infoReopenAttempts = 0
		it.state = StateCheckForMoreData
	}
	return nil
}

// trackBenignReopen bounds repeated CANCELLED-with-no-progress info
// stream reopens, per spec.md §9's open question and §7's propagation
// policy ("if the server repeats CANCELLED without intervening progress
// more than a small bounded number of times, treat as transport-fatal").
func (it *Iterator) trackBenignReopen() {
	status := it.status.Load()
	var chunks uint64
	if status != nil {
		chunks = status.ChunkCount
	}
	if chunks > it.lastProgressChunks {
		it.lastProgressChunks = chunks
		it.infoReopenAttempts = 0
		return
	}
	it.infoReopenAttempts++
}

func (it *Iterator) closeAll() {
	if it.executeObs != nil {
		it.executeObs.Close()
		it.executeObs = nil
	}
	if it.resultObs != nil {
		it.resultObs.Close()
		it.resultObs = nil
	}
	if it.infoObs != nil {
		it.infoObs.Close()
		it.infoObs = nil
	}
}

// Close releases any held stream handles, per spec.md §5's cancellation
// source (i): idempotent, and subsequent Next() calls return (nil, nil).
func (it *Iterator) Close() {
	it.closeAll()
	it.state = StateCompleted
}

// Cancel issues the out-of-band CancelQuery RPC, per spec.md §5 source (iii).
func (it *Iterator) Cancel(ctx context.Context) error {
	return it.gw.Cancel(ctx)
}
