// Package statuspoll is the Status Poller of spec.md §4.E: it answers
// "wait until this predicate holds against the query's status, or fail",
// independent of whether a result-fetching Iterator is running
// concurrently.
//
// Grounded on the teacher's internal/query/executor.go continueStream,
// which reopens a fresh request against the same token on every
// CONTINUE; generalized into a reopen loop bounded by
// github.com/cenkalti/backoff/v4, which the teacher's own go.mod carries
// indirectly (via testcontainers) but never exercises — promoted here to
// a direct, wired dependency.
package statuspoll

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/hypererr"
	"hyperdb-go/internal/rpc"
)

// Predicate reports whether the observed status satisfies the caller's
// wait condition.
type Predicate func(*hyperpb.QueryStatusMsg) bool

// maxReopenAttempts bounds reopens of the info stream that end (cleanly
// or via a benign CANCELLED) with no observed progress, mirroring
// internal/fsm's resolution of the same open question in spec.md §9.
const maxReopenAttempts = 3

// ErrWillNotChange is wrapped into the returned *hypererr.Error when the
// query has finished (CompletionStatus is terminal) and predicate still
// does not hold: no further status update will ever arrive.
var ErrWillNotChange = errors.New("statuspoll: query finished without satisfying the predicate")

// WaitFor blocks until predicate(status) holds, gw's deadline elapses, or
// the query finishes without ever satisfying predicate, per spec.md §4.E.
func WaitFor(ctx context.Context, gw *rpc.Gateway, deadline rpc.Deadline, predicate Predicate) (*hyperpb.QueryStatusMsg, error) {
	var last *hyperpb.QueryStatusMsg
	var lastProgressChunks uint64
	reopen := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxReopenAttempts)

	for {
		if deadline.HasPassed() {
			return last, hypererr.Deadline(gw.QueryID(), "", last)
		}

		stream, cancel, err := gw.GetQueryInfo(ctx)
		if err != nil {
			return last, err
		}

	recvLoop:
		for {
			if deadline.HasPassed() {
				cancel()
				return last, hypererr.Deadline(gw.QueryID(), "", last)
			}
			msg, err := stream.Recv()
			if err != nil {
				// Both a clean end of stream and a benign CANCELLED mean
				// "no news right now, not a failure": spec.md §4.E requires
				// reopening in either case rather than treating either as
				// success or fatal, since the predicate has not yet held.
				if errors.Is(err, io.EOF) || hypererr.IsBenignCancel(err) {
					break recvLoop
				}
				cancel()
				return last, hypererr.Wrap(hypererr.KindTransportFatal, err, gw.QueryID(), "")
			}
			if msg.Optional || msg.Status == nil {
				continue
			}
			last = msg.Status
			if predicate(last) {
				cancel()
				return last, nil
			}
			if isExecutionFinished(last) {
				cancel()
				e := hypererr.Wrap(hypererr.KindExhaustion, ErrWillNotChange, gw.QueryID(), "")
				e.WithStatus(last)
				return last, e
			}
			if last.ChunkCount > lastProgressChunks {
				lastProgressChunks = last.ChunkCount
				reopen.Reset()
			}
		}
		cancel()

		wait := reopen.NextBackOff()
		if wait == backoff.Stop {
			e := hypererr.Wrap(hypererr.KindTransportFatal, errors.New("status stream ended repeatedly without progress"), gw.QueryID(), "")
			e.WithStatus(last)
			return last, e
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		}
	}
}

// isExecutionFinished mirrors spec.md §3's derived predicate exactly
// (completionStatus = FINISHED): RESULTS_PRODUCED alone does not end
// the wait, since completionStatus can still advance to FINISHED even
// though chunkCount/rowCount are already stable at that point.
func isExecutionFinished(s *hyperpb.QueryStatusMsg) bool {
	return s != nil && s.CompletionStatus == hyperpb.CompletionStatusFinished
}
