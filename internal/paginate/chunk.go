// Package paginate is the Range Paginators of spec.md §4.D: lazy
// iterators over persisted results keyed by (queryId, chunkId, count) or
// (queryId, rowOffset, rowLimit), handling schema-once semantics and
// per-request byte caps.
//
// Grounded on the teacher's internal/cursor/cursor.go seqCursor (a plain
// position-counter iterator), generalized from an in-memory slice to a
// lazily-fetching, network-backed iterator that opens one GetQueryResult
// stream per chunk id / row window.
package paginate

import (
	"context"

	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/hypererr"
	"hyperdb-go/internal/rpc"
	"hyperdb-go/internal/streaming"
)

// ChunkPaginator iterates over [chunkID, chunkID+count) per spec.md §4.D.
type ChunkPaginator struct {
	gw    *rpc.Gateway
	start uint64
	count uint64
	next  uint64

	cur *streaming.SyncIterator[hyperpb.QueryResult]
}

// NewChunkPaginator creates a paginator over count chunks starting at
// startChunk.
func NewChunkPaginator(gw *rpc.Gateway, startChunk, count uint64) *ChunkPaginator {
	return &ChunkPaginator{gw: gw, start: startChunk, count: count, next: startChunk}
}

// Next returns the next QueryResult batch, or (nil, nil) once every
// chunk in range has been delivered. A chunk id beyond the server's
// advertised chunkCount surfaces the server's INVALID_ARGUMENT-equivalent
// transport error verbatim, per spec.md §4.D.
func (p *ChunkPaginator) Next(ctx context.Context) (*hyperpb.QueryResult, error) {
	for {
		if p.cur != nil {
			if p.cur.HasNext() {
				return p.cur.Next(), nil
			}
			if err := p.cur.Err(); err != nil {
				return nil, hypererr.Wrap(hypererr.KindTransportFatal, err, p.gw.QueryID(), "")
			}
			p.cur.Close()
			p.cur = nil
		}

		if p.next >= p.start+p.count {
			return nil, nil
		}

		// schema-once semantics: only the first chunk in the range
		// carries schema metadata, per spec.md §4.D.
		omitSchema := p.next != p.start
		stream, cancel, err := p.gw.GetQueryResultByChunk(ctx, p.next, omitSchema)
		if err != nil {
			return nil, err
		}
		obs := streaming.New[hyperpb.QueryResult](stream, func(string) { cancel(); _ = stream.CloseSend() })
		p.cur = streaming.NewSyncIterator(ctx, obs)
		p.next++
	}
}

// Close releases the paginator's currently open stream, if any.
func (p *ChunkPaginator) Close() {
	if p.cur != nil {
		p.cur.Close()
		p.cur = nil
	}
}
