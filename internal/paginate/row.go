package paginate

import (
	"context"
	"fmt"

	"hyperdb-go/internal/hyperpb"
	"hyperdb-go/internal/hypererr"
	"hyperdb-go/internal/rpc"
	"hyperdb-go/internal/streaming"
)

// Byte limit bounds for a row-based result fetch, per spec.md §4.D.
const (
	MinRowLimitByteSize = 1024
	MaxRowLimitByteSize = 20 * 1024 * 1024
)

// RowPaginator iterates rows [rowOffset, rowOffset+rowLimit) in
// byteLimit-capped windows, advancing its own offset by the row count of
// each batch received, per spec.md §4.D.
type RowPaginator struct {
	gw        *rpc.Gateway
	rowOffset uint64
	rowLimit  uint64
	byteLimit uint64

	seen  uint64
	first bool

	cur *streaming.SyncIterator[hyperpb.QueryResult]
}

// NewRowPaginator validates byteLimit against spec.md §4.D's bounds
// before any network call, per its invalid-argument requirement.
func NewRowPaginator(gw *rpc.Gateway, rowOffset, rowLimit, byteLimit uint64) (*RowPaginator, error) {
	if byteLimit < MinRowLimitByteSize || byteLimit > MaxRowLimitByteSize {
		return nil, hypererr.InvalidArgument(fmt.Sprintf(
			"row byte limit %d outside [%d, %d]", byteLimit, MinRowLimitByteSize, MaxRowLimitByteSize))
	}
	return &RowPaginator{gw: gw, rowOffset: rowOffset, rowLimit: rowLimit, byteLimit: byteLimit, first: true}, nil
}

// Next returns the next QueryResult batch, or (nil, nil) once rowLimit
// rows have been delivered or a fetch returns an empty stream.
func (p *RowPaginator) Next(ctx context.Context) (*hyperpb.QueryResult, error) {
	for {
		if p.seen >= p.rowLimit {
			return nil, nil
		}

		if p.cur != nil {
			if p.cur.HasNext() {
				msg := p.cur.Next()
				p.seen += msg.RowCount
				return msg, nil
			}
			if err := p.cur.Err(); err != nil {
				return nil, hypererr.Wrap(hypererr.KindTransportFatal, err, p.gw.QueryID(), "")
			}
			p.cur.Close()
			p.cur = nil
			// the current window's stream is drained after delivering its
			// batches: loop round to request the next window from
			// rowOffset+seen, per spec.md §4.D.
			continue
		}

		omitSchema := !p.first
		stream, cancel, err := p.gw.GetQueryResultByRange(ctx, p.rowOffset+p.seen, p.rowLimit-p.seen, p.byteLimit, omitSchema)
		if err != nil {
			return nil, err
		}
		p.first = false
		obs := streaming.New[hyperpb.QueryResult](stream, func(string) { cancel(); _ = stream.CloseSend() })
		p.cur = streaming.NewSyncIterator(ctx, obs)

		if !p.cur.HasNext() {
			if err := p.cur.Err(); err != nil {
				return nil, hypererr.Wrap(hypererr.KindTransportFatal, err, p.gw.QueryID(), "")
			}
			p.cur.Close()
			p.cur = nil
			return nil, nil
		}
		msg := p.cur.Next()
		p.seen += msg.RowCount
		return msg, nil
	}
}

// Close releases the paginator's currently open stream, if any.
func (p *RowPaginator) Close() {
	if p.cur != nil {
		p.cur.Close()
		p.cur = nil
	}
}
