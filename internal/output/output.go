// Package output dumps the opaque result batches spec.md §3 hands back
// (uninterpreted decoder input, no typed rows) to a destination writer.
// The teacher's output package formatted typed ReQL JSON documents
// (json.go/jsonl.go/table.go per row); this domain has no rows to
// format, only raw columnar bytes, so only the raw dump and terminal
// detection survive, adapted to that contract.
package output

import "context"

// BatchIterator streams opaque result batches. Next returns (nil, nil)
// once exhausted, matching the async-iterator contract used throughout
// this client (no io.EOF sentinel, see internal/streaming).
type BatchIterator interface {
	Next(ctx context.Context) ([]byte, error)
}
