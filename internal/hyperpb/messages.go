// Package hyperpb defines the wire messages for the five Hyper RPCs and a
// length-delimited codec that carries them over a grpc.ClientConn without a
// generated .pb.go (see DESIGN.md).
package hyperpb

import "google.golang.org/protobuf/types/known/durationpb"

// TransferMode selects how ExecuteQuery interleaves status and result
// messages on the execute stream.
type TransferMode int32

const (
	TransferModeUnspecified TransferMode = 0
	TransferModeAdaptive    TransferMode = 1
	TransferModeSync        TransferMode = 2
	TransferModeAsync       TransferMode = 3
)

// CompletionStatus is the lifecycle stage of a query, per spec.md §3.
type CompletionStatus int32

const (
	CompletionStatusUnspecified    CompletionStatus = 0
	CompletionStatusRunning        CompletionStatus = 1
	CompletionStatusResultsProduced CompletionStatus = 2
	CompletionStatusFinished       CompletionStatus = 3
)

func (c CompletionStatus) String() string {
	switch c {
	case CompletionStatusRunning:
		return "RUNNING"
	case CompletionStatusResultsProduced:
		return "RESULTS_PRODUCED"
	case CompletionStatusFinished:
		return "FINISHED"
	default:
		return "UNSPECIFIED"
	}
}

// ResultRange requests a row-offset window instead of a chunk id.
type ResultRange struct {
	RowOffset uint64
	RowLimit  uint64
	ByteLimit uint64
}

// ExecuteQueryRequest is the single request message of the ExecuteQuery RPC.
type ExecuteQueryRequest struct {
	Query        string
	OutputFormat string
	TransferMode TransferMode
	ResultRange  *ResultRange
	Settings     map[string]string
	QueryTimeout *durationpb.Duration
}

// GetQueryInfoRequest is the request message of the GetQueryInfo RPC.
type GetQueryInfoRequest struct {
	QueryID            string
	Streaming          bool
	SchemaOutputFormat string
}

// GetQueryResultRequest is the request message of the GetQueryResult RPC.
// Exactly one of ChunkID or ResultRange is set, per spec.md §6.
type GetQueryResultRequest struct {
	QueryID      string
	ChunkID      *uint64
	ResultRange  *ResultRange
	OmitSchema   bool
	OutputFormat string
}

// CancelQueryRequest is the request message of the CancelQuery RPC.
type CancelQueryRequest struct {
	QueryID string
}

// CancelQueryResponse is the (empty) response of the CancelQuery RPC.
type CancelQueryResponse struct{}

// QueryStatusMsg is the wire representation of QueryStatus.
type QueryStatusMsg struct {
	QueryID          string
	ChunkCount       uint64
	RowCount         uint64
	Progress         float64
	CompletionStatus CompletionStatus
}

// QueryInfo is a union over a status update, a schema update, and the
// optional/forward-compat flag, per spec.md §3.
type QueryInfo struct {
	Status   *QueryStatusMsg
	Schema   []byte // opaque schema metadata, passed through to the decoder
	Optional bool
}

// QueryResult is an opaque columnar batch plus the row count used by the
// row-based paginator for offset accounting, per spec.md §3.
type QueryResult struct {
	Data     []byte
	RowCount uint64
}

// ExecuteQueryResponse is the union type streamed by ExecuteQuery, per
// spec.md §3.
type ExecuteQueryResponse struct {
	Info     *QueryInfo
	Result   *QueryResult
	Optional bool
}
