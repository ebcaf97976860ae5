// Package hypererr defines the error taxonomy of spec.md §7: every error
// the core returns is a *hypererr.Error carrying enough context for a
// caller to decide whether to retry, and enough for a human to debug.
package hypererr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hyperdb-go/internal/hyperpb"
)

// Kind classifies an Error into one of the seven buckets of spec.md §7.
type Kind string

const (
	KindSubmission      Kind = "submission"
	KindTransportBenign Kind = "transport-benign"
	KindTransportFatal  Kind = "transport-fatal"
	KindDeadline        Kind = "deadline"
	KindInvalidArgument Kind = "invalid-argument"
	KindProtocol        Kind = "protocol"
	KindExhaustion      Kind = "exhaustion"
)

// Error is the error type the gateway, FSM, paginators and poller use to
// classify failures; it is reachable via errors.As. Some errors are still
// returned unwrapped (streaming.ErrNextPending, rpc.Dial failures, a
// cancelled ctx in statuspoll, Client.Close).
type Error struct {
	Kind Kind
	Code codes.Code

	// Message is the server-provided (or locally constructed) message.
	Message string

	// QueryID is set whenever a query id is known at the point of
	// failure (may be empty for a Submission error that fails before
	// the first message).
	QueryID string

	// State is the FSM/poller state label active at the point of
	// failure, if any.
	State string

	// Status is the last QueryStatus observed before the failure, if
	// any.
	Status *hyperpb.QueryStatusMsg

	// SQL is the submitted query text, present only for Submission
	// errors. It is set whatever Config.IncludeCustomerDetailInReason says,
	// and Error() does not include it in the message.
	SQL string

	// CustomerHint redirects a common misuse (spec.md §9's
	// time_zone -> querySetting.time_zone example).
	CustomerHint string

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("hyperdb: %s: %s", e.Kind, e.Message)
	if e.QueryID != "" {
		msg += fmt.Sprintf(" (query_id=%s)", e.QueryID)
	}
	if e.State != "" {
		msg += fmt.Sprintf(" (state=%s)", e.State)
	}
	if e.CustomerHint != "" {
		msg += fmt.Sprintf(" — hint: %s", e.CustomerHint)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with the given kind and message.
func New(kind Kind, code codes.Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Wrap classifies a transport error (typically returned from a grpc call)
// into an Error of the given kind, preserving its grpc status code.
func Wrap(kind Kind, err error, queryID, state string) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	code := codes.Unknown
	msg := err.Error()
	if st, ok := status.FromError(err); ok {
		code = st.Code()
		msg = st.Message()
	}
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: msg,
		QueryID: queryID,
		State:   state,
		cause:   err,
	}
}

// WithStatus attaches the last observed QueryStatus to e and returns e.
func (e *Error) WithStatus(s *hyperpb.QueryStatusMsg) *Error {
	e.Status = s
	return e
}

// IsBenignCancel reports whether err is a transport CANCELLED status —
// the idiosyncratic "normal end of stream" signal spec.md §4.C/§4.E
// centralize handling of. Callers must consult this helper rather than
// re-deriving the check, so benign-vs-fatal classification stays in one
// place per component.
func IsBenignCancel(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Canceled
}

// Deadline builds a Deadline-kind Error, including the last observed
// status per spec.md §7.
func Deadline(queryID, state string, lastStatus *hyperpb.QueryStatusMsg) *Error {
	e := New(KindDeadline, codes.DeadlineExceeded, "local deadline exceeded")
	e.QueryID = queryID
	e.State = state
	e.Status = lastStatus
	return e
}

// InvalidArgument builds an Invalid-Argument-kind Error for client-side
// validation failures that must short-circuit before any RPC is issued.
func InvalidArgument(msg string) *Error {
	return New(KindInvalidArgument, codes.InvalidArgument, msg)
}

// Protocol builds a Protocol-kind Error for an unexpected message
// sequence from the server.
func Protocol(queryID, msg string) *Error {
	e := New(KindProtocol, codes.Internal, msg)
	e.QueryID = queryID
	return e
}

// ErrExhausted is an Exhaustion-kind Error value. No package in this
// module returns it: iterators signal exhaustion with (nil, nil), the
// none/false terminal signal of spec.md §7, not with an error.
var ErrExhausted = New(KindExhaustion, codes.OK, "iterator exhausted")
