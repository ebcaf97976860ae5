// Package streaming is the Buffering Stream Observer + Async Iterator of
// spec.md §4.B. It wraps a server-streaming grpc call with an unbounded
// FIFO buffer and a single-outstanding-future "next element" contract,
// so a batch the server has already sent before a benign stream
// termination is never lost to a race between delivery and completion.
//
// Grounded on internal/cursor/cursor.go's streamCursor in the teacher:
// the same mutex+cond, buffer/fetching/done/err fields, generalized from
// a hard-coded RethinkDB response channel to any receiver of a generic
// message type.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Receiver is the minimal surface this package needs from a grpc
// server-streaming client: grpc.ServerStreamingClient[Msg] satisfies it.
type Receiver[Msg any] interface {
	Recv() (*Msg, error)
}

// Canceler closes the underlying RPC; grpc.ClientStream's embedded
// context and the grpc-go convention of cancelling via the call's
// context.CancelFunc both satisfy this by wrapping cancel in a closure.
type Canceler func(reason string)

// ErrNextPending is returned by NextElement when a previous call's
// future has not yet been awaited, per spec.md §4.B ("Calling
// nextElement() twice without awaiting the first is an error").
var ErrNextPending = errors.New("streaming: NextElement called while a previous call is still pending")

// result is delivered through a future's channel: either a message, a
// terminal nil (end of stream), or an error.
type result[Msg any] struct {
	msg *Msg
	err error // io.EOF-equivalent is represented by msg==nil, err==nil
}

// Future is the single-value promise NextElement returns.
type Future[Msg any] struct {
	ch <-chan result[Msg]
}

// Await blocks until the future resolves, or ctx is cancelled first.
func (f Future[Msg]) Await(ctx context.Context) (*Msg, error) {
	select {
	case r := <-f.ch:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Observer buffers messages from a Receiver and exposes them through a
// pull-driven NextElement contract, per spec.md §4.B.
type Observer[Msg any] struct {
	recv   Receiver[Msg]
	cancel Canceler

	mu      sync.Mutex
	buf     []*Msg
	pending chan result[Msg] // non-nil while a NextElement future is outstanding and unresolved by the buffer
	done    bool
	err     error
	closed  bool

	closeOnce sync.Once
}

// New starts an Observer's background receive loop over recv. cancel is
// invoked by Close with the reason "closed by client", per spec.md §4.B.
//
// The background loop runs unsupervised by a caller-provided context:
// spec.md's flow-control design means the server, not the client
// context, paces delivery, so cancellation is expressed by calling
// Close, which invokes cancel and lets the resulting transport error
// flow through the normal result path.
func New[Msg any](recv Receiver[Msg], cancel Canceler) *Observer[Msg] {
	o := &Observer[Msg]{recv: recv, cancel: cancel}
	go o.receiveLoop()
	return o
}

func (o *Observer[Msg]) receiveLoop() {
	for {
		msg, err := o.recv.Recv()
		o.mu.Lock()
		if err != nil {
			o.done = true
			if !isEOF(err) {
				o.err = err
			}
			o.deliverTerminal()
			o.mu.Unlock()
			return
		}
		o.deliver(msg)
		o.mu.Unlock()
	}
}

// deliver is called with mu held: it hands msg to a pending future if
// one is outstanding, else appends it to the FIFO buffer.
func (o *Observer[Msg]) deliver(msg *Msg) {
	if o.pending != nil {
		ch := o.pending
		o.pending = nil
		ch <- result[Msg]{msg: msg}
		return
	}
	o.buf = append(o.buf, msg)
}

// deliverTerminal is called with mu held once the stream has ended
// (normally or with an error): it resolves a pending future immediately.
// Buffered messages are drained by ordinary NextElement calls first —
// the terminal state is only observed once the buffer is empty, per
// spec.md §4.B ("Stream completion and stream error are terminal
// states; they are delivered after any buffered messages are drained").
func (o *Observer[Msg]) deliverTerminal() {
	if o.pending == nil {
		return
	}
	if len(o.buf) > 0 {
		return
	}
	ch := o.pending
	o.pending = nil
	ch <- result[Msg]{err: o.err}
}

// NextElement returns a Future resolving to the next buffered message,
// an empty result on stream completion, or an error. Calling it again
// before the previous Future resolves is an error.
func (o *Observer[Msg]) NextElement() (Future[Msg], error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pending != nil {
		return Future[Msg]{}, ErrNextPending
	}

	if len(o.buf) > 0 {
		msg := o.buf[0]
		o.buf = o.buf[1:]
		ch := make(chan result[Msg], 1)
		ch <- result[Msg]{msg: msg}
		return Future[Msg]{ch: ch}, nil
	}

	if o.done {
		ch := make(chan result[Msg], 1)
		ch <- result[Msg]{err: o.err}
		return Future[Msg]{ch: ch}, nil
	}

	ch := make(chan result[Msg], 1)
	o.pending = ch
	return Future[Msg]{ch: ch}, nil
}

// Close cancels the underlying RPC with reason "closed by client" and
// resolves any outstanding future with the resulting transport error.
// It is idempotent.
func (o *Observer[Msg]) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		if o.cancel != nil {
			o.cancel("closed by client")
		}
	})
}

// isEOF reports whether err is the grpc-idiomatic end-of-stream signal.
// grpc.ServerStreamingClient.Recv returns io.EOF on a clean end of
// stream; anything else is a real transport error.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// String renders an Observer's state for debugging, mirroring the
// teacher's fmt.Stringer on Config.
func (o *Observer[Msg]) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fmt.Sprintf("Observer{buffered=%d done=%v closed=%v}", len(o.buf), o.done, o.closed)
}
