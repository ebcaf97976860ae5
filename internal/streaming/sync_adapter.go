package streaming

import "context"

// SyncIterator is a blocking hasNext/next facade over Observer's async
// NextElement, per spec.md §4.B. On ctx cancellation it closes the
// underlying Observer and reports ctx's own error unchanged; the
// transport error that closing the Observer produces is not surfaced.
// Errors from the stream itself are reported unchanged as well.
type SyncIterator[Msg any] struct {
	obs *Observer[Msg]
	ctx context.Context

	cur  *Msg
	done bool
	err  error
}

// NewSyncIterator wraps obs in a blocking iterator driven under ctx.
func NewSyncIterator[Msg any](ctx context.Context, obs *Observer[Msg]) *SyncIterator[Msg] {
	return &SyncIterator[Msg]{obs: obs, ctx: ctx}
}

// HasNext advances the iterator, blocking until the next message, the
// end of stream, or ctx cancellation. It is safe to call repeatedly; a
// false return is sticky (spec.md §8 "Exhaustion... idempotent").
func (s *SyncIterator[Msg]) HasNext() bool {
	if s.done {
		return false
	}
	fut, err := s.obs.NextElement()
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	msg, err := fut.Await(s.ctx)
	if err != nil {
		// ctx was cancelled out from under a blocked consumer: close the
		// observer to release the stream and report ctx's error.
		s.obs.Close()
		s.err = err
		s.done = true
		return false
	}
	if msg == nil {
		s.done = true
		return false
	}
	s.cur = msg
	return true
}

// Next returns the message HasNext just advanced to.
func (s *SyncIterator[Msg]) Next() *Msg { return s.cur }

// Err returns the error that ended iteration, if any. A nil Err after
// HasNext returns false means ordinary end of stream.
func (s *SyncIterator[Msg]) Err() error { return s.err }

// Close closes the underlying Observer.
func (s *SyncIterator[Msg]) Close() { s.obs.Close() }
