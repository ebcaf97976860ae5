package streaming

import (
	"context"
	"testing"
)

func TestSyncIterator_IteratesThenExhausts(t *testing.T) {
	t.Parallel()
	recv := &fakeReceiver[string]{msgs: []*string{strPtr("x"), strPtr("y")}}
	obs := New[string](recv, func(string) {})
	it := NewSyncIterator(context.Background(), obs)
	defer it.Close()

	var got []string
	for it.HasNext() {
		got = append(got, *it.Next())
	}
	if it.Err() != nil {
		t.Fatalf("unexpected Err(): %v", it.Err())
	}
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("got %v, want [x y]", got)
	}

	// exhaustion is sticky
	if it.HasNext() {
		t.Fatal("HasNext must stay false after exhaustion")
	}
}

func TestSyncIterator_ContextCancelClosesObserver(t *testing.T) {
	t.Parallel()
	recv := newBlockingReceiver[string](t) // never delivers
	obs := New[string](recv, func(string) {})
	ctx, cancel := context.WithCancel(context.Background())
	it := NewSyncIterator(ctx, obs)

	cancel()
	if it.HasNext() {
		t.Fatal("HasNext must return false once ctx is cancelled")
	}
	if it.Err() == nil {
		t.Fatal("expected a context-cancellation error")
	}
}
