package transport_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/quorumlabs/bftraft/internal/raft"
	"github.com/quorumlabs/bftraft/internal/transport"
	"github.com/quorumlabs/bftraft/internal/wire"
)

func TestSendDeliversEnvelopeWithCorrectFrom(t *testing.T) {
	addrA := "127.0.0.1:19371"
	addrB := "127.0.0.1:19372"

	a, err := transport.New(addrA)
	if err != nil {
		t.Fatalf("transport.New(a): %v", err)
	}
	b, err := transport.New(addrB)
	if err != nil {
		t.Fatalf("transport.New(b): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)
	go b.Run(ctx)

	rv := raft.RequestVote{Term: 3, CandidateID: raft.NodeId(addrA), LastLogIndex: -1}
	env, err := wire.Encode(wire.KindRequestVote, rv)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env.Sig = raft.Signature{42}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	if err := a.Send(ctx, addrB, string(wire.KindRequestVote), raw); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case ev := <-b.Events():
		if got, want := ev.From, addrA; got != want {
			t.Fatalf("ev.From=%s, want %s", got, want)
		}
		rvGot, ok := ev.Payload.(raft.RequestVote)
		if !ok {
			t.Fatalf("payload type=%T, want raft.RequestVote", ev.Payload)
		}
		if got, want := rvGot.Term, raft.Term(3); got != want {
			t.Fatalf("Term=%d, want %d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivered event")
	}
}
