package raft

import "context"

// Signer produces a detached signature over a byte payload using this
// node's own key. Concrete implementation lives in internal/crypto; kept
// as an external collaborator so the handler never touches raw key
// material.
type Signer interface {
	Sign(payload []byte) Signature
}

// Verifier checks a detached signature against the key registered for id.
// id is a NodeId for inter-replica RPCs and a ClientId for Command and
// Revolution — the caller picks the right keyspace.
type Verifier interface {
	Verify(id string, payload []byte, sig Signature) bool
}

// Transport delivers signed envelopes to peers and clients. Sender calls
// Send synchronously from the handler goroutine, so the handler waits for
// whatever Send does (the TCP transport dials and writes inline). Addresses
// are plain strings rather than NodeId/ClientId so one interface serves
// both peer and client delivery.
type Transport interface {
	Send(ctx context.Context, to string, kind RPCKind, env []byte) error
}

// RPCKind tags which of the eight RPC variants an encoded envelope carries,
// used only at the Transport boundary (internal/wire.Kind is the wire-level
// analogue; this alias keeps internal/raft's public surface self-contained).
type RPCKind = string

// ApplyFunc is the application state machine: deterministic and
// side-effect free from the handler's perspective. The handler only calls
// it once an entry is committed; it never inspects what the function does.
type ApplyFunc func(entry AppCommand) (Result, error)

// Timers is the collaborator the handler uses to reset/stop the election
// and heartbeat timers. Implementations must never invoke handler logic
// directly from a timer callback — they only push Events onto the
// handler's channel. See internal/timers.
type Timers interface {
	ResetElection()
	ResetHeartbeat()
	StopHeartbeat()
}

// EventKind discriminates the three event sources the handler's single
// loop dequeues from.
type EventKind int

const (
	EventRPC EventKind = iota
	EventElectionTimeout
	EventHeartbeatTimeout
)

// Event is the unit of work the handler's loop dequeues. Exactly one of
// the payload fields is meaningful, selected by Kind — a closed sum type
// realized as a tagged struct rather than an interface, since events never
// cross the wire and don't need RPC's Kind()-method polymorphism.
type Event struct {
	Kind EventKind

	// Valid when Kind == EventRPC. From is the wire-level sender named in
	// the connection's handshake; the handler verifies inter-replica RPCs
	// against From and Command/Revolution against their own ClientID.
	// RawPayload is the exact bytes Sig was computed over.
	From string
	Payload RPC
	RawPayload []byte
	Sig Signature
}
