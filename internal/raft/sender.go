package raft

import (
	"context"
	"encoding/json"
	"log"

	"github.com/quorumlabs/bftraft/internal/wire"
)

// Sender constructs, signs, and dispatches outbound RPCs. Grounded on
// jepsen-io-maelstrom's Node.Send/Node.Broadcast/Node.RPC, adapted: the
// teacher registers a per-call response callback invoked from the reader
// goroutine; this core instead treats every response (AER, RVR, CMDR) as
// its own inbound RPC delivered through the single event queue, so there
// is no callback table here at all — just fire-and-forget signed sends.
type Sender struct {
	self NodeId
	signer Signer
	transport Transport
}

// NewSender builds a Sender bound to a node identity, its signing key, and
// the transport used to deliver bytes.
func NewSender(self NodeId, signer Signer, transport Transport) *Sender {
	return &Sender{self: self, signer: signer, transport: transport}
}

// send signs rpc with the node key and dispatches it to peer. Use
// sendForwarded for a CMD being relayed to the leader, which must keep the
// client's original signature untouched.
func (s *Sender) send(ctx context.Context, peer NodeId, rpc RPC) {
	env, err := wire.Encode(rpc.Kind(), rpc)
	if err != nil {
		log.Printf("raft: encode %s for %s: %v", rpc.Kind(), peer, err)
		return
	}
	env.Sig = s.signer.Sign(env.Payload)
	s.dispatch(ctx, string(peer), env)
}

// sendForwarded dispatches a Command whose ClientSig must survive
// untouched — the envelope is signed with the forwarded Command's own
// signature, not a fresh node signature over the re-wrapped payload,
// because downstream validation checks the client key, not this node's.
func (s *Sender) sendForwarded(ctx context.Context, peer NodeId, cmd Command) {
	env, err := wire.Encode(cmd.Kind(), cmd)
	if err != nil {
		log.Printf("raft: encode forwarded command for %s: %v", peer, err)
		return
	}
	env.Sig = cmd.Signature
	s.dispatch(ctx, string(peer), env)
}

// broadcast sends rpc, signed once, to every peer.
func (s *Sender) broadcast(ctx context.Context, peers []NodeId, rpc RPC) {
	env, err := wire.Encode(rpc.Kind(), rpc)
	if err != nil {
		log.Printf("raft: encode %s for broadcast: %v", rpc.Kind(), err)
		return
	}
	env.Sig = s.signer.Sign(env.Payload)
	for _, peer := range peers {
		s.dispatch(ctx, string(peer), env)
	}
}

// sendToClient delivers a CommandResponse to the client that originated
// the request, signed with this node's key so the client can verify which
// replica answered.
func (s *Sender) sendToClient(ctx context.Context, client ClientId, resp CommandResponse) {
	env, err := wire.Encode(resp.Kind(), resp)
	if err != nil {
		log.Printf("raft: encode command response for %s: %v", client, err)
		return
	}
	env.Sig = s.signer.Sign(env.Payload)
	s.dispatch(ctx, string(client), env)
}

func (s *Sender) dispatch(ctx context.Context, to string, env wire.Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		log.Printf("raft: marshal envelope for %s: %v", to, err)
		return
	}
	if err := s.transport.Send(ctx, to, string(env.Kind), raw); err != nil {
		// Best-effort: periodic heartbeats and AppendEntriesResponse-driven
		// resends implicitly retry, so a single send failure here is not
		// escalated.
		log.Printf("raft: send %s to %s: %v", env.Kind, to, err)
	}
}
