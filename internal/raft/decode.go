package raft

import (
	"fmt"

	"github.com/quorumlabs/bftraft/internal/wire"
)

// DecodeRPC turns a wire.Envelope into the concrete RPC it carries, keyed
// on Kind. Transports call this once per inbound envelope to build the
// Event handed to Handler.Run.
//
// For RequestVoteResponse specifically, the envelope's detached signature
// is copied into the decoded struct's own Signature field: an RVR is
// stored standalone inside AppendEntries.QuorumVotes long after its
// envelope is gone, so the proof has to travel with the value itself.
func DecodeRPC(env wire.Envelope) (RPC, error) {
	switch env.Kind {
	case wire.KindAppendEntries:
		var v AppendEntries
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case wire.KindAppendEntriesResponse:
		var v AppendEntriesResponse
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case wire.KindRequestVote:
		var v RequestVote
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case wire.KindRequestVoteResponse:
		var v RequestVoteResponse
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		v.Signature = env.Sig
		return v, nil
	case wire.KindCommand:
		var v Command
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case wire.KindCommandResponse:
		var v CommandResponse
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case wire.KindRevolution:
		var v Revolution
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	case wire.KindDebug:
		var v Debug
		if err := wire.Decode(env, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("raft: unknown rpc kind %q", env.Kind)
	}
}
