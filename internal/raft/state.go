package raft

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Role is a replica's current position in the Follower/Candidate/Leader
// cycle. Grounded on jepsen-io-maelstrom/demo/go/cmd/maelstrom-raft/raft.go's
// role constants.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// lazyVote is a vote this node has decided to cast but not yet transmitted —
// externalized only when the election timer actually fires.
type lazyVote struct {
	set bool
	term Term
	cand NodeId
}

// replayKey is the unique dedup key for a client command: (clientId, sig).
type replayKey struct {
	clientID ClientId
	sig Signature
}

// replayOutcome distinguishes two reasons a (clientID, sig) key can already
// be in replayMap: Revoked=true is the Revolution tombstone ("used, no
// result"), while Revoked=false carries the cached CommandResponse needed
// to answer a replay without re-executing. The two must not be merged into
// a single state.
type replayOutcome struct {
	Revoked bool
	Response CommandResponse
}

// NodeState is the entire mutable state of one replica. It is owned
// exclusively by the event handler goroutine — no field is ever read or
// written from any other goroutine, so no mutex guards it (unlike the
// teacher's per-field-mutex design, which existed because its handler ran
// one goroutine per inbound message rather than a single serialized loop).
type NodeState struct {
	self NodeId
	peers []NodeId
	quorumSize int

	role Role
	term Term
	votedFor *NodeId
	lazy lazyVote
	currentLeader *NodeId
	ignoreLeader bool

	log *Log
	commitIndex LogIndex
	lastApplied LogIndex

	replayMap map[replayKey]replayOutcome

	// Leader-only per-peer bookkeeping.
	lNextIndex map[NodeId]LogIndex
	lMatchIndex map[NodeId]LogIndex
	lConvinced mapset.Set[NodeId]

	// Candidate-only bookkeeping.
	cYesVotes mapset.Set[RequestVoteResponse]
	cPotentialVotes mapset.Set[NodeId]

	// quorumCert is the set of RVRs that elected this node, carried on every
	// AE broadcast while it remains leader of this term.
	quorumCert []RequestVoteResponse
}

// newNodeState constructs a fresh Follower state for self among peers.
// quorumSize is supplied by the embedder (typically
// ceil((2n+1)/3)+1 for Byzantine safety, but the core treats it as an
// opaque configured integer).
func newNodeState(self NodeId, peers []NodeId, quorumSize int) *NodeState {
	ns := &NodeState{
		self: self,
		peers: peers,
		quorumSize: quorumSize,
		role: Follower,
		log: newLog(),
		commitIndex: StartIndex,
		lastApplied: StartIndex,
		replayMap: make(map[replayKey]replayOutcome),
	}
	return ns
}

// lastLogInfo returns the term and index of ns's last log entry, or
// (0, StartIndex) for an empty log.
func (ns *NodeState) lastLogInfo() (Term, LogIndex) {
	return ns.log.lastLogInfo()
}
