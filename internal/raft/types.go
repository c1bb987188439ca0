// Package raft implements the event-driven state machine each replica runs
// to agree on an ordered log of client commands under a BFT variant of
// Raft: leader election with quorum certificates, log matching under
// signed RPCs, commit-index advancement, client-command deduplication, and
// leader revocation. It owns no transport, crypto primitive, or
// application state machine — those are collaborators injected by the
// embedder.
package raft

import (
	"encoding/json"

	"github.com/quorumlabs/bftraft/internal/wire"
)

// NodeId is opaque, totally ordered (string comparison), and hashable —
// it is used both as a map key and as the element type of NodeId sets.
type NodeId string

// ClientId identifies a client across the cluster.
type ClientId string

// RequestId correlates a CommandResponse back to the client's request.
type RequestId string

// Term is a monotonically increasing logical epoch, initial 0.
type Term uint64

// LogIndex addresses a position in the log. StartIndex denotes "before the
// first entry"; entry 0 is the first.
type LogIndex int64

// StartIndex is the sentinel meaning "before index 0".
const StartIndex LogIndex = -1

// Signature is re-exported from wire so callers of this package never need
// to import internal/wire directly just to hold a signature value.
type Signature = wire.Signature

// AppCommand and Result are opaque, serializable boundary types: the core
// never interprets their contents, only passes them to ApplyFunc and back.
type AppCommand = json.RawMessage
type Result = json.RawMessage

// LogEntry is a single slot in the replicated log.
type LogEntry struct {
	Term Term `json:"term"`
	Command Command `json:"command"`
}

// Command is a client-submitted operation together with its replay key.
// (ClientID, Signature) is the unique replay key — see NodeState.replayMap.
type Command struct {
	Entry AppCommand `json:"entry"`
	ClientID ClientId `json:"client_id"`
	RequestID RequestId `json:"request_id"`
	Signature Signature `json:"signature"`
}

func (Command) Kind() wire.Kind { return wire.KindCommand }

// CommandResponse answers a Command, successful or not.
type CommandResponse struct {
	Result Result `json:"result"`
	LeaderHint NodeId `json:"leader_hint"`
	ResponderID NodeId `json:"responder_id"`
	RequestID RequestId `json:"request_id"`
	Proof Signature `json:"proof"`
}

func (CommandResponse) Kind() wire.Kind { return wire.KindCommandResponse }

// AppendEntries is the leader's replication/heartbeat RPC. QuorumVotes
// carries the election certificate that proves (LeaderID, Term) won a
// quorum — validators re-verify every signature in it.
type AppendEntries struct {
	Term Term `json:"term"`
	LeaderID NodeId `json:"leader_id"`
	PrevLogIndex LogIndex `json:"prev_log_index"`
	PrevLogTerm Term `json:"prev_log_term"`
	Entries []LogEntry `json:"entries"`
	LeaderCommit LogIndex `json:"leader_commit"`
	QuorumVotes []RequestVoteResponse `json:"quorum_votes"`
}

func (AppendEntries) Kind() wire.Kind { return wire.KindAppendEntries }

// AppendEntriesResponse reports both whether the follower accepts the
// sender as leader of the stated term (Convinced) and whether the log
// matched and the append succeeded (Success) — these are orthogonal.
type AppendEntriesResponse struct {
	Term Term `json:"term"`
	NodeID NodeId `json:"node_id"`
	Convinced bool `json:"convinced"`
	Success bool `json:"success"`
	Index LogIndex `json:"index"`
}

func (AppendEntriesResponse) Kind() wire.Kind { return wire.KindAppendEntriesResponse }

// RequestVote is a candidate's solicitation for votes.
type RequestVote struct {
	Term Term `json:"term"`
	CandidateID NodeId `json:"candidate_id"`
	LastLogIndex LogIndex `json:"last_log_index"`
	LastLogTerm Term `json:"last_log_term"`
}

func (RequestVote) Kind() wire.Kind { return wire.KindRequestVote }

// RequestVoteResponse must be hashable: it is collected into sets
// (cYesVotes) and carried verbatim as the election certificate inside
// AppendEntries.QuorumVotes. Every field is comparable, so the struct
// itself is comparable and usable as a mapset element / map key.
type RequestVoteResponse struct {
	Term Term `json:"term"`
	CandidateID NodeId `json:"candidate_id"`
	NodeID NodeId `json:"node_id"`
	VoteGranted bool `json:"vote_granted"`
	Signature Signature `json:"signature"`
}

func (RequestVoteResponse) Kind() wire.Kind { return wire.KindRequestVoteResponse }

// Revolution is a client's request that a node stop recognizing a leader.
type Revolution struct {
	ClientID ClientId `json:"client_id"`
	LeaderID NodeId `json:"leader_id"`
	Signature Signature `json:"signature"`
}

func (Revolution) Kind() wire.Kind { return wire.KindRevolution }

// Debug is a free-form diagnostic RPC, gated by the node key like any
// other inter-replica message.
type Debug struct {
	Text string `json:"text"`
}

func (Debug) Kind() wire.Kind { return wire.KindDebug }

// RPC is the closed sum type every wire message belongs to.
type RPC interface {
	Kind() wire.Kind
}

var (
	_ RPC = AppendEntries{}
	_ RPC = AppendEntriesResponse{}
	_ RPC = RequestVote{}
	_ RPC = RequestVoteResponse{}
	_ RPC = Command{}
	_ RPC = CommandResponse{}
	_ RPC = Revolution{}
	_ RPC = Debug{}
)
