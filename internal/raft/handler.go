package raft

import (
	"context"
	"log"

	"github.com/quorumlabs/bftraft/internal/wire"
)

// canonicalRVRPayload reconstructs the exact bytes a RequestVoteResponse's
// signature was computed over, so election certificates can be
// re-verified after the fact. The Signature field itself is zeroed before
// re-marshaling: DecodeRPC fills it in from the envelope's detached
// signature after the fact, so it was never part of the signed payload.
func canonicalRVRPayload(v RequestVoteResponse) ([]byte, error) {
	v.Signature = Signature{}
	return wire.CanonicalPayload(v)
}

// mustCanonicalRVRPayload is canonicalRVRPayload for the self-vote path,
// where marshaling a struct of plain scalar fields cannot fail in
// practice; a failure here would indicate a broken RequestVoteResponse
// definition, not a runtime condition to recover from.
func mustCanonicalRVRPayload(v RequestVoteResponse) []byte {
	payload, err := canonicalRVRPayload(v)
	if err != nil {
		panic("raft: canonical RVR payload: " + err.Error())
	}
	return payload
}

// Handler is the single-threaded reducer: it owns a NodeState exclusively
// and is the only goroutine that ever mutates it. Every method on Handler
// other than Run is a pure-looking state transition invoked from
// within the Run loop — none of them are safe to call concurrently with
// Run, by design.
type Handler struct {
	state *NodeState
	sender *Sender
	verifier Verifier
	apply ApplyFunc
	timers Timers
}

// NewHandler wires a Handler around a fresh NodeState for self among
// peers, plus its collaborators. quorumSize and the configured timers are
// supplied by the embedder.
func NewHandler(self NodeId, peers []NodeId, quorumSize int, sender *Sender, verifier Verifier, apply ApplyFunc, timers Timers) *Handler {
	return &Handler{
		state: newNodeState(self, peers, quorumSize),
		sender: sender,
		verifier: verifier,
		apply: apply,
		timers: timers,
	}
}

// Run is the handler's top loop: dequeue one event, dispatch, repeat
// forever. It returns when events is closed or ctx is cancelled — both
// model "closing the event queue".
func (h *Handler) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventRPC:
		h.handleRPC(ctx, ev)
	case EventElectionTimeout:
		h.handleElectionTimeout(ctx)
	case EventHeartbeatTimeout:
		h.handleHeartbeatTimeout(ctx)
	}
}

// handleRPC verifies the appropriate signature before any state mutation:
// node key for inter-replica RPCs (looked up by ev.From), client key for
// Command/Revolution (looked up by the RPC's own ClientID, since a
// forwarded Command arrives from a replica rather than from the client).
// Failure is a silent drop.
func (h *Handler) handleRPC(ctx context.Context, ev Event) {
	switch rpc := ev.Payload.(type) {
	case AppendEntries:
		if !h.verifier.Verify(ev.From, ev.RawPayload, ev.Sig) {
			return
		}
		h.handleAppendEntries(ctx, rpc)
	case AppendEntriesResponse:
		if !h.verifier.Verify(ev.From, ev.RawPayload, ev.Sig) {
			return
		}
		h.handleAppendEntriesResponse(ctx, rpc)
	case RequestVote:
		if !h.verifier.Verify(ev.From, ev.RawPayload, ev.Sig) {
			return
		}
		h.handleRequestVote(ctx, rpc)
	case RequestVoteResponse:
		if !h.verifier.Verify(ev.From, ev.RawPayload, ev.Sig) {
			return
		}
		h.handleRequestVoteResponse(ctx, rpc)
	case Command:
		if !h.verifier.Verify(string(rpc.ClientID), ev.RawPayload, ev.Sig) {
			return
		}
		h.handleCommand(ctx, rpc)
	case Revolution:
		if !h.verifier.Verify(string(rpc.ClientID), ev.RawPayload, ev.Sig) {
			return
		}
		h.handleRevolution(rpc)
	case Debug:
		if !h.verifier.Verify(ev.From, ev.RawPayload, ev.Sig) {
			return
		}
		log.Printf("raft: debug from %s: %s", ev.From, rpc.Text)
	default:
		// CommandResponse inbound to a replica, and any other variant, has
		// no processing rule defined — silently drop.
	}
}

// handleAppendEntries processes an inbound AppendEntries: first it decides
// whether to recognize ae's sender as leader (accepting a higher term only
// when it carries a valid quorum certificate), then, against that
// possibly-just-updated view, it runs log-matching and truncate-and-append.
func (h *Handler) handleAppendEntries(ctx context.Context, ae AppendEntries) {
	ns := h.state

	// Step 1 — leader recognition.
	alreadyCurrent := ae.Term == ns.term && ns.currentLeader != nil && *ns.currentLeader == ae.LeaderID
	if !alreadyCurrent {
		if ae.Term >= ns.term && len(ae.QuorumVotes) > 0 && h.validQuorumCert(ae.QuorumVotes, ae.LeaderID, ae.Term) {
			leader := ae.LeaderID
			ns.term = ae.Term
			ns.votedFor = nil
			ns.ignoreLeader = false
			ns.currentLeader = &leader
		}
	}

	// Step 2 — entry processing, against the (possibly just-updated) state.
	ct := ns.term
	cl := ns.currentLeader
	ig := ns.ignoreLeader
	oldLast := ns.log.LastIndex()

	leaderMatches := cl != nil && *cl == ae.LeaderID

	switch {
	case leaderMatches && !ig && ae.Term == ct:
		h.timers.ResetElection()
		ns.lazy = lazyVote{}

		plmatch := ns.log.prevLogEntryMatches(ae.PrevLogIndex, ae.PrevLogTerm)
		if ae.Term < ct || !plmatch {
			h.sender.send(ctx, ae.LeaderID, AppendEntriesResponse{
				Term: ct, NodeID: ns.self, Convinced: true, Success: false, Index: oldLast,
			})
			return
		}

		newLast := ns.log.truncateAndAppend(ae.PrevLogIndex, ae.Entries)
		h.sender.send(ctx, ae.LeaderID, AppendEntriesResponse{
			Term: ct, NodeID: ns.self, Convinced: true, Success: true, Index: newLast,
		})

		if ae.LeaderCommit > ns.commitIndex {
			newCommit := ae.LeaderCommit
			if newLast < newCommit {
				newCommit = newLast
			}
			ns.commitIndex = newCommit
			h.applyAndRespond(ctx)
		}

	case !ig && ae.Term >= ct:
		h.sender.send(ctx, ae.LeaderID, AppendEntriesResponse{
			Term: ct, NodeID: ns.self, Convinced: false, Success: false, Index: oldLast,
		})

	default:
		// ignoreLeader (revocation) or stale term: drop silently.
	}
}

// validQuorumCert validates votes as an election certificate for
// (leaderID, term): at least quorumSize entries, each verified against the
// claimed candidate/term. Re-verifying every signature here is the BFT
// addition over vanilla Raft.
func (h *Handler) validQuorumCert(votes []RequestVoteResponse, leaderID NodeId, term Term) bool {
	ns := h.state
	if len(votes) < ns.quorumSize {
		return false
	}
	for _, v := range votes {
		if v.CandidateID != leaderID || v.Term != term || !v.VoteGranted {
			return false
		}
		payload, err := canonicalRVRPayload(v)
		if err != nil {
			return false
		}
		if !h.verifier.Verify(string(v.NodeID), payload, v.Signature) {
			return false
		}
	}
	return true
}

// handleAppendEntriesResponse folds a follower's reply into replication
// bookkeeping and, once a quorum (leader plus matched peers) has replicated
// up to some index, advances commitIndex. Only meaningful while Leader.
func (h *Handler) handleAppendEntriesResponse(ctx context.Context, aer AppendEntriesResponse) {
	ns := h.state
	if ns.role != Leader {
		return
	}

	if !aer.Convinced && aer.Term <= ns.term {
		ns.lConvinced.Remove(aer.NodeID)
	}

	if aer.Term == ns.term {
		switch {
		case aer.Convinced && !aer.Success:
			// Floored at 0: a Byzantine peer can send Convinced/!Success
			// NACKs indefinitely, and nextIndex must never go below
			// StartIndex+1 or buildAppendEntries would compute a prevIndex
			// before the start of the log.
			if ns.lNextIndex[aer.NodeID] > 0 {
				ns.lNextIndex[aer.NodeID]--
			}
		case aer.Convinced && aer.Success:
			ns.lMatchIndex[aer.NodeID] = aer.Index
			ns.lNextIndex[aer.NodeID] = aer.Index + 1
			ns.lConvinced.Add(aer.NodeID)
			if ns.advanceCommitIndex() {
				h.applyAndRespond(ctx)
			}
		}
	}

	if !aer.Convinced || !aer.Success {
		h.resendAppendEntries(ctx, aer.NodeID)
	}
}

// resendAppendEntries re-sends AppendEntries to peer using the leader's
// current view of that peer's nextIndex; called whenever the peer's last
// response left it unconvinced or unsuccessful, rather than waiting for
// the next heartbeat.
func (h *Handler) resendAppendEntries(ctx context.Context, peer NodeId) {
	ns := h.state
	next, ok := ns.lNextIndex[peer]
	if !ok {
		return
	}
	h.sender.send(ctx, peer, h.buildAppendEntries(next))
}

// buildAppendEntries constructs the AE a leader would send to bring a peer
// up to date from nextIndex, including the cached election certificate.
// nextIndex is clamped to 0 rather than trusted from the caller: it is
// reached from both the heartbeat and resend paths, and a negative input
// would make prevIndex fall before StartIndex and panic in Log.TermAt.
func (h *Handler) buildAppendEntries(nextIndex LogIndex) AppendEntries {
	ns := h.state
	if nextIndex < 0 {
		nextIndex = 0
	}
	prevIndex := nextIndex - 1
	prevTerm := ns.log.TermAt(prevIndex)

	var entries []LogEntry
	for i := nextIndex; i <= ns.log.LastIndex(); i++ {
		entries = append(entries, ns.log.At(i))
	}

	return AppendEntries{
		Term: ns.term,
		LeaderID: ns.self,
		PrevLogIndex: prevIndex,
		PrevLogTerm: prevTerm,
		Entries: entries,
		LeaderCommit: ns.commitIndex,
		QuorumVotes: ns.quorumCert,
	}
}

// handleElectionTimeout fires when no AppendEntries has been seen from a
// recognized leader within the randomized window. If a lazy vote is
// pending it is honored and externalized now; otherwise this node becomes
// a Candidate, counts its own vote, and broadcasts RequestVote.
func (h *Handler) handleElectionTimeout(ctx context.Context) {
	ns := h.state
	if ns.role == Leader {
		return
	}

	if ns.lazy.set {
		term, cand := ns.lazy.term, ns.lazy.cand
		ns.term = term
		ns.votedFor = &cand
		ns.lazy = lazyVote{}
		ns.ignoreLeader = false
		ns.currentLeader = nil
		h.sender.send(ctx, cand, RequestVoteResponse{
			Term: term, CandidateID: cand, NodeID: ns.self, VoteGranted: true,
		})
		h.timers.ResetElection()
		return
	}

	ns.becomeCandidate()
	selfVote := RequestVoteResponse{
		Term: ns.term, CandidateID: ns.self, NodeID: ns.self, VoteGranted: true,
	}
	selfVote.Signature = h.sender.signer.Sign(mustCanonicalRVRPayload(selfVote))
	ns.cYesVotes.Add(selfVote)

	rv := RequestVote{Term: ns.term, CandidateID: ns.self}
	rv.LastLogTerm, rv.LastLogIndex = ns.lastLogInfo()
	h.sender.broadcast(ctx, ns.peers, rv)
	h.timers.ResetElection()
}

// handleHeartbeatTimeout fires on the fixed interval a Leader uses to keep
// followers convinced of its leadership; it resends AppendEntries to every
// peer regardless of whether anything changed since the last one.
func (h *Handler) handleHeartbeatTimeout(ctx context.Context) {
	ns := h.state
	if ns.role != Leader {
		return
	}
	for _, peer := range ns.peers {
		h.sender.send(ctx, peer, h.buildAppendEntries(ns.lNextIndex[peer]))
	}
	h.timers.ResetHeartbeat()
}

// applyAndRespond runs applyPendingEntries and, if this node is Leader,
// routes every generated CommandResponse back to its client.
func (h *Handler) applyAndRespond(ctx context.Context) {
	ns := h.state
	responses := ns.applyPendingEntries(h.apply)
	if ns.role != Leader {
		return
	}
	for _, r := range responses {
		h.sender.sendToClient(ctx, r.ClientID, r.Resp)
	}
}

// handleRequestVote decides whether to grant, refuse, or lazily record a
// vote for rv's candidate: stale term and already-voted-this-term cases
// are decided and answered immediately, while a genuinely new decision is
// held as a lazy vote and only answered on this node's own election
// timeout, so a node never votes for two different candidates in the same
// term even under reordering.
func (h *Handler) handleRequestVote(ctx context.Context, rv RequestVote) {
	ns := h.state

	if rv.Term < ns.term {
		h.replyVote(ctx, rv, false)
		return
	}

	if ns.votedFor != nil {
		if *ns.votedFor == rv.CandidateID && rv.Term == ns.term {
			h.replyVote(ctx, rv, true)
			return
		}
		if rv.Term == ns.term {
			h.replyVote(ctx, rv, false)
			return
		}
	}

	ourTerm, ourIndex := ns.lastLogInfo()
	candidateAhead := rv.LastLogTerm > ourTerm || (rv.LastLogTerm == ourTerm && rv.LastLogIndex >= ourIndex)
	if !candidateAhead {
		h.replyVote(ctx, rv, false)
		return
	}

	if !ns.lazy.set || rv.Term > ns.lazy.term {
		ns.lazy = lazyVote{set: true, term: rv.Term, cand: rv.CandidateID}
	}
	// Else: an existing lazy vote for a term >= rv.Term wins ties by being
	// first. No reply yet either way — externalized on timeout.
}

// replyVote sends an immediate RequestVoteResponse for the RequestVote
// branches decided without going through lazy voting (stale term,
// already voted this term, candidate's log not ahead of ours).
func (h *Handler) replyVote(ctx context.Context, rv RequestVote, granted bool) {
	ns := h.state
	h.sender.send(ctx, rv.CandidateID, RequestVoteResponse{
		Term: rv.Term, CandidateID: rv.CandidateID, NodeID: ns.self, VoteGranted: granted,
	})
}

// handleRequestVoteResponse tallies a vote, transitioning to Leader once
// quorum is reached. Only meaningful while Candidate and the response
// matches the in-progress term.
func (h *Handler) handleRequestVoteResponse(ctx context.Context, rvr RequestVoteResponse) {
	ns := h.state
	if ns.role != Candidate || rvr.Term != ns.term {
		return
	}

	if rvr.VoteGranted {
		ns.cYesVotes.Add(rvr)
		if ns.cYesVotes.Cardinality() >= ns.quorumSize {
			cert := ns.cYesVotes.ToSlice()
			ns.becomeLeader(cert)
			h.timers.StopHeartbeat()
			for _, peer := range ns.peers {
				h.sender.send(ctx, peer, h.buildAppendEntries(ns.lNextIndex[peer]))
			}
			h.timers.ResetHeartbeat()
		}
		return
	}
	ns.cPotentialVotes.Remove(rvr.NodeID)
}

// handleCommand processes a client-submitted command: a replayed
// (clientID, signature) pair gets its cached response re-sent without
// re-executing anything; a Leader appends a fresh log entry and tries to
// advance commitIndex; a follower with a known leader forwards the
// command, preserving the client's original signature; otherwise it is
// dropped.
func (h *Handler) handleCommand(ctx context.Context, cmd Command) {
	ns := h.state
	key := replayKey{clientID: cmd.ClientID, sig: cmd.Signature}

	if outcome, ok := ns.replayMap[key]; ok && !outcome.Revoked {
		h.sender.sendToClient(ctx, cmd.ClientID, outcome.Response)
		return
	}
	// A Revoked=true hit (a Revolution tombstone under the same key) carries
	// no cached response, so the command falls through to the
	// append-or-forward path below as if unseen.

	switch {
	case ns.role == Leader:
		ns.log.append(LogEntry{Term: ns.term, Command: cmd})
		for _, peer := range ns.peers {
			h.sender.send(ctx, peer, h.buildAppendEntries(ns.lNextIndex[peer]))
		}
		if ns.advanceCommitIndex() {
			h.applyAndRespond(ctx)
		}
	case ns.currentLeader != nil:
		h.sender.sendForwarded(ctx, *ns.currentLeader, cmd)
	default:
		// No known leader: drop.
	}
}

// handleRevolution processes a client's request to stop recognizing the
// current leader: once recorded against the replay map, ignoreLeader is
// set so every subsequent AppendEntries from that leader is dropped until
// a higher term or a new quorum certificate supersedes it.
func (h *Handler) handleRevolution(rev Revolution) {
	ns := h.state
	key := replayKey{clientID: rev.ClientID, sig: rev.Signature}
	if _, seen := ns.replayMap[key]; seen {
		return
	}
	if ns.currentLeader != nil && *ns.currentLeader == rev.LeaderID {
		ns.replayMap[key] = replayOutcome{Revoked: true}
		ns.ignoreLeader = true
	}
}
