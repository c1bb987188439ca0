package raft

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/quorumlabs/bftraft/internal/wire"
)

// decodeSentAER unmarshals the raw envelope bytes fakeTransport captured and
// decodes its payload as an AppendEntriesResponse, for tests that need to
// assert on what a handler actually sent rather than just how many sends it
// made.
func decodeSentAER(t *testing.T, raw []byte) AppendEntriesResponse {
	t.Helper()
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	var aer AppendEntriesResponse
	if err := wire.Decode(env, &aer); err != nil {
		t.Fatalf("decode AppendEntriesResponse: %v", err)
	}
	return aer
}

type fakeSigner struct{}

func (fakeSigner) Sign(payload []byte) Signature { return Signature{} }

type fakeVerifier struct{ ok bool }

func (f fakeVerifier) Verify(id string, payload []byte, sig Signature) bool { return f.ok }

type sentMsg struct {
	to  string
	env []byte
}

type fakeTransport struct {
	sent []sentMsg
}

func (f *fakeTransport) Send(ctx context.Context, to string, kind RPCKind, env []byte) error {
	f.sent = append(f.sent, sentMsg{to: to, env: env})
	return nil
}

type fakeTimers struct {
	electionResets  int
	heartbeatResets int
	heartbeatStops  int
}

func (f *fakeTimers) ResetElection()  { f.electionResets++ }
func (f *fakeTimers) ResetHeartbeat() { f.heartbeatResets++ }
func (f *fakeTimers) StopHeartbeat()  { f.heartbeatStops++ }

func newTestHandler(self NodeId, peers []NodeId, quorum int) (*Handler, *fakeTransport, *fakeTimers) {
	transport := &fakeTransport{}
	timers := &fakeTimers{}
	sender := NewSender(self, fakeSigner{}, transport)
	noopApply := func(entry AppCommand) (Result, error) { return Result("ok"), nil }
	h := NewHandler(self, peers, quorum, sender, fakeVerifier{ok: true}, noopApply, timers)
	return h, transport, timers
}

func TestHandleElectionTimeoutBecomesCandidate(t *testing.T) {
	h, transport, timers := newTestHandler("n1", []NodeId{"n2", "n3"}, 2)

	h.handleElectionTimeout(context.Background())

	if got, want := h.state.role, Candidate; got != want {
		t.Fatalf("role=%v, want %v", got, want)
	}
	if got, want := h.state.cYesVotes.Cardinality(), 1; got != want {
		t.Fatalf("cYesVotes cardinality=%d, want %d (self-vote)", got, want)
	}
	if got, want := len(transport.sent), 2; got != want {
		t.Fatalf("broadcast sent to %d peers, want %d", got, want)
	}
	if timers.electionResets == 0 {
		t.Fatal("expected election timer to be reset")
	}
}

func TestHandleElectionTimeoutLeaderIsNoOp(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2"}, 1)
	h.state.becomeCandidate()
	h.state.becomeLeader(nil)

	h.handleElectionTimeout(context.Background())

	if got, want := h.state.role, Leader; got != want {
		t.Fatalf("role changed while already Leader: %v, want %v", got, want)
	}
	if len(transport.sent) != 0 {
		t.Fatal("leader should not react to its own election timeout")
	}
}

func TestHandleRequestVoteRecordsLazyVoteWhenCandidateUpToDate(t *testing.T) {
	h, transport, _ := newTestHandler("n1", nil, 1)

	rv := RequestVote{Term: 1, CandidateID: "n2", LastLogIndex: StartIndex, LastLogTerm: 0}
	h.handleRequestVote(context.Background(), rv)

	if !h.state.lazy.set {
		t.Fatal("expected a lazy vote to be recorded")
	}
	if got, want := h.state.lazy.cand, NodeId("n2"); got != want {
		t.Fatalf("lazy.cand=%v, want %v", got, want)
	}
	if len(transport.sent) != 0 {
		t.Fatal("a new decision should be held as a lazy vote, not answered immediately")
	}
}

func TestHandleRequestVoteRefusesStaleTerm(t *testing.T) {
	h, transport, _ := newTestHandler("n1", nil, 1)
	h.state.term = 5

	h.handleRequestVote(context.Background(), RequestVote{Term: 1, CandidateID: "n2"})

	if h.state.lazy.set {
		t.Fatal("a stale-term request must not create a lazy vote")
	}
	if got, want := len(transport.sent), 1; got != want {
		t.Fatalf("expected one immediate refusal reply, got %d sends", got)
	}
}

func TestHandleCommandLeaderAppendsToLog(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2"}, 1)
	h.state.becomeCandidate()
	h.state.becomeLeader(nil)

	cmd := Command{Entry: AppCommand(`{"type":"read"}`), ClientID: "c1", RequestID: "r1"}
	h.handleCommand(context.Background(), cmd)

	if got, want := h.state.log.Len(), 1; got != want {
		t.Fatalf("log.Len()=%d, want %d", got, want)
	}
	if len(transport.sent) == 0 {
		t.Fatal("leader should replicate the new entry to peers")
	}
}

func TestHandleCommandFollowerForwardsToKnownLeader(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2"}, 1)
	leader := NodeId("n2")
	h.state.becomeFollower(1, &leader)

	cmd := Command{Entry: AppCommand(`{}`), ClientID: "c1", Signature: Signature{9}}
	h.handleCommand(context.Background(), cmd)

	if h.state.log.Len() != 0 {
		t.Fatal("a follower must never append a command to its own log")
	}
	if got, want := len(transport.sent), 1; got != want {
		t.Fatalf("expected the command forwarded once, got %d sends", got)
	}
}

func TestHandleCommandReplaysCachedResponse(t *testing.T) {
	h, transport, _ := newTestHandler("n1", nil, 1)
	sig := Signature{7}
	key := replayKey{clientID: "c1", sig: sig}
	h.state.replayMap[key] = replayOutcome{Response: CommandResponse{RequestID: "r1"}}

	cmd := Command{ClientID: "c1", Signature: sig}
	h.handleCommand(context.Background(), cmd)

	if got, want := len(transport.sent), 1; got != want {
		t.Fatalf("expected cached response resent, got %d sends", got)
	}
	if h.state.log.Len() != 0 {
		t.Fatal("a replayed command must not be re-appended to the log")
	}
}

func TestHandleRevolutionSetsIgnoreLeader(t *testing.T) {
	h, _, _ := newTestHandler("n1", nil, 1)
	leader := NodeId("n2")
	h.state.becomeFollower(1, &leader)

	h.handleRevolution(Revolution{ClientID: "c1", LeaderID: "n2", Signature: Signature{3}})

	if !h.state.ignoreLeader {
		t.Fatal("expected ignoreLeader to be set after a matching Revolution")
	}
}

func TestHandleRevolutionIgnoresMismatchedLeader(t *testing.T) {
	h, _, _ := newTestHandler("n1", nil, 1)
	leader := NodeId("n2")
	h.state.becomeFollower(1, &leader)

	h.handleRevolution(Revolution{ClientID: "c1", LeaderID: "n3", Signature: Signature{3}})

	if h.state.ignoreLeader {
		t.Fatal("a Revolution naming a different leader must not set ignoreLeader")
	}
}

func TestHandleRPCDropsOnFailedVerification(t *testing.T) {
	transport := &fakeTransport{}
	timers := &fakeTimers{}
	sender := NewSender("n1", fakeSigner{}, transport)
	h := NewHandler("n1", nil, 1, sender, fakeVerifier{ok: false}, nil, timers)

	h.handleRPC(context.Background(), Event{Kind: EventRPC, Payload: RequestVote{Term: 1, CandidateID: "n2"}})

	if h.state.lazy.set {
		t.Fatal("a message that fails verification must never reach state-mutating logic")
	}
}

func TestRequestVoteResponseReachingQuorumBecomesLeader(t *testing.T) {
	h, transport, timers := newTestHandler("n1", []NodeId{"n2", "n3"}, 2)
	h.handleElectionTimeout(context.Background())
	transport.sent = nil

	h.handleRequestVoteResponse(context.Background(), RequestVoteResponse{
		Term: h.state.term, CandidateID: "n1", NodeID: "n2", VoteGranted: true,
	})

	if got, want := h.state.role, Leader; got != want {
		t.Fatalf("role=%v, want %v", got, want)
	}
	if timers.heartbeatStops == 0 {
		t.Fatal("expected the election heartbeat safety stop before arming the new one")
	}
	if timers.heartbeatResets == 0 {
		t.Fatal("expected the heartbeat timer to be armed on becoming leader")
	}
	if len(transport.sent) != 2 {
		t.Fatalf("expected an initial AppendEntries to each peer, got %d sends", len(transport.sent))
	}
}

func TestHandleAppendEntriesAdoptsLeaderOnValidQuorumCert(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2", "n3"}, 2)

	cert := []RequestVoteResponse{
		{Term: 1, CandidateID: "n2", NodeID: "n1", VoteGranted: true},
		{Term: 1, CandidateID: "n2", NodeID: "n3", VoteGranted: true},
	}
	ae := AppendEntries{
		Term: 1, LeaderID: "n2",
		PrevLogIndex: StartIndex, PrevLogTerm: 0,
		LeaderCommit: StartIndex, QuorumVotes: cert,
	}
	h.handleAppendEntries(context.Background(), ae)

	if got, want := h.state.term, Term(1); got != want {
		t.Fatalf("term=%d, want %d", got, want)
	}
	if h.state.currentLeader == nil || *h.state.currentLeader != NodeId("n2") {
		t.Fatalf("currentLeader=%v, want n2", h.state.currentLeader)
	}
	if got, want := len(transport.sent), 1; got != want {
		t.Fatalf("sent=%d, want 1 (the AppendEntriesResponse)", got)
	}
	aer := decodeSentAER(t, transport.sent[0].env)
	if !aer.Convinced || !aer.Success {
		t.Fatalf("aer=%+v, want Convinced=true Success=true", aer)
	}
}

func TestHandleAppendEntriesRejectsInsufficientQuorumCert(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2", "n3"}, 2)

	// Only one vote for a quorumSize-2 cluster: not a valid certificate,
	// so term/leader must not advance even though ae.Term > ns.term.
	cert := []RequestVoteResponse{
		{Term: 1, CandidateID: "n2", NodeID: "n3", VoteGranted: true},
	}
	ae := AppendEntries{
		Term: 1, LeaderID: "n2",
		PrevLogIndex: StartIndex, PrevLogTerm: 0,
		LeaderCommit: StartIndex, QuorumVotes: cert,
	}
	h.handleAppendEntries(context.Background(), ae)

	if got, want := h.state.term, Term(0); got != want {
		t.Fatalf("term=%d, want %d (unchanged)", got, want)
	}
	if h.state.currentLeader != nil {
		t.Fatalf("currentLeader=%v, want nil", h.state.currentLeader)
	}
	if got, want := len(transport.sent), 1; got != want {
		t.Fatalf("sent=%d, want 1 (the unconvinced AppendEntriesResponse)", got)
	}
	aer := decodeSentAER(t, transport.sent[0].env)
	if aer.Convinced {
		t.Fatalf("aer=%+v, want Convinced=false", aer)
	}
}

func TestHandleAppendEntriesRejectsCertWithFailedSignatureVerification(t *testing.T) {
	transport := &fakeTransport{}
	timers := &fakeTimers{}
	sender := NewSender("n1", fakeSigner{}, transport)
	h := NewHandler("n1", []NodeId{"n2", "n3"}, 2, sender, fakeVerifier{ok: false}, nil, timers)

	cert := []RequestVoteResponse{
		{Term: 1, CandidateID: "n2", NodeID: "n1", VoteGranted: true},
		{Term: 1, CandidateID: "n2", NodeID: "n3", VoteGranted: true},
	}
	ae := AppendEntries{
		Term: 1, LeaderID: "n2",
		PrevLogIndex: StartIndex, PrevLogTerm: 0,
		LeaderCommit: StartIndex, QuorumVotes: cert,
	}
	h.handleAppendEntries(context.Background(), ae)

	if h.state.currentLeader != nil {
		t.Fatal("a cert whose votes fail signature verification must not install a leader")
	}
}

func TestHandleAppendEntriesConvincedButUnsuccessfulOnLogMismatch(t *testing.T) {
	h, transport, timers := newTestHandler("n1", []NodeId{"n2"}, 1)
	leader := NodeId("n2")
	h.state.becomeFollower(1, &leader)
	h.state.log.append(LogEntry{Term: 1})

	ae := AppendEntries{
		Term: 1, LeaderID: "n2",
		PrevLogIndex: 5, PrevLogTerm: 9, // no entry at index 5: mismatch
		LeaderCommit: StartIndex,
	}
	h.handleAppendEntries(context.Background(), ae)

	if got, want := len(transport.sent), 1; got != want {
		t.Fatalf("sent=%d, want 1", got)
	}
	aer := decodeSentAER(t, transport.sent[0].env)
	if !aer.Convinced || aer.Success {
		t.Fatalf("aer=%+v, want Convinced=true Success=false", aer)
	}
	if got, want := h.state.log.Len(), 1; got != want {
		t.Fatalf("log.Len()=%d, want %d (untouched on mismatch)", got, want)
	}
	if timers.electionResets == 0 {
		t.Fatal("expected the election timer to be reset on a recognized leader's AppendEntries")
	}
}

func TestHandleAppendEntriesTruncatesAndAppendsOnMatch(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2"}, 1)
	leader := NodeId("n2")
	h.state.becomeFollower(1, &leader)
	h.state.log.append(LogEntry{Term: 1})
	h.state.log.append(LogEntry{Term: 1}) // a stale entry the leader will overwrite

	newEntry := LogEntry{Term: 1, Command: Command{ClientID: "c1"}}
	ae := AppendEntries{
		Term: 1, LeaderID: "n2",
		PrevLogIndex: 0, PrevLogTerm: 1,
		Entries: []LogEntry{newEntry},
		LeaderCommit: 1,
	}
	h.handleAppendEntries(context.Background(), ae)

	if got, want := h.state.log.Len(), 2; got != want {
		t.Fatalf("log.Len()=%d, want %d", got, want)
	}
	if got, want := h.state.log.At(1).Command.ClientID, ClientId("c1"); got != want {
		t.Fatalf("log[1].Command.ClientID=%v, want %v", got, want)
	}
	if got, want := len(transport.sent), 1; got != want {
		t.Fatalf("sent=%d, want 1", got)
	}
	aer := decodeSentAER(t, transport.sent[0].env)
	if !aer.Convinced || !aer.Success {
		t.Fatalf("aer=%+v, want Convinced=true Success=true", aer)
	}
	if got, want := h.state.commitIndex, LogIndex(1); got != want {
		t.Fatalf("commitIndex=%d, want %d (advanced to min(leaderCommit, newLast))", got, want)
	}
}

func TestHandleAppendEntriesIgnoreLeaderDropsSilently(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2"}, 1)
	leader := NodeId("n2")
	h.state.becomeFollower(1, &leader)
	h.state.ignoreLeader = true

	ae := AppendEntries{Term: 1, LeaderID: "n2", PrevLogIndex: StartIndex}
	h.handleAppendEntries(context.Background(), ae)

	if len(transport.sent) != 0 {
		t.Fatal("an AppendEntries from a revoked leader must be dropped silently")
	}
}

func TestValidQuorumCertRejectsTooFewVotes(t *testing.T) {
	h, _, _ := newTestHandler("n1", []NodeId{"n2", "n3"}, 2)
	votes := []RequestVoteResponse{{Term: 1, CandidateID: "n2", VoteGranted: true}}
	if h.validQuorumCert(votes, "n2", 1) {
		t.Fatal("a cert with fewer than quorumSize votes must be rejected")
	}
}

func TestValidQuorumCertRejectsMismatchedCandidateOrTerm(t *testing.T) {
	h, _, _ := newTestHandler("n1", []NodeId{"n2", "n3"}, 1)
	votes := []RequestVoteResponse{{Term: 1, CandidateID: "n3", VoteGranted: true}}
	if h.validQuorumCert(votes, "n2", 1) {
		t.Fatal("a vote for a different candidate must not count toward n2's cert")
	}
	votes = []RequestVoteResponse{{Term: 2, CandidateID: "n2", VoteGranted: true}}
	if h.validQuorumCert(votes, "n2", 1) {
		t.Fatal("a vote from a different term must not count toward this cert")
	}
}

func TestValidQuorumCertRejectsUngrantedVote(t *testing.T) {
	h, _, _ := newTestHandler("n1", []NodeId{"n2", "n3"}, 1)
	votes := []RequestVoteResponse{{Term: 1, CandidateID: "n2", VoteGranted: false}}
	if h.validQuorumCert(votes, "n2", 1) {
		t.Fatal("a refused vote must not count toward the cert")
	}
}

func TestValidQuorumCertAcceptsMatchingVotes(t *testing.T) {
	h, _, _ := newTestHandler("n1", []NodeId{"n2", "n3"}, 2)
	votes := []RequestVoteResponse{
		{Term: 1, CandidateID: "n2", NodeID: "n1", VoteGranted: true},
		{Term: 1, CandidateID: "n2", NodeID: "n3", VoteGranted: true},
	}
	if !h.validQuorumCert(votes, "n2", 1) {
		t.Fatal("a quorum-sized set of matching, verified votes must be accepted")
	}
}

// Regression test for a Byzantine peer repeatedly NACKing: nextIndex must
// floor at 0 rather than drive negative and panic when the leader next
// builds an AppendEntries from it (see buildAppendEntries/Log.TermAt).
func TestHandleAppendEntriesResponseNextIndexFloorsAtZero(t *testing.T) {
	h, transport, _ := newTestHandler("n1", []NodeId{"n2"}, 1)
	h.state.becomeCandidate()
	h.state.becomeLeader(nil)
	h.state.lNextIndex["n2"] = 0

	for i := 0; i < 5; i++ {
		h.handleAppendEntriesResponse(context.Background(), AppendEntriesResponse{
			Term: h.state.term, NodeID: "n2", Convinced: true, Success: false, Index: StartIndex,
		})
	}

	if got, want := h.state.lNextIndex["n2"], LogIndex(0); got != want {
		t.Fatalf("lNextIndex[n2]=%d, want %d (floored)", got, want)
	}
	if len(transport.sent) == 0 {
		t.Fatal("expected resendAppendEntries to have sent at least one AppendEntries")
	}
}
