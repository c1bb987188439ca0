package raft

import "testing"

func TestBecomeCandidateIncrementsTermAndVotesSelf(t *testing.T) {
	ns := newNodeState("n1", []NodeId{"n2", "n3"}, 2)
	ns.term = 4

	ns.becomeCandidate()

	if got, want := ns.role, Candidate; got != want {
		t.Fatalf("role=%v, want %v", got, want)
	}
	if got, want := ns.term, Term(5); got != want {
		t.Fatalf("term=%d, want %d", got, want)
	}
	if ns.votedFor == nil || *ns.votedFor != ns.self {
		t.Fatalf("votedFor=%v, want self %v", ns.votedFor, ns.self)
	}
	if ns.cYesVotes == nil || ns.cYesVotes.Cardinality() != 0 {
		t.Fatalf("cYesVotes should start empty, got %v", ns.cYesVotes)
	}
	if ns.cPotentialVotes.Cardinality() != 2 {
		t.Fatalf("cPotentialVotes should seed with peers, got %v", ns.cPotentialVotes)
	}
}

func TestBecomeLeaderSeedsPerPeerIndexes(t *testing.T) {
	ns := newNodeState("n1", []NodeId{"n2", "n3"}, 2)
	ns.becomeCandidate()
	ns.log.append(LogEntry{Term: ns.term})
	ns.log.append(LogEntry{Term: ns.term})

	cert := []RequestVoteResponse{
		{Term: ns.term, CandidateID: ns.self, NodeID: ns.self, VoteGranted: true},
	}
	ns.becomeLeader(cert)

	if got, want := ns.role, Leader; got != want {
		t.Fatalf("role=%v, want %v", got, want)
	}
	if ns.currentLeader == nil || *ns.currentLeader != ns.self {
		t.Fatalf("currentLeader=%v, want self", ns.currentLeader)
	}
	for _, p := range ns.peers {
		if got, want := ns.lNextIndex[p], LogIndex(2); got != want {
			t.Fatalf("lNextIndex[%s]=%d, want %d", p, got, want)
		}
		if got, want := ns.lMatchIndex[p], StartIndex; got != want {
			t.Fatalf("lMatchIndex[%s]=%d, want %d", p, got, want)
		}
	}
	if ns.cYesVotes != nil || ns.cPotentialVotes != nil {
		t.Fatal("candidate-only bookkeeping should be cleared on becoming leader")
	}
}

func TestBecomeFollowerClearsRoleSpecificState(t *testing.T) {
	ns := newNodeState("n1", []NodeId{"n2", "n3"}, 2)
	ns.becomeCandidate()
	ns.becomeLeader(nil)

	leader := NodeId("n2")
	ns.becomeFollower(9, &leader)

	if got, want := ns.role, Follower; got != want {
		t.Fatalf("role=%v, want %v", got, want)
	}
	if got, want := ns.term, Term(9); got != want {
		t.Fatalf("term=%d, want %d", got, want)
	}
	if ns.currentLeader == nil || *ns.currentLeader != leader {
		t.Fatalf("currentLeader=%v, want %v", ns.currentLeader, leader)
	}
	if ns.votedFor != nil {
		t.Fatalf("votedFor should be cleared, got %v", ns.votedFor)
	}
	if ns.lNextIndex != nil || ns.lMatchIndex != nil || ns.lConvinced != nil {
		t.Fatal("leader-only bookkeeping should be cleared on becoming follower")
	}
}
