package raft

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// becomeFollower resets a node to Follower for the given term, clearing all
// Candidate/Leader bookkeeping. Grounded on
// jepsen-io-maelstrom/demo/go/cmd/maelstrom-raft/raft.go's becomeFollower,
// stripped of its mutex (single-owner state here needs none).
func (ns *NodeState) becomeFollower(term Term, leader *NodeId) {
	ns.role = Follower
	ns.term = term
	ns.votedFor = nil
	ns.lazy = lazyVote{}
	ns.currentLeader = leader
	ns.ignoreLeader = false
	ns.lNextIndex = nil
	ns.lMatchIndex = nil
	ns.lConvinced = nil
	ns.cYesVotes = nil
	ns.cPotentialVotes = nil
	ns.quorumCert = nil
}

// becomeCandidate increments the term, votes for self, and seeds the
// per-election vote-tracking sets. Caller is responsible for broadcasting
// RequestVote and resetting the election timer.
func (ns *NodeState) becomeCandidate() {
	ns.role = Candidate
	ns.term++
	self := ns.self
	ns.votedFor = &self
	ns.lazy = lazyVote{}
	ns.currentLeader = nil
	ns.ignoreLeader = false
	ns.quorumCert = nil

	ns.cYesVotes = mapset.NewSet[RequestVoteResponse]()
	ns.cPotentialVotes = mapset.NewSet[NodeId](ns.peers...)

	// A candidate's own vote always counts towards cYesVotes once it signs
	// its own RVR — the handler inserts that entry when it broadcasts RV.
}

// becomeLeader transitions a freshly-elected Candidate into Leader, seeding
// per-peer replication bookkeeping and capturing the winning vote set as the
// election certificate attached to future AppendEntries. cert is the caller's snapshot of cYesVotes at the moment quorum
// was reached.
func (ns *NodeState) becomeLeader(cert []RequestVoteResponse) {
	ns.role = Leader
	self := ns.self
	ns.currentLeader = &self
	ns.ignoreLeader = false
	ns.quorumCert = cert

	_, lastIndex := ns.lastLogInfo()
	ns.lNextIndex = make(map[NodeId]LogIndex, len(ns.peers))
	ns.lMatchIndex = make(map[NodeId]LogIndex, len(ns.peers))
	ns.lConvinced = mapset.NewSet[NodeId]()
	for _, p := range ns.peers {
		ns.lNextIndex[p] = lastIndex + 1
		ns.lMatchIndex[p] = StartIndex
	}

	ns.cYesVotes = nil
	ns.cPotentialVotes = nil
}
