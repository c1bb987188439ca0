package raft

// advanceCommitIndex walks candidate indices forward from commitIndex and
// moves commitIndex to the longest qualifying prefix. Only meaningful
// while Leader; returns whether commitIndex moved forward.
//
// Candidate indices are those in (commitIndex, log.LastIndex()] whose
// entry was written in the leader's own term — the classical Raft
// restriction against committing a predecessor's entries by count alone.
// Among those, in ascending order, we take the longest prefix for which a
// quorum (leader + matched peers) has replicated it; ordering matters
// because a gap in replication breaks log matching for indices beyond it.
func (ns *NodeState) advanceCommitIndex() bool {
	if ns.role != Leader {
		return false
	}

	newCommit := ns.commitIndex
	for i := ns.commitIndex + 1; i <= ns.log.LastIndex(); i++ {
		if ns.log.TermAt(i) != ns.term {
			continue
		}
		count := 1 // the leader itself
		for _, peer := range ns.peers {
			if ns.lMatchIndex[peer] >= i {
				count++
			}
		}
		if count < ns.quorumSize {
			break
		}
		newCommit = i
	}

	if newCommit <= ns.commitIndex {
		return false
	}
	ns.commitIndex = newCommit
	return true
}

// appliedResponse is what applyPendingEntries hands back to the handler so
// it can route CommandResponses to clients — only meaningful when the
// caller is Leader.
type appliedResponse struct {
	ClientID ClientId
	Resp CommandResponse
}

// applyPendingEntries calls apply on every entry in (lastApplied,
// commitIndex], records the outcome in replayMap, and returns the
// CommandResponses generated so the caller can dispatch them to clients if
// it is Leader. Called inline from the AppendEntries-success path and from
// the commit-advancement paths triggered by AppendEntriesResponse and by a
// Leader appending a new Command.
func (ns *NodeState) applyPendingEntries(apply ApplyFunc) []appliedResponse {
	var responses []appliedResponse
	for ns.lastApplied < ns.commitIndex {
		idx := ns.lastApplied + 1
		entry := ns.log.At(idx)
		cmd := entry.Command

		result, err := apply(cmd.Entry)
		if err != nil {
			// apply must be deterministic and total; a failing apply here
			// means every replica would diverge, so this is treated as
			// structural corruption.
			panic("raft: apply failed for committed entry: " + err.Error())
		}

		resp := CommandResponse{
			Result: result,
			LeaderHint: ns.leaderHint(),
			ResponderID: ns.self,
			RequestID: cmd.RequestID,
			Proof: cmd.Signature,
		}
		key := replayKey{clientID: cmd.ClientID, sig: cmd.Signature}
		ns.replayMap[key] = replayOutcome{Revoked: false, Response: resp}

		responses = append(responses, appliedResponse{ClientID: cmd.ClientID, Resp: resp})
		ns.lastApplied = idx
	}
	return responses
}

func (ns *NodeState) leaderHint() NodeId {
	if ns.currentLeader != nil {
		return *ns.currentLeader
	}
	return ""
}
