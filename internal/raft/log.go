package raft

import "github.com/samber/lo"

// Log is the replica's replicated-log storage: a contiguous sequence
// indexed 0..N-1. Grounded on jepsen-io-maelstrom's demo/go/raft/log.go
// Log type, but re-indexed from its 1-based scheme (with a synthetic
// term-0 sentinel entry at position 0) to a 0-based scheme with
// StartIndex=-1 meaning "before entry 0" — so no sentinel entry is
// stored.
type Log struct {
	entries []LogEntry
}

// newLog returns an empty log.
func newLog() *Log {
	return &Log{}
}

// Len returns the number of entries in the log.
func (l *Log) Len() int { return len(l.entries) }

// LastIndex returns the index of the last entry, or StartIndex if empty.
func (l *Log) LastIndex() LogIndex { return LogIndex(len(l.entries)) - 1 }

// At returns the entry at idx. Callers must ensure 0 <= idx < Len(); it
// panics otherwise, which is appropriate — an out-of-range access here is
// structural corruption, not a recoverable condition.
func (l *Log) At(idx LogIndex) LogEntry {
	return l.entries[idx]
}

// TermAt returns the term of the entry at idx, or 0 if idx == StartIndex.
func (l *Log) TermAt(idx LogIndex) Term {
	if idx == StartIndex {
		return 0
	}
	return l.entries[idx].Term
}

// lastLogInfo returns the term and index of the log's last entry, or
// (0, StartIndex) for an empty log.
func (l *Log) lastLogInfo() (Term, LogIndex) {
	if len(l.entries) == 0 {
		return 0, StartIndex
	}
	last := l.entries[len(l.entries)-1]
	return last.Term, l.LastIndex()
}

// prevLogEntryMatches is true iff the entry at prevIndex has prevTerm, or
// prevIndex is StartIndex and the log is conceptually empty at that point.
func (l *Log) prevLogEntryMatches(prevIndex LogIndex, prevTerm Term) bool {
	if prevIndex == StartIndex {
		return true
	}
	if prevIndex < StartIndex || int(prevIndex) >= len(l.entries) {
		return false
	}
	return l.entries[prevIndex].Term == prevTerm
}

// truncateAndAppend retains entries[0..prevIndex] inclusive, then extends
// with newEntries, and returns the new last index. This always re-slices
// from prevIndex+1 even when newEntries agrees with the discarded suffix;
// correct but not the minimal diff, since comparing suffixes first would
// avoid reallocating when a retried AppendEntries carries entries already
// present.
func (l *Log) truncateAndAppend(prevIndex LogIndex, newEntries []LogEntry) LogIndex {
	keep := int(prevIndex) + 1
	if keep < 0 {
		keep = 0
	}
	if keep > len(l.entries) {
		keep = len(l.entries)
	}
	l.entries = append(lo.Slice(l.entries, 0, keep), newEntries...)
	return l.LastIndex()
}

// append adds entries to the end of the log without truncating — used by
// the leader when it accepts a new client command.
func (l *Log) append(entry LogEntry) LogIndex {
	l.entries = append(l.entries, entry)
	return l.LastIndex()
}
