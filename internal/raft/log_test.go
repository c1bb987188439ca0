package raft

import "testing"

func TestLogEmpty(t *testing.T) {
	l := newLog()
	if got, want := l.Len(), 0; got != want {
		t.Fatalf("Len()=%d, want %d", got, want)
	}
	if got, want := l.LastIndex(), StartIndex; got != want {
		t.Fatalf("LastIndex()=%d, want %d", got, want)
	}
	term, idx := l.lastLogInfo()
	if term != 0 || idx != StartIndex {
		t.Fatalf("lastLogInfo()=(%d,%d), want (0,%d)", term, idx, StartIndex)
	}
	if !l.prevLogEntryMatches(StartIndex, 0) {
		t.Fatal("prevLogEntryMatches(StartIndex, 0) = false on empty log, want true")
	}
}

func TestLogAppendAndAt(t *testing.T) {
	l := newLog()
	l.append(LogEntry{Term: 1})
	l.append(LogEntry{Term: 1})
	idx := l.append(LogEntry{Term: 2})

	if got, want := idx, LogIndex(2); got != want {
		t.Fatalf("append return=%d, want %d", got, want)
	}
	if got, want := l.Len(), 3; got != want {
		t.Fatalf("Len()=%d, want %d", got, want)
	}
	if got, want := l.At(2).Term, Term(2); got != want {
		t.Fatalf("At(2).Term=%d, want %d", got, want)
	}
	if got, want := l.TermAt(0), Term(1); got != want {
		t.Fatalf("TermAt(0)=%d, want %d", got, want)
	}
	if got, want := l.TermAt(StartIndex), Term(0); got != want {
		t.Fatalf("TermAt(StartIndex)=%d, want %d", got, want)
	}
}

func TestLogPrevLogEntryMatches(t *testing.T) {
	l := newLog()
	l.append(LogEntry{Term: 1})
	l.append(LogEntry{Term: 3})

	t.Run("matches", func(t *testing.T) {
		if !l.prevLogEntryMatches(1, 3) {
			t.Fatal("expected match at index 1 term 3")
		}
	})
	t.Run("wrong term", func(t *testing.T) {
		if l.prevLogEntryMatches(1, 2) {
			t.Fatal("expected mismatch: wrong term")
		}
	})
	t.Run("out of range", func(t *testing.T) {
		if l.prevLogEntryMatches(5, 3) {
			t.Fatal("expected mismatch: index beyond log")
		}
	})
}

func TestLogTruncateAndAppend(t *testing.T) {
	l := newLog()
	l.append(LogEntry{Term: 1})
	l.append(LogEntry{Term: 1})
	l.append(LogEntry{Term: 2}) // index 2, about to be overwritten

	newLast := l.truncateAndAppend(1, []LogEntry{{Term: 5}, {Term: 5}})

	if got, want := newLast, LogIndex(3); got != want {
		t.Fatalf("truncateAndAppend returned %d, want %d", got, want)
	}
	if got, want := l.Len(), 4; got != want {
		t.Fatalf("Len()=%d, want %d", got, want)
	}
	if got, want := l.At(0).Term, Term(1); got != want {
		t.Fatalf("At(0) retained wrong entry: Term=%d, want %d", got, want)
	}
	if got, want := l.At(2).Term, Term(5); got != want {
		t.Fatalf("At(2) not overwritten: Term=%d, want %d", got, want)
	}
}

func TestLogTruncateAndAppendFromEmptyPrefix(t *testing.T) {
	l := newLog()
	l.append(LogEntry{Term: 9})
	l.append(LogEntry{Term: 9})

	newLast := l.truncateAndAppend(StartIndex, []LogEntry{{Term: 1}})

	if got, want := newLast, LogIndex(0); got != want {
		t.Fatalf("truncateAndAppend returned %d, want %d", got, want)
	}
	if got, want := l.Len(), 1; got != want {
		t.Fatalf("Len()=%d, want %d", got, want)
	}
	if got, want := l.At(0).Term, Term(1); got != want {
		t.Fatalf("At(0).Term=%d, want %d", got, want)
	}
}
