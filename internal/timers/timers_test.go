package timers_test

import (
	"testing"
	"time"

	"github.com/quorumlabs/bftraft/internal/raft"
	"github.com/quorumlabs/bftraft/internal/timers"
)

func TestResetElectionFiresWithinWindow(t *testing.T) {
	out := make(chan raft.Event, 4)
	f := timers.New(out, 10*time.Millisecond, 20*time.Millisecond, time.Hour)

	start := time.Now()
	f.ResetElection()

	select {
	case ev := <-out:
		if got, want := ev.Kind, raft.EventElectionTimeout; got != want {
			t.Fatalf("event kind=%v, want %v", got, want)
		}
		if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
			t.Fatalf("fired too early: %v", elapsed)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for election timeout event")
	}
}

func TestResetElectionCancelsPrevious(t *testing.T) {
	out := make(chan raft.Event, 4)
	f := timers.New(out, 5*time.Millisecond, 8*time.Millisecond, time.Hour)

	f.ResetElection()
	f.ResetElection() // must cancel the first timer, not leave two in flight

	time.Sleep(30 * time.Millisecond)

	count := 0
	draining := true
	for draining {
		select {
		case <-out:
			count++
		default:
			draining = false
		}
	}
	if count != 1 {
		t.Fatalf("got %d election events, want exactly 1", count)
	}
}

func TestStopHeartbeatPreventsFiring(t *testing.T) {
	out := make(chan raft.Event, 4)
	f := timers.New(out, time.Hour, time.Hour, 5*time.Millisecond)

	f.ResetHeartbeat()
	f.StopHeartbeat()

	select {
	case ev := <-out:
		t.Fatalf("unexpected event after StopHeartbeat: %+v", ev)
	case <-time.After(30 * time.Millisecond):
		// expected: nothing fired
	}
}
