// Package timers implements the election and heartbeat timers the handler
// consumes as events, never as direct calls. Grounded
// on jepsen-io-maelstrom/demo/go/cmd/maelstrom-raft/raft.go's
// resetElectionDeadline/resetStepDownDeadline, redesigned from that file's
// deadline-polled-by-a-separate-ticker-goroutine scheme into
// time.AfterFunc-driven single-shot timers: polling deadlines on a fixed
// tick and calling handler logic straight from the ticker goroutine would
// violate this core's single-consumer ownership of NodeState.
package timers

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"github.com/quorumlabs/bftraft/internal/raft"
)

// Facility owns the election and heartbeat timers for one node and pushes
// Events onto out when they fire. It implements raft.Timers.
type Facility struct {
	mu sync.Mutex

	electionMin time.Duration
	electionMax time.Duration
	heartbeat time.Duration

	out chan<- raft.Event

	election *time.Timer
	heart *time.Timer
}

// New builds a Facility that delivers fired timers as Events on out.
// electionMin/Max bound the randomized election timeout; heartbeat is the
// fixed interval used while Leader and must be strictly less than
// electionMin.
func New(out chan<- raft.Event, electionMin, electionMax, heartbeat time.Duration) *Facility {
	return &Facility{
		electionMin: electionMin,
		electionMax: electionMax,
		heartbeat: heartbeat,
		out: out,
	}
}

// ResetElection cancels any pending election timer and starts a new one
// with a fresh random interval in [electionMin, electionMax], mirroring
// resetElectionDeadline's jitter (there: rand.Float64()+1.0 seconds of
// jitter on top of a fixed timeout; here: a uniform draw across the
// configured range, since the embedder picks the range directly rather
// than layering jitter on a base timeout).
func (f *Facility) ResetElection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.election != nil {
		f.election.Stop()
	}
	span := f.electionMax - f.electionMin
	jitter := time.Duration(0)
	if span > 0 {
		jitter = time.Duration(rand.Int63n(int64(span) + 1))
	}
	d := f.electionMin + jitter
	f.election = time.AfterFunc(d, func() {
		f.out <- raft.Event{Kind: raft.EventElectionTimeout}
	})
}

// ResetHeartbeat cancels any pending heartbeat timer and starts a new
// fixed-interval one. No-op guard against firing while not Leader is the
// handler's job, not the timer's.
func (f *Facility) ResetHeartbeat() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heart != nil {
		f.heart.Stop()
	}
	f.heart = time.AfterFunc(f.heartbeat, func() {
		f.out <- raft.Event{Kind: raft.EventHeartbeatTimeout}
	})
}

// StopHeartbeat cancels the heartbeat timer outright. The handler calls it
// right before arming a newly elected Leader's heartbeat, so no heartbeat
// left over from an earlier timer fires alongside the new one.
func (f *Facility) StopHeartbeat() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heart != nil {
		f.heart.Stop()
		f.heart = nil
	}
}

var _ raft.Timers = (*Facility)(nil)
