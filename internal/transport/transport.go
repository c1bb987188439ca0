// Package transport implements a TCP line-JSON delivery layer for raft
// envelopes: one persistent outbound connection per peer plus an inbound
// listener, feeding a single shared channel that is the handler's event
// queue. Grounded on jepsen-io-maelstrom/demo/go/node.go's Node.Run
// (bufio.Scanner reading one JSON message per line from Stdin) and
// Node.Send (mutex-guarded Stdout.Write), adapted from stdio to sockets:
// each connection gets its own reader goroutine rather than a single
// stdin scanner, since there are now many peers instead of one pipe, and
// each accepted connection's messages must stay in FIFO order relative to
// that peer while multiple peers' goroutines fan into one channel.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/quorumlabs/bftraft/internal/raft"
	"github.com/quorumlabs/bftraft/internal/wire"
)

// Transport is a TCP implementation of raft.Transport. It owns a listener
// for inbound connections and dials peers on demand for outbound sends,
// redialing on failure. Decoded, Kind-appropriate RPCs are delivered as
// raft.Events on Events().
type Transport struct {
	self NodeAddr

	mu sync.Mutex
	conns map[string]*connection

	events chan raft.Event

	listener net.Listener
	wg sync.WaitGroup
}

// NodeAddr is a node or client's dial address, e.g. "10.0.0.3:9001".
type NodeAddr = string

// connection serializes writes to one peer and owns its dial/redial state.
type connection struct {
	mu sync.Mutex
	addr NodeAddr
	conn net.Conn
}

// New builds a Transport listening on listenAddr. listenAddr also doubles
// as this node's identity in its handshake line to peers, so it must
// match the "addr" this node is registered under in every peer's cluster
// file. Call Run to start accepting inbound connections; call Events to
// obtain the channel the handler consumes.
func New(listenAddr NodeAddr) (*Transport, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", listenAddr, err)
	}
	return &Transport{
		self: listenAddr,
		conns: make(map[string]*connection),
		events: make(chan raft.Event, 256),
		listener: ln,
	}, nil
}

// Events returns the channel Handler.Run should consume.
func (t *Transport) Events() <-chan raft.Event {
	return t.events
}

// Sink returns the send-only side of the same channel, so collaborators
// that also produce Events — namely internal/timers — can enqueue onto the
// single shared queue alongside network-ingress events, preserving
// multi-producer/single-consumer model.
func (t *Transport) Sink() chan<- raft.Event {
	return t.events
}

// Run accepts inbound connections until ctx is cancelled, spawning one
// reader goroutine per accepted connection. It does not close the event
// channel itself — shutdown is modeled by ctx cancellation, which
// Handler.Run also selects on, so no producer (this transport's readers,
// or internal/timers) ever writes to a channel after it's been closed.
func (t *Transport) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.listener.Close()
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			break
		}
		t.wg.Add(1)
		go t.readLoop(conn)
	}
	t.wg.Wait()
}

// hello is the one-line handshake every dialer sends immediately after
// connecting, so the accepting side learns the caller's logical id rather
// than just its ephemeral socket address — the TCP analogue of the
// teacher's specially-handled "init" message (node.go's handleInit).
type hello struct {
	ID string `json:"id"`
}

// readLoop reads the handshake line, then decodes one JSON envelope per
// subsequent line, preserving this connection's FIFO order, and forwards
// each as an Event. One bad line ends the connection rather than the
// whole transport.
func (t *Transport) readLoop(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	if !scanner.Scan() {
		return
	}
	var h hello
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil || h.ID == "" {
		log.Printf("transport: bad handshake from %s: %v", conn.RemoteAddr(), err)
		return
	}
	from := h.ID

	for scanner.Scan() {
		var env wire.Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			log.Printf("transport: bad envelope from %s: %v", from, err)
			continue
		}
		rpc, err := raft.DecodeRPC(env)
		if err != nil {
			log.Printf("transport: decode %s from %s: %v", env.Kind, from, err)
			continue
		}
		t.events <- raft.Event{
			Kind: raft.EventRPC,
			From: from,
			Payload: rpc,
			RawPayload: env.Payload,
			Sig: env.Sig,
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("transport: read from %s: %v", from, err)
	}
}

// Send implements raft.Transport: write env (the already-marshaled
// envelope bytes) as one line to the persistent connection for to, dialing
// (or redialing) on demand.
func (t *Transport) Send(ctx context.Context, to string, kind raft.RPCKind, env []byte) error {
	c := t.connectionFor(to)
	return c.write(ctx, t.self, env)
}

func (t *Transport) connectionFor(addr NodeAddr) *connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[addr]
	if !ok {
		c = &connection{addr: addr}
		t.conns[addr] = c
	}
	return c
}

func (c *connection) write(ctx context.Context, selfID string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		d := net.Dialer{Timeout: 5 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			return fmt.Errorf("transport: dial %s: %w", c.addr, err)
		}
		helloLine, err := json.Marshal(hello{ID: selfID})
		if err != nil {
			conn.Close()
			return fmt.Errorf("transport: marshal handshake: %w", err)
		}
		if _, err := conn.Write(append(helloLine, '\n')); err != nil {
			conn.Close()
			return fmt.Errorf("transport: handshake to %s: %w", c.addr, err)
		}
		c.conn = conn
	}

	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("transport: write %s: %w", c.addr, err)
	}
	return nil
}

var _ raft.Transport = (*Transport)(nil)
