// Package statemachine provides a reference application state machine —
// a small key/value store — exercising raft.ApplyFunc's apply(entry)
// contract. Grounded on
// jepsen-io-maelstrom/demo/go/cmd/maelstrom-raft/kv_store.go's KVStore,
// adapted from its int-keyed single-field store to a
// map[string]json.RawMessage store so values stay opaque end to end, the
// same way Command/Result are opaque json.RawMessage at the core boundary.
package statemachine

import (
	"encoding/json"
	"fmt"
	"sync"
)

const (
	OpRead = "read"
	OpWrite = "write"
	OpCAS = "cas"
)

// Operation is the concrete shape this state machine expects inside an
// AppCommand's entry bytes.
type Operation struct {
	Type string `json:"type"`
	Key string `json:"key"`
	From json.RawMessage `json:"from,omitempty"`
	To json.RawMessage `json:"to,omitempty"`
}

// Result mirrors the {ok, value, error} response shapes used by the
// reference KV handlers, collapsed into one struct since Go lacks the
// source's ad hoc per-case body types.
type Result struct {
	OK bool `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// KVStore is a deterministic, in-memory key/value store.
type KVStore struct {
	mu sync.Mutex
	state map[string]json.RawMessage
}

// NewKVStore returns an empty store.
func NewKVStore() *KVStore {
	return &KVStore{state: make(map[string]json.RawMessage)}
}

// Apply implements raft.ApplyFunc's signature: it decodes entry as an
// Operation, applies it, and returns the JSON-encoded Result.
func (kv *KVStore) Apply(entry json.RawMessage) (json.RawMessage, error) {
	var op Operation
	if err := json.Unmarshal(entry, &op); err != nil {
		return nil, fmt.Errorf("statemachine: decode operation: %w", err)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	var result Result
	switch op.Type {
	case OpRead:
		if v, ok := kv.state[op.Key]; ok {
			result = Result{OK: true, Value: v}
		} else {
			result = Result{OK: false, Error: "key does not exist"}
		}
	case OpWrite:
		kv.state[op.Key] = op.To
		result = Result{OK: true}
	case OpCAS:
		current, ok := kv.state[op.Key]
		switch {
		case !ok:
			result = Result{OK: false, Error: "key does not exist"}
		case string(current) != string(op.From):
			result = Result{OK: false, Error: fmt.Sprintf("expected %s but had %s", op.From, current)}
		default:
			kv.state[op.Key] = op.To
			result = Result{OK: true}
		}
	default:
		// An unrecognized op type is a content error, not a decode
		// failure: a committed, signed entry can carry any op type a
		// client chose to sign, so this must resolve to a Result the
		// client sees, not an error that would panic every replica
		// applying the same entry.
		result = Result{OK: false, Error: fmt.Sprintf("unknown operation %q", op.Type)}
		return json.Marshal(result)
	}

	return json.Marshal(result)
}
