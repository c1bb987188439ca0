// Package wire defines the bit-compatible envelope every replica uses to
// exchange RPCs: a Kind-tagged JSON payload plus a detached signature over
// the raw payload bytes.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Kind discriminates the eight RPC variants on the wire.
type Kind string

const (
	KindAppendEntries         Kind = "append_entries"
	KindAppendEntriesResponse Kind = "append_entries_res"
	KindRequestVote           Kind = "request_vote"
	KindRequestVoteResponse   Kind = "request_vote_res"
	KindCommand               Kind = "command"
	KindCommandResponse       Kind = "command_res"
	KindRevolution            Kind = "revolution"
	KindDebug                 Kind = "debug"
)

// Signature is a fixed-size ed25519 signature. A fixed array (rather than a
// slice) keeps every payload struct comparable, which RequestVoteResponse
// needs in order to live in a hash set (see internal/raft).
type Signature [64]byte

// MarshalJSON renders the signature as base64 so the wire stays compact
// instead of emitting 64 individual byte integers.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(s[:]))
}

// UnmarshalJSON accepts the base64 form produced by MarshalJSON.
func (s *Signature) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	b, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	if len(b) != len(s) {
		return fmt.Errorf("signature: want %d bytes, got %d", len(s), len(b))
	}
	copy(s[:], b)
	return nil
}

// Envelope is what actually crosses the wire: payload bytes, a detached
// signature over those bytes, plus the Kind tag needed to pick a decode
// target.
type Envelope struct {
	Kind    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Sig     Signature       `json:"sig"`
}

// Encode marshals an RPC struct into an Envelope carrying its Kind, without
// signing it — signing is the sender's job once it knows which key to use.
func Encode(kind Kind, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: raw}, nil
}

// CanonicalPayload re-marshals an RPC struct to the exact bytes Encode
// would have produced for it, so a signature computed once (e.g. on a
// RequestVoteResponse stored inside an election certificate) can be
// re-verified later without keeping the original wire bytes around.
// Safe because these payload structs contain no maps, so json.Marshal's
// field order is stable.
func CanonicalPayload(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// Decode unmarshals an Envelope's payload into the Kind-appropriate struct.
// It follows a two-step idiom: unmarshal to a generic map first, then
// mapstructure.Decode into the concrete type, rather than unmarshalling
// directly — this is what lets a single decode path serve every RPC variant
// uniformly regardless of which concrete struct it targets.
func Decode(env Envelope, dst any) error {
	var generic map[string]interface{}
	if err := json.Unmarshal(env.Payload, &generic); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(signatureDecodeHook, rawMessageDecodeHook),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(generic); err != nil {
		return fmt.Errorf("decode %s into %T: %w", env.Kind, dst, err)
	}
	return nil
}

// signatureDecodeHook teaches mapstructure how to turn the base64 string a
// Signature marshals to back into a [64]byte, since mapstructure only knows
// about the generic map produced by json.Unmarshal, not our MarshalJSON.
func signatureDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(Signature{}) {
		return data, nil
	}
	str, ok := data.(string)
	if !ok {
		return data, nil
	}
	b, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("signature decode hook: %w", err)
	}
	var sig Signature
	if len(b) != len(sig) {
		return nil, fmt.Errorf("signature decode hook: want %d bytes, got %d", len(sig), len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// rawMessageDecodeHook teaches mapstructure to re-marshal whatever generic
// value json.Unmarshal produced for an opaque AppCommand/Result field back
// into raw JSON bytes, since the round trip through map[string]interface{}
// loses the original byte representation.
func rawMessageDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(json.RawMessage{}) {
		return data, nil
	}
	if data == nil {
		return json.RawMessage("null"), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("raw message decode hook: %w", err)
	}
	return json.RawMessage(raw), nil
}
