// Package config loads a replica's identity, peer membership, timing, and
// keying material. Cluster membership is a JSON file decoded with the
// same two-step mapstructure idiom internal/wire uses for RPC payloads,
// grounded on
// jepsen-io-maelstrom/demo/go/raft/handlers.go.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// PeerInfo is one entry of the cluster membership file: an address to
// dial and the base64 ed25519 public key used to verify its signatures.
type PeerInfo struct {
	Addr      string `json:"addr" mapstructure:"addr"`
	PublicKey string `json:"pubkey" mapstructure:"pubkey"`
}

// ClusterFile is the on-disk shape of the cluster membership file: node id
// -> PeerInfo, plus known client public keys by ClientId.
type ClusterFile struct {
	Nodes   map[string]PeerInfo `json:"nodes" mapstructure:"nodes"`
	Clients map[string]string   `json:"clients" mapstructure:"clients"`
}

// Config is a running node's fully-resolved configuration, assembled from
// CLI flags plus a decoded ClusterFile.
type Config struct {
	NodeID     string
	ListenAddr string
	Peers      map[string]PeerInfo // otherNodes, keyed by NodeId
	Clients    map[string]string   // clientPublicKeys, keyed by ClientId, base64
	QuorumSize int

	ElectionMin time.Duration
	ElectionMax time.Duration
	Heartbeat   time.Duration

	PrivateKeyPath string
}

// LoadClusterFile reads and decodes a cluster membership file at path.
func LoadClusterFile(path string) (ClusterFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ClusterFile{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ClusterFile{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var cf ClusterFile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &cf,
		TagName: "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return ClusterFile{}, err
	}
	if err := dec.Decode(generic); err != nil {
		return ClusterFile{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cf, nil
}

// DecodePrivateKey reads a base64-encoded ed25519 private key from path.
func DecodePrivateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read key %s: %w", path, err)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
}
