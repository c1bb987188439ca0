package config_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/quorumlabs/bftraft/internal/config"
)

func writeTemp(t *testing.T, name, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadClusterFile(t *testing.T) {
	path := writeTemp(t, "cluster.json", `{
		"nodes": {
			"n1": {"addr": "127.0.0.1:9001", "pubkey": "abc123"},
			"n2": {"addr": "127.0.0.1:9002", "pubkey": "def456"}
		},
		"clients": {
			"c1": "ghi789"
		}
	}`)

	cf, err := config.LoadClusterFile(path)
	if err != nil {
		t.Fatalf("LoadClusterFile: %v", err)
	}
	if got, want := len(cf.Nodes), 2; got != want {
		t.Fatalf("len(Nodes)=%d, want %d", got, want)
	}
	if got, want := cf.Nodes["n1"].Addr, "127.0.0.1:9001"; got != want {
		t.Fatalf("Nodes[n1].Addr=%s, want %s", got, want)
	}
	if got, want := cf.Clients["c1"], "ghi789"; got != want {
		t.Fatalf("Clients[c1]=%s, want %s", got, want)
	}
}

func TestLoadClusterFileMissing(t *testing.T) {
	if _, err := config.LoadClusterFile("/nonexistent/cluster.json"); err == nil {
		t.Fatal("expected an error for a missing cluster file")
	}
}

func TestDecodePrivateKey(t *testing.T) {
	raw := []byte("a 64 byte ed25519 private key padded out to the right length!!!!")
	encoded := base64.StdEncoding.EncodeToString(raw)
	path := writeTemp(t, "node.key", encoded+"\n")

	got, err := config.DecodePrivateKey(path)
	if err != nil {
		t.Fatalf("DecodePrivateKey: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("decoded key mismatch: got %q want %q", got, raw)
	}
}
