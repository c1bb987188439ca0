// Command bftraftd launches a single BFT-Raft replica. Flag layout and
// signal-handled graceful shutdown are grounded on
// akhadilkar-byzantine-fault-tolerant-consensus/main.go.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/rand"

	"github.com/quorumlabs/bftraft/internal/config"
	"github.com/quorumlabs/bftraft/internal/crypto"
	"github.com/quorumlabs/bftraft/internal/raft"
	"github.com/quorumlabs/bftraft/internal/statemachine"
	"github.com/quorumlabs/bftraft/internal/timers"
	"github.com/quorumlabs/bftraft/internal/transport"
)

func main() {
	id := flag.String("id", "", "this node's id (must match an entry in -cluster)")
	listen := flag.String("listen", ":9000", "address to listen on for peer/client connections")
	cluster := flag.String("cluster", "", "path to the cluster membership JSON file")
	keyPath := flag.String("key", "", "path to this node's base64 ed25519 private key")
	quorum := flag.Int("quorum", 0, "quorum size; defaults to ceil((2n+1)/3)+1 over cluster size")
	electionMin := flag.Duration("election-min", 150*time.Millisecond, "minimum election timeout")
	electionMax := flag.Duration("election-max", 300*time.Millisecond, "maximum election timeout")
	heartbeat := flag.Duration("heartbeat", 50*time.Millisecond, "leader heartbeat interval")
	flag.Parse()

	if *id == "" || *cluster == "" || *keyPath == "" {
		log.Fatal("bftraftd: -id, -cluster, and -key are required")
	}

	cf, err := config.LoadClusterFile(*cluster)
	if err != nil {
		log.Fatalf("bftraftd: %v", err)
	}

	privRaw, err := config.DecodePrivateKey(*keyPath)
	if err != nil {
		log.Fatalf("bftraftd: %v", err)
	}
	priv, err := crypto.ParsePrivateKey(privRaw)
	if err != nil {
		log.Fatalf("bftraftd: %v", err)
	}

	keys := crypto.NewKeyRing(priv)
	var peers []raft.NodeId
	for nodeID, info := range cf.Nodes {
		if nodeID == *id {
			continue
		}
		pubRaw, err := decodeBase64(info.PublicKey)
		if err != nil {
			log.Fatalf("bftraftd: peer %s: %v", nodeID, err)
		}
		pub, err := crypto.ParsePublicKey(pubRaw)
		if err != nil {
			log.Fatalf("bftraftd: peer %s: %v", nodeID, err)
		}
		keys.Register(info.Addr, pub)
		peers = append(peers, raft.NodeId(info.Addr))
	}
	for clientID, pubB64 := range cf.Clients {
		pubRaw, err := decodeBase64(pubB64)
		if err != nil {
			log.Fatalf("bftraftd: client %s: %v", clientID, err)
		}
		pub, err := crypto.ParsePublicKey(pubRaw)
		if err != nil {
			log.Fatalf("bftraftd: client %s: %v", clientID, err)
		}
		keys.Register(clientID, pub)
	}

	qs := *quorum
	if qs == 0 {
		n := len(peers) + 1
		qs = (2*n+1+2)/3 + 1 // ceil((2n+1)/3) + 1
	}

	tport, err := transport.New(*listen)
	if err != nil {
		log.Fatalf("bftraftd: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("bftraftd: shutting down")
		cancel()
	}()

	rand.Seed(uint64(time.Now().UnixNano()))

	tf := timers.New(tport.Sink(), *electionMin, *electionMax, *heartbeat)
	sender := raft.NewSender(raft.NodeId(*listen), keys, tport)
	kv := statemachine.NewKVStore()

	handler := raft.NewHandler(raft.NodeId(*listen), peers, qs, sender, keys, kv.Apply, tf)

	go tport.Run(ctx)
	defer recoverAndExit()

	tf.ResetElection()
	log.Printf("bftraftd: %s listening on %s, %d peers, quorum=%d", *id, *listen, len(peers), qs)
	handler.Run(ctx, tport.Events())
}

func recoverAndExit() {
	if r := recover(); r != nil {
		// Structural invariant violations panic inside the handler
		// goroutine; recovered only here to log and exit non-zero rather
		// than silently swallow the corruption.
		log.Fatalf("bftraftd: fatal: %v", r)
	}
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
