package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shruggr/relaynode/kvstore"
	"github.com/shruggr/relaynode/kvstore/badger"
	"github.com/shruggr/relaynode/kvstore/memory"
	"github.com/shruggr/relaynode/merkle"
	"github.com/shruggr/relaynode/metadata"
	"github.com/shruggr/relaynode/metadata/sqlite"
	"github.com/shruggr/relaynode/p2p"
	"github.com/shruggr/relaynode/peer"
	"github.com/shruggr/relaynode/proofcache"
	proofcachemem "github.com/shruggr/relaynode/proofcache/memory"
	"github.com/shruggr/relaynode/relay"
	"github.com/shruggr/relaynode/txindexer"
)

func splitAndTrim(s, delim string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, delim)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func main() {
	storageType := flag.String("storage", "memory", "Key-value storage backend for Merkle proof leaves: memory or badger")
	dataDir := flag.String("data-dir", "./data", "Data directory for BadgerDB")
	metadataDB := flag.String("metadata-db", "", "Path to a SQLite database for block metadata; empty disables persistence")
	p2pPort := flag.Int("p2p-port", 9906, "P2P listen port")
	topicPrefix := flag.String("topic-prefix", "mainnet", "Topic prefix (mainnet, testnet, etc.)")
	bootstrapPeers := flag.String("bootstrap-peers", "", "Comma-separated list of bootstrap peer multiaddrs")
	reconcileURL := flag.String("reconcile-url", "", "Base URL of a reconciliation endpoint used to warm the recv cache; empty disables it")
	checkMerkle := flag.Bool("check-merkle", true, "Verify proof-of-work and Merkle root on every relay block")
	oldFlags := flag.Bool("old-flags", false, "Use the legacy fixed oversize-transaction budget instead of the size-based cache limits")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	log.Println("Starting relaynode...")

	kv, err := openKVStore(*storageType, *dataDir)
	if err != nil {
		log.Fatalf("Failed to initialize key-value store: %v", err)
	}
	defer kv.Close()

	proofLRU, err := proofcachemem.New[*merkle.Proof](4096)
	if err != nil {
		log.Fatalf("Failed to initialize proof cache: %v", err)
	}
	var proofCache proofcache.Cache[*merkle.Proof] = proofLRU
	proofs := merkle.NewProofStore(kv, proofCache)

	var store metadata.Store
	if *metadataDB != "" {
		store, err = sqlite.New(&sqlite.Config{DBPath: *metadataDB})
		if err != nil {
			log.Fatalf("Failed to open metadata store: %v", err)
		}
		defer store.Close()
	}

	relayCfg := relay.DefaultConfig()
	relayCfg.UseOldFlags = *oldFlags

	node := peer.NewNode(peer.Config{
		Relay:            relayCfg,
		Store:            store,
		Indexer:          txindexer.NewNoopIndexer(),
		Proofs:           proofs,
		ReconcileBaseURL: *reconcileURL,
		Logger:           logger,
	})

	var bootstrapPeerList []string
	if *bootstrapPeers != "" {
		bootstrapPeerList = splitAndTrim(*bootstrapPeers, ",")
	}

	listener, err := p2p.NewListener(&p2p.Config{
		Port:           *p2pPort,
		BootstrapPeers: bootstrapPeerList,
		TopicPrefix:    *topicPrefix,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create P2P listener: %v", err)
	}
	if err := listener.Start(); err != nil {
		log.Fatalf("Failed to start P2P listener: %v", err)
	}
	defer listener.Stop()

	log.Printf("relaynode started | Height: %d | Peers: %d", node.HeaderChain().Height(), listener.PeerCount())

	blockCh := listener.SubscribeBlocks()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	statusTicker := time.NewTicker(5 * time.Minute)
	defer statusTicker.Stop()

	for {
		select {
		case <-sigCh:
			log.Println("Shutting down...")
			return

		case <-statusTicker.C:
			log.Printf("Status: Connected to %d peers, height %d", listener.PeerCount(), node.HeaderChain().Height())

		case data := <-blockCh:
			handleRelayBlock(ctx, node, logger, data, *checkMerkle)
		}
	}
}

// handleRelayBlock parses the 12-byte relay header off a gossiped payload
// and hands the remainder to peer.Node for decompression, logging the
// outcome instead of propagating an error up to the event loop.
func handleRelayBlock(ctx context.Context, node *peer.Node, logger *slog.Logger, data []byte, checkMerkle bool) {
	if len(data) < relay.RelayHeaderSize {
		logger.Warn("dropping undersized relay message", "size", len(data))
		return
	}
	if binary.BigEndian.Uint32(data[0:4]) != relay.RelayMagicBytes {
		logger.Warn("dropping message with unknown magic bytes")
		return
	}
	if binary.BigEndian.Uint32(data[4:8]) != relay.BlockType {
		return // a relayed transaction, not a block; not this loop's concern
	}
	txCount := binary.BigEndian.Uint32(data[8:12])

	result, err := node.OnCompressedBlock(ctx, data[relay.RelayHeaderSize:], txCount, checkMerkle, uint64(len(data)))
	if err != nil {
		logger.Warn("failed to decompress relay block", "error", err)
		return
	}
	logger.Info("decompressed relay block", "hash", fmt.Sprintf("%x", result.BlockHash), "txs", len(result.Transactions), "wire_bytes", result.WireBytes)
}

func openKVStore(storageType, dataDir string) (kvstore.KVStore, error) {
	switch storageType {
	case "memory":
		return memory.New(), nil
	case "badger":
		return badger.New(&badger.Config{DataDir: dataDir})
	default:
		return nil, fmt.Errorf("unknown storage type %q (use memory or badger)", storageType)
	}
}
